package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// SQLiteStore 用 SQLite 持久化通话归档，进程重启后记录仍可查询。
type SQLiteStore struct {
	db *gorm.DB
}

// OpenSQLite 打开（或创建）SQLite 数据库并迁移表结构。
// path 传 ":memory:" 时为纯内存库，测试用。
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite %s: %w", path, err)
	}
	if err := db.AutoMigrate(&CallRecord{}); err != nil {
		return nil, fmt.Errorf("store: auto-migrate: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Save 以 CallID 为冲突键做 upsert：重复收尾（断线后补发 end_call）只更新同一行。
func (s *SQLiteStore) Save(ctx context.Context, rec *CallRecord) error {
	result := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "call_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"end_time", "duration_seconds", "utterances_processed", "total_audio_duration",
			"transcript", "confidence_score", "content_score", "distress_score",
			"triage_queue", "priority_level", "flag_audio_review", "escalation_required",
			"dispatcher_action", "triage_reasoning", "status", "updated_at",
		}),
	}).Create(rec)
	if result.Error != nil {
		return fmt.Errorf("store: save call %s: %w", rec.CallID, result.Error)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, callID string) (*CallRecord, error) {
	var rec CallRecord
	err := s.db.WithContext(ctx).Where("call_id = ?", callID).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get call %s: %w", callID, err)
	}
	return &rec, nil
}

func (s *SQLiteStore) List(ctx context.Context) ([]CallRecord, error) {
	var recs []CallRecord
	if err := s.db.WithContext(ctx).Order("start_time desc").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("store: list calls: %w", err)
	}
	return recs, nil
}
