package store

import "time"

// 通话归档状态。
const (
	RecordCompleted   = "completed"   // 呼叫方正常发送 end_call
	RecordInterrupted = "interrupted" // 连接断开，服务端代为收尾
)

// CallRecord 是通话结束后落库的归档记录，一通电话一行。
// 分数字段保存的是整通电话按时长加权后的最终值。
type CallRecord struct {
	ID                  uint       `gorm:"primaryKey;autoIncrement" json:"-"`
	CallID              string     `gorm:"uniqueIndex;size:64;not null" json:"call_id"`
	StartTime           time.Time  `json:"start_time"`
	EndTime             *time.Time `json:"end_time,omitempty"`
	DurationSeconds     float64    `json:"duration_seconds"`
	UtterancesProcessed int        `json:"utterances_processed"`
	TotalAudioDuration  float64    `json:"total_audio_duration"`
	Transcript          string     `gorm:"type:text" json:"transcript"`
	ConfidenceScore     float64    `json:"confidence_score"`
	ContentScore        float64    `json:"content_score"`
	DistressScore       float64    `json:"distress_score"`
	TriageQueue         string     `gorm:"size:32;index" json:"triage_queue"`
	PriorityLevel       int        `json:"priority_level"`
	FlagAudioReview     bool       `json:"flag_audio_review"`
	EscalationRequired  bool       `json:"escalation_required"`
	DispatcherAction    string     `gorm:"type:text" json:"dispatcher_action"`
	TriageReasoning     string     `gorm:"type:text" json:"triage_reasoning"`
	Status              string     `gorm:"size:16;default:completed" json:"status"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`
}
