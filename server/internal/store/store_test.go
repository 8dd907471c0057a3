package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"call-triage/server/internal/model"
)

// 两种实现共用同一套行为测试。
func stores(t *testing.T) map[string]Store {
	t.Helper()
	sq, err := OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	return map[string]Store{
		"sqlite": sq,
		"inmem":  NewInMemoryStore(),
	}
}

func sampleRecord(callID string, start time.Time) *CallRecord {
	end := start.Add(45 * time.Second)
	return &CallRecord{
		CallID:              callID,
		StartTime:           start,
		EndTime:             &end,
		DurationSeconds:     45,
		UtterancesProcessed: 3,
		TotalAudioDuration:  12.5,
		Transcript:          "water coming in fast need help",
		ConfidenceScore:     0.42,
		ContentScore:        0.3,
		DistressScore:       0.85,
		TriageQueue:         string(model.QueueImmediate),
		PriorityLevel:       1,
		FlagAudioReview:     true,
		EscalationRequired:  true,
		DispatcherAction:    "IMMEDIATE ATTENTION REQUIRED",
		TriageReasoning:     "low confidence, high distress",
		Status:              RecordCompleted,
	}
}

func TestStoreSaveAndGet(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			start := time.Now().UTC().Truncate(time.Second)
			if err := s.Save(ctx, sampleRecord("LIVE-A1B2C3D4", start)); err != nil {
				t.Fatalf("save: %v", err)
			}

			got, err := s.Get(ctx, "LIVE-A1B2C3D4")
			if err != nil {
				t.Fatalf("get: %v", err)
			}
			if got.TriageQueue != string(model.QueueImmediate) || got.PriorityLevel != 1 {
				t.Errorf("triage fields lost: %+v", got)
			}
			if got.Transcript != "water coming in fast need help" {
				t.Errorf("transcript = %q", got.Transcript)
			}
			if !got.EscalationRequired || !got.FlagAudioReview {
				t.Errorf("flags lost: %+v", got)
			}
		})
	}
}

func TestStoreGetNotFound(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Get(context.Background(), "LIVE-MISSING"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
		})
	}
}

// TestStoreSaveUpsertsByCallID 同一 CallID 重复保存只保留一行，字段取最新值。
func TestStoreSaveUpsertsByCallID(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			start := time.Now().UTC().Truncate(time.Second)

			first := sampleRecord("LIVE-DUP", start)
			first.Status = RecordInterrupted
			if err := s.Save(ctx, first); err != nil {
				t.Fatalf("save first: %v", err)
			}

			second := sampleRecord("LIVE-DUP", start)
			second.Status = RecordCompleted
			second.DistressScore = 0.9
			if err := s.Save(ctx, second); err != nil {
				t.Fatalf("save second: %v", err)
			}

			recs, err := s.List(ctx)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(recs) != 1 {
				t.Fatalf("expected single row after upsert, got %d", len(recs))
			}
			if recs[0].Status != RecordCompleted || recs[0].DistressScore != 0.9 {
				t.Errorf("expected latest values, got %+v", recs[0])
			}
		})
	}
}

// TestStoreListOrdering 列表按开始时间倒序，最新通话在前。
func TestStoreListOrdering(t *testing.T) {
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Now().UTC().Truncate(time.Second)
			for i, id := range []string{"LIVE-OLD", "LIVE-MID", "LIVE-NEW"} {
				rec := sampleRecord(id, base.Add(time.Duration(i)*time.Minute))
				if err := s.Save(ctx, rec); err != nil {
					t.Fatalf("save %s: %v", id, err)
				}
			}

			recs, err := s.List(ctx)
			if err != nil {
				t.Fatalf("list: %v", err)
			}
			if len(recs) != 3 {
				t.Fatalf("expected 3 records, got %d", len(recs))
			}
			if recs[0].CallID != "LIVE-NEW" || recs[2].CallID != "LIVE-OLD" {
				t.Errorf("wrong ordering: %s, %s, %s", recs[0].CallID, recs[1].CallID, recs[2].CallID)
			}
		})
	}
}
