package timeline

import (
	"context"
	"testing"

	"call-triage/server/internal/model"
)

// TestInMemoryStoreAppendAssignsSeq 验证 Append 为事件分配单调递增的 seq。
// 场景：连续追加两个事件，验证 seq 递增且各通话独立。
func TestInMemoryStoreAppendAssignsSeq(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	seq1, err := store.Append(ctx, "c1", &model.Event{Type: model.EventProcessingStarted})
	if err != nil {
		t.Fatalf("append event: %v", err)
	}
	if seq1 != 1 {
		t.Fatalf("expected seq 1, got %d", seq1)
	}

	seq2, err := store.Append(ctx, "c1", &model.Event{Type: model.EventProcessingComplete})
	if err != nil {
		t.Fatalf("append event: %v", err)
	}
	if seq2 != 2 {
		t.Fatalf("expected seq 2, got %d", seq2)
	}

	seqOther, err := store.Append(ctx, "c2", &model.Event{Type: model.EventSessionStarted})
	if err != nil {
		t.Fatalf("append event: %v", err)
	}
	if seqOther != 1 {
		t.Fatalf("expected independent seq per call, got %d", seqOther)
	}
}

// TestInMemoryStoreAppendStampsCallID 验证写入时补全 CallID 与 Seq 且存储的是副本。
func TestInMemoryStoreAppendStampsCallID(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	evt := &model.Event{Type: model.EventBufferProgress, Duration: 1.5}
	if _, err := store.Append(ctx, "c1", evt); err != nil {
		t.Fatalf("append event: %v", err)
	}
	evt.Duration = 99 // 调用方后续修改不应影响已存记录

	events, err := store.List(ctx, "c1")
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].CallID != "c1" || events[0].Seq != 1 {
		t.Fatalf("expected stamped call id and seq, got %+v", events[0])
	}
	if events[0].Duration != 1.5 {
		t.Fatalf("expected stored copy unaffected by caller mutation, got %v", events[0].Duration)
	}
}

// TestInMemoryStoreListReturnsCopy 验证 List 返回事件切片的副本，防止外部修改影响内部状态。
func TestInMemoryStoreListReturnsCopy(t *testing.T) {
	store := NewInMemoryStore()
	ctx := context.Background()

	if _, err := store.Append(ctx, "c1", &model.Event{Type: model.EventSessionStarted}); err != nil {
		t.Fatalf("append event: %v", err)
	}

	events, err := store.List(ctx, "c1")
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	events[0].Type = "mutated"

	eventsAgain, err := store.List(ctx, "c1")
	if err != nil {
		t.Fatalf("list events again: %v", err)
	}
	if eventsAgain[0].Type != model.EventSessionStarted {
		t.Fatalf("expected internal data unchanged, got %q", eventsAgain[0].Type)
	}
}
