package timeline

import (
	"context"
	"sync"

	"call-triage/server/internal/model"
)

// InMemoryStore 是一个基于内存的审计时间线存储实现。
type InMemoryStore struct {
	mu     sync.RWMutex
	events map[string][]model.Event
	seq    map[string]int64
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		events: make(map[string][]model.Event),
		seq:    make(map[string]int64),
	}
}

// Append 追加事件到时间线，并为该通话分配单调递增 seq。
// 写入的是事件副本，调用方之后修改 evt 不影响已存记录。
func (s *InMemoryStore) Append(_ context.Context, callID string, evt *model.Event) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq[callID]++
	seq := s.seq[callID]

	eventCopy := *evt
	eventCopy.Seq = seq
	eventCopy.CallID = callID
	s.events[callID] = append(s.events[callID], eventCopy)

	return seq, nil
}

// List 返回某个通话的全部时间线事件（按 seq 顺序）。
// 返回切片副本，避免调用方修改内部数据。
func (s *InMemoryStore) List(_ context.Context, callID string) ([]model.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	events := s.events[callID]
	out := make([]model.Event, len(events))
	copy(out, events)
	return out, nil
}
