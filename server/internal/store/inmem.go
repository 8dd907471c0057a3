package store

import (
	"context"
	"sort"
	"sync"
)

// InMemoryStore 是一个基于内存的归档存储实现。
// 配置未指定数据库路径时使用：实现简单、调试方便，重启即丢数据。
type InMemoryStore struct {
	mu   sync.RWMutex
	data map[string]*CallRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{data: make(map[string]*CallRecord)}
}

func (s *InMemoryStore) Save(_ context.Context, rec *CallRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	recCopy := *rec
	s.data[rec.CallID] = &recCopy
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, callID string) (*CallRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.data[callID]
	if !ok {
		return nil, ErrNotFound
	}
	recCopy := *rec
	return &recCopy, nil
}

func (s *InMemoryStore) List(_ context.Context) ([]CallRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]CallRecord, 0, len(s.data))
	for _, rec := range s.data {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].StartTime.After(out[j].StartTime)
	})
	return out, nil
}
