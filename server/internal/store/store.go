package store

import (
	"context"
	"errors"
)

var ErrNotFound = errors.New("call record not found")

type Store interface {
	// Save 保存或更新归档记录，以 CallID 为唯一键。
	Save(ctx context.Context, rec *CallRecord) error
	// Get 根据 CallID 获取归档记录，不存在时返回 ErrNotFound。
	Get(ctx context.Context, callID string) (*CallRecord, error)
	// List 返回全部归档记录，按开始时间倒序。
	List(ctx context.Context) ([]CallRecord, error)
}
