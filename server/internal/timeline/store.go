package timeline

import (
	"context"

	"call-triage/server/internal/model"
)

type Store interface {
	// Append 以 append-first 的契约写入审计时间线，返回本次写入的 seq。
	// 约定：同一通话的 seq 单调递增，与外发消息编号一致。
	Append(ctx context.Context, callID string, evt *model.Event) (int64, error)
	// List 返回该通话的全量事件，用于回放与复盘。
	List(ctx context.Context, callID string) ([]model.Event, error)
}
