// Package collab 封装三个外部协作方（转写、声学、实体抽取）的 HTTP 客户端。
// 管线只依赖这里的接口；协作方内部实现（模型、推理框架）不在本仓库范围内。
package collab

import (
	"context"
	"encoding/json"

	"call-triage/server/internal/model"
)

// TranscriptResult 转写协作方的返回。
type TranscriptResult struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"` // [0,1]
}

// AcousticResult 声学协作方的返回。Features 仅用于展示与审计。
type AcousticResult struct {
	DistressScore float64                `json:"distress_score"` // [0,1]
	Features      model.AcousticFeatures `json:"features"`
}

// EntityResult 实体/内容协作方的返回。
type EntityResult struct {
	ContentScore float64         `json:"content_score"` // [0,1]
	Entities     json.RawMessage `json:"entities"`
}

// Transcriber 转写协作方。必须在调用方超时内返回，否则按失败处理。
type Transcriber interface {
	Transcribe(ctx context.Context, samples []float32, sampleRate int) (TranscriptResult, error)
}

// Acoustic 声学分析协作方。失败模式与 Transcriber 相同。
type Acoustic interface {
	Analyze(ctx context.Context, samples []float32, sampleRate int) (AcousticResult, error)
}

// Extractor 实体抽取/内容评分协作方。
// 约定：低置信度时必须放宽解析尝试部分抽取，而不是拒绝；
// 所以请求里始终带上当前置信度。
type Extractor interface {
	Extract(ctx context.Context, transcript string, confidence float64) (EntityResult, error)
}
