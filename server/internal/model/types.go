package model

import (
	"encoding/json"
	"time"
)

// CallStatus 会话生命周期状态。Ended 是终态，进入后不可逆。
type CallStatus string

const (
	StatusActive     CallStatus = "active"     // 正在接收音频，等待话段
	StatusProcessing CallStatus = "processing" // 最近一个话段的分析在途
	StatusEnded      CallStatus = "ended"      // 终态：传输关闭或显式结束
)

// Queue 分诊队列。数字越小越紧急。
type Queue string

const (
	QueueImmediate Queue = "Q1-IMMEDIATE"
	QueueElevated  Queue = "Q2-ELEVATED"
	QueueMonitor   Queue = "Q3-MONITOR"
	QueueReview    Queue = "Q5-REVIEW"
	QueueRoutine   Queue = "Q5-ROUTINE"
)

// Utterance 一段由 VAD 切出的话段。创建后不可变，只被分析一次。
type Utterance struct {
	// Samples 单声道 PCM 采样，幅度范围 [-1, 1]。
	Samples []float32
	// Duration 话段时长（秒）。
	Duration float64
	// Seq 话段在会话内的序号，从 0 开始。
	Seq int
}

// AcousticFeatures 声学协作方返回的中间特征，仅用于展示与审计。
type AcousticFeatures struct {
	F0Mean         float64 `json:"f0_mean"`
	F0CV           float64 `json:"f0_cv"`
	PitchElevation float64 `json:"pitch_elevation"`
	Instability    float64 `json:"instability"`
	Energy         float64 `json:"energy"`
	Jitter         float64 `json:"jitter"`
}

// UtteranceResult 单个话段的三路分析结果。
// 任何一路失败时该维度取中性默认值 0，对应的 OK 标志为 false。
type UtteranceResult struct {
	Transcript    string           `json:"transcript"`
	Confidence    float64          `json:"confidence"`
	DistressScore float64          `json:"distress_score"`
	ContentScore  float64          `json:"content_score"`
	Features      AcousticFeatures `json:"features"`
	// Entities 实体协作方的结构化载荷，管线不解释其内容。
	Entities json.RawMessage `json:"entities,omitempty"`
	// Duration 从源话段复制，作为聚合时的权重。
	Duration float64 `json:"duration"`

	TranscriptOK bool `json:"transcript_ok"`
	AcousticOK   bool `json:"acoustic_ok"`
	EntityOK     bool `json:"entity_ok"`
}

// Decision 分诊决策。由当前 CallState 纯函数推导，不携带隐藏历史。
type Decision struct {
	Queue              Queue  `json:"queue"`
	PriorityLevel      int    `json:"priority_level"`
	Reasoning          string `json:"reasoning"`
	DispatcherAction   string `json:"dispatcher_action"`
	FlagAudioReview    bool   `json:"flag_audio_review"`
	EscalationRequired bool   `json:"escalation_required"`
}

// CallState 一次通话的聚合状态，由 SessionController 独占持有。
// 不变量：三个加权指标始终是迄今所有话段结果的时长加权平均，
// 绝不被最新值直接覆盖。
type CallState struct {
	CallID    string    `json:"call_id"`
	StartedAt time.Time `json:"started_at"`

	// Transcript 全量转写：各片段按到达顺序以单个空格连接。
	Transcript    string  `json:"transcript"`
	Confidence    float64 `json:"confidence"`
	ContentScore  float64 `json:"content_score"`
	DistressScore float64 `json:"distress_score"`

	// TotalDuration 已折算进聚合的话段总时长（秒），单调递增。
	TotalDuration  float64 `json:"total_duration"`
	UtteranceCount int     `json:"utterance_count"`

	LastDecision *Decision  `json:"last_decision,omitempty"`
	Status       CallStatus `json:"status"`
}

// EventKind 对外会话协议的消息类型。
type EventKind string

const (
	EventSessionStarted     EventKind = "session_started"
	EventBufferProgress     EventKind = "buffer_progress"
	EventProcessingStarted  EventKind = "processing_started"
	EventProcessingComplete EventKind = "processing_complete"
	EventError              EventKind = "error"
	EventSessionEnded       EventKind = "session_ended"
)

// Metrics 当前聚合后的三维指标快照。
type Metrics struct {
	Confidence    float64 `json:"confidence"`
	ContentScore  float64 `json:"content_score"`
	DistressScore float64 `json:"distress_score"`
}

// Event 对外协议消息，同时作为 timeline 的审计事实。
// Seq 由发送方按会话单调分配；session_ended 之后不再有任何事件。
type Event struct {
	Seq    int64     `json:"seq,omitempty"`
	CallID string    `json:"call_id,omitempty"`
	Type   EventKind `json:"type"`

	// buffer_progress / processing_started
	Duration       float64 `json:"duration,omitempty"`
	UtteranceCount int     `json:"utterance_count,omitempty"`

	// processing_complete
	Transcript string            `json:"transcript,omitempty"`
	Metrics    *Metrics          `json:"metrics,omitempty"`
	Features   *AcousticFeatures `json:"features,omitempty"`
	Entities   json.RawMessage   `json:"entities,omitempty"`
	Decision   *Decision         `json:"decision,omitempty"`

	// session_ended
	Final *CallState `json:"final,omitempty"`

	// error（隔离失败通知，不终止会话）
	Error string `json:"error,omitempty"`

	ServerTS time.Time `json:"server_ts"`
}
