// Package session 实现单次通话的生命周期状态机：
// Active（收音频）→ Processing（分析在途）→ Active，或随时 → Ended（终态）。
// 一个 Controller 只服务一通电话，由传输层的单个读循环驱动，
// 不与其他通话共享可变状态。
package session

import (
	"context"
	"log"
	"time"

	"call-triage/server/internal/model"
	"call-triage/server/internal/signal"
	"call-triage/server/internal/store"
	"call-triage/server/internal/timeline"
	"call-triage/server/internal/triage"
	"call-triage/server/internal/vad"
)

// Analyzer 话段分析入口。生产实现是 analysis.Invoker，测试里用假实现。
type Analyzer interface {
	Analyze(ctx context.Context, utt *model.Utterance, priorTranscript string, priorConfidence float64) model.UtteranceResult
}

// Sink 对外协议消息的出口。Send 失败按尽力而为处理，不阻塞摄入路径。
type Sink interface {
	Send(evt *model.Event) error
}

// Controller 一通电话的状态机。
//
// 不变量：
//   - 话段按产出顺序逐个处理，任一时刻最多一个分析在途
//     （处理在驱动它的读循环上内联执行，天然串行）。
//   - Ended 是单向终态：进入后不再处理音频、不再外发任何消息。
//   - 收尾逻辑至多执行一次，残余缓冲绝不重复分析。
type Controller struct {
	callID    string
	state     *model.CallState
	segmenter *vad.Segmenter
	analyzer  Analyzer
	engine    *triage.Engine
	timeline  timeline.Store
	records   store.Store
	sink      Sink
	logger    *log.Logger

	// minFinalFlush 收尾兜底处理残余缓冲的最小时长（秒）。
	minFinalFlush float64

	// lastProgress 最近一次 buffer_progress 时的缓冲时长，出段后归零。
	lastProgress float64

	ended bool
	now   func() time.Time
}

// progressStep buffer_progress 的最小缓冲增量（秒）。音频按小块到达，
// 每块都进时间线会让长通话的审计日志随帧数无界增长；按缓冲增量节流后
// 事件数只随通话秒数增长。
const progressStep = 1.0

type Params struct {
	CallID        string
	Segmenter     *vad.Segmenter
	Analyzer      Analyzer
	Engine        *triage.Engine
	Timeline      timeline.Store
	Records       store.Store
	Sink          Sink
	Logger        *log.Logger
	MinFinalFlush float64
}

func NewController(p Params) *Controller {
	if p.Logger == nil {
		p.Logger = log.Default()
	}
	return &Controller{
		callID:        p.CallID,
		segmenter:     p.Segmenter,
		analyzer:      p.Analyzer,
		engine:        p.Engine,
		timeline:      p.Timeline,
		records:       p.Records,
		sink:          p.Sink,
		logger:        p.Logger,
		minFinalFlush: p.MinFinalFlush,
		now:           time.Now,
	}
}

// SetSink 注入消息出口（网关在两者互相引用时后注入）。必须在 Start 之前调用。
func (c *Controller) SetSink(s Sink) { c.sink = s }

// Start 初始化通话状态并外发 session_started。
func (c *Controller) Start(ctx context.Context) {
	c.state = &model.CallState{
		CallID:    c.callID,
		StartedAt: c.now(),
		Status:    model.StatusActive,
	}
	c.emit(ctx, &model.Event{Type: model.EventSessionStarted})
	c.logger.Printf("[Session] started call=%s", c.callID)
}

// State 返回当前聚合状态。只应在驱动循环的同一 goroutine 上读取。
func (c *Controller) State() *model.CallState { return c.state }

// Ended 报告通话是否已进入终态。
func (c *Controller) Ended() bool { return c.ended }

// HandleAudioChunk 摄入一块音频。VAD 同步切分；切出话段时在当前
// goroutine 上内联完成整个 Processing 周期，保证话段间串行与顺序外发。
func (c *Controller) HandleAudioChunk(ctx context.Context, samples []float32) {
	if c.ended {
		return
	}

	utt := c.segmenter.AddChunk(samples)
	if utt == nil {
		// 首块立即汇报，之后每累积 progressStep 秒汇报一次。
		if d := c.segmenter.Duration(); c.lastProgress == 0 || d-c.lastProgress >= progressStep {
			c.emit(ctx, &model.Event{
				Type:           model.EventBufferProgress,
				Duration:       d,
				UtteranceCount: c.state.UtteranceCount,
			})
			c.lastProgress = d
		}
		return
	}

	c.lastProgress = 0
	c.processUtterance(ctx, utt)
}

// End 收尾并进入 Ended 终态，保证至多执行一次。
// interrupted 为 true 表示连接异常断开而非显式 end_call。
//
// 残余缓冲的处理规则：正常周期已经产出过话段时一律丢弃（短尾段
// 缺乏全程时长的上下文，折进加权均值会人为放大它的影响）；
// 只有整通电话从未触发过 VAD 时，残余缓冲才作为唯一话段被处理
// 恰好一次，且要求时长不低于 minFinalFlush。
func (c *Controller) End(ctx context.Context, interrupted bool) {
	if c.ended {
		return
	}

	if c.state.UtteranceCount == 0 {
		if utt := c.segmenter.Flush(c.minFinalFlush); utt != nil {
			c.processUtterance(ctx, utt)
		}
	} else if leftover := c.segmenter.Duration(); leftover > 0 {
		c.logger.Printf("[Session] call=%s discarding %.2fs leftover buffer", c.callID, leftover)
	}

	c.state.Status = model.StatusEnded
	c.emit(ctx, &model.Event{Type: model.EventSessionEnded, Final: c.state})
	c.ended = true

	c.persist(ctx, interrupted)
	c.logger.Printf("[Session] ended call=%s interrupted=%v utterances=%d", c.callID, interrupted, c.state.UtteranceCount)
}

// processUtterance 执行一个完整的 Active → Processing → Active 周期。
func (c *Controller) processUtterance(ctx context.Context, utt *model.Utterance) {
	c.state.Status = model.StatusProcessing
	c.emit(ctx, &model.Event{
		Type:           model.EventProcessingStarted,
		Duration:       utt.Duration,
		UtteranceCount: c.state.UtteranceCount,
	})

	// 实体抽取要用截至上一话段的累计转写：三路是并发扇出，
	// 本段转写在扇出时还不存在。
	res := c.analyzer.Analyze(ctx, utt, c.state.Transcript, c.state.Confidence)
	c.reportFailures(ctx, utt, res)

	metrics := signal.Fold(c.state, res)
	decision := c.engine.Decide(metrics.Confidence, metrics.ContentScore, metrics.DistressScore)
	c.state.LastDecision = &decision
	c.state.Status = model.StatusActive

	evt := &model.Event{
		Type:           model.EventProcessingComplete,
		Transcript:     c.state.Transcript,
		Metrics:        &metrics,
		Decision:       &decision,
		Duration:       c.state.TotalDuration,
		UtteranceCount: c.state.UtteranceCount,
		Entities:       res.Entities,
	}
	if res.AcousticOK {
		features := res.Features
		evt.Features = &features
	}
	c.emit(ctx, evt)

	if decision.EscalationRequired {
		c.logger.Printf("[Session] call=%s ESCALATION queue=%s conf=%.2f content=%.2f distress=%.2f",
			c.callID, decision.Queue, metrics.Confidence, metrics.ContentScore, metrics.DistressScore)
	}
}

// reportFailures 把话段内被隔离的分支失败以 error 消息外发。
// 这些通知不改变会话状态：失败分支已在结果里折算为中性默认值。
func (c *Controller) reportFailures(ctx context.Context, utt *model.Utterance, res model.UtteranceResult) {
	if len(utt.Samples) == 0 {
		return
	}
	for name, ok := range map[string]bool{
		"transcription":     res.TranscriptOK,
		"acoustic analysis": res.AcousticOK,
		"entity extraction": res.EntityOK,
	} {
		if !ok {
			c.emit(ctx, &model.Event{
				Type:  model.EventError,
				Error: name + " unavailable for this utterance, dimension defaulted to 0",
			})
		}
	}
}

// emit 先落 timeline 再外发（append-first）：审计记录不依赖传输是否存活。
// Send 失败只记日志，摄入路径不被已关闭的传输阻塞。
func (c *Controller) emit(ctx context.Context, evt *model.Event) {
	evt.CallID = c.callID
	evt.ServerTS = c.now()

	seq, err := c.timeline.Append(ctx, c.callID, evt)
	if err != nil {
		c.logger.Printf("[Session] call=%s timeline append failed: %v", c.callID, err)
	} else {
		evt.Seq = seq
	}

	if c.sink == nil {
		return
	}
	if err := c.sink.Send(evt); err != nil {
		c.logger.Printf("[Session] call=%s send %s failed: %v", c.callID, evt.Type, err)
	}
}

// persist 把冻结后的通话状态作为单条记录交给外部存储。
// 失败记日志即可：归档失败不影响会话向呼叫方报告成功。
func (c *Controller) persist(ctx context.Context, interrupted bool) {
	endTime := c.now()
	rec := &store.CallRecord{
		CallID:              c.callID,
		StartTime:           c.state.StartedAt,
		EndTime:             &endTime,
		DurationSeconds:     endTime.Sub(c.state.StartedAt).Seconds(),
		UtterancesProcessed: c.state.UtteranceCount,
		TotalAudioDuration:  c.state.TotalDuration,
		Transcript:          c.state.Transcript,
		ConfidenceScore:     c.state.Confidence,
		ContentScore:        c.state.ContentScore,
		DistressScore:       c.state.DistressScore,
		Status:              store.RecordCompleted,
	}
	if interrupted {
		rec.Status = store.RecordInterrupted
	}
	if d := c.state.LastDecision; d != nil {
		rec.TriageQueue = string(d.Queue)
		rec.PriorityLevel = d.PriorityLevel
		rec.FlagAudioReview = d.FlagAudioReview
		rec.EscalationRequired = d.EscalationRequired
		rec.DispatcherAction = d.DispatcherAction
		rec.TriageReasoning = d.Reasoning
	}

	if err := c.records.Save(ctx, rec); err != nil {
		c.logger.Printf("[Session] call=%s persist failed: %v", c.callID, err)
	}
}
