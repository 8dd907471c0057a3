// Package analysis 负责对单个话段并发执行三路外部分析，
// 并把任何一路的失败隔离为该维度的中性默认值。
package analysis

import (
	"context"
	"log"
	"strings"
	"sync"
	"time"

	"call-triage/server/internal/collab"
	"call-triage/server/internal/model"
)

// Invoker 包装三个协作方，按话段产出 UtteranceResult。
// 保证：Analyze 永远返回一个结果，绝不把子分析的错误抛给调用方。
type Invoker struct {
	transcriber collab.Transcriber
	acoustic    collab.Acoustic
	extractor   collab.Extractor

	sampleRate int
	timeout    time.Duration
	logger     *log.Logger
}

func NewInvoker(
	transcriber collab.Transcriber,
	acoustic collab.Acoustic,
	extractor collab.Extractor,
	sampleRate int,
	timeout time.Duration,
	logger *log.Logger,
) *Invoker {
	if logger == nil {
		logger = log.Default()
	}
	return &Invoker{
		transcriber: transcriber,
		acoustic:    acoustic,
		extractor:   extractor,
		sampleRate:  sampleRate,
		timeout:     timeout,
		logger:      logger,
	}
}

// Analyze 对一个话段做三路分析（扇出/扇入）。
//
// 契约：
//   - 三路并发执行，各自带超时；超时与错误同样按隔离失败处理。
//   - 实体抽取收到的是 priorTranscript（截至上一话段的累计转写）
//     与 priorConfidence，因为本段的转写在扇出时还不存在。
//   - 空话段直接短路返回全中性结果，不触碰协作方。
func (iv *Invoker) Analyze(ctx context.Context, utt *model.Utterance, priorTranscript string, priorConfidence float64) model.UtteranceResult {
	result := model.UtteranceResult{Duration: utt.Duration}

	if len(utt.Samples) == 0 {
		iv.logger.Printf("[Invoker] empty utterance seq=%d, skipping collaborators", utt.Seq)
		return result
	}

	var wg sync.WaitGroup
	wg.Add(3)

	go func() {
		defer wg.Done()
		tctx, cancel := context.WithTimeout(ctx, iv.timeout)
		defer cancel()

		tr, err := iv.transcriber.Transcribe(tctx, utt.Samples, iv.sampleRate)
		if err != nil {
			iv.logger.Printf("[Invoker] transcription failed seq=%d: %v", utt.Seq, err)
			return
		}
		result.Transcript = strings.TrimSpace(tr.Transcript)
		result.Confidence = clamp01(tr.Confidence)
		result.TranscriptOK = true
	}()

	go func() {
		defer wg.Done()
		actx, cancel := context.WithTimeout(ctx, iv.timeout)
		defer cancel()

		ac, err := iv.acoustic.Analyze(actx, utt.Samples, iv.sampleRate)
		if err != nil {
			iv.logger.Printf("[Invoker] acoustic analysis failed seq=%d: %v", utt.Seq, err)
			return
		}
		result.DistressScore = clamp01(ac.DistressScore)
		result.Features = ac.Features
		result.AcousticOK = true
	}()

	go func() {
		defer wg.Done()
		ectx, cancel := context.WithTimeout(ctx, iv.timeout)
		defer cancel()

		// 累计转写还太短时没有可抽取的内容，直接给中性分，
		// 省一次协作方调用。该维度算成功：这是语义上的"无内容"。
		if len(strings.TrimSpace(priorTranscript)) < 5 {
			result.EntityOK = true
			return
		}

		ex, err := iv.extractor.Extract(ectx, priorTranscript, priorConfidence)
		if err != nil {
			iv.logger.Printf("[Invoker] entity extraction failed seq=%d: %v", utt.Seq, err)
			return
		}
		result.ContentScore = clamp01(ex.ContentScore)
		result.Entities = ex.Entities
		result.EntityOK = true
	}()

	wg.Wait()
	return result
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
