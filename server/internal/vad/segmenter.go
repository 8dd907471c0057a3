package vad

import (
	"math"

	"call-triage/server/internal/model"
)

// Segmenter 把连续的音频块流切成离散话段（能量 VAD）。
// 纯缓冲计算，自身不会失败；所有方法都假定单 goroutine 调用
// （每个会话一个读取循环，见 gateway）。
type Segmenter struct {
	sampleRate int

	energyThreshold   float64
	silenceDuration   float64
	maxBufferDuration float64
	minUtterance      float64

	buffer        []float32
	totalDuration float64
	lastVoiceTime float64 // 最近一次有声块结束时的缓冲时长；0 表示还没听到人声
	nextSeq       int
}

// Params Segmenter 的切分参数，全部来自配置（标定常量，见 config.VADConfig）。
type Params struct {
	SampleRate           int
	EnergyThreshold      float64
	SilenceDuration      float64
	MaxBufferDuration    float64
	MinUtteranceDuration float64
}

func NewSegmenter(p Params) *Segmenter {
	return &Segmenter{
		sampleRate:        p.SampleRate,
		energyThreshold:   p.EnergyThreshold,
		silenceDuration:   p.SilenceDuration,
		maxBufferDuration: p.MaxBufferDuration,
		minUtterance:      p.MinUtteranceDuration,
	}
}

// AddChunk 追加一小块采样并做 VAD 判定。
// 返回非 nil 表示一个话段就绪（静音触发或缓冲到上限），缓冲随即清空。
// 空块直接忽略。
func (s *Segmenter) AddChunk(samples []float32) *model.Utterance {
	if len(samples) == 0 {
		return nil
	}

	s.buffer = append(s.buffer, samples...)
	s.totalDuration = float64(len(s.buffer)) / float64(s.sampleRate)

	if rms(samples) > s.energyThreshold {
		s.lastVoiceTime = s.totalDuration
	}

	// 静音触发：听到过人声之后静音超过阈值，且缓冲不短于最小出段时长。
	silence := s.totalDuration - s.lastVoiceTime
	if s.lastVoiceTime > 0 && silence >= s.silenceDuration && s.totalDuration >= s.minUtterance {
		return s.emit()
	}

	// 兜底触发：纯连续语音永远不静音时，按缓冲上限强制出段，保证前进。
	if s.totalDuration >= s.maxBufferDuration {
		return s.emit()
	}

	return nil
}

// Flush 取出残余缓冲作为话段，仅当时长不低于 min（秒），否则丢弃。
// 只应在会话终结路径上调用；无论是否出段，缓冲都会清空。
func (s *Segmenter) Flush(min float64) *model.Utterance {
	if s.totalDuration < min || len(s.buffer) == 0 {
		s.clear()
		return nil
	}
	return s.emit()
}

// Duration 当前缓冲时长（秒）。
func (s *Segmenter) Duration() float64 { return s.totalDuration }

func (s *Segmenter) emit() *model.Utterance {
	u := &model.Utterance{
		Samples:  s.buffer,
		Duration: s.totalDuration,
		Seq:      s.nextSeq,
	}
	s.nextSeq++
	s.clear()
	return u
}

func (s *Segmenter) clear() {
	// 不复用底层数组：已出段的 Utterance 持有它，复用会破坏不可变约定。
	s.buffer = nil
	s.totalDuration = 0
	s.lastVoiceTime = 0
}

// rms 一块采样的均方根能量。
func rms(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, v := range samples {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum / float64(len(samples)))
}
