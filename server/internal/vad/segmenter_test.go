package vad

import (
	"math"
	"testing"
)

const testRate = 16000

func testParams() Params {
	return Params{
		SampleRate:           testRate,
		EnergyThreshold:      0.01,
		SilenceDuration:      1.5,
		MaxBufferDuration:    30.0,
		MinUtteranceDuration: 0.5,
	}
}

// voiced 生成 dur 秒、指定振幅的正弦块。
func voiced(dur, amp float64) []float32 {
	n := int(dur * testRate)
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(amp * math.Sin(2*math.Pi*200*float64(i)/testRate))
	}
	return out
}

// silent 生成 dur 秒的全零块。
func silent(dur float64) []float32 {
	return make([]float32, int(dur*testRate))
}

// TestSegmenterSilenceTrigger 验证“有声 + 足够静音”触发出段。
// 场景：2 秒人声后接 2 秒静音，应该切出一个约 4 秒的话段并清空缓冲。
func TestSegmenterSilenceTrigger(t *testing.T) {
	s := NewSegmenter(testParams())

	var utt *anyUtt
	for i := 0; i < 4; i++ {
		if u := s.AddChunk(voiced(0.5, 0.3)); u != nil {
			t.Fatalf("unexpected emission during voiced audio at chunk %d", i)
		}
	}
	for i := 0; i < 4; i++ {
		if u := s.AddChunk(silent(0.5)); u != nil {
			utt = &anyUtt{dur: u.Duration, seq: u.Seq}
			break
		}
	}

	if utt == nil {
		t.Fatalf("expected silence-triggered emission")
	}
	if utt.dur < 3.4 || utt.dur > 4.1 {
		t.Errorf("expected ~3.5-4.0s utterance, got %.2fs", utt.dur)
	}
	if utt.seq != 0 {
		t.Errorf("expected first utterance seq 0, got %d", utt.seq)
	}
	if s.Duration() != 0 {
		t.Errorf("expected buffer cleared after emission, got %.2fs", s.Duration())
	}
}

type anyUtt struct {
	dur float64
	seq int
}

// TestSegmenterPureSilenceNeverTriggers 验证从未听到人声时静音不触发出段。
func TestSegmenterPureSilenceNeverTriggers(t *testing.T) {
	s := NewSegmenter(testParams())

	for i := 0; i < 20; i++ { // 10 秒纯静音
		if u := s.AddChunk(silent(0.5)); u != nil {
			t.Fatalf("pure silence must not emit before max cap, emitted at %.1fs", u.Duration)
		}
	}
}

// TestSegmenterMaxCapTrigger 验证连续语音在缓冲上限处强制出段。
// 场景：说话从不停顿，30 秒上限必须兜底，保证管线前进。
func TestSegmenterMaxCapTrigger(t *testing.T) {
	s := NewSegmenter(testParams())

	var emitted bool
	for i := 0; i < 70; i++ { // 最多 35 秒连续人声
		if u := s.AddChunk(voiced(0.5, 0.3)); u != nil {
			emitted = true
			if u.Duration < 29.9 {
				t.Errorf("max-cap emission too early: %.2fs", u.Duration)
			}
			break
		}
	}
	if !emitted {
		t.Fatalf("expected max-cap emission for continuous speech")
	}
}

// TestSegmenterSequenceIndex 验证话段序号随出段单调递增。
func TestSegmenterSequenceIndex(t *testing.T) {
	s := NewSegmenter(testParams())

	emit := func() int {
		s.AddChunk(voiced(0.5, 0.3))
		for i := 0; i < 5; i++ {
			if u := s.AddChunk(silent(1.0)); u != nil {
				return u.Seq
			}
		}
		t.Fatalf("segmenter never emitted")
		return -1
	}

	if got := emit(); got != 0 {
		t.Fatalf("first seq = %d, want 0", got)
	}
	if got := emit(); got != 1 {
		t.Fatalf("second seq = %d, want 1", got)
	}
}

func TestSegmenterFlush(t *testing.T) {
	s := NewSegmenter(testParams())

	// 残余不足下限：丢弃。
	s.AddChunk(voiced(1.0, 0.3))
	if u := s.Flush(2.0); u != nil {
		t.Fatalf("expected short remainder discarded, got %.2fs", u.Duration)
	}
	if s.Duration() != 0 {
		t.Fatalf("expected buffer cleared after discard flush")
	}

	// 残余超过下限：作为一个话段取出。
	for i := 0; i < 5; i++ {
		s.AddChunk(voiced(0.5, 0.3))
	}
	u := s.Flush(2.0)
	if u == nil {
		t.Fatalf("expected flush emission for 2.5s remainder")
	}
	if u.Duration < 2.4 || u.Duration > 2.6 {
		t.Errorf("flushed duration = %.2fs, want ~2.5s", u.Duration)
	}
}

func TestRMS(t *testing.T) {
	if got := rms(nil); got != 0 {
		t.Errorf("rms(nil) = %v, want 0", got)
	}
	if got := rms([]float32{0.5, -0.5, 0.5, -0.5}); math.Abs(got-0.5) > 1e-9 {
		t.Errorf("rms = %v, want 0.5", got)
	}
	// 静音块能量必须低于默认阈值。
	if got := rms(silent(0.5)); got >= 0.01 {
		t.Errorf("silent rms = %v, want < 0.01", got)
	}
}
