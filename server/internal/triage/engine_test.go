package triage

import (
	"testing"

	"call-triage/server/internal/model"
)

func testEngine() *Engine { return NewEngine(0.7, 0.5, 0.5) }

// TestDecideMatrix 覆盖三维决策矩阵的全部八种高低组合。
func TestDecideMatrix(t *testing.T) {
	cases := []struct {
		name            string
		conf, cont, dis float64
		wantQueue       model.Queue
		wantPriority    int
		wantAudioFlag   bool
		wantEscalate    bool
	}{
		{"low/low/high hero scenario", 0.4, 0.3, 0.8, model.QueueImmediate, 1, true, true},
		{"low/high/low serious but calm", 0.5, 0.7, 0.3, model.QueueElevated, 2, true, false},
		{"low/high/high critical", 0.4, 0.8, 0.9, model.QueueImmediate, 1, true, true},
		{"high/low/high stressed professional", 0.9, 0.2, 0.7, model.QueueMonitor, 3, false, false},
		{"high/high/low calm professional report", 0.85, 0.75, 0.25, model.QueueElevated, 2, false, false},
		{"high/high/high maximum urgency", 0.92, 0.85, 0.88, model.QueueImmediate, 1, false, true},
		{"low/low/low unclear non-urgent", 0.45, 0.15, 0.22, model.QueueReview, 5, true, false},
		{"high/low/low routine report", 0.93, 0.18, 0.12, model.QueueRoutine, 5, false, false},
	}

	e := testEngine()
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			d := e.Decide(c.conf, c.cont, c.dis)
			if d.Queue != c.wantQueue {
				t.Errorf("queue = %s, want %s", d.Queue, c.wantQueue)
			}
			if d.PriorityLevel != c.wantPriority {
				t.Errorf("priority = %d, want %d", d.PriorityLevel, c.wantPriority)
			}
			if d.FlagAudioReview != c.wantAudioFlag {
				t.Errorf("flagAudioReview = %v, want %v", d.FlagAudioReview, c.wantAudioFlag)
			}
			if d.EscalationRequired != c.wantEscalate {
				t.Errorf("escalationRequired = %v, want %v", d.EscalationRequired, c.wantEscalate)
			}
			if d.Reasoning == "" || d.DispatcherAction == "" {
				t.Errorf("reasoning/dispatcherAction must be populated")
			}
		})
	}
}

// TestDecideBoundaries 验证阈值边界语义：置信度 >= 算高，内容与痛苦 > 算高。
func TestDecideBoundaries(t *testing.T) {
	e := testEngine()

	// 恰好 0.7 的置信度算高：high/low/low → ROUTINE。
	if d := e.Decide(0.70, 0.0, 0.0); d.Queue != model.QueueRoutine {
		t.Errorf("confidence exactly at threshold should be high, got %s", d.Queue)
	}
	// 略低于 0.7 算低：low/low/low → REVIEW。
	if d := e.Decide(0.699, 0.0, 0.0); d.Queue != model.QueueReview {
		t.Errorf("confidence just below threshold should be low, got %s", d.Queue)
	}
	// 恰好 0.5 的痛苦分算低。
	if d := e.Decide(0.9, 0.0, 0.50); d.Queue != model.QueueRoutine {
		t.Errorf("concern exactly at threshold should be low, got %s", d.Queue)
	}
	if d := e.Decide(0.9, 0.0, 0.51); d.Queue != model.QueueMonitor {
		t.Errorf("concern just above threshold should be high, got %s", d.Queue)
	}
	// 恰好 0.5 的内容分算低。
	if d := e.Decide(0.9, 0.50, 0.0); d.Queue != model.QueueRoutine {
		t.Errorf("content exactly at threshold should be low, got %s", d.Queue)
	}
	if d := e.Decide(0.9, 0.51, 0.0); d.Queue != model.QueueElevated {
		t.Errorf("content just above threshold should be high, got %s", d.Queue)
	}
}

// TestDecideNeutralDefaults 全零输入（全部分析失败时的中性默认）路由到 REVIEW。
func TestDecideNeutralDefaults(t *testing.T) {
	d := testEngine().Decide(0, 0, 0)
	if d.Queue != model.QueueReview {
		t.Fatalf("all-neutral input should route to review, got %s", d.Queue)
	}
	if !d.FlagAudioReview {
		t.Errorf("unanalyzable audio must be flagged for human review")
	}
	if d.EscalationRequired {
		t.Errorf("neutral input must not escalate")
	}
}

// TestEscalationOnlyForImmediate 升级标记与 Q1-IMMEDIATE 严格绑定。
func TestEscalationOnlyForImmediate(t *testing.T) {
	e := testEngine()
	for conf := 0.0; conf <= 1.0; conf += 0.1 {
		for cont := 0.0; cont <= 1.0; cont += 0.1 {
			for dis := 0.0; dis <= 1.0; dis += 0.1 {
				d := e.Decide(conf, cont, dis)
				if d.EscalationRequired != (d.Queue == model.QueueImmediate) {
					t.Fatalf("escalation=%v queue=%s at (%v,%v,%v)", d.EscalationRequired, d.Queue, conf, cont, dis)
				}
			}
		}
	}
}
