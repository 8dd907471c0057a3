package triage

import (
	"call-triage/server/internal/model"
)

// Engine 实现 3C（Confidence × Content × Concern）三维分诊决策矩阵。
// 八种高低组合各自映射到一个优先级队列，阈值可配置。
//
// 核心设计：低置信度不是故障而是信号——转写失败叠加高声学痛苦
// 往往意味着呼叫者处于极端压力之下（方言、哭喊、环境噪声），
// 这一组合路由到最高优先级而不是被丢弃。
type Engine struct {
	confidenceThreshold float64 // >= 为高置信度
	contentThreshold    float64 // > 为高内容紧急度
	concernThreshold    float64 // > 为高声学痛苦
}

func NewEngine(confidenceThreshold, contentThreshold, concernThreshold float64) *Engine {
	return &Engine{
		confidenceThreshold: confidenceThreshold,
		contentThreshold:    contentThreshold,
		concernThreshold:    concernThreshold,
	}
}

// Decide 根据三个加权累计分数给出队列、优先级与调度员指引。
// 边界语义：置信度阈值取 >=（恰好 0.7 算高），内容与痛苦阈值取 >
// （恰好 0.5 算低）。音频复审标记只跟随低置信度，升级标记只跟随
// Q1-IMMEDIATE。
func (e *Engine) Decide(confidence, contentScore, concernScore float64) model.Decision {
	highConfidence := confidence >= e.confidenceThreshold
	highContent := contentScore > e.contentThreshold
	highConcern := concernScore > e.concernThreshold

	switch {
	// 任一高痛苦组合中，除"清晰沟通且内容不紧急"外都直达 Q1。
	case !highConfidence && highConcern:
		reason := "Low transcription confidence with high bio-acoustic distress indicates a potential life-threatening situation behind a communication barrier."
		if highContent {
			reason = "High content urgency, high bio-acoustic distress and poor transcription quality combined. Highest-priority routing."
		}
		return model.Decision{
			Queue:              model.QueueImmediate,
			PriorityLevel:      1,
			FlagAudioReview:    true,
			EscalationRequired: true,
			Reasoning:          reason,
			DispatcherAction:   "IMMEDIATE ATTENTION REQUIRED: listen to the audio now. Caller may be speaking under extreme stress or in heavy dialect. Prepare emergency response.",
		}

	case highConfidence && highContent && highConcern:
		return model.Decision{
			Queue:              model.QueueImmediate,
			PriorityLevel:      1,
			FlagAudioReview:    false,
			EscalationRequired: true,
			Reasoning:          "All three indicators elevated: clear transcription of an urgent report delivered under acute distress.",
			DispatcherAction:   "IMMEDIATE ATTENTION REQUIRED: transcript is reliable and reports an urgent situation. Dispatch per content without audio review.",
		}

	case highContent: // 置信度任意、低痛苦：内容严重但呼叫者冷静。
		reason := "Urgent content reported with calm delivery by a clearly-understood caller."
		flagAudio := false
		if !highConfidence {
			reason = "Content indicators suggest a serious incident but transcription confidence is low. Calm delivery, no acoustic distress."
			flagAudio = true
		}
		return model.Decision{
			Queue:              model.QueueElevated,
			PriorityLevel:      2,
			FlagAudioReview:    flagAudio,
			EscalationRequired: false,
			Reasoning:          reason,
			DispatcherAction:   "ELEVATED PRIORITY: review the transcript for dispatch requirements soon. Assess urgency from reported content.",
		}

	case highConfidence && highConcern:
		return model.Decision{
			Queue:              model.QueueMonitor,
			PriorityLevel:      3,
			FlagAudioReview:    false,
			EscalationRequired: false,
			Reasoning:          "Clear transcription with elevated bio-acoustic distress but no urgent content. Communication is functional.",
			DispatcherAction:   "MONITOR: caller shows stress indicators but communicates clearly. Watch for escalation in subsequent utterances.",
		}

	case !highConfidence:
		return model.Decision{
			Queue:              model.QueueReview,
			PriorityLevel:      5,
			FlagAudioReview:    true,
			EscalationRequired: false,
			Reasoning:          "Low transcription confidence requires verification. No distress or content urgency indicators present.",
			DispatcherAction:   "REVIEW WHEN AVAILABLE: audio review recommended due to low transcription confidence. Verify content when time permits.",
		}

	default:
		return model.Decision{
			Queue:              model.QueueRoutine,
			PriorityLevel:      5,
			FlagAudioReview:    false,
			EscalationRequired: false,
			Reasoning:          "Clear communication, calm delivery, routine content. Standard report for logging.",
			DispatcherAction:   "ROUTINE LOGGING: log details and create a dispatch order per standard procedure.",
		}
	}
}
