package signal

import (
	"strings"

	"call-triage/server/internal/model"
)

// Fold 将一次话段分析结果按时长加权并入通话累计状态。
// 纯函数式折叠：只读取 res，原地更新 state，返回更新后的加权指标快照。
//
// 加权规则：new = (old*oldDur + v*dur) / (oldDur + dur)。
// 首个话段 oldDur 为 0，退化为直接赋值，不会出现除零。
// 失败分支（OK=false）带来的中性 0 分仍按时长参与加权，
// 这样长时间不可分析的音频会拉低整体置信度，而不是被悄悄忽略。
func Fold(state *model.CallState, res model.UtteranceResult) model.Metrics {
	prev := state.TotalDuration
	total := prev + res.Duration

	if total > 0 {
		state.Confidence = (state.Confidence*prev + res.Confidence*res.Duration) / total
		state.ContentScore = (state.ContentScore*prev + res.ContentScore*res.Duration) / total
		state.DistressScore = (state.DistressScore*prev + res.DistressScore*res.Duration) / total
	}

	if t := strings.TrimSpace(res.Transcript); t != "" {
		if state.Transcript == "" {
			state.Transcript = t
		} else {
			state.Transcript += " " + t
		}
	}

	state.TotalDuration = total
	state.UtteranceCount++

	return model.Metrics{
		Confidence:    state.Confidence,
		ContentScore:  state.ContentScore,
		DistressScore: state.DistressScore,
	}
}
