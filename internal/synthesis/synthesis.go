// Package synthesis implements C6, the SyntheticSignalEngine: three
// deterministic cross-quadrant rules that turn a cycle's P0 reports into
// CrossQuadrantSignals, filtered by the current LearningState's
// min_confidence_threshold and returned in a stable, reproducible order.
//
// Grounded on the teacher's declarative rule-table style (the TOML tool
// definitions in internal/orchestrator/tools.go apply fixed, named rules
// to input rather than improvising): each rule here is a small pure
// function over two signal slices, with no hidden state.
package synthesis

import (
	"fmt"
	"sort"

	"github.com/clawinfra/growthkernel/internal/types"
)

// Engine computes CrossQuadrantSignals for one sync cycle.
type Engine struct{}

// New constructs a SyntheticSignalEngine.
func New() *Engine {
	return &Engine{}
}

// Synthesize applies the three rules to the quadrant signal sets extracted
// from a cycle's P0 AgentReports, drops anything below minConfidence, and
// returns the survivors sorted by (-confidence, signal_id).
func (e *Engine) Synthesize(p0Reports map[string]types.AgentReport, minConfidence float64) []types.CrossQuadrantSignal {
	pain := signalsOf(p0Reports, types.Q1, types.KindPain)
	emotion := signalsOf(p0Reports, types.Q2, types.KindEmotion)
	trend := signalsOf(p0Reports, types.Q3, types.KindTrend)
	scene := signalsOf(p0Reports, types.Q4, types.KindScene)

	var out []types.CrossQuadrantSignal
	out = append(out, painTrend(pain, trend)...)
	out = append(out, emotionScene(emotion, scene)...)
	out = append(out, painEmotion(pain, emotion)...)

	var kept []types.CrossQuadrantSignal
	for _, s := range out {
		if s.Confidence >= minConfidence {
			kept = append(kept, s)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].Confidence != kept[j].Confidence {
			return kept[i].Confidence > kept[j].Confidence
		}
		return kept[i].SignalID < kept[j].SignalID
	})
	return kept
}

func signalsOf(reports map[string]types.AgentReport, q types.Quadrant, kind types.SignalKind) []types.Signal {
	var out []types.Signal
	for _, r := range reports {
		if r.Quadrant != q {
			continue
		}
		for _, s := range r.Signals {
			if s.Kind == kind {
				out = append(out, s)
			}
		}
	}
	return out
}

// painTrend implements the pain+trend rule (§4.6): confidence =
// min(0.5 + 0.2*overlap_count, 1.0); priority critical if pain urgency > 80
// else high.
func painTrend(pain, trend []types.Signal) []types.CrossQuadrantSignal {
	var out []types.CrossQuadrantSignal
	for _, p := range pain {
		for _, t := range trend {
			overlap := sharedKeywordCount(p.Keywords, t.Keywords)
			if overlap < 1 {
				continue
			}
			confidence := minf(0.5+0.2*float64(overlap), 1.0)
			priority := types.PriorityHigh
			if p.Score > 80 {
				priority = types.PriorityCritical
			}
			out = append(out, types.CrossQuadrantSignal{
				SignalID:          signalID(types.SignalTypePainTrend, p.SignalID, t.SignalID),
				SourceQuadrants:   []types.Quadrant{types.Q1, types.Q3},
				SignalType:        types.SignalTypePainTrend,
				Priority:          priority,
				Confidence:        confidence,
				RawSignals:        []string{p.SignalID, t.SignalID},
				RecommendedAction: "escalate_pain_trend_opportunity",
				TargetLayer:       types.LayerP1,
			})
		}
	}
	return out
}

// emotionScene implements the emotion+scene rule: requires emotion
// intensity > 70; confidence = min(intensity/100 + 0.2, 1.0); priority high.
func emotionScene(emotion, scene []types.Signal) []types.CrossQuadrantSignal {
	var out []types.CrossQuadrantSignal
	for _, em := range emotion {
		if em.Score <= 70 {
			continue
		}
		for _, sc := range scene {
			confidence := minf(em.Score/100+0.2, 1.0)
			out = append(out, types.CrossQuadrantSignal{
				SignalID:          signalID(types.SignalTypeEmotionScene, em.SignalID, sc.SignalID),
				SourceQuadrants:   []types.Quadrant{types.Q2, types.Q4},
				SignalType:        types.SignalTypeEmotionScene,
				Priority:          types.PriorityHigh,
				Confidence:        confidence,
				RawSignals:        []string{em.SignalID, sc.SignalID},
				RecommendedAction: "engage_in_context",
				TargetLayer:       types.LayerP1,
			})
		}
	}
	return out
}

// painEmotion implements the pain+emotion rule: triggers when a pain and
// emotion signal share a keyword (the emotion's trigger token appears in
// the pain signal) or when emotion intensity > 75; confidence =
// min(0.6 + 0.3*intensity/100, 1.0); priority high.
func painEmotion(pain, emotion []types.Signal) []types.CrossQuadrantSignal {
	var out []types.CrossQuadrantSignal
	for _, p := range pain {
		for _, em := range emotion {
			triggered := sharedKeywordCount(p.Keywords, em.Keywords) > 0 || em.Score > 75
			if !triggered {
				continue
			}
			confidence := minf(0.6+0.3*em.Score/100, 1.0)
			out = append(out, types.CrossQuadrantSignal{
				SignalID:          signalID(types.SignalTypePainEmotion, p.SignalID, em.SignalID),
				SourceQuadrants:   []types.Quadrant{types.Q1, types.Q2},
				SignalType:        types.SignalTypePainEmotion,
				Priority:          types.PriorityHigh,
				Confidence:        confidence,
				RawSignals:        []string{p.SignalID, em.SignalID},
				RecommendedAction: "address_emotionally_charged_pain",
				TargetLayer:       types.LayerP1,
			})
		}
	}
	return out
}

func sharedKeywordCount(a, b []string) int {
	set := make(map[string]struct{}, len(a))
	for _, k := range a {
		set[k] = struct{}{}
	}
	n := 0
	for _, k := range b {
		if _, ok := set[k]; ok {
			n++
		}
	}
	return n
}

func signalID(kind types.SignalType, a, b string) string {
	return fmt.Sprintf("synth-%s-%s-%s", kind, a, b)
}

func minf(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
