package agents

import (
	"context"
	"time"

	"github.com/clawinfra/growthkernel/internal/types"
)

// valuator implements the four P1 agents (Q1P1PainValuator …
// Q4P1SceneValuator). The four are identical except for quadrant identity —
// grounded on the teacher's pattern of one generic type parameterized by
// quadrant rather than four near-duplicate structs.
type valuator struct {
	quadrant types.Quadrant
	weights  map[string]float64 // urgency/confidence/actionability, 0.3 each (sum 0.9)
}

func newValuator(q types.Quadrant) *valuator {
	return &valuator{
		quadrant: q,
		weights:  map[string]float64{"urgency": 0.3, "confidence": 0.3, "actionability": 0.3},
	}
}

func (v *valuator) Metadata() Metadata {
	return Metadata{Quadrant: v.quadrant, Layer: types.LayerP1, DefaultConfig: v.weights}
}

func (v *valuator) agentID() AgentID {
	switch v.quadrant {
	case types.Q1:
		return Q1P1
	case types.Q2:
		return Q2P1
	case types.Q3:
		return Q3P1
	default:
		return Q4P1
	}
}

func (v *valuator) Invoke(ctx context.Context, in Input) (types.AgentReport, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return types.AgentReport{}, err
	}

	targeting := targetingCrossSignals(in.CrossSignals, v.quadrant)

	var urgency, confidence, actionability float64
	if len(in.OwnSignals) > 0 {
		var sum float64
		for _, s := range in.OwnSignals {
			sum += s.Score
		}
		urgency = clamp01(sum / float64(len(in.OwnSignals)) / 100)
	}
	if len(in.OwnSignals) > 0 || len(targeting) > 0 {
		confidence = clamp01(0.5 + 0.1*float64(len(targeting)))
		actionability = clamp01(0.2*float64(len(in.OwnSignals)) + 0.3*float64(len(targeting)))
	}

	dims := map[string]float64{
		"urgency":       urgency,
		"confidence":    confidence,
		"actionability": actionability,
	}
	weighted := dims["urgency"]*v.weights["urgency"] +
		dims["confidence"]*v.weights["confidence"] +
		dims["actionability"]*v.weights["actionability"]

	assessment := &types.ValueAssessment{
		Dimensions:        dims,
		Priority:          priorityForScore(weighted),
		RecommendedAction: actionForPriority(priorityForScore(weighted)),
	}

	return types.AgentReport{
		AgentID:    string(v.agentID()),
		Layer:      types.LayerP1,
		Quadrant:   v.quadrant,
		Assessment: assessment,
		Duration:   time.Since(start),
	}, nil
}

// targetingCrossSignals returns the CrossQuadrantSignals in all whose
// TargetLayer is P1 and whose SourceQuadrants include q.
func targetingCrossSignals(all []types.CrossQuadrantSignal, q types.Quadrant) []types.CrossQuadrantSignal {
	var out []types.CrossQuadrantSignal
	for _, s := range all {
		if s.TargetLayer != types.LayerP1 {
			continue
		}
		for _, sq := range s.SourceQuadrants {
			if sq == q {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

func priorityForScore(weighted float64) types.Priority {
	switch {
	case weighted >= 0.8:
		return types.PriorityCritical
	case weighted >= 0.6:
		return types.PriorityHigh
	case weighted >= 0.4:
		return types.PriorityMedium
	default:
		return types.PriorityLow
	}
}

func actionForPriority(p types.Priority) string {
	switch p {
	case types.PriorityCritical:
		return "escalate_immediately"
	case types.PriorityHigh:
		return "schedule_response"
	case types.PriorityMedium:
		return "queue_for_review"
	default:
		return "monitor"
	}
}
