package agents

import (
	"context"
	"fmt"
	"time"

	"github.com/clawinfra/growthkernel/internal/types"
)

// router implements the four P2 agents (Q1P2PainRouter …
// Q4P2SceneRouter). Like valuator, the four are one generic type
// parameterized by quadrant.
type router struct {
	quadrant types.Quadrant
}

func newRouter(q types.Quadrant) *router {
	return &router{quadrant: q}
}

func (r *router) Metadata() Metadata {
	return Metadata{Quadrant: r.quadrant, Layer: types.LayerP2, DefaultConfig: map[string]float64{}}
}

func (r *router) agentID() AgentID {
	switch r.quadrant {
	case types.Q1:
		return Q1P2
	case types.Q2:
		return Q2P2
	case types.Q3:
		return Q3P2
	default:
		return Q4P2
	}
}

func (r *router) Invoke(ctx context.Context, in Input) (types.AgentReport, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return types.AgentReport{}, err
	}
	if in.Assessment == nil {
		return types.AgentReport{
			AgentID:  string(r.agentID()),
			Layer:    types.LayerP2,
			Quadrant: r.quadrant,
			Duration: time.Since(start),
		}, nil
	}

	decision := &types.RoutingDecision{
		TargetChannel: channelForPriority(in.Assessment.Priority),
		Priority:      in.Assessment.Priority,
		Rationale:     rationale(r.quadrant, in.Assessment),
	}

	return types.AgentReport{
		AgentID:  string(r.agentID()),
		Layer:    types.LayerP2,
		Quadrant: r.quadrant,
		Routing:  decision,
		Duration: time.Since(start),
	}, nil
}

func channelForPriority(p types.Priority) string {
	switch p {
	case types.PriorityCritical:
		return "immediate_escalation"
	case types.PriorityHigh:
		return "priority_queue"
	case types.PriorityMedium:
		return "standard_queue"
	default:
		return "backlog"
	}
}

func rationale(q types.Quadrant, a *types.ValueAssessment) string {
	return fmt.Sprintf("%s assessment: urgency=%.2f confidence=%.2f actionability=%.2f -> %s",
		q, a.Dimensions["urgency"], a.Dimensions["confidence"], a.Dimensions["actionability"], a.RecommendedAction)
}
