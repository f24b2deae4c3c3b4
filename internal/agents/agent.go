// Package agents implements C3 (AgentRegistry) and C4 (the twelve
// LayerAgents). Agents are pure functions of (input, shared-memory
// snapshot, config); they never mutate SharedMemory — the Orchestrator
// persists whatever they return (§4.4).
//
// Grounded on the teacher's internal/agents.Registry, generalized from a
// free-form string-keyed map to the typed enum-dispatch registry the
// Design Notes call for (§9: "Dynamic string-keyed registries & reflective
// agent lookup... Replace with a typed registry mapping fixed enum AgentId
// → interface implementation").
package agents

import (
	"context"
	"time"

	"github.com/clawinfra/growthkernel/internal/types"
)

// AgentID is the fixed enum of the twelve LayerAgents.
type AgentID string

const (
	Q1P0 AgentID = "Q1P0" // pain_scanner
	Q2P0 AgentID = "Q2P0" // emotion_detector
	Q3P0 AgentID = "Q3P0" // trend_hunter
	Q4P0 AgentID = "Q4P0" // scene_observer

	Q1P1 AgentID = "Q1P1" // pain_valuator
	Q2P1 AgentID = "Q2P1" // emotion_valuator
	Q3P1 AgentID = "Q3P1" // trend_valuator
	Q4P1 AgentID = "Q4P1" // scene_valuator

	Q1P2 AgentID = "Q1P2" // pain_router
	Q2P2 AgentID = "Q2P2" // emotion_router
	Q3P2 AgentID = "Q3P2" // trend_router
	Q4P2 AgentID = "Q4P2" // scene_router
)

// AllP0 lists the four Perception agents in quadrant order.
var AllP0 = []AgentID{Q1P0, Q2P0, Q3P0, Q4P0}

// AllP1 lists the four Judgment agents in quadrant order.
var AllP1 = []AgentID{Q1P1, Q2P1, Q3P1, Q4P1}

// AllP2 lists the four Relationship agents in quadrant order.
var AllP2 = []AgentID{Q1P2, Q2P2, Q3P2, Q4P2}

// Source describes one content item an agent evaluates.
type Source struct {
	Text        string
	PublishedAt time.Time
	Type        types.SourceType
}

// Input is the argument passed to Agent.Invoke. Exactly the fields
// relevant to the agent's layer are populated by the caller.
type Input struct {
	Source Source

	// P0 input.
	Config map[string]float64

	// P1 input: this quadrant's own recent signals plus the cycle's
	// CrossQuadrantSignals; the valuator keeps only those targeting P1
	// for its quadrant.
	OwnSignals   []types.Signal
	CrossSignals []types.CrossQuadrantSignal

	// P2 input: the P1 assessment for this quadrant.
	Assessment *types.ValueAssessment
}

// Metadata describes one agent's static identity.
type Metadata struct {
	Quadrant      types.Quadrant
	Layer         types.Layer
	DefaultConfig map[string]float64
}

// Agent is the capability every LayerAgent implements.
type Agent interface {
	Invoke(ctx context.Context, in Input) (types.AgentReport, error)
	Metadata() Metadata
}
