package agents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/clawinfra/growthkernel/internal/kerrors"
	"github.com/clawinfra/growthkernel/internal/types"
)

// ErrUnknownAgent is returned by Registry.Get and Registry.Invoke when the
// requested AgentID has no registered implementation.
var ErrUnknownAgent = fmt.Errorf("unknown agent id: %w", kerrors.ErrNotFound)

// Recorder persists an agent's energy/stress/performance snapshot to
// agent_states (§6). Optional: deps.RegisterAll wires the shared
// LineageStore, which implements this interface structurally.
type Recorder interface {
	UpsertAgentState(ctx context.Context, as types.AgentStatusRecord) error
}

type agentStats struct {
	mu             sync.Mutex
	createdAt      time.Time
	tasksCompleted int
	tasksFailed    int
	totalDuration  time.Duration
	lastExecuted   *time.Time
}

// Registry is the typed AgentID → Agent lookup table described in §4.3.
// Unlike the teacher's string-keyed dynamic registry, membership is fixed
// at construction and Get never accepts an id the caller didn't register.
type Registry struct {
	agents map[AgentID]Agent

	statsMu  sync.Mutex
	stats    map[AgentID]*agentStats
	recorder Recorder
}

// NewRegistry builds a registry with all twelve LayerAgents wired to their
// default configuration.
func NewRegistry() *Registry {
	r := &Registry{agents: make(map[AgentID]Agent, 12), stats: make(map[AgentID]*agentStats, 12)}
	r.register(Q1P0, newPainScanner())
	r.register(Q2P0, newEmotionDetector())
	r.register(Q3P0, newTrendHunter())
	r.register(Q4P0, newSceneObserver())

	r.register(Q1P1, newValuator(types.Q1))
	r.register(Q2P1, newValuator(types.Q2))
	r.register(Q3P1, newValuator(types.Q3))
	r.register(Q4P1, newValuator(types.Q4))

	r.register(Q1P2, newRouter(types.Q1))
	r.register(Q2P2, newRouter(types.Q2))
	r.register(Q3P2, newRouter(types.Q3))
	r.register(Q4P2, newRouter(types.Q4))
	return r
}

func (r *Registry) register(id AgentID, a Agent) {
	r.agents[id] = a
}

// Get returns the agent registered under id, or ErrUnknownAgent.
func (r *Registry) Get(id AgentID) (Agent, error) {
	a, ok := r.agents[id]
	if !ok {
		return nil, fmt.Errorf("%s: %w", id, ErrUnknownAgent)
	}
	return a, nil
}

// IsUnknownAgent reports whether err wraps ErrUnknownAgent.
func IsUnknownAgent(err error) bool {
	return errors.Is(err, ErrUnknownAgent)
}

// SetRecorder wires a Recorder for agent_states persistence.
func (r *Registry) SetRecorder(rec Recorder) {
	r.statsMu.Lock()
	defer r.statsMu.Unlock()
	r.recorder = rec
}

// RecordInvocation updates id's running energy/stress/performance
// counters from one completed Invoke and, if a Recorder is wired,
// persists the snapshot to agent_states (§6). The Orchestrator calls this
// once per agent per fan-out, after Invoke returns.
func (r *Registry) RecordInvocation(id AgentID, report types.AgentReport) {
	r.statsMu.Lock()
	st, ok := r.stats[id]
	if !ok {
		st = &agentStats{createdAt: time.Now()}
		r.stats[id] = st
	}
	recorder := r.recorder
	r.statsMu.Unlock()

	st.mu.Lock()
	now := time.Now()
	st.lastExecuted = &now
	st.totalDuration += report.Duration
	if report.Error != "" {
		st.tasksFailed++
	} else {
		st.tasksCompleted++
	}

	total := st.tasksCompleted + st.tasksFailed
	var failureRate float64
	if total > 0 {
		failureRate = float64(st.tasksFailed) / float64(total)
	}
	var avgMs float64
	if total > 0 {
		avgMs = float64(st.totalDuration.Milliseconds()) / float64(total)
	}
	snapshot := types.AgentStatusRecord{
		AgentID:           string(id),
		Name:              string(id),
		Status:            "active",
		EnergyLevel:       1 - failureRate*0.5,
		StressLevel:       failureRate,
		TasksCompleted:    st.tasksCompleted,
		TasksFailed:       st.tasksFailed,
		AvgResponseTimeMs: avgMs,
		LastExecuted:      st.lastExecuted,
		CreatedAt:         st.createdAt,
		UpdatedAt:         now,
	}
	st.mu.Unlock()

	if recorder == nil {
		return
	}
	if err := recorder.UpsertAgentState(context.Background(), snapshot); err != nil {
		slog.Default().Warn("persist agent_states failed", "agent_id", id, "error", err)
	}
}
