// Package orchestrator implements C5: the single-instance SyncSession
// state machine that drives one cognitive-pipeline cycle end to end
// (P0 fan-out → synthesis → persist → P1 fan-out → P2, run sequentially).
//
// Grounded on the teacher's internal/scheduler.Scheduler for the
// mutex-guarded single-instance invariant, and on
// internal/orchestrator/toolloop.go's errgroup-based parallel
// fan-out-with-timeout for the per-phase agent dispatch.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/clawinfra/growthkernel/internal/agents"
	"github.com/clawinfra/growthkernel/internal/kerrors"
	"github.com/clawinfra/growthkernel/internal/lineage"
	"github.com/clawinfra/growthkernel/internal/sharedmemory"
	"github.com/clawinfra/growthkernel/internal/synthesis"
	"github.com/clawinfra/growthkernel/internal/types"
)

const defaultAgentTimeout = 30 * time.Second
const defaultHistoryLimit = 100
const quadrantActivityThreshold = 3

// sessionTTL matches the KVStore retention table (§6): session:{id}
// expires after 30 days like signal:/feedback:.
const sessionTTL = 30 * 24 * time.Hour

// LearningProvider exposes the LearningEngine's current thresholds. The
// Orchestrator reads min_confidence_threshold from it every cycle; it
// never mutates it.
type LearningProvider interface {
	Current() *types.LearningState
}

// Config is the Orchestrator section of the process configuration (§6).
type Config struct {
	AgentsToRun            []agents.AgentID
	EnableCrossSynthesis   bool
	SignalTTLHours         int
	MinConfidenceThreshold float64
	EnableP1Trigger        bool
	EnableP2Trigger        bool
	AgentTimeout           time.Duration
}

// DefaultConfig returns the Orchestrator defaults named in §6.
func DefaultConfig() Config {
	return Config{
		AgentsToRun:            agents.AllP0,
		EnableCrossSynthesis:   true,
		SignalTTLHours:         48,
		MinConfidenceThreshold: 0.7,
		EnableP1Trigger:        true,
		EnableP2Trigger:        true,
		AgentTimeout:           defaultAgentTimeout,
	}
}

// Orchestrator is the C5 state machine. Exactly one SyncSession may be
// Running at a time.
type Orchestrator struct {
	registry *agents.Registry
	sm       *sharedmemory.SharedMemory
	lineage  *lineage.Store
	synth    *synthesis.Engine
	learning LearningProvider
	cfg      Config
	logger   *slog.Logger

	mu      sync.Mutex
	running bool

	historyMu sync.Mutex
	history   []types.SyncSession
}

// New wires an Orchestrator from its capability dependencies. lineage may
// be nil in tests that don't need provenance tracking; production callers
// (deps.RegisterAll) always supply the shared LineageStore so every cycle
// records where its P0 input came from (§4.9's DataLifecycleAgent passes
// operate over rows this creates).
func New(registry *agents.Registry, sm *sharedmemory.SharedMemory, lineageStore *lineage.Store, synth *synthesis.Engine, learning LearningProvider, cfg Config, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.AgentTimeout <= 0 {
		cfg.AgentTimeout = defaultAgentTimeout
	}
	return &Orchestrator{
		registry: registry,
		sm:       sm,
		lineage:  lineageStore,
		synth:    synth,
		learning: learning,
		cfg:      cfg,
		logger:   logger.With("component", "orchestrator"),
	}
}

// ErrAlreadyRunning is returned by TriggerNow when a session is in flight.
var ErrAlreadyRunning = fmt.Errorf("orchestrator: session already running: %w", kerrors.ErrUnavailable)

// TriggerNow runs one full sync cycle. Only one call can be in flight at a
// time; concurrent callers receive ErrAlreadyRunning immediately.
func (o *Orchestrator) TriggerNow(ctx context.Context, source agents.Source) (types.SyncSession, error) {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return types.SyncSession{}, ErrAlreadyRunning
	}
	o.running = true
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}()

	return o.runCycle(ctx, source)
}

func (o *Orchestrator) runCycle(ctx context.Context, source agents.Source) (types.SyncSession, error) {
	session := types.SyncSession{
		SessionID:         fmt.Sprintf("sync-%s", time.Now().UTC().Format("20060102T150405Z")),
		StartedAt:         time.Now(),
		Status:            types.SessionRunning,
		AgentReports:      map[string]types.AgentReport{},
		DownstreamResults: map[string]types.AgentReport{},
	}
	o.logger.Info("sync cycle started", "session_id", session.SessionID)

	// Phase P0.
	p0Reports := o.runFanOut(ctx, o.p0AgentsToRun(), agents.Input{Source: source, Config: map[string]float64{}})
	for id, r := range p0Reports {
		session.AgentReports[id] = r
	}

	learningState := o.currentLearningState()

	// Phase Synthesis.
	var synthesized []types.CrossQuadrantSignal
	if o.cfg.EnableCrossSynthesis {
		synthesized = o.synth.Synthesize(p0Reports, learningState.MinConfidenceThreshold())
	}
	session.SynthesizedSignals = synthesized

	// Phase Insights.
	session.Insights = deriveInsights(p0Reports, synthesized)

	// Phase Persist.
	if err := o.persist(ctx, session, source, p0Reports, synthesized); err != nil {
		return o.fail(session, err)
	}

	// Phase P1.
	if o.cfg.EnableP1Trigger {
		p1Input := agents.Input{
			Source:       source,
			OwnSignals:   o.sm.GetRecentSignals(time.Duration(o.cfg.SignalTTLHours) * time.Hour),
			CrossSignals: synthesized,
		}
		p1Reports := o.runFanOut(ctx, agents.AllP1, p1Input)
		for id, r := range p1Reports {
			session.DownstreamResults[id] = r
		}

		// Phase P2.
		if o.cfg.EnableP2Trigger {
			p2Reports := o.runP2(ctx, p1Reports)
			for id, r := range p2Reports {
				session.DownstreamResults[id] = r
			}
		}
	}

	now := time.Now()
	session.CompletedAt = &now
	session.Status = types.SessionCompleted
	o.appendHistory(session)
	o.logger.Info("sync cycle completed", "session_id", session.SessionID, "signals", len(synthesized))
	return session, nil
}

func (o *Orchestrator) fail(session types.SyncSession, err error) (types.SyncSession, error) {
	now := time.Now()
	session.CompletedAt = &now
	session.Status = types.SessionFailed
	session.Error = err.Error()
	o.appendHistory(session)
	o.logger.Error("sync cycle failed", "session_id", session.SessionID, "error", err)
	return session, err
}

func (o *Orchestrator) p0AgentsToRun() []agents.AgentID {
	if len(o.cfg.AgentsToRun) == 0 {
		return agents.AllP0
	}
	return o.cfg.AgentsToRun
}

func (o *Orchestrator) currentLearningState() *types.LearningState {
	if o.learning == nil {
		return types.DefaultLearningState()
	}
	if st := o.learning.Current(); st != nil {
		return st
	}
	return types.DefaultLearningState()
}

// runFanOut invokes every id in ids concurrently with a per-agent timeout,
// isolating failures into the report's Error field rather than aborting
// siblings (§4.5 error policy).
func (o *Orchestrator) runFanOut(ctx context.Context, ids []agents.AgentID, in agents.Input) map[string]types.AgentReport {
	reports := make(map[string]types.AgentReport, len(ids))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	for _, id := range ids {
		id := id
		g.Go(func() error {
			agent, err := o.registry.Get(id)
			if err != nil {
				mu.Lock()
				reports[string(id)] = types.AgentReport{AgentID: string(id), Error: err.Error()}
				mu.Unlock()
				return nil
			}

			agentCtx, cancel := context.WithTimeout(gctx, o.cfg.AgentTimeout)
			defer cancel()

			agentIn := in
			if meta := agent.Metadata(); meta.Layer == types.LayerP1 {
				agentIn.OwnSignals = nil
				for _, s := range in.OwnSignals {
					if s.Quadrant == meta.Quadrant {
						agentIn.OwnSignals = append(agentIn.OwnSignals, s)
					}
				}
			}
			report, err := agent.Invoke(agentCtx, agentIn)
			if err != nil {
				meta := agent.Metadata()
				errMsg := err.Error()
				if agentCtx.Err() != nil {
					errMsg = fmt.Errorf("%s: %w", errMsg, kerrors.ErrTimeout).Error()
				}
				report = types.AgentReport{
					AgentID:  string(id),
					Layer:    meta.Layer,
					Quadrant: meta.Quadrant,
					Error:    errMsg,
				}
			}
			o.registry.RecordInvocation(id, report)
			mu.Lock()
			reports[string(id)] = report
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // errors are isolated per-agent above, never propagated
	return reports
}

// runP2 builds per-quadrant P2 input from the P1 reports and invokes the
// four P2 agents one after another, each under its own timeout. Unlike P0
// and P1, the P2 agents do not run concurrently.
func (o *Orchestrator) runP2(ctx context.Context, p1Reports map[string]types.AgentReport) map[string]types.AgentReport {
	assessmentByQuadrant := map[types.Quadrant]*types.ValueAssessment{}
	for _, r := range p1Reports {
		if r.Assessment != nil {
			assessmentByQuadrant[r.Quadrant] = r.Assessment
		}
	}

	out := make(map[string]types.AgentReport, len(agents.AllP2))
	for _, id := range agents.AllP2 {
		agent, err := o.registry.Get(id)
		if err != nil {
			out[string(id)] = types.AgentReport{AgentID: string(id), Error: err.Error()}
			continue
		}
		meta := agent.Metadata()
		agentCtx, cancel := context.WithTimeout(ctx, o.cfg.AgentTimeout)
		report, err := agent.Invoke(agentCtx, agents.Input{Assessment: assessmentByQuadrant[meta.Quadrant]})
		cancel()
		if err != nil {
			report = types.AgentReport{AgentID: string(id), Layer: meta.Layer, Quadrant: meta.Quadrant, Error: err.Error()}
		}
		o.registry.RecordInvocation(id, report)
		out[string(id)] = report
	}
	return out
}

// persist stores the cycle's raw and synthesized signals, the session
// snapshot, and a DataLineage provenance record in SharedMemory and the
// LineageStore per §4.5 Phase Persist.
func (o *Orchestrator) persist(ctx context.Context, session types.SyncSession, source agents.Source, p0Reports map[string]types.AgentReport, synthesized []types.CrossQuadrantSignal) error {
	ttl := time.Duration(o.cfg.SignalTTLHours) * time.Hour

	phase := map[string]types.Signal{} // last writer wins within the phase
	for _, r := range p0Reports {
		for _, s := range r.Signals {
			phase[s.SignalID] = s
		}
	}
	var rawSignals []types.Signal
	for id, s := range phase {
		if _, err := o.sm.Get(sharedmemory.SignalKeyPrefix + id); err == nil {
			return fmt.Errorf("signal %s already committed: %w", id, kerrors.ErrInvalid)
		}
		o.sm.Store(sharedmemory.SignalKeyPrefix+id, s, ttl)
		rawSignals = append(rawSignals, s)
	}
	o.sm.Store("p0:latest_signals", rawSignals, 0)

	for _, s := range synthesized {
		o.sm.Store("signal:"+s.SignalID, s, ttl)
	}

	o.sm.Store("session:"+session.SessionID, session, sessionTTL)
	o.sm.Store("p0:latest_session", session.SessionID, 0)

	o.recordLineage(ctx, source)
	return nil
}

// recordLineage creates one DataLineage row per ingested source, content-
// addressed so re-ingesting the same text from the same source type is
// idempotent. Failures are logged, not fatal: lineage is provenance
// bookkeeping for §4.9's tier sweeps, not load-bearing for the sync cycle.
func (o *Orchestrator) recordLineage(ctx context.Context, source agents.Source) {
	if o.lineage == nil || source.Text == "" {
		return
	}
	now := time.Now()
	d := types.DataLineage{
		DataID:        lineage.ContentDataID(string(source.Type), []byte(source.Text)),
		Source:        string(source.Type),
		SourceType:    source.Type,
		CreatedAt:     now,
		LastAccessed:  now,
		CurrentTier:   types.TierHot,
		SchemaVersion: 1,
	}
	if err := o.lineage.Create(ctx, d); err != nil {
		// Most likely cause: this content was already ingested from this
		// source and the content-addressed DataID collided. Touch
		// last_accessed instead of treating re-ingestion as an error.
		if err := o.lineage.RecordAccess(ctx, d.DataID); err != nil {
			o.logger.Warn("lineage record failed", "data_id", d.DataID, "error", err)
		}
	}
}

// deriveInsights produces the human-readable insight strings named in §4.5.
func deriveInsights(p0Reports map[string]types.AgentReport, synthesized []types.CrossQuadrantSignal) []string {
	var insights []string

	counts := map[types.Quadrant]int{}
	for _, r := range p0Reports {
		counts[r.Quadrant] += len(r.Signals)
	}
	for q, n := range counts {
		if n > quadrantActivityThreshold {
			insights = append(insights, fmt.Sprintf("%s is highly active (%d signals)", q, n))
		}
	}

	for _, s := range synthesized {
		if s.Priority == types.PriorityCritical {
			insights = append(insights, "critical opportunities detected")
			break
		}
	}
	return insights
}

func (o *Orchestrator) appendHistory(session types.SyncSession) {
	o.historyMu.Lock()
	defer o.historyMu.Unlock()
	o.history = append(o.history, session)
	if len(o.history) > defaultHistoryLimit {
		o.history = o.history[len(o.history)-defaultHistoryLimit:]
	}
}

// History returns the bounded list of completed/failed sessions, oldest
// first.
func (o *Orchestrator) History() []types.SyncSession {
	o.historyMu.Lock()
	defer o.historyMu.Unlock()
	out := make([]types.SyncSession, len(o.history))
	copy(out, o.history)
	return out
}
