package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/clawinfra/growthkernel/internal/agents"
	"github.com/clawinfra/growthkernel/internal/sharedmemory"
	"github.com/clawinfra/growthkernel/internal/synthesis"
	"github.com/clawinfra/growthkernel/internal/types"
)

type fixedLearning struct{ state *types.LearningState }

func (f fixedLearning) Current() *types.LearningState { return f.state }

func newTestOrchestrator() *Orchestrator {
	sm := sharedmemory.New(nil)
	cfg := DefaultConfig()
	cfg.MinConfidenceThreshold = 0
	return New(agents.NewRegistry(), sm, nil, synthesis.New(), fixedLearning{types.DefaultLearningState()}, cfg, nil)
}

func TestTriggerNowProducesCompletedSession(t *testing.T) {
	o := newTestOrchestrator()
	defer o.sm.Stop()

	session, err := o.TriggerNow(context.Background(), agents.Source{Text: "login is slow and broken", Type: types.SourceSensor})
	if err != nil {
		t.Fatalf("TriggerNow: %v", err)
	}
	if session.Status != types.SessionCompleted {
		t.Fatalf("expected completed session, got %s (error=%s)", session.Status, session.Error)
	}
	if len(session.AgentReports) != 4 {
		t.Fatalf("expected 4 P0 reports, got %d", len(session.AgentReports))
	}
	if len(session.DownstreamResults) == 0 {
		t.Fatalf("expected P1/P2 downstream results to be populated")
	}
}

func TestTriggerNowRejectsConcurrentSession(t *testing.T) {
	o := newTestOrchestrator()
	defer o.sm.Stop()

	o.mu.Lock()
	o.running = true
	o.mu.Unlock()

	_, err := o.TriggerNow(context.Background(), agents.Source{Text: "anything"})
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("expected ErrAlreadyRunning, got %v", err)
	}
}

func TestHistoryIsBounded(t *testing.T) {
	o := newTestOrchestrator()
	defer o.sm.Stop()

	for i := 0; i < defaultHistoryLimit+5; i++ {
		if _, err := o.TriggerNow(context.Background(), agents.Source{Text: "quiet day"}); err != nil {
			t.Fatalf("TriggerNow iteration %d: %v", i, err)
		}
	}
	if len(o.History()) != defaultHistoryLimit {
		t.Fatalf("expected history bounded to %d, got %d", defaultHistoryLimit, len(o.History()))
	}
}

func TestDeriveInsightsFlagsHighActivityAndCritical(t *testing.T) {
	reports := map[string]types.AgentReport{
		"Q1P0": {Quadrant: types.Q1, Signals: []types.Signal{{}, {}, {}, {}}},
	}
	synthesized := []types.CrossQuadrantSignal{{Priority: types.PriorityCritical}}

	insights := deriveInsights(reports, synthesized)
	if len(insights) != 2 {
		t.Fatalf("expected 2 insights, got %+v", insights)
	}
}

func TestRunFanOutIsolatesUnknownAgentErrors(t *testing.T) {
	o := newTestOrchestrator()
	defer o.sm.Stop()

	reports := o.runFanOut(context.Background(), []agents.AgentID{"bogus"}, agents.Input{})
	r, ok := reports["bogus"]
	if !ok || r.Error == "" {
		t.Fatalf("expected isolated error report for unknown agent, got %+v", reports)
	}
}

func TestAgentTimeoutYieldsTimeoutError(t *testing.T) {
	o := newTestOrchestrator()
	defer o.sm.Stop()
	o.cfg.AgentTimeout = time.Nanosecond

	reports := o.runFanOut(context.Background(), agents.AllP0, agents.Input{Source: agents.Source{Text: "slow broken confusing"}})
	for id, r := range reports {
		if r.Error == "" {
			t.Fatalf("expected timeout error for %s under a nanosecond budget, got none", id)
		}
	}
}
