package agents

import (
	"context"
	"testing"
	"time"

	"github.com/clawinfra/growthkernel/internal/types"
)

func TestRegistryUnknownAgent(t *testing.T) {
	r := NewRegistry()
	if _, err := r.Get("Q9P9"); !IsUnknownAgent(err) {
		t.Fatalf("expected ErrUnknownAgent, got %v", err)
	}
}

func TestRegistryAllTwelveResolve(t *testing.T) {
	r := NewRegistry()
	ids := append(append(append([]AgentID{}, AllP0...), AllP1...), AllP2...)
	if len(ids) != 12 {
		t.Fatalf("expected 12 agent ids, got %d", len(ids))
	}
	for _, id := range ids {
		if _, err := r.Get(id); err != nil {
			t.Fatalf("Get(%s): %v", id, err)
		}
	}
}

func TestPainScannerNoMatchReturnsNoSignal(t *testing.T) {
	p := newPainScanner()
	report, err := p.Invoke(context.Background(), Input{Source: Source{Text: "everything is great"}})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if len(report.Signals) != 0 {
		t.Fatalf("expected no signal, got %+v", report.Signals)
	}
}

func TestPainScannerScoresMatches(t *testing.T) {
	p := newPainScanner()
	text := "the checkout flow is slow and confusing and broken"
	report, err := p.Invoke(context.Background(), Input{Source: Source{Text: text}})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if len(report.Signals) != 1 {
		t.Fatalf("expected 1 signal, got %d", len(report.Signals))
	}
	sig := report.Signals[0]
	want := clamp100(20*3 + 0.1*float64(len(text)))
	if sig.Score != want {
		t.Fatalf("score = %v, want %v", sig.Score, want)
	}
	if sig.Kind != types.KindPain || sig.Quadrant != types.Q1 {
		t.Fatalf("unexpected signal shape: %+v", sig)
	}
}

func TestEmotionDetectorCountsExclamations(t *testing.T) {
	e := newEmotionDetector()
	report, err := e.Invoke(context.Background(), Input{Source: Source{Text: "I love this!! amazing!"}})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if len(report.Signals) != 1 {
		t.Fatalf("expected 1 signal, got %d", len(report.Signals))
	}
	if report.Signals[0].Score <= 0 {
		t.Fatalf("expected positive intensity, got %v", report.Signals[0].Score)
	}
}

func TestTrendHunterRecencyBonus(t *testing.T) {
	th := newTrendHunter()
	recent := Input{Source: Source{Text: "this is trending and viral", PublishedAt: time.Now().Add(-1 * time.Hour)}}
	stale := Input{Source: Source{Text: "this is trending and viral", PublishedAt: time.Now().Add(-100 * time.Hour)}}

	recentReport, err := th.Invoke(context.Background(), recent)
	if err != nil {
		t.Fatalf("Invoke recent: %v", err)
	}
	staleReport, err := th.Invoke(context.Background(), stale)
	if err != nil {
		t.Fatalf("Invoke stale: %v", err)
	}
	if recentReport.Signals[0].Score <= staleReport.Signals[0].Score {
		t.Fatalf("expected recency bonus: recent=%v stale=%v",
			recentReport.Signals[0].Score, staleReport.Signals[0].Score)
	}
}

func TestSceneObserverWeightsBySourceType(t *testing.T) {
	s := newSceneObserver()
	text := "meeting at the office with the team"
	sensorReport, err := s.Invoke(context.Background(), Input{Source: Source{Text: text, Type: types.SourceSensor}})
	if err != nil {
		t.Fatalf("Invoke sensor: %v", err)
	}
	manualReport, err := s.Invoke(context.Background(), Input{Source: Source{Text: text, Type: types.SourceManual}})
	if err != nil {
		t.Fatalf("Invoke manual: %v", err)
	}
	if sensorReport.Signals[0].Score <= manualReport.Signals[0].Score {
		t.Fatalf("expected sensor to outweigh manual: sensor=%v manual=%v",
			sensorReport.Signals[0].Score, manualReport.Signals[0].Score)
	}
}

func TestValuatorNoSignalsIsLowPriority(t *testing.T) {
	v := newValuator(types.Q1)
	report, err := v.Invoke(context.Background(), Input{})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if report.Assessment.Priority != types.PriorityLow {
		t.Fatalf("expected low priority with no signals, got %s", report.Assessment.Priority)
	}
}

func TestValuatorHighUrgencySignalsRaisePriority(t *testing.T) {
	v := newValuator(types.Q1)
	signals := []types.Signal{
		{SignalID: "s1", Score: 95},
		{SignalID: "s2", Score: 90},
	}
	cross := []types.CrossQuadrantSignal{
		{SignalID: "c1", SourceQuadrants: []types.Quadrant{types.Q1}, TargetLayer: types.LayerP1},
	}
	report, err := v.Invoke(context.Background(), Input{OwnSignals: signals, CrossSignals: cross})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if report.Assessment.Priority == types.PriorityLow {
		t.Fatalf("expected elevated priority, got %s (dims=%+v)", report.Assessment.Priority, report.Assessment.Dimensions)
	}
}

func TestRouterNoAssessmentProducesNoRouting(t *testing.T) {
	r := newRouter(types.Q1)
	report, err := r.Invoke(context.Background(), Input{})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if report.Routing != nil {
		t.Fatalf("expected no routing decision, got %+v", report.Routing)
	}
}

func TestRouterCriticalPriorityEscalates(t *testing.T) {
	r := newRouter(types.Q1)
	report, err := r.Invoke(context.Background(), Input{
		Assessment: &types.ValueAssessment{
			Dimensions: map[string]float64{"urgency": 0.9, "confidence": 0.9, "actionability": 0.9},
			Priority:   types.PriorityCritical,
		},
	})
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if report.Routing.TargetChannel != "immediate_escalation" {
		t.Fatalf("expected immediate_escalation, got %s", report.Routing.TargetChannel)
	}
}

func TestContextCancellationShortCircuits(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := newPainScanner()
	if _, err := p.Invoke(ctx, Input{Source: Source{Text: "broken"}}); err == nil {
		t.Fatal("expected cancellation error")
	}
}
