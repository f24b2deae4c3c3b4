package feedback

import (
	"fmt"
	"testing"

	"github.com/clawinfra/growthkernel/internal/sharedmemory"
	"github.com/clawinfra/growthkernel/internal/types"
)

func TestClassifyRules(t *testing.T) {
	cases := []struct {
		name     string
		metrics  map[string]float64
		sentComm bool
		want     types.FeedbackKind
	}{
		{"conversion_rate wins", map[string]float64{"conversion_rate": 0.1}, true, types.FeedbackOutcome},
		{"revenue wins", map[string]float64{"revenue": 500}, false, types.FeedbackOutcome},
		{"sentiment without outcome metrics", map[string]float64{}, true, types.FeedbackQualitative},
		{"falls through to performance", map[string]float64{"latency": 10}, false, types.FeedbackPerformance},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := Classify(c.metrics, c.sentComm); got != c.want {
				t.Fatalf("got %s, want %s", got, c.want)
			}
		})
	}
}

// TestLearningInsightAppliedOnTenthRecord follows the seed scenario from
// §8 up to the first batch: it records Q1 feedback with outcome_value=150
// and engagement_rate=0.1 and stops after the 10th record, where the
// engagement-pattern insight fires and is applied immediately.
func TestLearningInsightAppliedOnTenthRecord(t *testing.T) {
	sm := sharedmemory.New(nil)
	defer sm.Stop()
	engine := NewEngine(sm, nil)
	collector := NewCollector(sm, engine, nil)

	var lastInsights []Insight
	for i := 0; i < 15; i++ {
		lastInsights = collector.Record(types.FeedbackRecord{
			FeedbackID:     fmt.Sprintf("f%d", i),
			SourceQuadrant: types.Q1,
			OutcomeValue:   150,
			Metrics:        map[string]float64{"engagement_rate": 0.1},
		}, false)
		if i == 9 {
			break
		}
	}

	found := false
	for _, in := range lastInsights {
		if in.Name == "engagement-pattern" {
			found = true
			if in.Confidence < insightConfidenceGate {
				t.Fatalf("expected confidence >= %v, got %v", insightConfidenceGate, in.Confidence)
			}
		}
	}
	if !found {
		t.Fatalf("expected engagement-pattern insight on the 10th record, got %+v", lastInsights)
	}

	state := engine.Current()
	if state.P0Thresholds["min_urgency_score"] != 0.08 {
		t.Fatalf("expected min_urgency_score=0.08, got %v", state.P0Thresholds["min_urgency_score"])
	}
}

func TestBaseSuccessRateReflectsQuadrantHistory(t *testing.T) {
	sm := sharedmemory.New(nil)
	defer sm.Stop()
	engine := NewEngine(sm, nil)
	collector := NewCollector(sm, engine, nil)

	for i := 0; i < 4; i++ {
		collector.Record(types.FeedbackRecord{FeedbackID: fmt.Sprintf("s%d", i), SourceQuadrant: types.Q1, OutcomeValue: 150}, false)
	}
	for i := 0; i < 6; i++ {
		collector.Record(types.FeedbackRecord{FeedbackID: fmt.Sprintf("f%d", i), SourceQuadrant: types.Q1, OutcomeValue: 10}, false)
	}

	if got := collector.BaseSuccessRate("pain_scanner"); got != 0.4 {
		t.Fatalf("expected 0.4 success rate (4/10), got %v", got)
	}
	if got := collector.BaseSuccessRate("unknown_type"); got != 0.5 {
		t.Fatalf("expected 0.5 default for unmapped agent type, got %v", got)
	}
	if got := collector.BaseSuccessRate("scene_observer"); got != 0.5 {
		t.Fatalf("expected 0.5 default for a quadrant with no history, got %v", got)
	}
}

func TestNoInsightsBeforeBatchOfTen(t *testing.T) {
	sm := sharedmemory.New(nil)
	defer sm.Stop()
	engine := NewEngine(sm, nil)
	collector := NewCollector(sm, engine, nil)

	for i := 0; i < 9; i++ {
		out := collector.Record(types.FeedbackRecord{
			FeedbackID:   fmt.Sprintf("f%d", i),
			OutcomeValue: 150,
			Metrics:      map[string]float64{"engagement_rate": 0.1},
		}, false)
		if out != nil {
			t.Fatalf("expected no insight evaluation before the 10th record, got %+v at i=%d", out, i)
		}
	}
}

func TestQuadrantPerformanceInsightRequiresMargin(t *testing.T) {
	batch := []types.FeedbackRecord{
		{SourceQuadrant: types.Q1, OutcomeValue: 150},
		{SourceQuadrant: types.Q2, OutcomeValue: 150},
	}
	if _, ok := quadrantPerformanceInsight(batch); ok {
		t.Fatalf("expected no insight when quadrants have identical success rates")
	}
}

func TestQuadrantPerformanceInsightFiresOnSpread(t *testing.T) {
	var batch []types.FeedbackRecord
	for i := 0; i < 8; i++ {
		batch = append(batch, types.FeedbackRecord{SourceQuadrant: types.Q1, OutcomeValue: 150})
	}
	for i := 0; i < 8; i++ {
		batch = append(batch, types.FeedbackRecord{SourceQuadrant: types.Q2, OutcomeValue: 10})
	}
	in, ok := quadrantPerformanceInsight(batch)
	if !ok {
		t.Fatalf("expected quadrant-performance insight with a wide success-rate spread")
	}
	state := types.DefaultLearningState()
	before := state.P1Weights[types.Q1]["urgency"]
	in.Apply(state)
	after := state.P1Weights[types.Q1]["urgency"]
	if after <= before {
		t.Fatalf("expected Q1 weights to increase, before=%v after=%v", before, after)
	}
}

func TestWeightsClampedAfterApply(t *testing.T) {
	sm := sharedmemory.New(nil)
	defer sm.Stop()
	engine := NewEngine(sm, nil)
	engine.state.P1Weights[types.Q1]["urgency"] = 0.45

	var batch []types.FeedbackRecord
	for i := 0; i < 8; i++ {
		batch = append(batch, types.FeedbackRecord{SourceQuadrant: types.Q1, OutcomeValue: 150})
	}
	for i := 0; i < 8; i++ {
		batch = append(batch, types.FeedbackRecord{SourceQuadrant: types.Q2, OutcomeValue: 10})
	}
	engine.Evaluate(batch)

	if got := engine.Current().P1Weights[types.Q1]["urgency"]; got > weightClampMax {
		t.Fatalf("expected weight clamped to %v, got %v", weightClampMax, got)
	}
}
