package synthesis

import (
	"testing"

	"github.com/clawinfra/growthkernel/internal/types"
)

func reportsWith(signals ...types.Signal) map[string]types.AgentReport {
	out := map[string]types.AgentReport{}
	for _, s := range signals {
		key := string(s.Quadrant) + string(s.Kind) + s.SignalID
		out[key] = types.AgentReport{Quadrant: s.Quadrant, Signals: []types.Signal{s}}
	}
	return out
}

// TestPainTrendSynthesisTriggersCriticalPriority is the seed scenario from
// §8: a pain signal at urgency 85 sharing a keyword with a trend signal
// produces exactly one pain+trend CrossQuadrantSignal at confidence 0.7
// and critical priority.
func TestPainTrendSynthesisTriggersCriticalPriority(t *testing.T) {
	pain := types.Signal{SignalID: "p1", Quadrant: types.Q1, Kind: types.KindPain, Keywords: []string{"slow", "login"}, Score: 85}
	trend := types.Signal{SignalID: "t1", Quadrant: types.Q3, Kind: types.KindTrend, Keywords: []string{"login", "auth"}, Score: 50}

	e := New()
	out := e.Synthesize(reportsWith(pain, trend), 0.7)

	if len(out) != 1 {
		t.Fatalf("expected 1 synthesized signal, got %d: %+v", len(out), out)
	}
	got := out[0]
	if got.SignalType != types.SignalTypePainTrend {
		t.Fatalf("expected pain+trend, got %s", got.SignalType)
	}
	if got.Confidence != 0.7 {
		t.Fatalf("expected confidence 0.7, got %v", got.Confidence)
	}
	if got.Priority != types.PriorityCritical {
		t.Fatalf("expected critical priority, got %s", got.Priority)
	}
}

func TestPainTrendNoSharedKeywordProducesNothing(t *testing.T) {
	pain := types.Signal{SignalID: "p1", Quadrant: types.Q1, Kind: types.KindPain, Keywords: []string{"slow"}, Score: 85}
	trend := types.Signal{SignalID: "t1", Quadrant: types.Q3, Kind: types.KindTrend, Keywords: []string{"growth"}, Score: 50}

	e := New()
	out := e.Synthesize(reportsWith(pain, trend), 0.0)
	if len(out) != 0 {
		t.Fatalf("expected no signals without keyword overlap, got %+v", out)
	}
}

func TestEmotionSceneRequiresIntensityOver70(t *testing.T) {
	low := types.Signal{SignalID: "e1", Quadrant: types.Q2, Kind: types.KindEmotion, Score: 60}
	high := types.Signal{SignalID: "e2", Quadrant: types.Q2, Kind: types.KindEmotion, Score: 90}
	scene := types.Signal{SignalID: "s1", Quadrant: types.Q4, Kind: types.KindScene, Score: 40}

	e := New()
	out := e.Synthesize(reportsWith(low, high, scene), 0.0)

	if len(out) != 1 {
		t.Fatalf("expected exactly 1 emotion+scene signal (from the high-intensity emotion), got %d", len(out))
	}
	if out[0].Confidence < 0.9 || out[0].Confidence > 1.1 {
		t.Fatalf("unexpected confidence: %v", out[0].Confidence)
	}
}

func TestMinConfidenceThresholdDropsLowConfidenceSignals(t *testing.T) {
	pain := types.Signal{SignalID: "p1", Quadrant: types.Q1, Kind: types.KindPain, Keywords: []string{"x"}, Score: 10}
	trend := types.Signal{SignalID: "t1", Quadrant: types.Q3, Kind: types.KindTrend, Keywords: []string{"x"}, Score: 10}

	e := New()
	out := e.Synthesize(reportsWith(pain, trend), 0.95)
	if len(out) != 0 {
		t.Fatalf("expected signal below threshold to be dropped, got %+v", out)
	}
}

func TestSortedByConfidenceDescending(t *testing.T) {
	emA := types.Signal{SignalID: "eA", Quadrant: types.Q2, Kind: types.KindEmotion, Score: 71}
	emB := types.Signal{SignalID: "eB", Quadrant: types.Q2, Kind: types.KindEmotion, Score: 99}
	scene := types.Signal{SignalID: "s1", Quadrant: types.Q4, Kind: types.KindScene, Score: 40}

	e := New()
	out := e.Synthesize(reportsWith(emA, emB, scene), 0.0)
	if len(out) != 2 {
		t.Fatalf("expected 2 signals, got %d", len(out))
	}
	if out[0].Confidence < out[1].Confidence {
		t.Fatalf("expected descending confidence order, got %+v", out)
	}
}
