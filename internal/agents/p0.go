package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/clawinfra/growthkernel/internal/types"
)

// baseP0 holds the identity every Perception agent shares; concrete
// scanners embed it and supply their own Invoke.
type baseP0 struct {
	id       AgentID
	quadrant types.Quadrant
	config   map[string]float64
}

func (b baseP0) Metadata() Metadata {
	return Metadata{Quadrant: b.quadrant, Layer: types.LayerP0, DefaultConfig: b.config}
}

func newSignal(id AgentID, q types.Quadrant, kind types.SignalKind, score float64, keywords []string, payload map[string]interface{}) types.Signal {
	return types.Signal{
		SignalID:  fmt.Sprintf("%s-%d", id, time.Now().UnixNano()),
		Quadrant:  q,
		Kind:      kind,
		Keywords:  keywords,
		Score:     score,
		Timestamp: time.Now(),
		Payload:   payload,
	}
}

// painScanner is Q1P0PainScanner.
type painScanner struct{ baseP0 }

func newPainScanner() *painScanner {
	return &painScanner{baseP0{id: Q1P0, quadrant: types.Q1, config: map[string]float64{}}}
}

func (p *painScanner) Invoke(ctx context.Context, in Input) (types.AgentReport, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return types.AgentReport{}, err
	}
	hits := countMatches(in.Source.Text, painLexicon)
	report := types.AgentReport{AgentID: string(Q1P0), Layer: types.LayerP0, Quadrant: types.Q1, Duration: time.Since(start)}
	if len(hits) == 0 {
		return report, nil
	}
	score := clamp100(20*float64(len(hits)) + 0.1*float64(len(in.Source.Text)))
	report.Signals = []types.Signal{newSignal(Q1P0, types.Q1, types.KindPain, score, hits, nil)}
	report.Duration = time.Since(start)
	return report, nil
}

// emotionDetector is Q2P0EmotionDetector.
type emotionDetector struct{ baseP0 }

func newEmotionDetector() *emotionDetector {
	return &emotionDetector{baseP0{id: Q2P0, quadrant: types.Q2, config: map[string]float64{}}}
}

func (e *emotionDetector) Invoke(ctx context.Context, in Input) (types.AgentReport, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return types.AgentReport{}, err
	}
	hits := countMatches(in.Source.Text, emotionLexicon)
	report := types.AgentReport{AgentID: string(Q2P0), Layer: types.LayerP0, Quadrant: types.Q2}
	if len(hits) == 0 {
		report.Duration = time.Since(start)
		return report, nil
	}
	exclamations := strings.Count(in.Source.Text, "!")
	intensity := clamp100(25*float64(len(hits)) + 5*float64(exclamations))
	report.Signals = []types.Signal{newSignal(Q2P0, types.Q2, types.KindEmotion, intensity, hits, map[string]interface{}{"exclamations": exclamations})}
	report.Duration = time.Since(start)
	return report, nil
}

// trendHunter is Q3P0TrendHunter.
type trendHunter struct{ baseP0 }

func newTrendHunter() *trendHunter {
	return &trendHunter{baseP0{id: Q3P0, quadrant: types.Q3, config: map[string]float64{"recency_bonus": 15, "recency_window_hours": 48}}}
}

func (th *trendHunter) Invoke(ctx context.Context, in Input) (types.AgentReport, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return types.AgentReport{}, err
	}
	hits := countMatches(in.Source.Text, trendLexicon)
	report := types.AgentReport{AgentID: string(Q3P0), Layer: types.LayerP0, Quadrant: types.Q3}
	if len(hits) == 0 {
		report.Duration = time.Since(start)
		return report, nil
	}
	window := time.Duration(th.config["recency_window_hours"]) * time.Hour
	bonus := 0.0
	if !in.Source.PublishedAt.IsZero() && time.Since(in.Source.PublishedAt) <= window {
		bonus = th.config["recency_bonus"]
	}
	score := clamp100(20*float64(len(hits))+0.1*float64(len(in.Source.Text))) + bonus
	score = clamp100(score)
	report.Signals = []types.Signal{newSignal(Q3P0, types.Q3, types.KindTrend, score, hits, map[string]interface{}{"topic": hits})}
	report.Duration = time.Since(start)
	return report, nil
}

// sceneObserver is Q4P0SceneObserver.
type sceneObserver struct{ baseP0 }

func newSceneObserver() *sceneObserver {
	return &sceneObserver{baseP0{id: Q4P0, quadrant: types.Q4, config: map[string]float64{}}}
}

func (s *sceneObserver) Invoke(ctx context.Context, in Input) (types.AgentReport, error) {
	start := time.Now()
	if err := ctx.Err(); err != nil {
		return types.AgentReport{}, err
	}
	hits := countMatches(in.Source.Text, sceneLexicon)
	report := types.AgentReport{AgentID: string(Q4P0), Layer: types.LayerP0, Quadrant: types.Q4}
	if len(hits) == 0 {
		report.Duration = time.Since(start)
		return report, nil
	}
	weight, ok := sourceTypeWeight[string(in.Source.Type)]
	if !ok {
		weight = sourceTypeWeight["manual"]
	}
	score := clamp100((20*float64(len(hits)) + 0.1*float64(len(in.Source.Text))) * weight)
	report.Signals = []types.Signal{newSignal(Q4P0, types.Q4, types.KindScene, score, hits, map[string]interface{}{"source_type": in.Source.Type})}
	report.Duration = time.Since(start)
	return report, nil
}
