// Package feedback implements C7: FeedbackCollector (classification and
// bounded storage of FeedbackRecord) and LearningEngine (batch-triggered
// insight generation that mutates LearningState).
//
// Grounded on the teacher's internal/evolution.Engine.Evaluate for the
// confidence-gated-mutation pattern, and internal/governance's small
// deterministic rule functions (vfm.go, adl.go) for how an insight becomes
// an applied state change.
package feedback

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/clawinfra/growthkernel/internal/sharedmemory"
	"github.com/clawinfra/growthkernel/internal/types"
)

const (
	feedbackTTL           = 30 * 24 * time.Hour
	learningStateTTL      = 30 * 24 * time.Hour
	batchTriggerSize      = 10
	boundedHistorySize    = 500
	insightConfidenceGate = 0.7
	weightClampMax        = 0.5
	// quadrantMargin is the Open Question resolution for "best
	// quadrant's rate exceeds worst by ≥ some margin": picked 0.2 (a
	// 20-point success-rate spread) — wide enough that noise in a small
	// feedback batch doesn't trigger a reweighting on every cycle.
	quadrantMargin        = 0.2
	engagementShareGate   = 0.3
	engagementRateGate    = 0.08
	engagementThresholdNm = "min_urgency_score"
)

// Insight is a recommendation LearningEngine produces from a feedback
// batch. Confidence >= insightConfidenceGate is applied automatically.
type Insight struct {
	Name       string
	Confidence float64
	Apply      func(*types.LearningState)
}

// Collector classifies and stores FeedbackRecords, and notifies the
// LearningEngine every batchTriggerSize new records.
type Collector struct {
	sm     *sharedmemory.SharedMemory
	engine *Engine
	logger *slog.Logger

	mu      sync.Mutex
	records []types.FeedbackRecord
	sinceLastBatch int
}

// NewCollector wires a Collector to its SharedMemory store and the
// LearningEngine it feeds.
func NewCollector(sm *sharedmemory.SharedMemory, engine *Engine, logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{sm: sm, engine: engine, logger: logger.With("component", "feedback")}
}

// Classify assigns a FeedbackKind per §4.7: conversion_rate/revenue →
// outcome; sentiment/comments → qualitative; else performance.
func Classify(metrics map[string]float64, hasSentimentOrComments bool) types.FeedbackKind {
	if _, ok := metrics["conversion_rate"]; ok {
		return types.FeedbackOutcome
	}
	if _, ok := metrics["revenue"]; ok {
		return types.FeedbackOutcome
	}
	if hasSentimentOrComments {
		return types.FeedbackQualitative
	}
	return types.FeedbackPerformance
}

// Record stores a feedback item, classifying it if Kind is unset, and
// triggers the LearningEngine every batchTriggerSize new records.
func (c *Collector) Record(rec types.FeedbackRecord, hasSentimentOrComments bool) []Insight {
	if rec.Kind == "" {
		rec.Kind = Classify(rec.Metrics, hasSentimentOrComments)
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now()
	}

	c.sm.Store(fmt.Sprintf("feedback:%s", rec.FeedbackID), rec, feedbackTTL)

	c.mu.Lock()
	c.records = append(c.records, rec)
	if len(c.records) > boundedHistorySize {
		c.records = c.records[len(c.records)-boundedHistorySize:]
	}
	c.sinceLastBatch++
	fire := c.sinceLastBatch >= batchTriggerSize
	if fire {
		c.sinceLastBatch = 0
	}
	snapshot := append([]types.FeedbackRecord(nil), c.records...)
	c.mu.Unlock()

	if !fire || c.engine == nil {
		return nil
	}
	return c.engine.Evaluate(snapshot)
}

// Records returns a copy of the bounded in-memory history.
func (c *Collector) Records() []types.FeedbackRecord {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.FeedbackRecord, len(c.records))
	copy(out, c.records)
	return out
}

// agentQuadrant maps an EvolutionEngine agent type to the quadrant whose
// feedback history reflects its performance.
var agentQuadrant = map[string]types.Quadrant{
	"pain_scanner":     types.Q1,
	"emotion_detector": types.Q2,
	"trend_hunter":     types.Q3,
	"scene_observer":   types.Q4,
}

// BaseSuccessRate returns the observed success rate (OutcomeValue > 100)
// over agentType's quadrant feedback history. Satisfies
// evolution.BaseSuccessRateProvider. Defaults to 0.5 when there is no
// history yet, so a fresh agent type neither starts doomed nor
// guaranteed to deploy.
func (c *Collector) BaseSuccessRate(agentType string) float64 {
	q, ok := agentQuadrant[agentType]
	if !ok {
		return 0.5
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	var success, total int
	for _, r := range c.records {
		if r.SourceQuadrant != q {
			continue
		}
		total++
		if r.OutcomeValue > 100 {
			success++
		}
	}
	if total == 0 {
		return 0.5
	}
	return float64(success) / float64(total)
}

// Engine is the LearningEngine: produces insights from a feedback batch
// and, for those at or above insightConfidenceGate, mutates and persists
// LearningState.
type Engine struct {
	sm     *sharedmemory.SharedMemory
	logger *slog.Logger

	mu    sync.Mutex
	state *types.LearningState
}

// NewEngine creates a LearningEngine seeded with the default LearningState.
func NewEngine(sm *sharedmemory.SharedMemory, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{sm: sm, logger: logger.With("component", "learning"), state: types.DefaultLearningState()}
}

// Current returns the live LearningState. Satisfies orchestrator.LearningProvider.
func (e *Engine) Current() *types.LearningState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// Evaluate computes the two canonical insights over the given batch,
// applies those at or above insightConfidenceGate, and returns all
// generated insights (applied or not) for observability.
func (e *Engine) Evaluate(batch []types.FeedbackRecord) []Insight {
	insights := []Insight{}
	if qp, ok := quadrantPerformanceInsight(batch); ok {
		insights = append(insights, qp)
	}
	if ep, ok := engagementPatternInsight(batch); ok {
		insights = append(insights, ep)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	applied := false
	for _, in := range insights {
		if in.Confidence >= insightConfidenceGate {
			in.Apply(e.state)
			applied = true
		}
	}
	if applied {
		e.state.Version++
		clampWeights(e.state)
		e.sm.Store("learning:current_state", *e.state, learningStateTTL)
		e.logger.Info("learning state updated", "version", e.state.Version)
	}
	return insights
}

// quadrantPerformanceInsight implements §4.7 rule 1.
func quadrantPerformanceInsight(batch []types.FeedbackRecord) (Insight, bool) {
	type stat struct{ success, total int }
	byQuadrant := map[types.Quadrant]*stat{}
	for _, r := range batch {
		s := byQuadrant[r.SourceQuadrant]
		if s == nil {
			s = &stat{}
			byQuadrant[r.SourceQuadrant] = s
		}
		s.total++
		if r.OutcomeValue > 100 {
			s.success++
		}
	}
	if len(byQuadrant) == 0 {
		return Insight{}, false
	}

	var bestQ types.Quadrant
	bestRate, worstRate := -1.0, 2.0
	for q, s := range byQuadrant {
		rate := float64(s.success) / float64(s.total)
		if rate > bestRate {
			bestRate, bestQ = rate, q
		}
		if rate < worstRate {
			worstRate = rate
		}
	}

	if bestRate <= 0.5 || bestRate-worstRate < quadrantMargin {
		return Insight{}, false
	}

	q := bestQ
	return Insight{
		Name:       "quadrant-performance",
		Confidence: bestRate,
		Apply: func(st *types.LearningState) {
			weights := st.P1Weights[q]
			if weights == nil {
				weights = map[string]float64{}
				st.P1Weights[q] = weights
			}
			for k, v := range weights {
				weights[k] = v * 1.2
			}
		},
	}, true
}

// engagementPatternInsight implements §4.7 rule 2.
func engagementPatternInsight(batch []types.FeedbackRecord) (Insight, bool) {
	if len(batch) == 0 {
		return Insight{}, false
	}
	engaged := 0
	for _, r := range batch {
		if r.Metrics["engagement_rate"] > engagementRateGate {
			engaged++
		}
	}
	share := float64(engaged) / float64(len(batch))
	if share <= engagementShareGate {
		return Insight{}, false
	}
	return Insight{
		Name:       "engagement-pattern",
		Confidence: insightConfidenceGate,
		Apply: func(st *types.LearningState) {
			st.P0Thresholds[engagementThresholdNm] = engagementRateGate
		},
	}, true
}

func clampWeights(st *types.LearningState) {
	for _, weights := range st.P1Weights {
		for k, v := range weights {
			if v > weightClampMax {
				weights[k] = weightClampMax
			}
			if v < 0 {
				weights[k] = 0
			}
		}
	}
}
