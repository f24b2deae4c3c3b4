// Package lifecycle implements C9: the DataLifecycleAgent. Runs the daily
// four-pass tier-transition sweep, an hourly quality check over recently
// produced data, and back-pressure/error-rate/latency alerting over
// MeridianBus metrics.
//
// Grounded on the teacher's tiered internal/memory package (hot.go/
// warm.go/cold.go — an aging-and-eviction model with the same "demote
// after N without access" shape), generalized from agent-memory tiers to
// data-lineage tiers, and on the Python original's meridian_flow.py
// packet/metrics model for the alert thresholds.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/clawinfra/growthkernel/internal/lineage"
	"github.com/clawinfra/growthkernel/internal/types"
)

const (
	hotToWarmAge   = 7 * 24 * time.Hour
	warmToColdAge  = 30 * 24 * time.Hour
	coldToFrozen   = 365 * 24 * time.Hour
	retentionLimit = 7 * 365 * 24 * time.Hour

	qualityCheckWindow = 24 * time.Hour

	backpressureQueueThreshold = 1000
	errorRateThreshold         = 0.01
	latencyThresholdMs         = 1000.0
)

// Agent is the DataLifecycleAgent described in §4.9.
type Agent struct {
	store  *lineage.Store
	logger *slog.Logger
}

// New wires a DataLifecycleAgent to its LineageStore.
func New(store *lineage.Store, logger *slog.Logger) *Agent {
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{store: store, logger: logger.With("component", "lifecycle")}
}

// TierSweepResult summarizes one daily pass.
type TierSweepResult struct {
	PromotedToWarm  int
	PromotedToCold  int
	PromotedToFrozen int
	Purged          int64
	Errors          []error
}

// RunDailyPasses executes the four ordered tier-transition passes (§4.9).
// Each item transition is independent: a failure on one item is logged and
// the pass continues rather than aborting.
func (a *Agent) RunDailyPasses(ctx context.Context) TierSweepResult {
	var result TierSweepResult

	result.PromotedToWarm += a.transition(ctx, types.TierHot, hotToWarmAge, types.TierWarm, &result.Errors)
	result.PromotedToCold += a.transition(ctx, types.TierWarm, warmToColdAge, types.TierCold, &result.Errors)
	result.PromotedToFrozen += a.transition(ctx, types.TierCold, coldToFrozen, types.TierFrozen, &result.Errors)

	purged, err := a.store.CleanupExpired(ctx, retentionLimit)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Errorf("cleanup expired: %w", err))
	}
	result.Purged = purged

	a.logger.Info("daily lifecycle pass complete",
		"promoted_warm", result.PromotedToWarm,
		"promoted_cold", result.PromotedToCold,
		"promoted_frozen", result.PromotedToFrozen,
		"purged", result.Purged,
		"errors", len(result.Errors))
	return result
}

func (a *Agent) transition(ctx context.Context, from types.Tier, olderThan time.Duration, to types.Tier, errs *[]error) int {
	stale, err := a.store.FindStale(ctx, from, olderThan)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("find stale %s: %w", from, err))
		return 0
	}
	n := 0
	for _, d := range stale {
		if err := a.store.UpdateTier(ctx, d.DataID, to); err != nil {
			a.logger.Error("tier transition failed", "data_id", d.DataID, "from", from, "to", to, "error", err)
			*errs = append(*errs, err)
			continue
		}
		n++
	}
	return n
}

// QualityIssue is one flagged record from RunQualityCheck.
type QualityIssue struct {
	DataID     string
	Rule       string
	Repairable bool
}

// RunQualityCheck runs the hourly quality pass over items created within
// qualityCheckWindow (§4.9): presence of source, age-based timeliness,
// dependencies present. Repairable issues are flagged on the record via
// SetQualityScore; non-repairable issues surface as alerts.
func (a *Agent) RunQualityCheck(ctx context.Context) ([]QualityIssue, []types.Alert, error) {
	recent, err := a.store.ListSince(ctx, time.Now().Add(-qualityCheckWindow))
	if err != nil {
		return nil, nil, fmt.Errorf("list recent: %w", err)
	}

	var issues []QualityIssue
	var alerts []types.Alert
	for _, d := range recent {
		score := 1.0

		if d.Source == "" {
			issues = append(issues, QualityIssue{DataID: d.DataID, Rule: "missing_source", Repairable: false})
			alerts = append(alerts, newQualityAlert(d.DataID, "missing source for "+d.DataID))
			score -= 0.5
		}
		if len(d.Dependencies) == 0 {
			issues = append(issues, QualityIssue{DataID: d.DataID, Rule: "no_dependencies", Repairable: true})
			score -= 0.2
		}
		age := time.Since(d.CreatedAt)
		if age > qualityCheckWindow {
			issues = append(issues, QualityIssue{DataID: d.DataID, Rule: "stale_on_arrival", Repairable: true})
			score -= 0.2
		}
		if score < 0 {
			score = 0
		}
		if err := a.store.SetQualityScore(ctx, d.DataID, score); err != nil {
			a.logger.Error("set quality score failed", "data_id", d.DataID, "error", err)
		}
	}
	return issues, alerts, nil
}

func newQualityAlert(dataID, message string) types.Alert {
	return types.Alert{
		AlertID:   fmt.Sprintf("alert-quality-%s-%d", dataID, time.Now().UnixNano()),
		Kind:      types.AlertQuality,
		DataID:    dataID,
		Severity:  "warning",
		Message:   message,
		CreatedAt: time.Now(),
	}
}

// MonitorMeridian persists m to meridian_metrics and runs it through
// MonitorBackpressure, logging and returning any resulting alert. This is
// the call a registered Scheduler job makes on each tick for every
// statically-known meridian (§4.9's back-pressure monitoring pass).
func (a *Agent) MonitorMeridian(ctx context.Context, m types.MeridianMetrics) *types.Alert {
	if err := a.store.InsertMeridianMetrics(ctx, m); err != nil {
		a.logger.Warn("persist meridian_metrics failed", "meridian_id", m.MeridianID, "error", err)
	}
	alert := MonitorBackpressure(m)
	if alert != nil {
		a.logger.Warn("meridian backpressure alert", "meridian_id", alert.MeridianID, "kind", alert.Kind, "severity", alert.Severity, "message", alert.Message)
	}
	return alert
}

// MonitorBackpressure inspects one MeridianBus metrics sample and returns
// an Alert if the queue, error rate, or latency breaches the §4.9
// thresholds. Returns nil if all metrics are within bounds.
func MonitorBackpressure(m types.MeridianMetrics) *types.Alert {
	switch {
	case m.QueueSize > backpressureQueueThreshold:
		return &types.Alert{
			AlertID:   fmt.Sprintf("alert-backpressure-%s-%d", m.MeridianID, time.Now().UnixNano()),
			Kind:      types.AlertBackpressure,
			MeridianID: m.MeridianID,
			Severity:  "critical",
			Message:   fmt.Sprintf("meridian %s queue_size=%d exceeds threshold %d", m.MeridianID, m.QueueSize, backpressureQueueThreshold),
			CreatedAt: time.Now(),
		}
	case m.ErrorRate > errorRateThreshold:
		return &types.Alert{
			AlertID:   fmt.Sprintf("alert-error-rate-%s-%d", m.MeridianID, time.Now().UnixNano()),
			Kind:      types.AlertErrorRate,
			MeridianID: m.MeridianID,
			Severity:  "critical",
			Message:   fmt.Sprintf("meridian %s error_rate=%.4f exceeds threshold %.4f", m.MeridianID, m.ErrorRate, errorRateThreshold),
			CreatedAt: time.Now(),
		}
	case m.LatencyMs > latencyThresholdMs:
		return &types.Alert{
			AlertID:   fmt.Sprintf("alert-latency-%s-%d", m.MeridianID, time.Now().UnixNano()),
			Kind:      types.AlertLatency,
			MeridianID: m.MeridianID,
			Severity:  "warning",
			Message:   fmt.Sprintf("meridian %s latency_ms=%.2f exceeds threshold %.2f", m.MeridianID, m.LatencyMs, latencyThresholdMs),
			CreatedAt: time.Now(),
		}
	}
	return nil
}
