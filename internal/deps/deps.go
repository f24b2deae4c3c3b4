// Package deps builds the Deps aggregate: the explicit,
// constructor-wired replacement for global singletons, matching the
// Design Notes' "Deps aggregate ... RegisterAll(deps) instead of
// side-effect imports" directive.
//
// Grounded on the teacher's cmd/evoclaw/main.go App struct (an explicit,
// field-by-field aggregate of every subsystem, built by a single setup()
// function) — generalized from the teacher's channel/model/registry
// fields to this module's eleven kernel components.
package deps

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/clawinfra/growthkernel/internal/agents"
	"github.com/clawinfra/growthkernel/internal/config"
	"github.com/clawinfra/growthkernel/internal/evolution"
	"github.com/clawinfra/growthkernel/internal/feedback"
	"github.com/clawinfra/growthkernel/internal/lifecycle"
	"github.com/clawinfra/growthkernel/internal/lineage"
	"github.com/clawinfra/growthkernel/internal/meridian"
	"github.com/clawinfra/growthkernel/internal/orchestrator"
	"github.com/clawinfra/growthkernel/internal/scheduler"
	"github.com/clawinfra/growthkernel/internal/sharedmemory"
	"github.com/clawinfra/growthkernel/internal/synthesis"
	"github.com/clawinfra/growthkernel/internal/types"
)

// Deps aggregates every constructed kernel component. It replaces the
// package-level singletons a smaller program might reach for: every
// subsystem here is built once, in order, by RegisterAll and handed
// explicitly to whatever needs it (cmd/growthkernel's main, or a test).
type Deps struct {
	Config *config.Config
	Logger *slog.Logger

	DB *sql.DB

	SharedMemory *sharedmemory.SharedMemory
	Lineage      *lineage.Store
	Registry     *agents.Registry
	Synthesis    *synthesis.Engine
	Feedback     *feedback.Collector
	Learning     *feedback.Engine
	Evolution    *evolution.Engine
	Lifecycle    *lifecycle.Agent
	Scheduler    *scheduler.Scheduler
	Meridian     *meridian.Bus
	Orchestrator *orchestrator.Orchestrator
}

// RegisterAll constructs every kernel component in dependency order and
// returns the wired Deps aggregate. Two components start background
// goroutines at construction: SharedMemory (its expiry sweeper) and
// Meridian (its embedded NATS server and time_sync loop). Scheduling
// begins only when the caller invokes Deps.Scheduler.Start.
func RegisterAll(cfg *config.Config, logger *slog.Logger) (*Deps, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := lineage.OpenDB(cfg.Server.DataDir + "/lineage.db")
	if err != nil {
		return nil, fmt.Errorf("open lineage db: %w", err)
	}

	sm := sharedmemory.New(logger)
	lineageStore := lineage.New(db, logger)
	registry := agents.NewRegistry()
	registry.SetRecorder(lineageStore)
	synth := synthesis.New()
	learningEngine := feedback.NewEngine(sm, logger)
	collector := feedback.NewCollector(sm, learningEngine, logger)
	evo := evolution.New(sm, logger)
	lifecycleAgent := lifecycle.New(lineageStore, logger)
	sched := scheduler.New(logger)
	sched.SetRecorder(lineageStore)

	bus, err := meridian.New(logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("start meridian bus: %w", err)
	}

	orchCfg := orchestrator.Config{
		AgentsToRun:            cfg.Orchestrator.AgentsToRun,
		EnableCrossSynthesis:   cfg.Orchestrator.EnableCrossSynthesis,
		SignalTTLHours:         cfg.Orchestrator.SignalTTLHours,
		MinConfidenceThreshold: cfg.Orchestrator.MinConfidenceThreshold,
		EnableP1Trigger:        cfg.Orchestrator.EnableP1Trigger,
		EnableP2Trigger:        cfg.Orchestrator.EnableP2Trigger,
	}
	orch := orchestrator.New(registry, sm, lineageStore, synth, learningEngine, orchCfg, logger)

	if err := registerDefaultJobs(sched, orch, evo, collector, lifecycleAgent, bus, cfg); err != nil {
		bus.Close()
		db.Close()
		return nil, fmt.Errorf("register default jobs: %w", err)
	}

	return &Deps{
		Config:       cfg,
		Logger:       logger,
		DB:           db,
		SharedMemory: sm,
		Lineage:      lineageStore,
		Registry:     registry,
		Synthesis:    synth,
		Feedback:     collector,
		Learning:     learningEngine,
		Evolution:    evo,
		Lifecycle:    lifecycleAgent,
		Scheduler:    sched,
		Meridian:     bus,
		Orchestrator: orch,
	}, nil
}

// registerDefaultJobs installs the Scheduler jobs named in §4.10:
// p0_daily_sync (Orchestrator), p3_evolution (EvolutionEngine, weekly),
// data_lifecycle (DataLifecycleAgent's daily tier sweep, nightly),
// quality_check (DataLifecycleAgent's quality pass, hourly), and
// meridian_monitor (back-pressure/error-rate/latency alerting over the
// control and temporal meridians).
func registerDefaultJobs(sched *scheduler.Scheduler, orch *orchestrator.Orchestrator, evo *evolution.Engine, collector *feedback.Collector, lc *lifecycle.Agent, bus *meridian.Bus, cfg *config.Config) error {
	retry := time.Duration(cfg.Scheduler.RetryDelayMinutes) * time.Minute
	timeout := time.Duration(cfg.Scheduler.TimeoutMinutes) * time.Minute

	if err := sched.AddJob(scheduler.JobConfig{
		ID:         "p0_daily_sync",
		Cron:       cfg.Scheduler.CronExpression,
		MaxRetries: cfg.Scheduler.MaxRetries,
		RetryDelay: retry,
		Timeout:    timeout,
		Fn: func(ctx context.Context) error {
			// The scheduled fire has no single inbound text payload of its
			// own; source ingestion is the out-of-scope platform driver's
			// job (§6 Non-goals). The P0 agents therefore see an empty
			// source text and emit no new signals; P1 still reads the
			// recent raw signals already held in SharedMemory.
			_, err := orch.TriggerNow(ctx, agents.Source{Type: types.SourceEvent})
			return err
		},
	}); err != nil {
		return err
	}

	if err := sched.AddJob(scheduler.JobConfig{
		ID:         "p3_evolution",
		Cron:       "0 2 * * 0",
		MaxRetries: cfg.Scheduler.MaxRetries,
		RetryDelay: retry,
		Timeout:    timeout,
		Fn: func(ctx context.Context) error {
			for _, agentType := range evolution.AgentTypes() {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if _, err := evo.RunGeneration(agentType, collector.BaseSuccessRate(agentType)); err != nil {
					return fmt.Errorf("evolve %s: %w", agentType, err)
				}
			}
			return nil
		},
	}); err != nil {
		return err
	}

	if err := sched.AddJob(scheduler.JobConfig{
		ID:         "data_lifecycle",
		Cron:       "0 2 * * *",
		MaxRetries: cfg.Scheduler.MaxRetries,
		RetryDelay: retry,
		Timeout:    timeout,
		Fn: func(ctx context.Context) error {
			result := lc.RunDailyPasses(ctx)
			if len(result.Errors) > 0 {
				return result.Errors[0]
			}
			return nil
		},
	}); err != nil {
		return err
	}

	if err := sched.AddJob(scheduler.JobConfig{
		ID:         "quality_check",
		Cron:       "0 * * * *",
		MaxRetries: cfg.Scheduler.MaxRetries,
		RetryDelay: retry,
		Timeout:    timeout,
		Fn: func(ctx context.Context) error {
			_, _, err := lc.RunQualityCheck(ctx)
			return err
		},
	}); err != nil {
		return err
	}

	return sched.AddJob(scheduler.JobConfig{
		ID:         "meridian_monitor",
		Cron:       "*/5 * * * *",
		MaxRetries: cfg.Scheduler.MaxRetries,
		RetryDelay: retry,
		Timeout:    timeout,
		Fn: func(ctx context.Context) error {
			lc.MonitorMeridian(ctx, bus.Metrics(meridian.ControlSubject()))
			lc.MonitorMeridian(ctx, bus.Metrics(meridian.TemporalSubject()))
			return nil
		},
	})
}

// Close releases every resource RegisterAll opened: the SharedMemory
// sweeper, the meridian bus (embedded NATS server + client) and the
// lineage database handle.
func (d *Deps) Close() {
	if d.SharedMemory != nil {
		d.SharedMemory.Stop()
	}
	if d.Meridian != nil {
		d.Meridian.Close()
	}
	if d.DB != nil {
		d.DB.Close()
	}
}
