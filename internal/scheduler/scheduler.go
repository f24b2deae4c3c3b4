// Package scheduler implements C10: cron/interval-driven job execution
// with coalesced catch-up, max-concurrent-instances=1, a fixed retry
// ladder, per-job timeouts, bounded history, and health classification.
//
// Grounded directly on the teacher's internal/scheduler package (Job,
// ScheduleConfig, JobRunner), generalized from the teacher's 4-kind action
// dispatch (shell/agent/mqtt/http) to this module's fixed job set invoking
// injected callables, and extended with the retry/health machinery the
// teacher's simpler runner does not have.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/clawinfra/growthkernel/internal/kerrors"
	"github.com/clawinfra/growthkernel/internal/types"
)

const (
	defaultMaxRetries  = 3
	defaultRetryDelay  = 30 * time.Minute
	defaultJobTimeout  = 30 * time.Minute
	historyLimit       = 100
	healthBuffer       = 2 * time.Hour
)

// fiveFieldParser accepts exactly minute/hour/dom/month/dow — no optional
// seconds field. 6-field cron strings fail to parse (the Open Question
// resolution in §9).
var fiveFieldParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// JobFunc is the injected callable a job invokes on each fire or manual
// trigger (the spec's JobFactory).
type JobFunc func(ctx context.Context) error

// Health is a job's liveness classification (§4.10).
type Health string

const (
	HealthHealthy Health = "healthy"
	HealthWarning Health = "warning"
	HealthCritical Health = "critical"
	HealthStopped Health = "stopped"
	HealthUnknown Health = "unknown"
)

// JobConfig describes one scheduled job at registration time.
type JobConfig struct {
	ID         string
	Cron       string
	Timeout    time.Duration
	MaxRetries int
	RetryDelay time.Duration
	Fn         JobFunc
}

func (c JobConfig) withDefaults() JobConfig {
	if c.Timeout <= 0 {
		c.Timeout = defaultJobTimeout
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = defaultRetryDelay
	}
	return c
}

// Validate parses Cron with the 5-field-only parser and rejects anything
// else, including 6-field expressions with a seconds field.
func (c JobConfig) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("job id required: %w", kerrors.ErrInvalid)
	}
	if c.Fn == nil {
		return fmt.Errorf("job %s: fn required: %w", c.ID, kerrors.ErrInvalid)
	}
	if _, err := fiveFieldParser.Parse(c.Cron); err != nil {
		return fmt.Errorf("job %s: invalid 5-field cron %q: %w", c.ID, c.Cron, kerrors.ErrInvalid)
	}
	return nil
}

type job struct {
	cfg      JobConfig
	schedule cron.Schedule
	entryID  cron.EntryID

	mu            sync.Mutex
	running       bool
	lastSuccess   *time.Time
	nextExpected  time.Time
	history       []types.TriggerRecord
	createdAt     time.Time
	runCount      int
	successCount  int
	failCount     int
	totalDuration time.Duration
	lastError     string
	lastErrorAt   *time.Time
}

// Recorder persists a job's run bookkeeping to the cell_states and
// trigger_records tables (§6). Scheduler works without one (tests, or a
// process that doesn't want the relational audit trail); deps.RegisterAll
// always supplies the shared LineageStore, which implements this
// interface structurally.
type Recorder interface {
	UpsertCellState(ctx context.Context, cs types.CellState) error
	InsertTriggerRecord(ctx context.Context, tr types.TriggerRecord) error
}

// Scheduler is the C10 job runner.
type Scheduler struct {
	cron     *cron.Cron
	logger   *slog.Logger
	recorder Recorder

	mu      sync.Mutex
	running bool
	jobs    map[string]*job
}

// New constructs a Scheduler with no jobs registered yet.
func New(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:   cron.New(cron.WithParser(fiveFieldParser)),
		logger: logger.With("component", "scheduler"),
		jobs:   make(map[string]*job),
	}
}

// SetRecorder wires a Recorder for cell_states/trigger_records persistence.
// Must be called before Start to cover catch-up runs.
func (s *Scheduler) SetRecorder(r Recorder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recorder = r
}

// AddJob validates and registers a job. It does not start firing until
// Start is called.
func (s *Scheduler) AddJob(cfg JobConfig) error {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	schedule, err := fiveFieldParser.Parse(cfg.Cron)
	if err != nil {
		return fmt.Errorf("job %s: %w", cfg.ID, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	j := &job{cfg: cfg, schedule: schedule, nextExpected: schedule.Next(time.Now()), createdAt: time.Now()}
	entryID := s.cron.Schedule(schedule, cron.FuncJob(func() { s.fire(j) }))
	j.entryID = entryID
	s.jobs[cfg.ID] = j
	return nil
}

// UpdateSchedule reinstalls a job's cron expression without dropping its
// history.
func (s *Scheduler) UpdateSchedule(jobID, newCron string) error {
	s.mu.Lock()
	j, ok := s.jobs[jobID]
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("job %s: %w", jobID, kerrors.ErrNotFound)
	}
	schedule, err := fiveFieldParser.Parse(newCron)
	if err != nil {
		return fmt.Errorf("job %s: invalid 5-field cron %q: %w", jobID, newCron, kerrors.ErrInvalid)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.cron.Remove(j.entryID)
	j.cfg.Cron = newCron
	j.schedule = schedule
	j.nextExpected = schedule.Next(time.Now())
	j.entryID = s.cron.Schedule(schedule, cron.FuncJob(func() { s.fire(j) }))
	return nil
}

// Start begins firing registered jobs and performs one coalesced catch-up
// run per job whose next expected fire has already passed.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.running = true
	jobs := make([]*job, 0, len(s.jobs))
	for _, j := range s.jobs {
		jobs = append(jobs, j)
	}
	s.mu.Unlock()

	s.cron.Start()
	for _, j := range jobs {
		s.catchUp(ctx, j, time.Now())
	}
}

// Stop halts all future fires. In-flight runs are not interrupted.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
	<-s.cron.Stop().Done()
}

// catchUp runs a job once, synchronously, if asOf is past its next
// expected fire — coalescing any number of missed fires into a single
// run, then advancing nextExpected past asOf.
func (s *Scheduler) catchUp(ctx context.Context, j *job, asOf time.Time) {
	j.mu.Lock()
	missed := asOf.After(j.nextExpected)
	j.mu.Unlock()
	if !missed {
		return
	}
	s.logger.Info("coalescing missed fire", "job_id", j.cfg.ID)
	s.runWithRetry(ctx, j)

	j.mu.Lock()
	next := j.nextExpected
	for !next.After(asOf) {
		next = j.schedule.Next(next)
	}
	j.nextExpected = next
	j.mu.Unlock()
}

func (s *Scheduler) fire(j *job) {
	j.mu.Lock()
	j.nextExpected = j.schedule.Next(time.Now())
	j.mu.Unlock()
	s.runWithRetry(context.Background(), j)
}

// TriggerNow runs jobID immediately, outside its schedule, subject to the
// same max-concurrent-instances=1 and retry-ladder rules.
func (s *Scheduler) TriggerNow(ctx context.Context, jobID string) (string, error) {
	s.mu.Lock()
	j, ok := s.jobs[jobID]
	s.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("job %s: %w", jobID, kerrors.ErrNotFound)
	}
	return s.runWithRetry(ctx, j), nil
}

// runWithRetry executes one run of j, retrying on failure up to
// cfg.MaxRetries with cfg.RetryDelay between attempts, bounded by
// cfg.Timeout per attempt. Returns the execution_id.
func (s *Scheduler) runWithRetry(ctx context.Context, j *job) string {
	j.mu.Lock()
	if j.running {
		j.mu.Unlock()
		s.logger.Warn("job already running, skipping overlapping fire", "job_id", j.cfg.ID)
		return ""
	}
	j.running = true
	j.mu.Unlock()
	defer func() {
		j.mu.Lock()
		j.running = false
		j.mu.Unlock()
	}()

	executionID := uuid.NewString()
	scheduledTime := time.Now()
	record := types.TriggerRecord{
		ExecutionID:   executionID,
		TriggerID:     j.cfg.ID,
		ScheduledTime: scheduledTime,
		Status:        types.TriggerRunning,
	}
	start := time.Now()
	record.StartedAt = &start

	var lastErr error
	for attempt := 0; attempt <= j.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			record.Status = types.TriggerRetrying
			record.RetryCount = attempt
			s.logger.Warn("retrying job", "job_id", j.cfg.ID, "attempt", attempt)
			time.Sleep(j.cfg.RetryDelay)
		}

		attemptCtx, cancel := context.WithTimeout(ctx, j.cfg.Timeout)
		lastErr = j.cfg.Fn(attemptCtx)
		cancel()
		if lastErr == nil {
			break
		}
		if attemptCtx.Err() != nil {
			lastErr = fmt.Errorf("%w: %v", kerrors.ErrTimeout, lastErr)
		}
	}

	completed := time.Now()
	record.CompletedAt = &completed
	duration := completed.Sub(start)

	j.mu.Lock()
	j.runCount++
	j.totalDuration += duration
	if lastErr != nil {
		record.Status = types.TriggerFailed
		record.Error = lastErr.Error()
		j.failCount++
		j.lastError = lastErr.Error()
		j.lastErrorAt = &completed
	} else {
		record.Status = types.TriggerSuccess
		j.successCount++
		j.lastSuccess = &completed
	}
	j.history = append(j.history, record)
	if len(j.history) > historyLimit {
		j.history = j.history[len(j.history)-historyLimit:]
	}
	snapshot := j.cellStateLocked()
	j.mu.Unlock()

	if lastErr != nil {
		s.logger.Error("job failed after retries", "job_id", j.cfg.ID, "error", lastErr)
	}

	s.persistRun(j.cfg.ID, snapshot, record)
	return executionID
}

// cellStateLocked builds the current CellState snapshot. Callers must
// hold j.mu.
func (j *job) cellStateLocked() types.CellState {
	state := "ok"
	if j.lastError != "" && (j.lastSuccess == nil || (j.lastErrorAt != nil && j.lastErrorAt.After(*j.lastSuccess))) {
		state = "error"
	}
	var avgMs float64
	if j.runCount > 0 {
		avgMs = float64(j.totalDuration.Milliseconds()) / float64(j.runCount)
	}
	nextRun := j.nextExpected
	return types.CellState{
		SkillID:       j.cfg.ID,
		State:         state,
		CreatedAt:     j.createdAt,
		UpdatedAt:     time.Now(),
		LastRun:       j.lastSuccess,
		NextRun:       &nextRun,
		RunCount:      j.runCount,
		SuccessCount:  j.successCount,
		FailCount:     j.failCount,
		AvgDurationMs: avgMs,
		LastError:     j.lastError,
		LastErrorAt:   j.lastErrorAt,
	}
}

// persistRun writes the job's updated CellState and the run's
// TriggerRecord through the Recorder, if one is wired. Failures are
// logged, not fatal — the in-memory history (j.history) remains the
// source of truth for JobHealth and History regardless.
func (s *Scheduler) persistRun(jobID string, cs types.CellState, record types.TriggerRecord) {
	s.mu.Lock()
	recorder := s.recorder
	s.mu.Unlock()
	if recorder == nil {
		return
	}
	ctx := context.Background()
	if err := recorder.UpsertCellState(ctx, cs); err != nil {
		s.logger.Warn("persist cell_states failed", "job_id", jobID, "error", err)
	}
	if err := recorder.InsertTriggerRecord(ctx, record); err != nil {
		s.logger.Warn("persist trigger_records failed", "job_id", jobID, "error", err)
	}
}

// History returns the bounded run history for jobID, oldest first.
func (s *Scheduler) History(jobID string) ([]types.TriggerRecord, error) {
	s.mu.Lock()
	j, ok := s.jobs[jobID]
	s.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("job %s: %w", jobID, kerrors.ErrNotFound)
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]types.TriggerRecord, len(j.history))
	copy(out, j.history)
	return out, nil
}

// JobHealth classifies jobID per §4.10's health rules.
func (s *Scheduler) JobHealth(jobID string) (Health, error) {
	s.mu.Lock()
	running := s.running
	j, ok := s.jobs[jobID]
	s.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("job %s: %w", jobID, kerrors.ErrNotFound)
	}
	if !running {
		return HealthStopped, nil
	}

	j.mu.Lock()
	lastSuccess := j.lastSuccess
	schedule := j.schedule
	j.mu.Unlock()
	if lastSuccess == nil {
		return HealthUnknown, nil
	}

	expectedInterval := schedule.Next(*lastSuccess).Sub(*lastSuccess)
	healthyWindow := expectedInterval + healthBuffer
	elapsed := time.Since(*lastSuccess)

	switch {
	case elapsed <= healthyWindow:
		return HealthHealthy, nil
	case elapsed <= 2*healthyWindow:
		return HealthWarning, nil
	default:
		return HealthCritical, nil
	}
}
