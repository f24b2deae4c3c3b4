// Package lineage implements C2: persistent CRUD over DataLineage records
// plus the two workhorse queries the DataLifecycleAgent needs
// (FindStale, UpdateTier) and the global retention sweep (CleanupExpired).
//
// Grounded on the teacher's internal/cloudsync (schema.go + turso.go
// batch-statement execution), adapted from Turso's HTTP pipeline API to
// local database/sql over modernc.org/sqlite (already a teacher
// dependency, pure Go, no cgo).
package lineage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"

	"github.com/clawinfra/growthkernel/internal/kerrors"
	"github.com/clawinfra/growthkernel/internal/types"
)

// OpenDB opens (creating if absent) the sqlite database at path and applies
// the RelationalStore schema. path may be ":memory:" for tests.
func OpenDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: serialize writers per process

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return db, nil
}

// Store is the LineageStore described in §4.2.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// New wraps an already-open, schema-migrated database handle.
func New(db *sql.DB, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{db: db, logger: logger.With("component", "lineage")}
}

// Create inserts a new DataLineage record transactionally.
func (s *Store) Create(ctx context.Context, d types.DataLineage) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	deps, _ := json.Marshal(d.Dependencies)
	consumers, _ := json.Marshal(d.Consumers)

	_, err = tx.ExecContext(ctx, `
INSERT INTO data_lineage
	(data_id, source, source_type, created_at, last_accessed, current_tier,
	 dependencies, consumers, quality_score, schema_version)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.DataID, d.Source, string(d.SourceType), d.CreatedAt.Unix(), d.LastAccessed.Unix(),
		string(d.CurrentTier), string(deps), string(consumers), d.QualityScore, d.SchemaVersion,
	)
	if err != nil {
		return fmt.Errorf("insert data_lineage: %w", err)
	}
	return tx.Commit()
}

// Get retrieves a record by id. Returns kerrors.ErrNotFound if absent.
func (s *Store) Get(ctx context.Context, dataID string) (types.DataLineage, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT data_id, source, source_type, created_at, last_accessed, current_tier,
       dependencies, consumers, quality_score, schema_version
FROM data_lineage WHERE data_id = ?`, dataID)

	d, err := scanLineage(row)
	if err == sql.ErrNoRows {
		return types.DataLineage{}, fmt.Errorf("data_id %q: %w", dataID, kerrors.ErrNotFound)
	}
	if err != nil {
		return types.DataLineage{}, fmt.Errorf("scan data_lineage: %w", err)
	}
	return d, nil
}

// UpdateTier transitions a record to newTier and refreshes last_accessed,
// transactionally.
func (s *Store) UpdateTier(ctx context.Context, dataID string, newTier types.Tier) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE data_lineage SET current_tier = ?, last_accessed = ? WHERE data_id = ?`,
		string(newTier), time.Now().Unix(), dataID)
	if err != nil {
		return fmt.Errorf("update tier: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("data_id %q: %w", dataID, kerrors.ErrNotFound)
	}
	return tx.Commit()
}

// RecordAccess bumps last_accessed to now, transactionally.
func (s *Store) RecordAccess(ctx context.Context, dataID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE data_lineage SET last_accessed = ? WHERE data_id = ?`,
		time.Now().Unix(), dataID)
	if err != nil {
		return fmt.Errorf("record access: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("data_id %q: %w", dataID, kerrors.ErrNotFound)
	}
	return tx.Commit()
}

// FindStale returns records currently in tier whose last_accessed is older
// than olderThan (an age, not an absolute time).
func (s *Store) FindStale(ctx context.Context, tier types.Tier, olderThan time.Duration) ([]types.DataLineage, error) {
	cutoff := time.Now().Add(-olderThan).Unix()
	rows, err := s.db.QueryContext(ctx, `
SELECT data_id, source, source_type, created_at, last_accessed, current_tier,
       dependencies, consumers, quality_score, schema_version
FROM data_lineage WHERE current_tier = ? AND last_accessed < ?
ORDER BY last_accessed ASC`, string(tier), cutoff)
	if err != nil {
		return nil, fmt.Errorf("query stale: %w", err)
	}
	defer rows.Close()

	var out []types.DataLineage
	for rows.Next() {
		d, err := scanLineage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stale row: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ListSince returns records created at or after since, newest first. Used
// by the quality-check pass to scope its review to recently produced data.
func (s *Store) ListSince(ctx context.Context, since time.Time) ([]types.DataLineage, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT data_id, source, source_type, created_at, last_accessed, current_tier,
       dependencies, consumers, quality_score, schema_version
FROM data_lineage WHERE created_at >= ?
ORDER BY created_at DESC`, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	defer rows.Close()

	var out []types.DataLineage
	for rows.Next() {
		d, err := scanLineage(rows)
		if err != nil {
			return nil, fmt.Errorf("scan recent row: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// SetQualityScore persists a computed quality_score for dataID.
func (s *Store) SetQualityScore(ctx context.Context, dataID string, score float64) error {
	res, err := s.db.ExecContext(ctx, `UPDATE data_lineage SET quality_score = ? WHERE data_id = ?`, score, dataID)
	if err != nil {
		return fmt.Errorf("set quality score: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("data_id %q: %w", dataID, kerrors.ErrNotFound)
	}
	return nil
}

// CleanupExpired hard-deletes FROZEN records older than retention. Aged
// reads during cleanup are tolerated — the delete is idempotent on retry.
func (s *Store) CleanupExpired(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).Unix()
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM data_lineage WHERE current_tier = ? AND last_accessed < ?`,
		string(types.TierFrozen), cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup expired: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// UpsertCellState writes or replaces one schedulable unit's run/health
// bookkeeping row in cell_states (§6). Called by the Scheduler after every
// job run.
func (s *Store) UpsertCellState(ctx context.Context, cs types.CellState) error {
	var lastRun, nextRun, lastErrorAt sql.NullInt64
	if cs.LastRun != nil {
		lastRun = sql.NullInt64{Int64: cs.LastRun.Unix(), Valid: true}
	}
	if cs.NextRun != nil {
		nextRun = sql.NullInt64{Int64: cs.NextRun.Unix(), Valid: true}
	}
	if cs.LastErrorAt != nil {
		lastErrorAt = sql.NullInt64{Int64: cs.LastErrorAt.Unix(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO cell_states
	(skill_id, state, created_at, updated_at, last_run, next_run,
	 run_count, success_count, fail_count, avg_duration_ms, last_error, last_error_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(skill_id) DO UPDATE SET
	state = excluded.state,
	updated_at = excluded.updated_at,
	last_run = excluded.last_run,
	next_run = excluded.next_run,
	run_count = excluded.run_count,
	success_count = excluded.success_count,
	fail_count = excluded.fail_count,
	avg_duration_ms = excluded.avg_duration_ms,
	last_error = excluded.last_error,
	last_error_at = excluded.last_error_at`,
		cs.SkillID, cs.State, cs.CreatedAt.Unix(), cs.UpdatedAt.Unix(), lastRun, nextRun,
		cs.RunCount, cs.SuccessCount, cs.FailCount, cs.AvgDurationMs, cs.LastError, lastErrorAt,
	)
	if err != nil {
		return fmt.Errorf("upsert cell_states: %w", err)
	}
	return nil
}

// UpsertAgentState writes or replaces one registered agent's
// energy/stress/performance snapshot in agent_states (§6). Called by the
// AgentRegistry after every Invoke.
func (s *Store) UpsertAgentState(ctx context.Context, as types.AgentStatusRecord) error {
	var lastExecuted sql.NullInt64
	if as.LastExecuted != nil {
		lastExecuted = sql.NullInt64{Int64: as.LastExecuted.Unix(), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO agent_states
	(agent_id, name, status, energy_level, stress_level, tasks_completed,
	 tasks_failed, avg_response_time_ms, last_executed, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(agent_id) DO UPDATE SET
	name = excluded.name,
	status = excluded.status,
	energy_level = excluded.energy_level,
	stress_level = excluded.stress_level,
	tasks_completed = excluded.tasks_completed,
	tasks_failed = excluded.tasks_failed,
	avg_response_time_ms = excluded.avg_response_time_ms,
	last_executed = excluded.last_executed,
	updated_at = excluded.updated_at`,
		as.AgentID, as.Name, as.Status, as.EnergyLevel, as.StressLevel, as.TasksCompleted,
		as.TasksFailed, as.AvgResponseTimeMs, lastExecuted, as.CreatedAt.Unix(), as.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert agent_states: %w", err)
	}
	return nil
}

// InsertTriggerRecord appends one scheduled execution to trigger_records
// (§6). Called by the Scheduler alongside its in-memory bounded history.
func (s *Store) InsertTriggerRecord(ctx context.Context, tr types.TriggerRecord) error {
	var ts int64
	if tr.CompletedAt != nil {
		ts = tr.CompletedAt.Unix()
	} else {
		ts = tr.ScheduledTime.Unix()
	}
	var durationMs int64
	if tr.StartedAt != nil && tr.CompletedAt != nil {
		durationMs = tr.CompletedAt.Sub(*tr.StartedAt).Milliseconds()
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO trigger_records (id, trigger_id, timestamp, success, data, error, processing_time_ms)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tr.ExecutionID, tr.TriggerID, ts, tr.Status == types.TriggerSuccess, tr.OutcomeSummary, tr.Error, durationMs,
	)
	if err != nil {
		return fmt.Errorf("insert trigger_records: %w", err)
	}
	return nil
}

// InsertMeridianMetrics appends one MeridianBus metrics sample to
// meridian_metrics (§6). Called by the lifecycle back-pressure monitor
// job.
func (s *Store) InsertMeridianMetrics(ctx context.Context, m types.MeridianMetrics) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO meridian_metrics
	(meridian_id, timestamp, packets_sent, packets_received, packets_dropped,
	 queue_size, blockages, throughput_per_sec, latency_ms, error_rate)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.MeridianID, m.Timestamp.Unix(), m.PacketsSent, m.PacketsReceived, m.PacketsDropped,
		m.QueueSize, m.Blockages, m.ThroughputPerSec, m.LatencyMs, m.ErrorRate,
	)
	if err != nil {
		return fmt.Errorf("insert meridian_metrics: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanLineage(row rowScanner) (types.DataLineage, error) {
	var d types.DataLineage
	var sourceType, tier, deps, consumers string
	var createdAt, lastAccessed int64
	var qualityScore sql.NullFloat64

	if err := row.Scan(&d.DataID, &d.Source, &sourceType, &createdAt, &lastAccessed, &tier,
		&deps, &consumers, &qualityScore, &d.SchemaVersion); err != nil {
		return types.DataLineage{}, err
	}

	d.SourceType = types.SourceType(sourceType)
	d.CurrentTier = types.Tier(tier)
	d.CreatedAt = time.Unix(createdAt, 0).UTC()
	d.LastAccessed = time.Unix(lastAccessed, 0).UTC()
	if qualityScore.Valid {
		v := qualityScore.Float64
		d.QualityScore = &v
	}
	if deps != "" {
		_ = json.Unmarshal([]byte(deps), &d.Dependencies)
	}
	if consumers != "" {
		_ = json.Unmarshal([]byte(consumers), &d.Consumers)
	}
	return d, nil
}
