package lineage

// schema is the RelationalStore DDL for every table named in spec §6.
// data_lineage is read/written directly by this package's CRUD methods;
// cell_states, agent_states, meridian_metrics, and trigger_records are
// written through the Upsert*/Insert* methods in store.go, called respectively
// by the Scheduler, the AgentRegistry, and the lifecycle back-pressure
// monitor job — each owns the rows for its component but goes through
// this Store rather than holding its own database handle.
//
// Grounded on the teacher's internal/cloudsync/schema.go — a single
// embedded `CREATE TABLE IF NOT EXISTS` block with indexes, executed once
// at startup — adapted from Turso's HTTP pipeline API to local
// database/sql over modernc.org/sqlite.
const schema = `
CREATE TABLE IF NOT EXISTS data_lineage (
	data_id TEXT PRIMARY KEY,
	source TEXT NOT NULL,
	source_type TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	last_accessed INTEGER NOT NULL,
	current_tier TEXT NOT NULL,
	dependencies TEXT,
	consumers TEXT,
	quality_score REAL,
	schema_version INTEGER NOT NULL DEFAULT 1
);
CREATE INDEX IF NOT EXISTS idx_data_lineage_tier ON data_lineage(current_tier, last_accessed);

CREATE TABLE IF NOT EXISTS cell_states (
	skill_id TEXT PRIMARY KEY,
	state TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	last_run INTEGER,
	next_run INTEGER,
	run_count INTEGER NOT NULL DEFAULT 0,
	success_count INTEGER NOT NULL DEFAULT 0,
	fail_count INTEGER NOT NULL DEFAULT 0,
	avg_duration_ms REAL NOT NULL DEFAULT 0,
	last_error TEXT,
	last_error_at INTEGER,
	config TEXT,
	metadata TEXT
);

CREATE TABLE IF NOT EXISTS agent_states (
	agent_id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	status TEXT NOT NULL,
	energy_level REAL NOT NULL DEFAULT 1,
	stress_level REAL NOT NULL DEFAULT 0,
	tasks_completed INTEGER NOT NULL DEFAULT 0,
	tasks_failed INTEGER NOT NULL DEFAULT 0,
	avg_response_time_ms REAL NOT NULL DEFAULT 0,
	last_executed INTEGER,
	skill_states TEXT,
	created_at INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS meridian_metrics (
	meridian_id TEXT NOT NULL,
	timestamp INTEGER NOT NULL,
	packets_sent INTEGER NOT NULL DEFAULT 0,
	packets_received INTEGER NOT NULL DEFAULT 0,
	packets_dropped INTEGER NOT NULL DEFAULT 0,
	queue_size INTEGER NOT NULL DEFAULT 0,
	blockages INTEGER NOT NULL DEFAULT 0,
	throughput_per_sec REAL NOT NULL DEFAULT 0,
	latency_ms REAL NOT NULL DEFAULT 0,
	error_rate REAL NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_meridian_metrics_id_ts ON meridian_metrics(meridian_id, timestamp DESC);

CREATE TABLE IF NOT EXISTS trigger_records (
	id TEXT PRIMARY KEY,
	trigger_id TEXT NOT NULL,
	timestamp INTEGER NOT NULL,
	success INTEGER NOT NULL DEFAULT 0,
	data TEXT,
	error TEXT,
	processing_time_ms INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_trigger_records_id_ts ON trigger_records(trigger_id, timestamp DESC);
`
