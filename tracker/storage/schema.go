package storage

// Logical schema, shared by both drivers. Measurements are keyed by the
// (component, benchmark, timestamp) triple; baselines carry at most one
// active row per (component, benchmark); alerts are append-only.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS measurements (
		component_name TEXT NOT NULL,
		benchmark_name TEXT NOT NULL,
		duration_ns BIGINT NOT NULL,
		memory_bytes BIGINT NOT NULL DEFAULT 0,
		cpu_percent DOUBLE PRECISION NOT NULL DEFAULT 0,
		timestamp TIMESTAMP NOT NULL,
		version_id TEXT,
		metadata_json TEXT,
		PRIMARY KEY (component_name, benchmark_name, timestamp)
	)`,
	`CREATE TABLE IF NOT EXISTS baselines (
		id INTEGER PRIMARY KEY,
		component_name TEXT NOT NULL,
		benchmark_name TEXT NOT NULL,
		duration_ns BIGINT NOT NULL,
		recorded_at TIMESTAMP NOT NULL,
		version_id TEXT,
		active BOOLEAN NOT NULL DEFAULT TRUE
	)`,
	`CREATE TABLE IF NOT EXISTS alerts (
		id TEXT PRIMARY KEY,
		component_name TEXT NOT NULL,
		benchmark_name TEXT NOT NULL,
		current_duration_ns BIGINT NOT NULL,
		baseline_duration_ns BIGINT NOT NULL,
		change_percent DOUBLE PRECISION NOT NULL,
		severity TEXT NOT NULL,
		timestamp TIMESTAMP NOT NULL,
		version_id TEXT,
		baseline_version_id TEXT,
		resolved BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE INDEX IF NOT EXISTS idx_measurements_component_time
		ON measurements (component_name, timestamp)`,
	`CREATE INDEX IF NOT EXISTS idx_measurements_version
		ON measurements (version_id)`,
	`CREATE INDEX IF NOT EXISTS idx_baselines_pair
		ON baselines (component_name, benchmark_name, active)`,
	`CREATE INDEX IF NOT EXISTS idx_alerts_unresolved
		ON alerts (resolved, timestamp)`,
}

// postgres needs a sequence-backed id for baselines; sqlite gets rowid
// aliasing through INTEGER PRIMARY KEY.
const postgresBaselinesTable = `CREATE TABLE IF NOT EXISTS baselines (
	id BIGSERIAL PRIMARY KEY,
	component_name TEXT NOT NULL,
	benchmark_name TEXT NOT NULL,
	duration_ns BIGINT NOT NULL,
	recorded_at TIMESTAMP NOT NULL,
	version_id TEXT,
	active BOOLEAN NOT NULL DEFAULT TRUE
)`
