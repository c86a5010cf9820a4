package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/bench-track/bench-track/tracker/config"
	"github.com/bench-track/bench-track/tracker/types"
)

// Store is the durable mapping from (component, benchmark, timestamp) to
// measurements, from (component, benchmark) to at most one active baseline,
// and an append-only alert log. It is an explicit handle passed to each
// analyzer; every operation acquires and releases its own statements and
// transactions within the call.
type Store struct {
	db     *sql.DB
	driver string
	log    logrus.FieldLogger
}

// Open connects to the configured database and ensures the schema exists.
// For the sqlite3 driver the parent directory of the database file is
// created on demand.
func Open(cfg *config.DatabaseConfig, log logrus.FieldLogger) (*Store, error) {
	if cfg.Driver == "sqlite3" && cfg.Path != "" {
		if dir := filepath.Dir(cfg.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, &types.StorageError{Op: "open", Err: err}
			}
		}
	}

	db, err := sql.Open(cfg.Driver, cfg.ConnectionString())
	if err != nil {
		return nil, &types.StorageError{Op: "open", Err: err}
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, &types.StorageError{Op: "ping", Err: err}
	}

	s := &Store{
		db:     db,
		driver: cfg.Driver,
		log:    log.WithField("component", "store"),
	}

	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	s.log.WithField("driver", cfg.Driver).Debug("Store opened")
	return s, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the raw handle for the API server's health probe.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) initSchema(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if s.driver == "postgres" && strings.Contains(stmt, "CREATE TABLE IF NOT EXISTS baselines") {
			stmt = postgresBaselinesTable
		}
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return &types.StorageError{Op: "init schema", Err: err}
		}
	}
	return nil
}

// rebind converts ?-style placeholders to the $n form lib/pq expects.
// Queries in this package are written with ? and rebound per driver.
func (s *Store) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, ch := range query {
		if ch == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(ch)
	}
	return b.String()
}

// InsertRecords upserts each record by its (component, benchmark, timestamp)
// identity. Invalid records are skipped and counted; re-inserting an existing
// triple replaces the stored fields, so repeated imports of overlapping data
// are safe.
func (s *Store) InsertRecords(ctx context.Context, records []types.Record) (accepted, rejected int, err error) {
	query := s.rebind(`
		INSERT INTO measurements (
			component_name, benchmark_name, duration_ns, memory_bytes,
			cpu_percent, timestamp, version_id, metadata_json
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (component_name, benchmark_name, timestamp) DO UPDATE SET
			duration_ns = excluded.duration_ns,
			memory_bytes = excluded.memory_bytes,
			cpu_percent = excluded.cpu_percent,
			version_id = excluded.version_id,
			metadata_json = excluded.metadata_json`)

	stmt, err := s.db.PrepareContext(ctx, query)
	if err != nil {
		return 0, 0, &types.StorageError{Op: "prepare insert", Err: err}
	}
	defer stmt.Close()

	for i := range records {
		r := &records[i]
		if verr := r.Validate(); verr != nil {
			rejected++
			s.log.WithError(verr).WithFields(logrus.Fields{
				"component": r.ComponentName,
				"benchmark": r.BenchmarkName,
			}).Warn("Rejected invalid record")
			continue
		}

		var metadataJSON any
		if len(r.Metadata) > 0 {
			data, merr := json.Marshal(r.Metadata)
			if merr != nil {
				rejected++
				continue
			}
			metadataJSON = string(data)
		}

		_, err = stmt.ExecContext(ctx,
			r.ComponentName, r.BenchmarkName, r.DurationNs, r.MemoryBytes,
			r.CPUPercent, r.Timestamp.UTC(), nullable(r.VersionID), metadataJSON,
		)
		if err != nil {
			return accepted, rejected, &types.StorageError{Op: "insert record", Err: err}
		}
		accepted++
	}

	s.log.WithFields(logrus.Fields{
		"accepted": accepted,
		"rejected": rejected,
	}).Debug("Inserted records")
	return accepted, rejected, nil
}

// ActiveBaseline returns the unique active baseline for the pair, or a
// NotFoundError when none has been set.
func (s *Store) ActiveBaseline(ctx context.Context, component, benchmark string) (*types.Baseline, error) {
	query := s.rebind(`
		SELECT component_name, benchmark_name, duration_ns, recorded_at, version_id, active
		FROM baselines
		WHERE component_name = ? AND benchmark_name = ? AND active
		ORDER BY recorded_at DESC LIMIT 1`)

	var b types.Baseline
	var versionID sql.NullString
	err := s.db.QueryRowContext(ctx, query, component, benchmark).Scan(
		&b.ComponentName, &b.BenchmarkName, &b.DurationNs, &b.RecordedAt, &versionID, &b.Active,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &types.NotFoundError{Kind: "baseline", Key: component + "/" + benchmark}
	}
	if err != nil {
		return nil, &types.StorageError{Op: "get baseline", Err: err}
	}
	b.VersionID = versionID.String
	return &b, nil
}

// SetBaseline deactivates any active baselines for the pair and inserts the
// new active one inside a single transaction, so a reader never observes zero
// or two active baselines.
func (s *Store) SetBaseline(ctx context.Context, component, benchmark string, durationNs int64, versionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &types.StorageError{Op: "begin baseline tx", Err: err}
	}
	defer tx.Rollback()

	deactivate := s.rebind(`
		UPDATE baselines SET active = FALSE
		WHERE component_name = ? AND benchmark_name = ? AND active`)
	if _, err = tx.ExecContext(ctx, deactivate, component, benchmark); err != nil {
		return &types.StorageError{Op: "deactivate baseline", Err: err}
	}

	insert := s.rebind(`
		INSERT INTO baselines (component_name, benchmark_name, duration_ns, recorded_at, version_id, active)
		VALUES (?, ?, ?, ?, ?, TRUE)`)
	if _, err = tx.ExecContext(ctx, insert, component, benchmark, durationNs, time.Now().UTC(), nullable(versionID)); err != nil {
		return &types.StorageError{Op: "insert baseline", Err: err}
	}

	if err = tx.Commit(); err != nil {
		return &types.StorageError{Op: "commit baseline", Err: err}
	}

	s.log.WithFields(logrus.Fields{
		"component":   component,
		"benchmark":   benchmark,
		"duration_ns": durationNs,
		"version":     versionID,
	}).Info("Baseline set")
	return nil
}

// AppendAlert writes one regression alert to the append-only alert log.
func (s *Store) AppendAlert(ctx context.Context, alert *types.RegressionAlert) error {
	query := s.rebind(`
		INSERT INTO alerts (
			id, component_name, benchmark_name, current_duration_ns,
			baseline_duration_ns, change_percent, severity, timestamp,
			version_id, baseline_version_id, resolved
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := s.db.ExecContext(ctx, query,
		alert.ID, alert.ComponentName, alert.BenchmarkName,
		alert.CurrentDurationNs, alert.BaselineDurationNs, alert.ChangePercent,
		string(alert.Severity), alert.Timestamp.UTC(),
		nullable(alert.VersionID), nullable(alert.BaselineVersionID), alert.Resolved,
	)
	if err != nil {
		return &types.StorageError{Op: "append alert", Err: err}
	}
	return nil
}

// ListAlerts returns alerts newest first, optionally only unresolved ones.
// A limit of 0 means no limit.
func (s *Store) ListAlerts(ctx context.Context, onlyUnresolved bool, limit int) ([]*types.RegressionAlert, error) {
	query := `
		SELECT id, component_name, benchmark_name, current_duration_ns,
			baseline_duration_ns, change_percent, severity, timestamp,
			version_id, baseline_version_id, resolved
		FROM alerts`
	if onlyUnresolved {
		query += ` WHERE NOT resolved`
	}
	query += ` ORDER BY timestamp DESC`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, &types.StorageError{Op: "list alerts", Err: err}
	}
	defer rows.Close()

	var alerts []*types.RegressionAlert
	for rows.Next() {
		a := &types.RegressionAlert{}
		var severity string
		var versionID, baselineVersionID sql.NullString
		err = rows.Scan(
			&a.ID, &a.ComponentName, &a.BenchmarkName, &a.CurrentDurationNs,
			&a.BaselineDurationNs, &a.ChangePercent, &severity, &a.Timestamp,
			&versionID, &baselineVersionID, &a.Resolved,
		)
		if err != nil {
			return nil, &types.StorageError{Op: "scan alert", Err: err}
		}
		a.Severity = types.Severity(severity)
		a.VersionID = versionID.String
		a.BaselineVersionID = baselineVersionID.String
		alerts = append(alerts, a)
	}
	if err = rows.Err(); err != nil {
		return nil, &types.StorageError{Op: "list alerts", Err: err}
	}
	return alerts, nil
}

// ResolveAlert flips the resolved flag on one alert. Alerts are otherwise
// immutable once written.
func (s *Store) ResolveAlert(ctx context.Context, id string) error {
	query := s.rebind(`UPDATE alerts SET resolved = TRUE WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, query, id)
	if err != nil {
		return &types.StorageError{Op: "resolve alert", Err: err}
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &types.NotFoundError{Kind: "alert", Key: id}
	}
	return nil
}

// QueryRecords returns one component's measurements within [since, until],
// ordered by timestamp ascending. Zero bounds are open.
func (s *Store) QueryRecords(ctx context.Context, component string, since, until time.Time) ([]types.Record, error) {
	query := `
		SELECT component_name, benchmark_name, duration_ns, memory_bytes,
			cpu_percent, timestamp, version_id, metadata_json
		FROM measurements WHERE component_name = ?`
	args := []any{component}

	if !since.IsZero() {
		query += ` AND timestamp >= ?`
		args = append(args, since.UTC())
	}
	if !until.IsZero() {
		query += ` AND timestamp <= ?`
		args = append(args, until.UTC())
	}
	query += ` ORDER BY timestamp ASC`

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, &types.StorageError{Op: "query records", Err: err}
	}
	defer rows.Close()

	var records []types.Record
	for rows.Next() {
		var r types.Record
		var versionID, metadataJSON sql.NullString
		err = rows.Scan(
			&r.ComponentName, &r.BenchmarkName, &r.DurationNs, &r.MemoryBytes,
			&r.CPUPercent, &r.Timestamp, &versionID, &metadataJSON,
		)
		if err != nil {
			return nil, &types.StorageError{Op: "scan record", Err: err}
		}
		r.VersionID = versionID.String
		if metadataJSON.Valid && metadataJSON.String != "" {
			json.Unmarshal([]byte(metadataJSON.String), &r.Metadata)
		}
		records = append(records, r)
	}
	if err = rows.Err(); err != nil {
		return nil, &types.StorageError{Op: "query records", Err: err}
	}
	return records, nil
}

// VersionMeans returns the mean duration per (component, benchmark) pair for
// all measurements tagged with the given version identifier.
func (s *Store) VersionMeans(ctx context.Context, versionID string) (map[types.PairKey]float64, error) {
	query := s.rebind(`
		SELECT component_name, benchmark_name, AVG(duration_ns)
		FROM measurements WHERE version_id = ?
		GROUP BY component_name, benchmark_name`)

	rows, err := s.db.QueryContext(ctx, query, versionID)
	if err != nil {
		return nil, &types.StorageError{Op: "version means", Err: err}
	}
	defer rows.Close()

	means := make(map[types.PairKey]float64)
	for rows.Next() {
		var key types.PairKey
		var mean float64
		if err = rows.Scan(&key.Component, &key.Benchmark, &mean); err != nil {
			return nil, &types.StorageError{Op: "scan version mean", Err: err}
		}
		means[key] = mean
	}
	if err = rows.Err(); err != nil {
		return nil, &types.StorageError{Op: "version means", Err: err}
	}
	return means, nil
}

// PruneRecords deletes measurements older than the cutoff. Baselines and the
// alert log are retained for audit.
func (s *Store) PruneRecords(ctx context.Context, before time.Time) (int64, error) {
	query := s.rebind(`DELETE FROM measurements WHERE timestamp < ?`)
	res, err := s.db.ExecContext(ctx, query, before.UTC())
	if err != nil {
		return 0, &types.StorageError{Op: "prune records", Err: err}
	}
	count, _ := res.RowsAffected()
	s.log.WithField("deleted_count", count).Info("Pruned old measurements")
	return count, nil
}

// nullable maps the empty string to NULL so optional identity fields stay
// absent rather than empty.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
