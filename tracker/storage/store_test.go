package storage

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bench-track/bench-track/tracker/config"
	"github.com/bench-track/bench-track/tracker/types"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()

	log := logrus.New()
	log.SetOutput(io.Discard)

	cfg := config.Default().Database
	cfg.Path = filepath.Join(t.TempDir(), "test.db")

	store, err := Open(&cfg, log)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testRecord(component, benchmark string, durationNs int64, at time.Time) types.Record {
	return types.Record{
		ComponentName: component,
		BenchmarkName: benchmark,
		DurationNs:    durationNs,
		Timestamp:     at,
		VersionID:     "v1",
	}
}

func TestInsertRecordsIdempotent(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	records := []types.Record{
		testRecord("core", "insert", 1000, at),
		testRecord("core", "query", 2000, at),
	}

	accepted, rejected, err := store.InsertRecords(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, 2, accepted)
	assert.Equal(t, 0, rejected)

	// Re-inserting the same identity triples must replace, not duplicate.
	records[0].DurationNs = 1500
	accepted, _, err = store.InsertRecords(ctx, records)
	require.NoError(t, err)
	assert.Equal(t, 2, accepted)

	stored, err := store.QueryRecords(ctx, "core", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, stored, 2)

	byBenchmark := map[string]int64{}
	for _, r := range stored {
		byBenchmark[r.BenchmarkName] = r.DurationNs
	}
	assert.Equal(t, int64(1500), byBenchmark["insert"], "re-insert must keep the latest field values")
	assert.Equal(t, int64(2000), byBenchmark["query"])
}

func TestInsertRecordsRejectsInvalid(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	accepted, rejected, err := store.InsertRecords(ctx, []types.Record{
		testRecord("core", "good", 100, time.Now().UTC()),
		{ComponentName: "core", BenchmarkName: "no-timestamp", DurationNs: 100},
		{ComponentName: "core", BenchmarkName: "negative", DurationNs: -1, Timestamp: time.Now()},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, accepted)
	assert.Equal(t, 2, rejected)

	stored, err := store.QueryRecords(ctx, "core", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, stored, 1)
}

func TestInsertRecordsRoundTripsMetadata(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	record := testRecord("core", "insert", 100, time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	record.Metadata = map[string]string{"os": "linux", "cpu_count": "8"}

	_, _, err := store.InsertRecords(ctx, []types.Record{record})
	require.NoError(t, err)

	stored, err := store.QueryRecords(ctx, "core", time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, record.Metadata, stored[0].Metadata)
	assert.Equal(t, "v1", stored[0].VersionID)
}

func TestSetBaselineExclusivity(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	// Any sequence of swaps must leave exactly one active baseline.
	require.NoError(t, store.SetBaseline(ctx, "core", "insert", 1000, "v1"))
	require.NoError(t, store.SetBaseline(ctx, "core", "insert", 1200, "v2"))
	require.NoError(t, store.SetBaseline(ctx, "core", "insert", 900, "v3"))

	baseline, err := store.ActiveBaseline(ctx, "core", "insert")
	require.NoError(t, err)
	assert.Equal(t, int64(900), baseline.DurationNs)
	assert.Equal(t, "v3", baseline.VersionID)
	assert.True(t, baseline.Active)

	var activeCount int
	err = store.DB().QueryRow(
		`SELECT COUNT(*) FROM baselines WHERE component_name = 'core' AND benchmark_name = 'insert' AND active`,
	).Scan(&activeCount)
	require.NoError(t, err)
	assert.Equal(t, 1, activeCount)

	var totalCount int
	err = store.DB().QueryRow(
		`SELECT COUNT(*) FROM baselines WHERE component_name = 'core' AND benchmark_name = 'insert'`,
	).Scan(&totalCount)
	require.NoError(t, err)
	assert.Equal(t, 3, totalCount, "superseded baselines are kept, deactivated")
}

func TestSetBaselineIsScopedPerPair(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetBaseline(ctx, "core", "insert", 1000, "v1"))
	require.NoError(t, store.SetBaseline(ctx, "core", "query", 2000, "v1"))
	require.NoError(t, store.SetBaseline(ctx, "model", "insert", 3000, "v1"))

	b, err := store.ActiveBaseline(ctx, "core", "insert")
	require.NoError(t, err)
	assert.Equal(t, int64(1000), b.DurationNs)

	b, err = store.ActiveBaseline(ctx, "model", "insert")
	require.NoError(t, err)
	assert.Equal(t, int64(3000), b.DurationNs)
}

func TestActiveBaselineNotFound(t *testing.T) {
	store := openTestStore(t)

	_, err := store.ActiveBaseline(context.Background(), "ghost", "nothing")

	var notFound *types.NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "baseline", notFound.Kind)
}

func TestAppendAndListAlerts(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	older := &types.RegressionAlert{
		ID: "alert-1", ComponentName: "core", BenchmarkName: "insert",
		CurrentDurationNs: 1300, BaselineDurationNs: 1000, ChangePercent: 30,
		Severity: types.SeverityHigh, Timestamp: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		VersionID: "v2", BaselineVersionID: "v1",
	}
	newer := &types.RegressionAlert{
		ID: "alert-2", ComponentName: "core", BenchmarkName: "query",
		CurrentDurationNs: 2000, BaselineDurationNs: 1000, ChangePercent: 100,
		Severity: types.SeverityCritical, Timestamp: time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.AppendAlert(ctx, older))
	require.NoError(t, store.AppendAlert(ctx, newer))

	alerts, err := store.ListAlerts(ctx, false, 0)
	require.NoError(t, err)
	require.Len(t, alerts, 2)
	assert.Equal(t, "alert-2", alerts[0].ID, "newest first")
	assert.Equal(t, types.SeverityHigh, alerts[1].Severity)
	assert.Equal(t, "v1", alerts[1].BaselineVersionID)
	assert.False(t, alerts[0].Resolved)
}

func TestResolveAlert(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	alert := &types.RegressionAlert{
		ID: "alert-1", ComponentName: "core", BenchmarkName: "insert",
		CurrentDurationNs: 1300, BaselineDurationNs: 1000, ChangePercent: 30,
		Severity: types.SeverityHigh, Timestamp: time.Now().UTC(),
	}
	require.NoError(t, store.AppendAlert(ctx, alert))
	require.NoError(t, store.ResolveAlert(ctx, "alert-1"))

	unresolved, err := store.ListAlerts(ctx, true, 0)
	require.NoError(t, err)
	assert.Empty(t, unresolved)

	all, err := store.ListAlerts(ctx, false, 0)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.True(t, all[0].Resolved)

	var notFound *types.NotFoundError
	require.ErrorAs(t, store.ResolveAlert(ctx, "missing"), &notFound)
}

func TestQueryRecordsOrderAndRange(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	var records []types.Record
	for i := 0; i < 5; i++ {
		records = append(records, testRecord("core", "insert", int64(100*(i+1)), base.AddDate(0, 0, i)))
	}
	// Insert out of order; the scan must come back sorted.
	records[0], records[3] = records[3], records[0]
	_, _, err := store.InsertRecords(ctx, records)
	require.NoError(t, err)

	stored, err := store.QueryRecords(ctx, "core", base.AddDate(0, 0, 1), base.AddDate(0, 0, 3))
	require.NoError(t, err)
	require.Len(t, stored, 3)
	for i := 1; i < len(stored); i++ {
		assert.True(t, stored[i].Timestamp.After(stored[i-1].Timestamp),
			"records must be ordered by timestamp ascending")
	}
}

func TestVersionMeans(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	records := []types.Record{
		{ComponentName: "core", BenchmarkName: "insert", DurationNs: 100, Timestamp: base, VersionID: "v1"},
		{ComponentName: "core", BenchmarkName: "insert", DurationNs: 300, Timestamp: base.Add(time.Hour), VersionID: "v1"},
		{ComponentName: "core", BenchmarkName: "query", DurationNs: 500, Timestamp: base, VersionID: "v1"},
		{ComponentName: "core", BenchmarkName: "insert", DurationNs: 900, Timestamp: base.Add(2 * time.Hour), VersionID: "v2"},
	}
	_, _, err := store.InsertRecords(ctx, records)
	require.NoError(t, err)

	means, err := store.VersionMeans(ctx, "v1")
	require.NoError(t, err)
	require.Len(t, means, 2)
	assert.InDelta(t, 200, means[types.PairKey{Component: "core", Benchmark: "insert"}], 0.001)
	assert.InDelta(t, 500, means[types.PairKey{Component: "core", Benchmark: "query"}], 0.001)

	means, err = store.VersionMeans(ctx, "v2")
	require.NoError(t, err)
	require.Len(t, means, 1)
	assert.InDelta(t, 900, means[types.PairKey{Component: "core", Benchmark: "insert"}], 0.001)
}

func TestPruneRecordsKeepsBaselinesAndAlerts(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	old := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	recent := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	_, _, err := store.InsertRecords(ctx, []types.Record{
		testRecord("core", "insert", 100, old),
		testRecord("core", "insert", 200, recent),
	})
	require.NoError(t, err)
	require.NoError(t, store.SetBaseline(ctx, "core", "insert", 100, "v1"))
	require.NoError(t, store.AppendAlert(ctx, &types.RegressionAlert{
		ID: "alert-1", ComponentName: "core", BenchmarkName: "insert",
		CurrentDurationNs: 200, BaselineDurationNs: 100, ChangePercent: 100,
		Severity: types.SeverityCritical, Timestamp: old,
	}))

	deleted, err := store.PruneRecords(ctx, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	stored, err := store.QueryRecords(ctx, "core", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Len(t, stored, 1)

	_, err = store.ActiveBaseline(ctx, "core", "insert")
	assert.NoError(t, err, "prune must not touch baselines")

	alerts, err := store.ListAlerts(ctx, false, 0)
	require.NoError(t, err)
	assert.Len(t, alerts, 1, "prune must not touch the alert log")
}
