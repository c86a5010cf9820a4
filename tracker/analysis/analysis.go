// Package analysis implements the reasoning layer over stored measurements:
// baseline lifecycle, regression detection, trend statistics, and version
// comparison.
package analysis

import (
	"context"
	"time"

	"github.com/bench-track/bench-track/tracker/types"
)

// MetricStore is the slice of the storage layer the analyzers need. The
// concrete *storage.Store satisfies it; tests substitute mocks.
type MetricStore interface {
	ActiveBaseline(ctx context.Context, component, benchmark string) (*types.Baseline, error)
	SetBaseline(ctx context.Context, component, benchmark string, durationNs int64, versionID string) error
	AppendAlert(ctx context.Context, alert *types.RegressionAlert) error
	QueryRecords(ctx context.Context, component string, since, until time.Time) ([]types.Record, error)
	VersionMeans(ctx context.Context, versionID string) (map[types.PairKey]float64, error)
}
