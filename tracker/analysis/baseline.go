package analysis

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/bench-track/bench-track/tracker/types"
)

// BaselineManager designates the single active reference measurement per
// (component, benchmark) pair. Baselines are set only by explicit operator
// action; the single-active invariant itself is enforced inside the store's
// transaction. Setting a baseline is infrequent, so failures surface directly
// with no retries.
type BaselineManager interface {
	Set(ctx context.Context, component, benchmark string, durationNs int64, versionID string) error
	Get(ctx context.Context, component, benchmark string) (*types.Baseline, error)
}

type baselineManager struct {
	store MetricStore
	log   logrus.FieldLogger
}

// NewBaselineManager creates a baseline manager over the given store.
func NewBaselineManager(store MetricStore, log logrus.FieldLogger) BaselineManager {
	return &baselineManager{
		store: store,
		log:   log.WithField("component", "baseline-manager"),
	}
}

func (bm *baselineManager) Set(ctx context.Context, component, benchmark string, durationNs int64, versionID string) error {
	if component == "" || benchmark == "" {
		return &types.InvalidRecordError{Reason: "baseline requires component and benchmark names"}
	}
	// A zero or negative duration is never a meaningful reference and would
	// poison every later percent-change computation.
	if durationNs <= 0 {
		return &types.InvalidRecordError{Reason: "baseline duration must be positive"}
	}

	if err := bm.store.SetBaseline(ctx, component, benchmark, durationNs, versionID); err != nil {
		return err
	}

	bm.log.WithFields(logrus.Fields{
		"component":   component,
		"benchmark":   benchmark,
		"duration_ns": durationNs,
	}).Info("Baseline updated")
	return nil
}

func (bm *baselineManager) Get(ctx context.Context, component, benchmark string) (*types.Baseline, error) {
	return bm.store.ActiveBaseline(ctx, component, benchmark)
}
