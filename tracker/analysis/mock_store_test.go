package analysis

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/bench-track/bench-track/tracker/types"
)

// MockMetricStore is a mock implementation of MetricStore.
type MockMetricStore struct {
	mock.Mock
}

func (m *MockMetricStore) ActiveBaseline(ctx context.Context, component, benchmark string) (*types.Baseline, error) {
	args := m.Called(ctx, component, benchmark)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*types.Baseline), args.Error(1)
}

func (m *MockMetricStore) SetBaseline(ctx context.Context, component, benchmark string, durationNs int64, versionID string) error {
	args := m.Called(ctx, component, benchmark, durationNs, versionID)
	return args.Error(0)
}

func (m *MockMetricStore) AppendAlert(ctx context.Context, alert *types.RegressionAlert) error {
	args := m.Called(ctx, alert)
	return args.Error(0)
}

func (m *MockMetricStore) QueryRecords(ctx context.Context, component string, since, until time.Time) ([]types.Record, error) {
	args := m.Called(ctx, component, since, until)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]types.Record), args.Error(1)
}

func (m *MockMetricStore) VersionMeans(ctx context.Context, versionID string) (map[types.PairKey]float64, error) {
	args := m.Called(ctx, versionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[types.PairKey]float64), args.Error(1)
}
