package analysis

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/bench-track/bench-track/tracker/config"
	"github.com/bench-track/bench-track/tracker/types"
)

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func detectionConfig() config.DetectionConfig {
	return config.Default().Detection
}

func record(component, benchmark string, durationNs int64) types.Record {
	return types.Record{
		ComponentName: component,
		BenchmarkName: benchmark,
		DurationNs:    durationNs,
		Timestamp:     time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		VersionID:     "v2",
	}
}

func baseline(component, benchmark string, durationNs int64) *types.Baseline {
	return &types.Baseline{
		ComponentName: component,
		BenchmarkName: benchmark,
		DurationNs:    durationNs,
		VersionID:     "v1",
		RecordedAt:    time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		Active:        true,
	}
}

func TestDetectSeverityBands(t *testing.T) {
	// Changes of 5, 16, 30, 60 percent against a 10 percent threshold must
	// yield no alert, MEDIUM, HIGH, CRITICAL.
	tests := []struct {
		name          string
		durationNs    int64
		wantAlert     bool
		wantSeverity  types.Severity
		wantChangePct float64
	}{
		{"within threshold", 1050, false, "", 0},
		{"medium", 1160, true, types.SeverityMedium, 16},
		{"high", 1300, true, types.SeverityHigh, 30},
		{"critical", 1600, true, types.SeverityCritical, 60},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := new(MockMetricStore)
			store.On("ActiveBaseline", mock.Anything, "core", "insert").
				Return(baseline("core", "insert", 1000), nil)
			if tt.wantAlert {
				store.On("AppendAlert", mock.Anything, mock.AnythingOfType("*types.RegressionAlert")).
					Return(nil)
			}

			detector := NewRegressionDetector(store, detectionConfig(), testLogger())
			summary, err := detector.Detect(context.Background(), []types.Record{
				record("core", "insert", tt.durationNs),
			})
			require.NoError(t, err)

			if !tt.wantAlert {
				assert.Empty(t, summary.Alerts)
				store.AssertNotCalled(t, "AppendAlert", mock.Anything, mock.Anything)
				return
			}

			require.Len(t, summary.Alerts, 1)
			alert := summary.Alerts[0]
			assert.Equal(t, tt.wantSeverity, alert.Severity)
			assert.InDelta(t, tt.wantChangePct, alert.ChangePercent, 0.001)
			assert.Equal(t, int64(1000), alert.BaselineDurationNs)
			assert.Equal(t, tt.durationNs, alert.CurrentDurationNs)
			assert.Equal(t, "v1", alert.BaselineVersionID)
			assert.NotEmpty(t, alert.ID)
			assert.False(t, alert.Resolved)
			store.AssertExpectations(t)
		})
	}
}

func TestDetectImprovementProducesNoAlert(t *testing.T) {
	store := new(MockMetricStore)
	store.On("ActiveBaseline", mock.Anything, "core", "insert").
		Return(baseline("core", "insert", 1000), nil)

	detector := NewRegressionDetector(store, detectionConfig(), testLogger())
	summary, err := detector.Detect(context.Background(), []types.Record{
		record("core", "insert", 600),
	})
	require.NoError(t, err)
	assert.Empty(t, summary.Alerts)
	assert.Equal(t, 1, summary.Accepted)
}

func TestDetectSkipsRecordsWithoutBaseline(t *testing.T) {
	store := new(MockMetricStore)
	store.On("ActiveBaseline", mock.Anything, "core", "unknown").
		Return(nil, &types.NotFoundError{Kind: "baseline", Key: "core/unknown"})

	detector := NewRegressionDetector(store, detectionConfig(), testLogger())
	summary, err := detector.Detect(context.Background(), []types.Record{
		record("core", "unknown", 5000),
	})
	require.NoError(t, err)
	assert.Empty(t, summary.Alerts)
	assert.Equal(t, 1, summary.Skipped)
	store.AssertNotCalled(t, "AppendAlert", mock.Anything, mock.Anything)
}

func TestDetectZeroBaselineFailsExplicitly(t *testing.T) {
	store := new(MockMetricStore)
	zero := baseline("core", "insert", 0)
	store.On("ActiveBaseline", mock.Anything, "core", "insert").Return(zero, nil)

	detector := NewRegressionDetector(store, detectionConfig(), testLogger())
	_, err := detector.Detect(context.Background(), []types.Record{
		record("core", "insert", 5000),
	})

	var invalid *types.InvalidRecordError
	require.ErrorAs(t, err, &invalid)
}

func TestDetectRejectsInvalidRecords(t *testing.T) {
	store := new(MockMetricStore)

	detector := NewRegressionDetector(store, detectionConfig(), testLogger())
	summary, err := detector.Detect(context.Background(), []types.Record{
		{BenchmarkName: "no-component", DurationNs: 10, Timestamp: time.Now()},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Rejected)
	store.AssertNotCalled(t, "ActiveBaseline", mock.Anything, mock.Anything, mock.Anything)
}

func TestDetectAlertsSortedWorstFirst(t *testing.T) {
	store := new(MockMetricStore)
	store.On("ActiveBaseline", mock.Anything, "core", mock.Anything).
		Return(baseline("core", "any", 1000), nil)
	store.On("AppendAlert", mock.Anything, mock.AnythingOfType("*types.RegressionAlert")).
		Return(nil)

	detector := NewRegressionDetector(store, detectionConfig(), testLogger())
	summary, err := detector.Detect(context.Background(), []types.Record{
		record("core", "a", 1200), // +20%
		record("core", "b", 1800), // +80%
		record("core", "c", 1400), // +40%
	})
	require.NoError(t, err)
	require.Len(t, summary.Alerts, 3)

	assert.InDelta(t, 80, summary.Alerts[0].ChangePercent, 0.001)
	assert.InDelta(t, 40, summary.Alerts[1].ChangePercent, 0.001)
	assert.InDelta(t, 20, summary.Alerts[2].ChangePercent, 0.001)
}

func TestSeverityBandEdges(t *testing.T) {
	detector := NewRegressionDetector(new(MockMetricStore), detectionConfig(), testLogger())

	assert.Equal(t, types.SeverityLow, detector.Severity(10.5))
	assert.Equal(t, types.SeverityMedium, detector.Severity(15))
	assert.Equal(t, types.SeverityHigh, detector.Severity(25))
	assert.Equal(t, types.SeverityCritical, detector.Severity(50))
	assert.Equal(t, types.SeverityCritical, detector.Severity(300))
}
