package analysis

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bench-track/bench-track/tracker/config"
	"github.com/bench-track/bench-track/tracker/types"
)

// TrendAnalyzer summarizes a component's benchmark history and fits a linear
// trend per benchmark.
type TrendAnalyzer interface {
	// Trends groups the component's measurements from the last `days` days by
	// benchmark and computes descriptive statistics plus, for groups with at
	// least two samples, an OLS trend over the sample index. A component with
	// no data in the window yields a NotFoundError.
	Trends(ctx context.Context, component string, days int) (*types.TrendReport, error)
}

type trendAnalyzer struct {
	store MetricStore
	cfg   config.AnalysisConfig
	log   logrus.FieldLogger
}

// NewTrendAnalyzer creates a trend analyzer with the given analysis policy.
func NewTrendAnalyzer(store MetricStore, cfg config.AnalysisConfig, log logrus.FieldLogger) TrendAnalyzer {
	return &trendAnalyzer{
		store: store,
		cfg:   cfg,
		log:   log.WithField("component", "trend-analyzer"),
	}
}

func (ta *trendAnalyzer) Trends(ctx context.Context, component string, days int) (*types.TrendReport, error) {
	if days <= 0 {
		days = ta.cfg.TrendDays
	}

	end := time.Now()
	start := end.AddDate(0, 0, -days)

	records, err := ta.store.QueryRecords(ctx, component, start, end)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, &types.NotFoundError{
			Kind: "trend data",
			Key:  fmt.Sprintf("%s (last %d days)", component, days),
		}
	}

	// Records arrive ordered by timestamp ascending, so each group's slice
	// index doubles as the OLS sample index.
	grouped := make(map[string][]float64)
	for _, r := range records {
		grouped[r.BenchmarkName] = append(grouped[r.BenchmarkName], float64(r.DurationNs))
	}

	report := &types.TrendReport{
		ComponentName:   component,
		PeriodDays:      days,
		TotalBenchmarks: len(grouped),
		TotalRuns:       len(records),
		GeneratedAt:     time.Now(),
		Benchmarks:      make(map[string]*types.BenchmarkStats, len(grouped)),
	}

	for benchmark, durations := range grouped {
		report.Benchmarks[benchmark] = ta.analyzeBenchmark(durations)
	}

	ta.log.WithFields(logrus.Fields{
		"component":  component,
		"benchmarks": report.TotalBenchmarks,
		"runs":       report.TotalRuns,
	}).Debug("Computed trend report")
	return report, nil
}

func (ta *trendAnalyzer) analyzeBenchmark(durations []float64) *types.BenchmarkStats {
	stats := &types.BenchmarkStats{
		Count:    len(durations),
		MeanNs:   mean(durations),
		MedianNs: median(durations),
		StdDevNs: stdDev(durations),
		MinNs:    int64(minOf(durations)),
		MaxNs:    int64(maxOf(durations)),
	}

	if len(durations) < 2 {
		return stats
	}

	fit := fitLinear(durations)
	stats.HasTrend = true
	stats.Slope = fit.Slope
	stats.RSquared = fit.RSquared
	stats.PValue = fit.PValue
	// Durations shrinking over time is an improvement; growth only counts as
	// degradation when the slope is statistically significant.
	stats.IsImproving = fit.Slope < 0
	stats.IsDegrading = fit.Slope > 0 && fit.PValue < ta.cfg.SignificanceLevel

	return stats
}

func minOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}

func maxOf(values []float64) float64 {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
