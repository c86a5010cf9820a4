package analysis

import (
	"context"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/bench-track/bench-track/tracker/config"
	"github.com/bench-track/bench-track/tracker/types"
)

// ComparisonAnalyzer diffs mean performance between two version identifiers
// across all (component, benchmark) pairs present under both.
type ComparisonAnalyzer interface {
	// Compare classifies every pair present under both versions as an
	// improvement, a regression, or stable, using the configured stability
	// band. Pairs present under only one version are excluded; comparison
	// requires data on both sides. Entries are sorted by ChangePercent
	// descending.
	Compare(ctx context.Context, baseVersion, currentVersion string) (*types.ComparisonReport, error)
}

type comparisonAnalyzer struct {
	store MetricStore
	cfg   config.AnalysisConfig
	log   logrus.FieldLogger
}

// NewComparisonAnalyzer creates a comparison analyzer with the given policy.
func NewComparisonAnalyzer(store MetricStore, cfg config.AnalysisConfig, log logrus.FieldLogger) ComparisonAnalyzer {
	return &comparisonAnalyzer{
		store: store,
		cfg:   cfg,
		log:   log.WithField("component", "comparison-analyzer"),
	}
}

func (ca *comparisonAnalyzer) Compare(ctx context.Context, baseVersion, currentVersion string) (*types.ComparisonReport, error) {
	baseMeans, err := ca.store.VersionMeans(ctx, baseVersion)
	if err != nil {
		return nil, err
	}
	if len(baseMeans) == 0 {
		return nil, &types.NotFoundError{Kind: "version data", Key: baseVersion}
	}

	currentMeans, err := ca.store.VersionMeans(ctx, currentVersion)
	if err != nil {
		return nil, err
	}
	if len(currentMeans) == 0 {
		return nil, &types.NotFoundError{Kind: "version data", Key: currentVersion}
	}

	report := &types.ComparisonReport{
		BaseVersion:    baseVersion,
		CurrentVersion: currentVersion,
		GeneratedAt:    time.Now(),
	}

	band := ca.cfg.StabilityBandPercent
	for key, baseMean := range baseMeans {
		currentMean, ok := currentMeans[key]
		if !ok {
			continue
		}
		if baseMean == 0 {
			// A zero mean on the base side makes the percent change
			// undefined; the pair cannot be meaningfully compared.
			ca.log.WithField("pair", key.String()).Warn("Skipping pair with zero base mean")
			continue
		}

		entry := &types.ComparisonEntry{
			ComponentName: key.Component,
			BenchmarkName: key.Benchmark,
			BaseMeanNs:    baseMean,
			CurrentMeanNs: currentMean,
			ChangeNs:      currentMean - baseMean,
		}
		entry.ChangePercent = entry.ChangeNs / baseMean * 100

		switch {
		case entry.ChangePercent < -band:
			entry.Status = types.StatusImprovement
			report.Improvements++
		case entry.ChangePercent > band:
			entry.Status = types.StatusRegression
			report.Regressions++
		default:
			entry.Status = types.StatusStable
			report.Stable++
		}

		report.Entries = append(report.Entries, entry)
	}

	sort.Slice(report.Entries, func(i, j int) bool {
		if report.Entries[i].ChangePercent != report.Entries[j].ChangePercent {
			return report.Entries[i].ChangePercent > report.Entries[j].ChangePercent
		}
		return report.Entries[i].ComponentName+report.Entries[i].BenchmarkName <
			report.Entries[j].ComponentName+report.Entries[j].BenchmarkName
	})
	report.TotalComparisons = len(report.Entries)

	ca.log.WithFields(logrus.Fields{
		"base":         baseVersion,
		"current":      currentVersion,
		"comparisons":  report.TotalComparisons,
		"improvements": report.Improvements,
		"regressions":  report.Regressions,
	}).Debug("Computed comparison report")
	return report, nil
}
