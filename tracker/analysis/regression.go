package analysis

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bench-track/bench-track/tracker/config"
	"github.com/bench-track/bench-track/tracker/types"
)

// RegressionDetector compares newly ingested measurements against their
// active baselines and persists an alert for every breach of the detection
// threshold.
type RegressionDetector interface {
	// Detect runs one detection pass. Records without an active baseline are
	// skipped; improvements and within-threshold changes produce no alert.
	// The returned alerts are sorted by ChangePercent descending, worst
	// first. That ordering is a contract for downstream reporting.
	Detect(ctx context.Context, records []types.Record) (*types.DetectionSummary, error)

	// Severity maps a change percentage onto the configured severity bands.
	Severity(changePercent float64) types.Severity
}

type regressionDetector struct {
	store MetricStore
	cfg   config.DetectionConfig
	log   logrus.FieldLogger
}

// NewRegressionDetector creates a detector with the given detection policy.
func NewRegressionDetector(store MetricStore, cfg config.DetectionConfig, log logrus.FieldLogger) RegressionDetector {
	return &regressionDetector{
		store: store,
		cfg:   cfg,
		log:   log.WithField("component", "regression-detector"),
	}
}

func (rd *regressionDetector) Detect(ctx context.Context, records []types.Record) (*types.DetectionSummary, error) {
	summary := &types.DetectionSummary{}

	for i := range records {
		r := &records[i]
		if err := r.Validate(); err != nil {
			summary.Rejected++
			rd.log.WithError(err).Warn("Skipping invalid record")
			continue
		}

		baseline, err := rd.store.ActiveBaseline(ctx, r.ComponentName, r.BenchmarkName)
		if err != nil {
			var nf *types.NotFoundError
			if errors.As(err, &nf) {
				// Detection requires an established baseline.
				summary.Skipped++
				continue
			}
			return nil, err
		}

		if baseline.DurationNs == 0 {
			return nil, &types.InvalidRecordError{
				Reason: "active baseline for " + r.Key().String() + " has zero duration",
			}
		}
		summary.Accepted++

		changePercent := float64(r.DurationNs-baseline.DurationNs) / float64(baseline.DurationNs) * 100
		if changePercent <= rd.cfg.ThresholdPercent {
			continue
		}

		alert := &types.RegressionAlert{
			ID:                 uuid.New().String(),
			ComponentName:      r.ComponentName,
			BenchmarkName:      r.BenchmarkName,
			CurrentDurationNs:  r.DurationNs,
			BaselineDurationNs: baseline.DurationNs,
			ChangePercent:      changePercent,
			Severity:           rd.Severity(changePercent),
			Timestamp:          r.Timestamp,
			VersionID:          r.VersionID,
			BaselineVersionID:  baseline.VersionID,
		}

		if err := rd.store.AppendAlert(ctx, alert); err != nil {
			return nil, err
		}

		rd.log.WithFields(logrus.Fields{
			"component":      alert.ComponentName,
			"benchmark":      alert.BenchmarkName,
			"change_percent": alert.ChangePercent,
			"severity":       alert.Severity,
		}).Warn("Regression detected")

		summary.Alerts = append(summary.Alerts, alert)
	}

	sort.SliceStable(summary.Alerts, func(i, j int) bool {
		return summary.Alerts[i].ChangePercent > summary.Alerts[j].ChangePercent
	})

	return summary, nil
}

func (rd *regressionDetector) Severity(changePercent float64) types.Severity {
	switch {
	case changePercent >= rd.cfg.CriticalPercent:
		return types.SeverityCritical
	case changePercent >= rd.cfg.HighPercent:
		return types.SeverityHigh
	case changePercent >= rd.cfg.MediumPercent:
		return types.SeverityMedium
	default:
		return types.SeverityLow
	}
}
