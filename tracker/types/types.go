package types

import (
	"fmt"
	"time"
)

// Record is a single benchmark measurement produced by an external parser or
// result file. Identity for storage purposes is the
// (ComponentName, BenchmarkName, Timestamp) triple; re-ingesting the same
// triple replaces the stored row.
type Record struct {
	ComponentName string            `json:"component_name"`
	BenchmarkName string            `json:"benchmark_name"`
	DurationNs    int64             `json:"duration_ns"`
	MemoryBytes   int64             `json:"memory_bytes,omitempty"`
	CPUPercent    float64           `json:"cpu_percent,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
	VersionID     string            `json:"version_id,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// Validate checks the fields required for storage identity and the
// non-negativity constraints on the numeric measurements.
func (r *Record) Validate() error {
	if r.ComponentName == "" {
		return &InvalidRecordError{Reason: "component_name is required"}
	}
	if r.BenchmarkName == "" {
		return &InvalidRecordError{Reason: "benchmark_name is required"}
	}
	if r.Timestamp.IsZero() {
		return &InvalidRecordError{Reason: "timestamp is required"}
	}
	if r.DurationNs < 0 {
		return &InvalidRecordError{Reason: fmt.Sprintf("duration_ns must be non-negative, got %d", r.DurationNs)}
	}
	if r.MemoryBytes < 0 {
		return &InvalidRecordError{Reason: fmt.Sprintf("memory_bytes must be non-negative, got %d", r.MemoryBytes)}
	}
	if r.CPUPercent < 0 {
		return &InvalidRecordError{Reason: fmt.Sprintf("cpu_percent must be non-negative, got %f", r.CPUPercent)}
	}
	return nil
}

// Key returns the (component, benchmark) pair key used by baselines and
// version comparisons.
func (r *Record) Key() PairKey {
	return PairKey{Component: r.ComponentName, Benchmark: r.BenchmarkName}
}

// PairKey identifies one (component, benchmark) pair.
type PairKey struct {
	Component string `json:"component_name"`
	Benchmark string `json:"benchmark_name"`
}

func (k PairKey) String() string {
	return k.Component + "/" + k.Benchmark
}

// Baseline is the declared reference duration for one (component, benchmark)
// pair. At most one baseline per pair is active at any time; the store swaps
// baselines atomically.
type Baseline struct {
	ComponentName string    `json:"component_name"`
	BenchmarkName string    `json:"benchmark_name"`
	DurationNs    int64     `json:"duration_ns"`
	VersionID     string    `json:"version_id,omitempty"`
	RecordedAt    time.Time `json:"recorded_at"`
	Active        bool      `json:"active"`
}

// Severity classifies how far past its baseline a measurement landed.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

var severityRank = map[Severity]int{
	SeverityLow:      0,
	SeverityMedium:   1,
	SeverityHigh:     2,
	SeverityCritical: 3,
}

// Rank returns the ordering position of the severity, LOW < MEDIUM < HIGH <
// CRITICAL. Unknown severities rank below LOW.
func (s Severity) Rank() int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return -1
}

// ParseSeverity converts a stored severity string back to a Severity,
// rejecting anything outside the known set.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(s)
	if _, ok := severityRank[sev]; !ok {
		return "", fmt.Errorf("unknown severity %q", s)
	}
	return sev, nil
}

// SeverityOrder lists severities from worst to least for grouped reporting.
var SeverityOrder = []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow}

// RegressionAlert is an append-only audit record emitted when a measurement
// exceeds its active baseline by more than the detection threshold. Only the
// Resolved flag may change after the alert is written.
type RegressionAlert struct {
	ID                 string    `json:"id"`
	ComponentName      string    `json:"component_name"`
	BenchmarkName      string    `json:"benchmark_name"`
	CurrentDurationNs  int64     `json:"current_duration_ns"`
	BaselineDurationNs int64     `json:"baseline_duration_ns"`
	ChangePercent      float64   `json:"change_percent"` // positive = slower than baseline
	Severity           Severity  `json:"severity"`
	Timestamp          time.Time `json:"timestamp"`
	VersionID          string    `json:"version_id,omitempty"`
	BaselineVersionID  string    `json:"baseline_version_id,omitempty"`
	Resolved           bool      `json:"resolved"`
}

// DetectionSummary is the result of one regression detection pass. Alerts are
// ordered by ChangePercent descending, worst first; downstream reporting
// relies on that ordering.
type DetectionSummary struct {
	Accepted int                `json:"accepted"`
	Rejected int                `json:"rejected"`
	Skipped  int                `json:"skipped"` // records with no active baseline
	Alerts   []*RegressionAlert `json:"alerts"`
}

// BenchmarkStats summarizes one benchmark's history inside a trend report.
// All durations are nanoseconds. Standard deviation is the sample standard
// deviation (n-1 denominator). The regression fields are populated only when
// Count >= 2; slope is fitted against the sample index, not wall-clock time.
type BenchmarkStats struct {
	Count       int     `json:"count"`
	MeanNs      float64 `json:"mean_ns"`
	MedianNs    float64 `json:"median_ns"`
	StdDevNs    float64 `json:"std_dev_ns"`
	MinNs       int64   `json:"min_ns"`
	MaxNs       int64   `json:"max_ns"`
	Slope       float64 `json:"trend_slope,omitempty"`
	RSquared    float64 `json:"trend_r_squared,omitempty"`
	PValue      float64 `json:"trend_p_value,omitempty"`
	HasTrend    bool    `json:"has_trend"`
	IsImproving bool    `json:"is_improving"`
	IsDegrading bool    `json:"is_degrading"`
}

// TrendReport covers one component's benchmark history over a time window.
type TrendReport struct {
	ComponentName   string                     `json:"component_name"`
	PeriodDays      int                        `json:"period_days"`
	TotalBenchmarks int                        `json:"total_benchmarks"`
	TotalRuns       int                        `json:"total_runs"`
	GeneratedAt     time.Time                  `json:"generated_at"`
	Benchmarks      map[string]*BenchmarkStats `json:"benchmarks"`
}

// ComparisonStatus classifies a pair diff between two versions.
type ComparisonStatus string

const (
	StatusImprovement ComparisonStatus = "improvement"
	StatusRegression  ComparisonStatus = "regression"
	StatusStable      ComparisonStatus = "stable"
)

// ComparisonEntry is the diff for one (component, benchmark) pair present
// under both compared versions.
type ComparisonEntry struct {
	ComponentName string           `json:"component_name"`
	BenchmarkName string           `json:"benchmark_name"`
	BaseMeanNs    float64          `json:"base_mean_ns"`
	CurrentMeanNs float64          `json:"current_mean_ns"`
	ChangeNs      float64          `json:"change_ns"`
	ChangePercent float64          `json:"change_percent"`
	Status        ComparisonStatus `json:"status"`
}

// ComparisonReport diffs mean durations between two version identifiers.
// Pairs present under only one version are excluded entirely; comparison
// requires data on both sides.
type ComparisonReport struct {
	BaseVersion      string             `json:"base_version"`
	CurrentVersion   string             `json:"current_version"`
	TotalComparisons int                `json:"total_comparisons"`
	Improvements     int                `json:"improvements"`
	Regressions      int                `json:"regressions"`
	Stable           int                `json:"stable"`
	GeneratedAt      time.Time          `json:"generated_at"`
	Entries          []*ComparisonEntry `json:"entries"`
}
