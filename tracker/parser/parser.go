// Package parser turns tool-specific benchmark output into structured
// records. The text format handled here is the criterion-style
// "name  time: [low unit mid unit high unit]" line; it is deliberately
// isolated so it can change per tool without touching the core.
package parser

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"time"

	"github.com/bench-track/bench-track/tracker/types"
)

var benchmarkLine = regexp.MustCompile(
	`^(\S+)\s+time:\s+\[([0-9.]+)\s+([a-zA-Zµ]+)\s+([0-9.]+)\s+([a-zA-Zµ]+)\s+([0-9.]+)\s+([a-zA-Zµ]+)\]`)

var timeUnits = map[string]float64{
	"ns": 1,
	"µs": 1_000,
	"us": 1_000,
	"ms": 1_000_000,
	"s":  1_000_000_000,
}

// ParseBenchmarkOutput extracts measurements from criterion-style text
// output. The mid estimate becomes the record duration; the low and high
// estimates are kept in the metadata. Lines that do not match the format are
// ignored.
func ParseBenchmarkOutput(r io.Reader, component, versionID string) ([]types.Record, error) {
	now := time.Now().UTC()

	var records []types.Record
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		m := benchmarkLine.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}

		low, err1 := toNanos(m[2], m[3])
		mid, err2 := toNanos(m[4], m[5])
		high, err3 := toNanos(m[6], m[7])
		if err1 != nil || err2 != nil || err3 != nil {
			continue
		}

		records = append(records, types.Record{
			ComponentName: component,
			BenchmarkName: m[1],
			DurationNs:    mid,
			Timestamp:     now,
			VersionID:     versionID,
			Metadata: map[string]string{
				"min_duration_ns": strconv.FormatInt(low, 10),
				"max_duration_ns": strconv.FormatInt(high, 10),
			},
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read benchmark output: %w", err)
	}
	return records, nil
}

func toNanos(value, unit string) (int64, error) {
	factor, ok := timeUnits[unit]
	if !ok {
		return 0, fmt.Errorf("unknown time unit %q", unit)
	}
	v, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, err
	}
	return int64(v * factor), nil
}
