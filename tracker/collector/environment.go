// Package collector captures host environment details attached to imported
// measurements as metadata, so a regression can later be correlated with the
// machine it ran on.
package collector

import (
	"os"
	"runtime"
	"strconv"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// EnvironmentMetadata gathers host facts as opaque key-value metadata. Any
// probe that fails is simply omitted; partial metadata is better than a
// failed import.
func EnvironmentMetadata() map[string]string {
	metadata := map[string]string{
		"os":   runtime.GOOS,
		"arch": runtime.GOARCH,
	}

	if hostname, err := os.Hostname(); err == nil {
		metadata["hostname"] = hostname
	}

	if info, err := cpu.Info(); err == nil && len(info) > 0 {
		metadata["cpu_model"] = info[0].ModelName
	}
	if count, err := cpu.Counts(true); err == nil {
		metadata["cpu_count"] = strconv.Itoa(count)
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		metadata["memory_total_bytes"] = strconv.FormatUint(vm.Total, 10)
	}

	if hi, err := host.Info(); err == nil {
		metadata["platform"] = hi.Platform
		metadata["kernel_version"] = hi.KernelVersion
	}

	return metadata
}

// Merge overlays env metadata under a record's existing metadata without
// overwriting keys the record already carries.
func Merge(existing, env map[string]string) map[string]string {
	if len(env) == 0 {
		return existing
	}
	merged := make(map[string]string, len(existing)+len(env))
	for k, v := range env {
		merged[k] = v
	}
	for k, v := range existing {
		merged[k] = v
	}
	return merged
}
