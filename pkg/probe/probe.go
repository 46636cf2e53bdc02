// Package probe samples host-wide CPU and memory utilization, total
// physical memory, and this process's own CPU share and RSS. Implementations
// are stateful — each holds the previous snapshot needed to compute a
// delta — so callers construct one Probe per process and reuse it, the same
// way a Collector is constructed once and fed a ticker loop.
package probe

import "github.com/ja7ad/loadgen/pkg/units"

// Probe samples host and self resource usage. All methods are safe to call
// from any goroutine and never panic; a transient read failure is reported
// as a zero value rather than an error.
type Probe interface {
	// HostCPUPercent returns the percentage of wall time, over the
	// interval since the last call, that the host was non-idle across
	// all cores. Result is in [0,100].
	HostCPUPercent() float64

	// HostMemPercent returns (total-available)/total*100, in [0,100].
	HostMemPercent() float64

	// TotalMemMB returns total physical RAM.
	TotalMemMB() units.MiB

	// SelfCPUPercent returns this process's CPU share of host wall time
	// since the last call. May exceed 100 on multi-core machines.
	SelfCPUPercent() float64

	// SelfRSSMB returns this process's resident set size.
	SelfRSSMB() units.MiB

	// LogicalCores returns the number of logical CPUs (always >= 1).
	LogicalCores() int
}
