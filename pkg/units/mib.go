// Package units provides the sized-value type used throughout pkg/control:
// MiB, the unit every memory target, block size, and allocation granule is
// expressed in.
package units

import "fmt"

// MiB is a size expressed in mebibytes. The memory regulator works
// exclusively in whole MiB; using a named type instead of a bare
// uint64/int64 keeps "an MiB count" and "a byte count" from being
// confused at call sites.
type MiB uint64

// Bytes returns the size in bytes.
func (m MiB) Bytes() uint64 { return uint64(m) * 1 << 20 }

// Humanized returns a human-readable string with automatic unit (MB, GB, TB).
func (m MiB) Humanized() string {
	switch {
	case m >= 1<<20:
		return fmt.Sprintf("%.2f TB", float64(m)/(1<<20))
	case m >= 1<<10:
		return fmt.Sprintf("%.2f GB", float64(m)/(1<<10))
	default:
		return fmt.Sprintf("%d MB", uint64(m))
	}
}

// GB returns the number of gigabytes (1024 MiB base).
func (m MiB) GB() float64 { return float64(m) / 1024 }

// FromBytes converts a byte count to whole MiB, rounding down (used for the
// byte totals the host probe reads, which never need to round up into
// extra capacity).
func FromBytes(b uint64) MiB { return MiB(b / (1 << 20)) }
