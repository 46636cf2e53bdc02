//go:build !linux

package control

// advisePriority is a no-op on platforms where the Linux nice-value dance
// does not apply. The bump is advisory only; correctness does not depend
// on it.
func advisePriority() {}
