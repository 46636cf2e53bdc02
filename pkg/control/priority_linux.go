//go:build linux

package control

import "golang.org/x/sys/unix"

// advisePriority raises the calling thread's scheduling priority by one
// notch, i.e. lowers its nice value by one. It
// is advisory only: errors are ignored, and an unprivileged worker simply
// keeps the default priority, which does not affect correctness.
func advisePriority() {
	pid := unix.Gettid()
	raw, err := unix.Getpriority(unix.PRIO_PROCESS, pid)
	if err != nil {
		return
	}
	// the raw getpriority() syscall returns 20-nice to keep the result
	// non-negative; recover nice, then lower it by one notch.
	nice := 20 - raw
	_ = unix.Setpriority(unix.PRIO_PROCESS, pid, nice-1)
}
