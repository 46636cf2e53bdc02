//go:build windows

package daemon

import (
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"golang.org/x/sys/windows"
)

const reexecEnvVar = "LOADGEN_DAEMONIZED"

// Detach re-execs the current process with CREATE_NO_WINDOW so it runs
// without an attached console, the Windows equivalent of Setsid detachment.
func Detach() (isParent bool, err error) {
	if os.Getenv(reexecEnvVar) != "" {
		return false, nil
	}

	exe, err := os.Executable()
	if err != nil {
		return false, fmt.Errorf("daemon: resolve executable: %w", err)
	}

	cmd := exec.Command(exe, os.Args[1:]...)
	cmd.Env = append(os.Environ(), reexecEnvVar+"=1")
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: windows.CREATE_NO_WINDOW | windows.DETACHED_PROCESS,
	}
	if err := cmd.Start(); err != nil {
		return false, fmt.Errorf("daemon: start background process: %w", err)
	}
	return true, nil
}
