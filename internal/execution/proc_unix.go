//go:build unix

package execution

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// configureProcess puts the runner in its own process group so a timeout kills
// everything it spawned, not just the direct child.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		if errors.Is(err, syscall.ESRCH) {
			return os.ErrProcessDone
		}
		return err
	}
	cmd.WaitDelay = processWaitDelay
}
