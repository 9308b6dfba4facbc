//go:build !unix

package execution

import "os/exec"

func configureProcess(cmd *exec.Cmd) {
	cmd.WaitDelay = processWaitDelay
}
