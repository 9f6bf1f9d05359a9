//go:build unix

package kaldi

import (
	"errors"
	"os"
	"os/exec"
	"syscall"
)

// isolateProcess starts the tool in its own process group so cancellation
// also reaches children that inherited its stdout or stderr
func isolateProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		if errors.Is(err, syscall.ESRCH) {
			return os.ErrProcessDone
		}
		return err
	}
}
