//go:build unix

package speech

import (
	"os/exec"
	"syscall"

	"golang.org/x/sys/unix"
)

// configureProcess runs espeak in its own process group so cancelling
// also stops any audio helper it spawned.
func configureProcess(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	cmd.Cancel = func() error {
		return unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
	}
}
