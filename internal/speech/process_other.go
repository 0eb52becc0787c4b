//go:build !unix

package speech

import "os/exec"

func configureProcess(*exec.Cmd) {}
