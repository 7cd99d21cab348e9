package sandbox

import (
	"bytes"
	"context"
	"os/exec"
	"time"
)

// waitDelay bounds how long a killed command may keep its output pipes open
// through orphaned children.
const waitDelay = 5 * time.Second

// ExecRunner abstracts execution of external commands for testability.
type ExecRunner interface {
	// Run executes name with args in dir and returns stdout and stderr separately.
	Run(ctx context.Context, dir string, name string, args ...string) (stdout, stderr string, err error)
}

// RealExecRunner runs actual commands.
type RealExecRunner struct{}

func (RealExecRunner) Run(ctx context.Context, dir string, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if dir != "" {
		cmd.Dir = dir
	}
	cmd.WaitDelay = waitDelay
	var out, errb bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &errb
	err := cmd.Run()
	return out.String(), errb.String(), err
}
