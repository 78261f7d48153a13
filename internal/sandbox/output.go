//go:build linux || darwin

package sandbox

import (
	"os/exec"
	"time"

	"github.com/openclaw/gateway/internal/apperr"
)

func errSpawnFailed(err error) error {
	return apperr.Wrap(apperr.Storage, err)
}

// finishOutput assembles an Output from a completed or forcibly-killed
// exec.Cmd. killed/reason override the exit-status-derived kill detection
// when the caller already knows the process was terminated by a limit.
func finishOutput(start time.Time, stdout, stderr string, cmd *exec.Cmd, waitErr error, killed bool, reason string) (Output, error) {
	duration := time.Since(start)
	exitCode := -1
	if cmd.ProcessState != nil {
		exitCode = cmd.ProcessState.ExitCode()
	}

	if !killed {
		killed = exitCode < 0
		if killed && reason == "" {
			reason = "terminated without an exit code (signal or resource limit)"
		}
	}

	return Output{
		Stdout:     stdout,
		Stderr:     stderr,
		ExitCode:   exitCode,
		Duration:   duration,
		Killed:     killed,
		KillReason: reason,
	}, nil
}
