package linters

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// RunFunc executes name with args in dir and returns its output.
// Non-zero exit codes are reported via exitCode (not err).
// err is non-nil only when the process could not be run to completion.
type RunFunc func(ctx context.Context, dir, name string, args ...string) (stdout, stderr []byte, exitCode int, err error)

// ExecRunner returns the RunFunc backed by os/exec.
func ExecRunner() RunFunc {
	return func(ctx context.Context, dir, name string, args ...string) ([]byte, []byte, int, error) {
		// #nosec G204 - name is resolved through tool discovery
		cmd := exec.CommandContext(ctx, name, args...)
		if dir != "" {
			cmd.Dir = dir
		}

		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		err := cmd.Run()
		if err != nil {
			var exitErr *exec.ExitError
			if errors.As(err, &exitErr) && ctx.Err() == nil {
				return stdout.Bytes(), stderr.Bytes(), exitErr.ExitCode(), nil
			}
			// Process could not start or was killed
			return stdout.Bytes(), stderr.Bytes(), -1, err
		}

		return stdout.Bytes(), stderr.Bytes(), 0, nil
	}
}
