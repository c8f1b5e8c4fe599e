package workspace

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Runner executes an external command in dir and returns its combined output.
type Runner interface {
	Run(ctx context.Context, dir, name string, args ...string) ([]byte, error)
}

// CommandError reports a command that failed to start or exited non-zero.
type CommandError struct {
	Args     []string
	ExitCode int // -1 when the process never exited normally
	Output   string
	Err      error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("workspace: command [%s] failed with exit code %d: %v", strings.Join(e.Args, " "), e.ExitCode, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// ExecRunner runs commands with os/exec. Cancelling ctx kills the process.
type ExecRunner struct {
	// WaitDelay bounds how long to wait for output after a kill; child
	// processes such as test runners can hold the pipes open. Zero means 5s.
	WaitDelay time.Duration
}

func (r ExecRunner) Run(ctx context.Context, dir, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	cmd.WaitDelay = r.WaitDelay
	if cmd.WaitDelay == 0 {
		cmd.WaitDelay = 5 * time.Second
	}

	out, err := cmd.CombinedOutput()
	if err != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			code = exitErr.ExitCode()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		return out, &CommandError{
			Args:     append([]string{name}, args...),
			ExitCode: code,
			Output:   string(out),
			Err:      err,
		}
	}
	return out, nil
}
