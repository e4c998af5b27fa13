package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ExitError reports a command that ran and exited non-zero, or could not be
// started. Output holds the combined stdout/stderr verbatim.
type ExitError struct {
	Command  string
	ExitCode int
	output   string
	Err      error
}

func (e *ExitError) Error() string {
	if e.output != "" {
		return fmt.Sprintf("%s exited with code %d: %s", e.Command, e.ExitCode, strings.TrimSpace(e.output))
	}
	return fmt.Sprintf("%s failed: %v", e.Command, e.Err)
}

func (e *ExitError) Output() string {
	return e.output
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// waitDelay bounds how long Run waits for output pipes after the command
// was killed or exited.
const waitDelay = 2 * time.Second

// Runner executes external commands with a bounded run time.
type Runner struct {
	// Timeout caps each command; zero means only the caller's context applies.
	Timeout time.Duration
	// Env is appended to the current process environment.
	Env []string
}

// Run executes name with args in dir and returns the combined output.
func (r *Runner) Run(ctx context.Context, dir, name string, args ...string) (string, error) {
	if r.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	if len(r.Env) > 0 {
		cmd.Env = append(os.Environ(), r.Env...)
	}
	// Hooks and ssh spawned by the command inherit its output pipe; cancel
	// the whole group and stop waiting on the pipe shortly after.
	killProcessGroupOnCancel(cmd)
	cmd.WaitDelay = waitDelay

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	command := strings.TrimSpace(name + " " + strings.Join(args, " "))
	start := time.Now()
	err := cmd.Run()
	zap.L().Debug("External command finished",
		zap.String("command", command),
		zap.String("dir", dir),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err),
	)
	// a clean exit whose pipe a lingering grandchild kept open still counts
	if err == nil || (errors.Is(err, exec.ErrWaitDelay) && cmd.ProcessState != nil && cmd.ProcessState.Success()) {
		return out.String(), nil
	}

	code := -1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		code = exitErr.ExitCode()
	}
	if ctx.Err() != nil {
		err = fmt.Errorf("%w: %v", ctx.Err(), err)
	}
	return out.String(), &ExitError{Command: command, ExitCode: code, output: out.String(), Err: err}
}
