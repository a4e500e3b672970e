// Package runner executes external commands through the platform shell with a
// bounded wait, capturing stdout and stderr separately.
package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ErrSpawn is wrapped by ProbeResult.Err when the shell process itself could
// not be started. Callers treat it as an unrecoverable runner failure.
var ErrSpawn = errors.New("process spawn failed")

// Failure reasons reported for conditions that produce no stderr of their own.
const (
	ReasonTimedOut  = "timed out"
	ReasonCancelled = "cancelled"
)

// defaultWaitDelay bounds how long Wait blocks on output pipes after the
// process has been killed.
const defaultWaitDelay = 500 * time.Millisecond

// ProbeResult is the outcome of a single command invocation.
type ProbeResult struct {
	Output   string        // trimmed stdout
	Stderr   string        // raw stderr
	Failed   bool          // stderr was written, the command timed out, or it never ran
	Reason   string        // human-readable failure reason; empty on success
	Err      error         // set for spawn failures and cancellation
	Duration time.Duration // wall-clock time of the invocation
}

// Runner runs one command with its own timeout.
type Runner interface {
	Run(ctx context.Context, command string, timeout time.Duration) ProbeResult
}

// Compile-time interface guard.
var _ Runner = (*ShellRunner)(nil)

// ShellRunner runs commands via the platform shell ("cmd /C" on Windows,
// "/bin/sh -c" elsewhere). Each call is a single attempt.
type ShellRunner struct {
	shell     []string
	waitDelay time.Duration
	logger    *zap.Logger
}

// Option configures a ShellRunner.
type Option func(*ShellRunner)

// WithShell overrides the shell invocation prefix, e.g. {"/bin/bash", "-c"}.
func WithShell(shell ...string) Option {
	return func(r *ShellRunner) { r.shell = shell }
}

// WithWaitDelay overrides the post-kill pipe drain bound.
func WithWaitDelay(d time.Duration) Option {
	return func(r *ShellRunner) { r.waitDelay = d }
}

// NewShellRunner creates a runner using the platform default shell.
func NewShellRunner(logger *zap.Logger, opts ...Option) *ShellRunner {
	r := &ShellRunner{
		shell:     defaultShell(),
		waitDelay: defaultWaitDelay,
		logger:    logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes command and waits up to timeout. A zero timeout waits until
// the command exits or ctx is done. Exit status is ignored: a run fails when
// it writes anything to stderr.
func (r *ShellRunner) Run(ctx context.Context, command string, timeout time.Duration) ProbeResult {
	start := time.Now()

	runCtx, cancel := ctx, context.CancelFunc(func() {})
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, timeout)
	}
	defer cancel()

	var stdout, stderr bytes.Buffer
	cmd := shellCommand(runCtx, r.shell, command)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = r.waitDelay
	prepare(cmd)

	if err := cmd.Start(); err != nil {
		res := ProbeResult{Failed: true, Duration: time.Since(start)}
		switch {
		case ctx.Err() != nil:
			res.Reason, res.Err = ReasonCancelled, ctx.Err()
		case runCtx.Err() != nil:
			res.Reason = ReasonTimedOut
		default:
			res.Reason = err.Error()
			res.Err = fmt.Errorf("%w: %w", ErrSpawn, err)
		}
		r.logger.Debug("command did not start",
			zap.String("command", command),
			zap.String("reason", res.Reason),
		)
		return res
	}

	_ = cmd.Wait()

	res := ProbeResult{
		Output:   strings.TrimSpace(stdout.String()),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	switch {
	case ctx.Err() != nil:
		res.Failed, res.Reason, res.Err = true, ReasonCancelled, ctx.Err()
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		res.Failed, res.Reason = true, ReasonTimedOut
	case res.Stderr != "":
		res.Failed, res.Reason = true, firstLine(res.Stderr)
	}

	r.logger.Debug("command finished",
		zap.String("command", command),
		zap.Bool("failed", res.Failed),
		zap.Duration("duration", res.Duration),
	)
	return res
}

// firstLine returns the first non-blank line of s, trimmed.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return "stderr output"
}
