// Package testutil provides deterministic fakes shared by package tests.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/HerbHall/hostprobe/internal/runner"
)

// Compile-time interface guard.
var _ runner.Runner = (*FakeRunner)(nil)

// FakeRunner returns canned results keyed by command string. Commands with no
// entry fall back to Func, and then to Default.
type FakeRunner struct {
	Results map[string]runner.ProbeResult
	Func    func(command string) runner.ProbeResult
	Default runner.ProbeResult
	// Delay is applied before each result, honouring ctx and timeout.
	Delay time.Duration

	mu    sync.Mutex
	calls []string
}

// NewFakeRunner returns a runner whose unknown commands fail with stderr.
func NewFakeRunner(opts ...func(*FakeRunner)) *FakeRunner {
	f := &FakeRunner{
		Results: make(map[string]runner.ProbeResult),
		Default: Failure("command not found"),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// WithResult registers a canned result for command.
func WithResult(command string, res runner.ProbeResult) func(*FakeRunner) {
	return func(f *FakeRunner) { f.Results[command] = res }
}

// WithFunc sets the fallback result function.
func WithFunc(fn func(command string) runner.ProbeResult) func(*FakeRunner) {
	return func(f *FakeRunner) { f.Func = fn }
}

// WithDelay sets a per-call delay.
func WithDelay(d time.Duration) func(*FakeRunner) {
	return func(f *FakeRunner) { f.Delay = d }
}

// Run implements runner.Runner.
func (f *FakeRunner) Run(ctx context.Context, command string, timeout time.Duration) runner.ProbeResult {
	f.mu.Lock()
	f.calls = append(f.calls, command)
	f.mu.Unlock()

	if f.Delay > 0 {
		var expired <-chan time.Time
		if timeout > 0 {
			t := time.NewTimer(timeout)
			defer t.Stop()
			expired = t.C
		}
		select {
		case <-time.After(f.Delay):
		case <-expired:
			return runner.ProbeResult{Failed: true, Reason: runner.ReasonTimedOut, Duration: timeout}
		case <-ctx.Done():
			return runner.ProbeResult{Failed: true, Reason: runner.ReasonCancelled, Err: ctx.Err()}
		}
	}
	if err := ctx.Err(); err != nil {
		return runner.ProbeResult{Failed: true, Reason: runner.ReasonCancelled, Err: err}
	}

	if res, ok := f.Results[command]; ok {
		return res
	}
	if f.Func != nil {
		return f.Func(command)
	}
	return f.Default
}

// Calls returns the commands run so far, sorted.
func (f *FakeRunner) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]string(nil), f.calls...)
	sort.Strings(out)
	return out
}

// CallCount returns the number of Run invocations.
func (f *FakeRunner) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// Success returns a successful result with the given stdout.
func Success(output string) runner.ProbeResult {
	return runner.ProbeResult{Output: output}
}

// Failure returns a result that wrote reason to stderr.
func Failure(reason string) runner.ProbeResult {
	return runner.ProbeResult{Stderr: reason + "\n", Failed: true, Reason: reason}
}

// SpawnFailure returns a result carrying runner.ErrSpawn.
func SpawnFailure() runner.ProbeResult {
	return runner.ProbeResult{
		Failed: true,
		Reason: "fork/exec cmd.exe: resource temporarily unavailable",
		Err:    fmt.Errorf("%w: resource temporarily unavailable", runner.ErrSpawn),
	}
}

// PingReply returns Windows ping output for a host that answered.
func PingReply(ip string) runner.ProbeResult {
	return Success(fmt.Sprintf("Pinging %s with 32 bytes of data:\r\nReply from %s: bytes=32 time<1ms TTL=128", ip, ip))
}

// PingTimeout returns Windows ping output for a host that did not answer.
func PingTimeout(ip string) runner.ProbeResult {
	return Success(fmt.Sprintf("Pinging %s with 32 bytes of data:\r\nRequest timed out.", ip))
}
