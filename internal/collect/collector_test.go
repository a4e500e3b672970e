package collect

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/HerbHall/hostprobe/internal/progress"
	"github.com/HerbHall/hostprobe/internal/runner"
	"github.com/HerbHall/hostprobe/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
)

type progressLog struct {
	mu   sync.Mutex
	last map[string][2]int
	n    int
}

func (p *progressLog) Update(phase string, completed, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.last == nil {
		p.last = make(map[string][2]int)
	}
	if completed > p.last[phase][0] {
		p.last[phase] = [2]int{completed, total}
	}
	p.n++
}

func fiveCommands() CommandSet {
	return CommandSet{
		Name: "test",
		Commands: []Command{
			{Label: "A", Command: "cmd-a"},
			{Label: "B", Command: "cmd-b"},
			{Label: "C", Command: "cmd-c"},
			{Label: "D", Command: "cmd-d"},
			{Label: "E", Command: "cmd-e"},
		},
	}
}

func TestCollect_SingleCommand(t *testing.T) {
	fake := testutil.NewFakeRunner(testutil.WithResult("echo HOST1", testutil.Success("HOST1")))
	c := NewCollector(fake, 4, nil, zaptest.NewLogger(t))

	set := CommandSet{Name: "test", Commands: []Command{{Label: "Hostname", Command: "echo HOST1"}}}
	got, err := c.Collect(context.Background(), set, time.Second)
	require.NoError(t, err)

	assert.Equal(t, NewCollectionMap(Entry{"Hostname", "HOST1"}), got)
}

func TestCollect_RealShell(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses POSIX echo")
	}
	logger := zaptest.NewLogger(t)
	c := NewCollector(runner.NewShellRunner(logger), 2, nil, logger)

	set := CommandSet{Name: "test", Commands: []Command{
		{Label: "Hostname", Command: "echo HOST1"},
		{Label: "Broken", Command: "echo nope 1>&2"},
	}}
	got, err := c.Collect(context.Background(), set, 5*time.Second)
	require.NoError(t, err)

	assert.Equal(t, []string{"Hostname"}, got.Labels())
	out, ok := got.Get("Hostname")
	assert.True(t, ok)
	assert.Equal(t, "HOST1", out)
}

func TestCollect_OneFailureLeavesNMinusOne(t *testing.T) {
	set := fiveCommands()
	fake := testutil.NewFakeRunner(testutil.WithFunc(func(cmd string) runner.ProbeResult {
		if cmd == "cmd-c" {
			return testutil.Failure("Access is denied.")
		}
		return testutil.Success("output of " + cmd + "\nsecond line")
	}))
	c := NewCollector(fake, 3, nil, zaptest.NewLogger(t))

	got, err := c.Collect(context.Background(), set, time.Second)
	require.NoError(t, err)

	assert.Equal(t, 4, got.Len())
	assert.Equal(t, []string{"A", "B", "D", "E"}, got.Labels())
	for _, e := range got.Entries() {
		cmd := "cmd-" + string(e.Label[0]+('a'-'A'))
		assert.Equal(t, "output of "+cmd+"\nsecond line", e.Output, "entry %s must be intact", e.Label)
	}
	_, ok := got.Get("C")
	assert.False(t, ok)
}

func TestCollect_KeySetIsSubsetOfLabels(t *testing.T) {
	set := fiveCommands()
	labels := set.Labels()

	for mask := 0; mask < 1<<len(labels); mask++ {
		t.Run(fmt.Sprintf("mask_%02d", mask), func(t *testing.T) {
			fake := testutil.NewFakeRunner(testutil.WithFunc(func(cmd string) runner.ProbeResult {
				for i, c := range set.Commands {
					if c.Command == cmd && mask&(1<<i) != 0 {
						return testutil.Failure("boom")
					}
				}
				return testutil.Success("ok")
			}))
			c := NewCollector(fake, 2, nil, zap.NewNop())

			got, err := c.Collect(context.Background(), set, time.Second)
			require.NoError(t, err)

			var want []string
			for i, l := range labels {
				if mask&(1<<i) == 0 {
					want = append(want, l)
				}
			}
			assert.Equal(t, len(want), got.Len())
			if len(want) > 0 {
				assert.Equal(t, want, got.Labels())
			}
			if mask == 0 {
				assert.Equal(t, labels, got.Labels(), "all succeed -> key set equals label set")
			}
		})
	}
}

func TestCollect_OrderIndependentOfCompletion(t *testing.T) {
	set := fiveCommands()
	delays := map[string]time.Duration{
		"cmd-a": 80 * time.Millisecond,
		"cmd-b": 10 * time.Millisecond,
		"cmd-c": 50 * time.Millisecond,
		"cmd-d": 0,
		"cmd-e": 30 * time.Millisecond,
	}
	fake := testutil.NewFakeRunner(testutil.WithFunc(func(cmd string) runner.ProbeResult {
		time.Sleep(delays[cmd])
		return testutil.Success(cmd)
	}))
	c := NewCollector(fake, 5, nil, zaptest.NewLogger(t))

	got, err := c.Collect(context.Background(), set, time.Second)
	require.NoError(t, err)
	assert.Equal(t, set.Labels(), got.Labels())
}

func TestCollect_TimeoutIsOmitted(t *testing.T) {
	fake := testutil.NewFakeRunner(
		testutil.WithDelay(time.Second),
	)
	c := NewCollector(fake, 2, nil, zaptest.NewLogger(t))

	start := time.Now()
	got, err := c.Collect(context.Background(), fiveCommands(), 50*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Len())
	assert.Less(t, time.Since(start), 900*time.Millisecond)
}

func TestCollect_SpawnFailureAbortsWithPartial(t *testing.T) {
	set := fiveCommands()
	fake := testutil.NewFakeRunner(testutil.WithFunc(func(cmd string) runner.ProbeResult {
		if cmd == "cmd-c" {
			return testutil.SpawnFailure()
		}
		return testutil.Success(cmd)
	}))
	c := NewCollector(fake, 1, nil, zaptest.NewLogger(t))

	got, err := c.Collect(context.Background(), set, time.Second)
	require.Error(t, err)
	assert.True(t, errors.Is(err, runner.ErrSpawn))
	assert.Equal(t, []string{"A", "B"}, got.Labels(), "entries before the abort are kept")
}

func TestCollect_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	fake := testutil.NewFakeRunner(testutil.WithFunc(func(cmd string) runner.ProbeResult {
		if cmd == "cmd-b" {
			cancel()
		}
		return testutil.Success(cmd)
	}))
	c := NewCollector(fake, 1, nil, zaptest.NewLogger(t))

	got, err := c.Collect(ctx, fiveCommands(), time.Second)
	require.ErrorIs(t, err, context.Canceled)
	assert.Contains(t, got.Labels(), "A")
	assert.Less(t, got.Len(), 5)
}

func TestCollect_ReportsProgress(t *testing.T) {
	fake := testutil.NewFakeRunner(testutil.WithFunc(func(cmd string) runner.ProbeResult {
		return testutil.Success(cmd)
	}))
	p := &progressLog{}
	c := NewCollector(fake, 3, p, zaptest.NewLogger(t))

	_, err := c.Collect(context.Background(), fiveCommands(), time.Second)
	require.NoError(t, err)

	assert.Equal(t, 5, p.n)
	assert.Equal(t, [2]int{5, 5}, p.last["test"])
}

func TestCollect_LogsFailures(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	fake := testutil.NewFakeRunner(testutil.WithResult("cmd-a", testutil.Failure("The requested operation requires elevation.")))
	c := NewCollector(fake, 1, progress.Nop, zap.New(core))

	set := CommandSet{Name: "test", Commands: fiveCommands().Commands[:1]}
	_, err := c.Collect(context.Background(), set, time.Second)
	require.NoError(t, err)

	failures := logs.FilterMessage("command failed, category omitted").All()
	require.Len(t, failures, 1)
	assert.Equal(t, "The requested operation requires elevation.", failures[0].ContextMap()["reason"])
}

func TestBuiltinCommandSets(t *testing.T) {
	sys := SystemInfoCommands()
	assert.Equal(t, progress.PhaseSystemInfo, sys.Name)
	assert.Equal(t, []string{"Hostname", "System Info", "User Accounts", "Admin Group", "Running Services"}, sys.Labels())

	net := NetworkInfoCommands()
	assert.Equal(t, progress.PhaseNetworkInfo, net.Name)
	assert.Equal(t, []string{"Network Shares", "Active Connections", "Routing Table", "ARP Cache", "IP Configuration"}, net.Labels())
}
