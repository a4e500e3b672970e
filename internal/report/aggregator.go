// Package report owns the aggregated forensic report and the state machine
// that fills it from the collection phases.
package report

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/HerbHall/hostprobe/internal/collect"
	"github.com/HerbHall/hostprobe/internal/platform"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	// ErrNotConfirmed is returned when the caller has not approved the run.
	ErrNotConfirmed = errors.New("analysis not confirmed")
	// ErrAlreadyRun is returned by a second Run on the same Aggregator.
	ErrAlreadyRun = errors.New("aggregator has already run")
	// ErrNoSweeper is returned when a subnet is requested without a sweeper.
	ErrNoSweeper = errors.New("subnet sweep requested but no sweeper configured")
)

// CommandCollector runs a command set. Satisfied by *collect.Collector.
type CommandCollector interface {
	Collect(ctx context.Context, set collect.CommandSet, timeout time.Duration) (collect.CollectionMap, error)
}

// SubnetSweeper discovers live hosts. Satisfied by *sweep.Sweeper.
type SubnetSweeper interface {
	Sweep(ctx context.Context, prefix string) ([]string, error)
}

// Request carries the inputs of one run.
type Request struct {
	// Subnet is the /24 prefix to sweep, e.g. "192.168.1". Empty skips the sweep.
	Subnet string
	// Confirmed is the caller's go-ahead; Run refuses to start without it.
	Confirmed bool
}

// Aggregator coordinates the collection phases into one Report. An
// Aggregator runs once.
type Aggregator struct {
	collector CommandCollector
	sweeper   SubnetSweeper
	timeout   time.Duration
	systemSet collect.CommandSet
	netSet    collect.CommandSet
	host      *platform.HostInfo
	now       func() time.Time
	newID     func() string
	logger    *zap.Logger

	phase atomic.Int32
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithCommandSets replaces the built-in system and network command sets.
func WithCommandSets(system, network collect.CommandSet) Option {
	return func(a *Aggregator) {
		a.systemSet = system
		a.netSet = network
	}
}

// WithHostInfo attaches host metadata to the report.
func WithHostInfo(info platform.HostInfo) Option {
	return func(a *Aggregator) { a.host = &info }
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) { a.now = now }
}

// NewAggregator creates an aggregator. timeout applies to each command of
// the two command sets.
func NewAggregator(c CommandCollector, s SubnetSweeper, timeout time.Duration, logger *zap.Logger, opts ...Option) *Aggregator {
	a := &Aggregator{
		collector: c,
		sweeper:   s,
		timeout:   timeout,
		systemSet: collect.SystemInfoCommands(),
		netSet:    collect.NetworkInfoCommands(),
		now:       time.Now,
		newID:     func() string { return uuid.New().String() },
		logger:    logger,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Phase returns the current state. Safe to call from other goroutines.
func (a *Aggregator) Phase() Phase {
	return Phase(a.phase.Load())
}

func (a *Aggregator) transition(to Phase) {
	from := a.Phase()
	if !canTransition(from, to) {
		panic(fmt.Sprintf("report: illegal phase transition %s -> %s", from, to))
	}
	a.phase.Store(int32(to))
	a.logger.Debug("phase transition", zap.Stringer("from", from), zap.Stringer("to", to))
}

// Run executes system info collection, network info collection and, when
// req.Subnet is set, the subnet sweep, in that order.
//
// If a phase is aborted (the runner cannot spawn processes, or ctx is
// cancelled) Run stops, marks the report partial and returns it together
// with the error: data from earlier phases, and whatever the aborted phase
// gathered, is kept.
func (a *Aggregator) Run(ctx context.Context, req Request) (*Report, error) {
	if !req.Confirmed {
		return nil, ErrNotConfirmed
	}
	if req.Subnet != "" && a.sweeper == nil {
		return nil, ErrNoSweeper
	}
	if !a.phase.CompareAndSwap(int32(PhaseCreated), int32(PhaseCollectingSystemInfo)) {
		return nil, ErrAlreadyRun
	}

	r := &Report{
		ID:          a.newID(),
		Timestamp:   a.now(),
		Status:      StatusPartial,
		Subnet:      req.Subnet,
		Host:        a.host,
		ActiveHosts: []string{},
	}
	a.logger.Info("analysis started", zap.String("report_id", r.ID), zap.String("subnet", req.Subnet))

	var err error
	r.SystemInfo, err = a.collector.Collect(ctx, a.systemSet, a.timeout)
	if err != nil {
		return a.abort(r, err)
	}

	a.transition(PhaseCollectingNetworkInfo)
	r.NetworkInfo, err = a.collector.Collect(ctx, a.netSet, a.timeout)
	if err != nil {
		return a.abort(r, err)
	}

	if req.Subnet != "" {
		a.transition(PhaseSweepingSubnet)
		hosts, sweepErr := a.sweeper.Sweep(ctx, req.Subnet)
		if hosts != nil {
			r.ActiveHosts = hosts
		}
		if sweepErr != nil {
			return a.abort(r, sweepErr)
		}
	}

	a.transition(PhaseComplete)
	r.Status = StatusComplete

	s := r.Summary()
	a.logger.Info("analysis complete",
		zap.String("report_id", r.ID),
		zap.Int("system_info_items", s.SystemInfoItems),
		zap.Int("network_info_items", s.NetworkInfoItems),
		zap.Int("active_hosts", s.ActiveHosts),
	)
	return r, nil
}

func (a *Aggregator) abort(r *Report, err error) (*Report, error) {
	phase := a.Phase()
	a.transition(PhaseAborted)
	a.logger.Warn("analysis aborted, returning partial report",
		zap.String("report_id", r.ID),
		zap.Stringer("phase", phase),
		zap.Error(err),
	)
	return r, fmt.Errorf("%s: %w", phase, err)
}
