// Package collect runs fixed sets of forensic commands and assembles their
// successful outputs into an ordered category map.
package collect

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/HerbHall/hostprobe/internal/progress"
	"github.com/HerbHall/hostprobe/internal/runner"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Config holds the collector configuration.
type Config struct {
	Timeout     time.Duration `mapstructure:"timeout"`
	Concurrency int           `mapstructure:"concurrency"`
}

// DefaultConfig returns the default collector configuration.
func DefaultConfig() Config {
	return Config{
		Timeout:     30 * time.Second,
		Concurrency: 4,
	}
}

// Collector runs a CommandSet through a Runner with bounded concurrency.
type Collector struct {
	runner      runner.Runner
	concurrency int
	progress    progress.Reporter
	logger      *zap.Logger
}

// NewCollector creates a collector. A nil reporter disables progress.
func NewCollector(r runner.Runner, concurrency int, reporter progress.Reporter, logger *zap.Logger) *Collector {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Collector{
		runner:      r,
		concurrency: concurrency,
		progress:    progress.OrNop(reporter),
		logger:      logger,
	}
}

// Collect runs every command in set with its own timeout and returns the
// outputs of the commands that succeeded, in declaration order. Failed
// commands are logged and omitted.
//
// The returned error is non-nil only when the runner cannot spawn processes
// at all (wrapping runner.ErrSpawn) or ctx is done; the map then holds
// whatever completed before the abort.
func (c *Collector) Collect(ctx context.Context, set CommandSet, timeout time.Duration) (CollectionMap, error) {
	total := len(set.Commands)
	results := make([]runner.ProbeResult, total)
	ran := make([]bool, total)
	var completed atomic.Int64

	c.logger.Info("collecting",
		zap.String("set", set.Name),
		zap.Int("commands", total),
		zap.Int("concurrency", c.concurrency),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)

	for i, cmd := range set.Commands {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			res := c.runner.Run(gctx, cmd.Command, timeout)
			results[i], ran[i] = res, true
			c.progress.Update(set.Name, int(completed.Add(1)), total)

			if errors.Is(res.Err, runner.ErrSpawn) {
				return fmt.Errorf("collect %q: %w", cmd.Label, res.Err)
			}
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	var out CollectionMap
	for i, cmd := range set.Commands {
		if !ran[i] {
			continue
		}
		res := results[i]
		if res.Failed {
			c.logFailure(set.Name, cmd, res)
			continue
		}
		out.set(cmd.Label, res.Output)
	}

	if err != nil {
		c.logger.Warn("collection aborted",
			zap.String("set", set.Name),
			zap.Int("collected", out.Len()),
			zap.Error(err),
		)
		return out, err
	}

	c.logger.Info("collection complete",
		zap.String("set", set.Name),
		zap.Int("collected", out.Len()),
		zap.Int("failed", total-out.Len()),
	)
	return out, nil
}

func (c *Collector) logFailure(set string, cmd Command, res runner.ProbeResult) {
	if res.Reason == runner.ReasonCancelled {
		c.logger.Debug("command cancelled", zap.String("set", set), zap.String("category", cmd.Label))
		return
	}
	c.logger.Warn("command failed, category omitted",
		zap.String("set", set),
		zap.String("category", cmd.Label),
		zap.String("command", cmd.Command),
		zap.String("reason", res.Reason),
	)
}
