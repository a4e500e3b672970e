// Package sweep discovers live hosts in a /24 by running the OS ping utility
// against every host address through a bounded worker pool.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/HerbHall/hostprobe/internal/progress"
	"github.com/HerbHall/hostprobe/internal/runner"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Sweeper probes each host of a subnet with a single-packet liveness check.
type Sweeper struct {
	runner   runner.Runner
	cfg      Config
	limiter  *rate.Limiter
	progress progress.Reporter
	logger   *zap.Logger
}

// NewSweeper creates a sweeper. A nil reporter disables progress.
func NewSweeper(r runner.Runner, cfg Config, reporter progress.Reporter, logger *zap.Logger) *Sweeper {
	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}
	if cfg.ReplyMarker == "" {
		cfg.ReplyMarker = DefaultConfig().ReplyMarker
	}
	if cfg.ProbeCommand == "" {
		cfg.ProbeCommand = DefaultConfig().ProbeCommand
	}
	s := &Sweeper{
		runner:   r,
		cfg:      cfg,
		progress: progress.OrNop(reporter),
		logger:   logger,
	}
	if cfg.Rate > 0 {
		s.limiter = rate.NewLimiter(rate.Limit(cfg.Rate), 1)
	}
	return s
}

// ProbeCommand renders the probe command line for ip.
func (s *Sweeper) ProbeCommand(ip string) string {
	return strings.NewReplacer(
		"{ip}", ip,
		"{wait_ms}", strconv.FormatInt(s.cfg.PingWait.Milliseconds(), 10),
	).Replace(s.cfg.ProbeCommand)
}

// Sweep probes prefix.1 through prefix.254 and returns the addresses whose
// probe output contains the reply marker, sorted by host number.
//
// Unreachable hosts and failed probes are not errors. The returned error is
// non-nil only when the runner cannot spawn processes (wrapping
// runner.ErrSpawn) or ctx is done; the hosts found before that are still
// returned.
func (s *Sweeper) Sweep(ctx context.Context, prefix string) ([]string, error) {
	if !ValidPrefix(prefix) {
		s.logger.Warn("subnet prefix is not three IPv4 octets; probes are expected to fail",
			zap.String("prefix", prefix))
	}

	s.logger.Info("starting subnet sweep",
		zap.String("prefix", prefix),
		zap.Int("hosts", HostCount),
		zap.Int("concurrency", s.cfg.Concurrency),
		zap.Duration("probe_timeout", s.cfg.ProbeTimeout),
	)

	// Each worker owns one slot; addrs is already in host order.
	addrs := Addresses(prefix)
	live := make([]bool, len(addrs))
	var completed atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for i, ip := range addrs {
		if s.limiter != nil {
			if err := s.limiter.Wait(gctx); err != nil {
				break
			}
		}
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			res := s.runner.Run(gctx, s.ProbeCommand(ip), s.cfg.ProbeTimeout)
			s.progress.Update(progress.PhaseSweep, int(completed.Add(1)), len(addrs))

			if errors.Is(res.Err, runner.ErrSpawn) {
				return fmt.Errorf("probe %s: %w", ip, res.Err)
			}
			if strings.Contains(res.Output, s.cfg.ReplyMarker) {
				live[i] = true
				s.logger.Debug("host alive", zap.String("ip", ip))
			} else if res.Failed {
				s.logger.Debug("probe failed", zap.String("ip", ip), zap.String("reason", res.Reason))
			}
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	hosts := make([]string, 0)
	for i, ip := range addrs {
		if live[i] {
			hosts = append(hosts, ip)
		}
	}

	if err != nil {
		s.logger.Warn("subnet sweep aborted",
			zap.String("prefix", prefix),
			zap.Int("probed", int(completed.Load())),
			zap.Int("alive", len(hosts)),
			zap.Error(err),
		)
		return hosts, err
	}

	s.logger.Info("subnet sweep complete",
		zap.String("prefix", prefix),
		zap.Int("alive", len(hosts)),
	)
	return hosts, nil
}
