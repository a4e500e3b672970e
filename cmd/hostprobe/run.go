package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/HerbHall/hostprobe/internal/collect"
	"github.com/HerbHall/hostprobe/internal/config"
	"github.com/HerbHall/hostprobe/internal/export"
	"github.com/HerbHall/hostprobe/internal/metrics"
	"github.com/HerbHall/hostprobe/internal/progress"
	"github.com/HerbHall/hostprobe/internal/render"
	"github.com/HerbHall/hostprobe/internal/report"
	"github.com/HerbHall/hostprobe/internal/runner"
	"github.com/HerbHall/hostprobe/internal/store"
	"github.com/HerbHall/hostprobe/internal/sweep"
	"github.com/HerbHall/hostprobe/internal/version"
	"go.uber.org/zap"
)

// errInterrupted is returned after a SIGINT/SIGTERM cut the run short. The
// partial report has already been shown by then.
var errInterrupted = errors.New("analysis interrupted")

const progressBuffer = 64

// runAnalysis confirms, runs the aggregator and hands the report to the
// presentation, export, metrics and archive collaborators. stop releases the
// signal handler once the probes are done so a second Ctrl+C at a prompt
// terminates the process.
func runAnalysis(ctx context.Context, stop context.CancelFunc, cfg *config.Config, d deps, logger *zap.Logger) error {
	out := render.NewPrinter(d.stdout, d.color)
	prompt := newPrompter(d, cfg.AssumeYes)

	if !cfg.Output.Disable {
		if err := export.EnsureDir(cfg.Output.Path); err != nil {
			return err
		}
	}

	out.Banner(version.Short())
	if !prompt.Confirm("Start forensic analysis?") {
		out.Info("Analysis not started.")
		return nil
	}

	var opts []report.Option
	host, err := d.detectHost(ctx)
	if err != nil {
		logger.Warn("host metadata unavailable", zap.Error(err))
	} else {
		opts = append(opts, report.WithHostInfo(host))
	}

	m := metrics.New()
	base := d.runner(logger)

	display := progress.NewAsync(progress.Multi(
		render.NewProgress(d.stderr, d.color),
		progress.NewLog(logger.Named("progress")),
	), progressBuffer)

	collector := collect.NewCollector(
		m.Instrument(base, metrics.KindCollect),
		cfg.Collect.Concurrency,
		display,
		logger.Named("collect"),
	)
	sweeper := sweep.NewSweeper(
		m.Instrument(base, metrics.KindSweep),
		cfg.Sweep,
		display,
		logger.Named("sweep"),
	)
	agg := report.NewAggregator(collector, sweeper, cfg.Collect.Timeout, logger.Named("report"), opts...)

	r, runErr := agg.Run(ctx, report.Request{Subnet: cfg.Subnet, Confirmed: true})
	display.Close()
	if stop != nil {
		stop()
	}
	if r == nil {
		return runErr
	}

	interrupted := errors.Is(runErr, context.Canceled)
	switch {
	case interrupted:
		out.Error("Analysis interrupted by user.")
	case runErr != nil:
		out.Error("Analysis aborted: %v", runErr)
	}

	out.ResultsTable(r)
	out.Summary(r)

	m.ObserveReport(r)
	if cfg.Metrics.Textfile != "" {
		if err := m.WriteTextfile(cfg.Metrics.Textfile); err != nil {
			logger.Warn("write metrics textfile", zap.String("path", cfg.Metrics.Textfile), zap.Error(err))
		}
	}

	// The run context may already be cancelled; persisting the evidence
	// must not be.
	persistCtx := context.WithoutCancel(ctx)

	var exported string
	if !cfg.Output.Disable && prompt.Confirm("Do you want to export the results to a JSON file?") {
		res, err := export.WriteJSON(cfg.Output.Path, r, cfg.Output.Digest)
		if err != nil {
			logger.Error("export failed", zap.String("path", cfg.Output.Path), zap.Error(err))
			out.Error("Error exporting results: %v", err)
		} else {
			exported = res.Path
			logger.Info("results exported",
				zap.String("path", res.Path),
				zap.String("digest", res.Digest),
				zap.Int("bytes", res.Bytes),
			)
			out.Success("Results exported to %s", res.Path)
		}
	}

	if cfg.Archive.Path != "" {
		if err := archiveRun(persistCtx, cfg.Archive.Path, r, exported); err != nil {
			logger.Error("archive failed", zap.String("path", cfg.Archive.Path), zap.Error(err))
			out.Error("Error archiving run: %v", err)
		} else {
			out.Info("Run %s archived to %s", r.ID, cfg.Archive.Path)
		}
	}

	if interrupted {
		return errInterrupted
	}
	if errors.Is(runErr, runner.ErrSpawn) {
		return fmt.Errorf("runner failure: %w", runErr)
	}
	return runErr
}

func archiveRun(ctx context.Context, path string, r *report.Report, exported string) error {
	s, err := openArchive(ctx, path)
	if err != nil {
		return err
	}
	defer s.Close()

	a, err := store.NewArchive(ctx, s)
	if err != nil {
		return err
	}
	_, err = a.Save(ctx, r, exported)
	return err
}

// openArchive opens the SQLite archive and refuses archives from newer builds.
func openArchive(ctx context.Context, path string) (*store.SQLiteStore, error) {
	if err := export.EnsureDir(path); err != nil {
		return nil, err
	}
	s, err := store.New(path)
	if err != nil {
		return nil, err
	}
	if err := s.CheckVersion(ctx, version.Short()); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
