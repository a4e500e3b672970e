package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/HerbHall/hostprobe/internal/config"
	"github.com/HerbHall/hostprobe/internal/platform"
	"github.com/HerbHall/hostprobe/internal/render"
	"github.com/HerbHall/hostprobe/internal/runner"
	"github.com/HerbHall/hostprobe/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/term"
)

// deps are the process-level collaborators. Tests replace them.
type deps struct {
	goos       string
	stdin      io.Reader
	stdout     io.Writer
	stderr     io.Writer
	color      bool
	terminal   bool
	runner     func(logger *zap.Logger) runner.Runner
	detectHost func(ctx context.Context) (platform.HostInfo, error)
	newLogger  func(v *viper.Viper) (*zap.Logger, error)
}

func defaultDeps() deps {
	return deps{
		goos:     runtime.GOOS,
		stdin:    os.Stdin,
		stdout:   os.Stdout,
		stderr:   os.Stderr,
		color:    term.IsTerminal(int(os.Stdout.Fd())),
		terminal: term.IsTerminal(int(os.Stdin.Fd())),
		runner: func(logger *zap.Logger) runner.Runner {
			return runner.NewShellRunner(logger.Named("runner"))
		},
		detectHost: platform.Detect,
		newLogger:  config.NewLogger,
	}
}

// flagBindings maps viper keys to root command flags.
var flagBindings = map[string]string{
	"subnet":              "subnet",
	"output.path":         "output",
	"output.disable":      "no-export",
	"logging.file":        "log",
	"logging.level":       "log-level",
	"assume_yes":          "yes",
	"archive.path":        "archive",
	"metrics.textfile":    "metrics-textfile",
	"sweep.concurrency":   "concurrency",
	"collect.concurrency": "collect-concurrency",
}

func newRootCmd(d deps) *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:     "hostprobe [--subnet 192.168.1] [flags]",
		Short:   "Windows host forensics collector with a /24 ping sweep",
		Version: version.Short(),
		Long: `hostprobe runs a fixed set of Windows system and network commands,
optionally pings every host of a /24 subnet, and aggregates everything
into one JSON report. Failed commands are omitted, never fatal.`,
		Example: `  hostprobe
  hostprobe --subnet 192.168.1
  hostprobe --subnet 10.0.0 --output cases/ws042/results.json --yes
  hostprobe --subnet 10.0.0 --archive cases.db --metrics-textfile hostprobe.prom`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := platform.Check(d.goos); err != nil {
				return err
			}

			v, cfg, err := loadConfig(configPath, cmd.Flags())
			if err != nil {
				return err
			}
			logger, err := d.newLogger(v)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runAnalysis(ctx, stop, cfg, d, logger)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: hostprobe.yaml in . or ./configs)")

	f := cmd.Flags()
	f.StringP("subnet", "s", "", "Subnet to scan, first three octets (e.g. 192.168.1)")
	f.StringP("output", "o", "forensic_results.json", "Output file for results")
	f.String("log", "forensic_scan.log", "Log file location (empty logs to stderr only)")
	f.String("log-level", "info", "Log level: debug, info, warn, error")
	f.BoolP("yes", "y", false, "Answer yes to every prompt")
	f.Bool("no-export", false, "Do not write the JSON report")
	f.String("archive", "", "SQLite case archive to record the run in")
	f.String("metrics-textfile", "", "Write Prometheus metrics to this file")
	f.Int("concurrency", 32, "Concurrent ping probes")
	f.Int("collect-concurrency", 4, "Concurrent collection commands")

	cmd.AddCommand(newHistoryCmd(d, &configPath), newVersionCmd(d))
	cmd.SetIn(d.stdin)
	cmd.SetOut(d.stdout)
	cmd.SetErr(d.stderr)
	return cmd
}

// loadConfig layers defaults, the config file, HOSTPROBE_* env vars and the
// flags that were set on the command line.
func loadConfig(configPath string, flags *pflag.FlagSet) (*viper.Viper, *config.Config, error) {
	v, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}
	for key, name := range flagBindings {
		if fl := flags.Lookup(name); fl != nil {
			if err := v.BindPFlag(key, fl); err != nil {
				return nil, nil, fmt.Errorf("bind flag --%s: %w", name, err)
			}
		}
	}
	cfg, err := config.Decode(v)
	if err != nil {
		return nil, nil, err
	}
	return v, cfg, nil
}

func newPrompter(d deps, assumeYes bool) *render.Prompter {
	return render.NewPrompter(d.stdin, d.stdout, d.terminal, assumeYes)
}

func newVersionCmd(d deps) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(d.stdout, version.Info())
		},
	}
}
