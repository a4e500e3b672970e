// Package config loads hostprobe settings with Viper and builds the logger.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/HerbHall/hostprobe/internal/collect"
	"github.com/HerbHall/hostprobe/internal/sweep"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment overrides, e.g. HOSTPROBE_SWEEP_CONCURRENCY.
const EnvPrefix = "HOSTPROBE"

// Config is the typed view of all settings.
type Config struct {
	Subnet    string         `mapstructure:"subnet"`
	AssumeYes bool           `mapstructure:"assume_yes"`
	Collect   collect.Config `mapstructure:"collect"`
	Sweep     sweep.Config   `mapstructure:"sweep"`
	Output    OutputConfig   `mapstructure:"output"`
	Archive   ArchiveConfig  `mapstructure:"archive"`
	Metrics   MetricsConfig  `mapstructure:"metrics"`
	Logging   LoggingConfig  `mapstructure:"logging"`
}

// OutputConfig controls the JSON export.
type OutputConfig struct {
	Path    string `mapstructure:"path"`
	Disable bool   `mapstructure:"disable"`
	Digest  bool   `mapstructure:"digest"`
}

// ArchiveConfig controls the SQLite run archive. An empty path disables it.
type ArchiveConfig struct {
	Path string `mapstructure:"path"`
}

// MetricsConfig controls the Prometheus textfile. An empty path disables it.
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}

// LoggingConfig mirrors the logging.* keys read by NewLogger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	File   string `mapstructure:"file"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	cd := collect.DefaultConfig()
	sd := sweep.DefaultConfig()

	v.SetDefault("subnet", "")
	v.SetDefault("assume_yes", false)

	v.SetDefault("collect.timeout", cd.Timeout)
	v.SetDefault("collect.concurrency", cd.Concurrency)

	v.SetDefault("sweep.probe_timeout", sd.ProbeTimeout)
	v.SetDefault("sweep.ping_wait", sd.PingWait)
	v.SetDefault("sweep.concurrency", sd.Concurrency)
	v.SetDefault("sweep.rate", sd.Rate)
	v.SetDefault("sweep.probe_command", sd.ProbeCommand)
	v.SetDefault("sweep.reply_marker", sd.ReplyMarker)

	v.SetDefault("output.path", "forensic_results.json")
	v.SetDefault("output.disable", false)
	v.SetDefault("output.digest", true)

	v.SetDefault("archive.path", "")
	v.SetDefault("metrics.textfile", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.file", "forensic_scan.log")
}

// Load builds a Viper instance from defaults, an optional config file and
// HOSTPROBE_* environment variables. With an empty configPath it looks for
// hostprobe.yaml in . and ./configs and tolerates its absence.
func Load(configPath string) (*viper.Viper, error) {
	v := viper.New()
	SetDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("hostprobe")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// Decode unmarshals v into a Config and validates it.
func Decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the collectors cannot run with.
func (c *Config) Validate() error {
	var errs []error
	if c.Collect.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("collect.timeout must be positive, got %s", c.Collect.Timeout))
	}
	if c.Collect.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("collect.concurrency must be at least 1, got %d", c.Collect.Concurrency))
	}
	if c.Sweep.ProbeTimeout <= 0 {
		errs = append(errs, fmt.Errorf("sweep.probe_timeout must be positive, got %s", c.Sweep.ProbeTimeout))
	}
	if c.Sweep.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("sweep.concurrency must be at least 1, got %d", c.Sweep.Concurrency))
	}
	if c.Sweep.Rate < 0 {
		errs = append(errs, fmt.Errorf("sweep.rate must not be negative, got %g", c.Sweep.Rate))
	}
	if !strings.Contains(c.Sweep.ProbeCommand, "{ip}") {
		errs = append(errs, fmt.Errorf("sweep.probe_command must contain {ip}, got %q", c.Sweep.ProbeCommand))
	}
	if c.Sweep.ReplyMarker == "" {
		errs = append(errs, errors.New("sweep.reply_marker must not be empty"))
	}
	return errors.Join(errs...)
}
