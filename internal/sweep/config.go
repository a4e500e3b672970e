package sweep

import "time"

// Config holds the subnet sweep configuration.
type Config struct {
	ProbeTimeout time.Duration `mapstructure:"probe_timeout"`
	PingWait     time.Duration `mapstructure:"ping_wait"`
	Concurrency  int           `mapstructure:"concurrency"`
	Rate         float64       `mapstructure:"rate"` // probe launches per second; 0 disables limiting
	ProbeCommand string        `mapstructure:"probe_command"`
	ReplyMarker  string        `mapstructure:"reply_marker"`
}

// DefaultConfig returns the default sweep configuration.
func DefaultConfig() Config {
	return Config{
		ProbeTimeout: 2 * time.Second,
		PingWait:     200 * time.Millisecond,
		Concurrency:  32,
		ProbeCommand: "ping -n 1 -w {wait_ms} {ip}",
		ReplyMarker:  "Reply from",
	}
}
