// Package metrics records probe counters and durations and writes them in
// the Prometheus textfile format for node_exporter's textfile collector.
package metrics

import (
	"context"
	"errors"
	"time"

	"github.com/HerbHall/hostprobe/internal/report"
	"github.com/HerbHall/hostprobe/internal/runner"
	"github.com/prometheus/client_golang/prometheus"
)

// Probe kinds used as the "kind" label.
const (
	KindCollect = "collect"
	KindSweep   = "sweep"
)

// Probe outcomes used as the "outcome" label.
const (
	OutcomeOK        = "ok"
	OutcomeFailed    = "failed"
	OutcomeTimedOut  = "timed_out"
	OutcomeCancelled = "cancelled"
	OutcomeSpawn     = "spawn_error"
)

// Metrics owns a private registry so several runs in one process (tests)
// never collide on registration.
type Metrics struct {
	registry *prometheus.Registry

	probesTotal   *prometheus.CounterVec
	probeDuration *prometheus.HistogramVec
	reportItems   *prometheus.GaugeVec
	lastRun       prometheus.Gauge
	lastComplete  prometheus.Gauge
}

// New creates and registers the hostprobe collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		probesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "hostprobe",
				Name:      "probes_total",
				Help:      "Total number of probe commands run, by kind and outcome.",
			},
			[]string{"kind", "outcome"},
		),
		probeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "hostprobe",
				Name:      "probe_duration_seconds",
				Help:      "Probe command duration in seconds.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
		reportItems: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "hostprobe",
				Name:      "report_items",
				Help:      "Items in the last report, by section.",
			},
			[]string{"section"},
		),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hostprobe",
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last report was started.",
		}),
		lastComplete: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hostprobe",
			Name:      "last_run_complete",
			Help:      "1 if the last run finished every phase, 0 if it was partial.",
		}),
	}
	m.registry.MustRegister(m.probesTotal, m.probeDuration, m.reportItems, m.lastRun, m.lastComplete)
	return m
}

// Instrument wraps r so every call is counted under kind.
func (m *Metrics) Instrument(r runner.Runner, kind string) runner.Runner {
	return &instrumentedRunner{next: r, kind: kind, m: m}
}

// ObserveReport records the section sizes of a finished or partial report.
func (m *Metrics) ObserveReport(r *report.Report) {
	s := r.Summary()
	m.reportItems.WithLabelValues("system_info").Set(float64(s.SystemInfoItems))
	m.reportItems.WithLabelValues("network_info").Set(float64(s.NetworkInfoItems))
	m.reportItems.WithLabelValues("active_hosts").Set(float64(s.ActiveHosts))
	m.lastRun.Set(float64(r.Timestamp.Unix()))
	if r.Complete() {
		m.lastComplete.Set(1)
	} else {
		m.lastComplete.Set(0)
	}
}

// WriteTextfile writes every metric to path atomically.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}

type instrumentedRunner struct {
	next runner.Runner
	kind string
	m    *Metrics
}

func (ir *instrumentedRunner) Run(ctx context.Context, command string, timeout time.Duration) runner.ProbeResult {
	res := ir.next.Run(ctx, command, timeout)
	ir.m.probesTotal.WithLabelValues(ir.kind, Outcome(res)).Inc()
	ir.m.probeDuration.WithLabelValues(ir.kind).Observe(res.Duration.Seconds())
	return res
}

// Outcome classifies a probe result for the outcome label.
func Outcome(res runner.ProbeResult) string {
	switch {
	case !res.Failed:
		return OutcomeOK
	case errors.Is(res.Err, runner.ErrSpawn):
		return OutcomeSpawn
	case res.Reason == runner.ReasonCancelled:
		return OutcomeCancelled
	case res.Reason == runner.ReasonTimedOut:
		return OutcomeTimedOut
	default:
		return OutcomeFailed
	}
}
