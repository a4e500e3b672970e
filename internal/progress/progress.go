// Package progress defines the progress-reporting collaborator used by the
// collectors and the sweeper.
package progress

import (
	"sync"

	"go.uber.org/zap"
)

// Phase names reported by the aggregator's collection phases.
const (
	PhaseSystemInfo  = "system_info"
	PhaseNetworkInfo = "network_info"
	PhaseSweep       = "sweep"
)

// Reporter receives (phase, completed, total) updates. Implementations must
// be safe for concurrent use.
type Reporter interface {
	Update(phase string, completed, total int)
}

// ReporterFunc adapts a function to Reporter.
type ReporterFunc func(phase string, completed, total int)

func (f ReporterFunc) Update(phase string, completed, total int) { f(phase, completed, total) }

// Nop discards all updates.
var Nop Reporter = ReporterFunc(func(string, int, int) {})

// OrNop returns r, or Nop when r is nil.
func OrNop(r Reporter) Reporter {
	if r == nil {
		return Nop
	}
	return r
}

type update struct {
	phase            string
	completed, total int
}

// Async forwards updates to a slower Reporter on its own goroutine so that
// callers never block on rendering. When the buffer is full intermediate
// updates are dropped; the final update of a phase (completed == total) is
// always delivered. Close flushes and stops the forwarder.
type Async struct {
	next   Reporter
	ch     chan update
	done   chan struct{}
	mu     sync.RWMutex
	closed bool
}

// NewAsync starts a forwarder with the given buffer size.
func NewAsync(next Reporter, buffer int) *Async {
	if buffer < 1 {
		buffer = 1
	}
	a := &Async{
		next: OrNop(next),
		ch:   make(chan update, buffer),
		done: make(chan struct{}),
	}
	go a.loop()
	return a
}

func (a *Async) loop() {
	defer close(a.done)
	for u := range a.ch {
		a.next.Update(u.phase, u.completed, u.total)
	}
}

// Update enqueues an update without blocking, except for the final update of
// a phase which waits for buffer space.
func (a *Async) Update(phase string, completed, total int) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return
	}
	u := update{phase: phase, completed: completed, total: total}
	if completed >= total {
		a.ch <- u
		return
	}
	select {
	case a.ch <- u:
	default:
	}
}

// Close drains pending updates and stops the forwarder. Safe to call twice.
func (a *Async) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.ch)
	}
	a.mu.Unlock()
	<-a.done
}

// Log reports progress through a zap logger at debug level, plus an info
// line when a phase finishes.
type Log struct {
	logger *zap.Logger
}

// NewLog creates a logging reporter.
func NewLog(logger *zap.Logger) *Log {
	return &Log{logger: logger}
}

func (l *Log) Update(phase string, completed, total int) {
	fields := []zap.Field{
		zap.String("phase", phase),
		zap.Int("completed", completed),
		zap.Int("total", total),
	}
	if completed >= total {
		l.logger.Info("phase complete", fields...)
		return
	}
	l.logger.Debug("progress", fields...)
}

// Multi fans updates out to several reporters.
func Multi(reporters ...Reporter) Reporter {
	return ReporterFunc(func(phase string, completed, total int) {
		for _, r := range reporters {
			if r != nil {
				r.Update(phase, completed, total)
			}
		}
	})
}
