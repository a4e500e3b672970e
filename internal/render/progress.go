package render

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/HerbHall/hostprobe/internal/progress"
)

var phaseTitles = map[string]string{
	progress.PhaseSystemInfo:  "Collecting system information",
	progress.PhaseNetworkInfo: "Collecting network information",
	progress.PhaseSweep:       "Scanning subnet",
}

// Progress draws a single updating status line per phase. It is meant to
// sit behind a progress.Async so the collectors never wait on the terminal.
// Workers finish out of order, so an update that does not advance a phase
// is dropped; nothing is drawn after a phase's final line.
type Progress struct {
	w     io.Writer
	color bool

	mu    sync.Mutex
	start map[string]time.Time
	seen  map[string]int
	now   func() time.Time
}

// NewProgress creates a terminal progress reporter.
func NewProgress(w io.Writer, color bool) *Progress {
	return &Progress{
		w:     w,
		color: color,
		start: make(map[string]time.Time),
		seen:  make(map[string]int),
		now:   time.Now,
	}
}

func (p *Progress) Update(phase string, completed, total int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if last, ok := p.seen[phase]; ok && completed <= last {
		return
	}
	p.seen[phase] = completed

	started, ok := p.start[phase]
	if !ok {
		started = p.now()
		p.start[phase] = started
	}

	title, ok := phaseTitles[phase]
	if !ok {
		title = phase
	}

	pct := float64(100)
	if total > 0 {
		pct = float64(completed) / float64(total) * 100
	}

	prefix := "\r"
	if p.color {
		prefix = "\r\033[K"
	}
	fmt.Fprintf(p.w, "%s[%3.0f%%] %s %d/%d", prefix, pct, title, completed, total)
	if completed >= total {
		elapsed := p.now().Sub(started).Round(time.Millisecond)
		fmt.Fprintf(p.w, " (%s)\n", elapsed)
	}
}
