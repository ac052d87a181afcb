package output

import (
	"fmt"
	"io"
	"sync/atomic"
	"time"

	"github.com/Takch02/blabus-session2-item1/internal/metrics"
)

// VUCounter reports how many virtual users are currently running.
type VUCounter interface {
	ActiveVUs() int
}

// ProgressReporter displays real-time progress updates.
type ProgressReporter struct {
	collector *metrics.Collector
	vus       VUCounter
	interval  time.Duration
	done      chan struct{}
	finished  chan struct{}
	writer    io.Writer
	active    int32
	start     time.Time
}

// NewProgressReporter creates a progress reporter that updates at the given
// interval. vus may be nil.
func NewProgressReporter(collector *metrics.Collector, vus VUCounter, interval time.Duration, writer io.Writer) *ProgressReporter {
	if writer == nil {
		writer = io.Discard
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &ProgressReporter{
		collector: collector,
		vus:       vus,
		interval:  interval,
		done:      make(chan struct{}),
		finished:  make(chan struct{}),
		writer:    writer,
		start:     time.Now(),
	}
}

// Start begins displaying progress updates in a background goroutine.
func (p *ProgressReporter) Start() {
	if !atomic.CompareAndSwapInt32(&p.active, 0, 1) {
		return // already running
	}
	go p.run()
}

// Stop halts progress updates and ends the progress line.
func (p *ProgressReporter) Stop() {
	if atomic.CompareAndSwapInt32(&p.active, 1, 0) {
		close(p.done)
		<-p.finished
		fmt.Fprintln(p.writer)
	}
}

func (p *ProgressReporter) run() {
	defer close(p.finished)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			stats := p.collector.Stats(time.Since(p.start))
			fmt.Fprint(p.writer, "\r"+progressLine(stats, p.activeVUs()))
		case <-p.done:
			return
		}
	}
}

func (p *ProgressReporter) activeVUs() int {
	if p.vus == nil {
		return 0
	}
	return p.vus.ActiveVUs()
}

func progressLine(stats metrics.Stats, vus int) string {
	return fmt.Sprintf("VUs: %d | Requests: %d | Failures: %d | Checks: %.1f%% | P95: %.1fms | Iterations: %d | RPS: %.1f",
		vus, stats.Total, stats.Failures, stats.CheckPassRate()*100, stats.P95LatencyMs, stats.Iterations, stats.RequestsPerSec)
}
