// Package sysmon watches the load generator's own CPU usage so a saturated
// generator is not mistaken for a slow target.
package sysmon

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/process"
)

const (
	DefaultInterval  = 2 * time.Second
	DefaultThreshold = 90.0
)

// Sampler reports CPU usage since its previous call. *process.Process
// satisfies it.
type Sampler interface {
	Percent(interval time.Duration) (float64, error)
}

// Summary describes the CPU usage observed over a run. Percentages are of
// the whole machine.
type Summary struct {
	Samples   int
	Peak      float64
	Mean      float64
	Saturated int
}

// Monitor periodically samples CPU usage and warns while it stays above the
// threshold.
type Monitor struct {
	sampler   Sampler
	interval  time.Duration
	threshold float64
	numCPU    int
	logger    zerolog.Logger

	mu        sync.Mutex
	samples   int
	sum       float64
	peak      float64
	saturated int
	hot       bool
}

type Option func(*Monitor)

func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		if d > 0 {
			m.interval = d
		}
	}
}

// WithThreshold sets the machine-wide CPU percentage that counts as saturated.
func WithThreshold(pct float64) Option {
	return func(m *Monitor) {
		if pct > 0 {
			m.threshold = pct
		}
	}
}

// WithSampler replaces the process sampler.
func WithSampler(s Sampler) Option {
	return func(m *Monitor) {
		if s != nil {
			m.sampler = s
		}
	}
}

// New returns a Monitor for the current process.
func New(logger zerolog.Logger, opts ...Option) (*Monitor, error) {
	m := &Monitor{
		interval:  DefaultInterval,
		threshold: DefaultThreshold,
		numCPU:    runtime.NumCPU(),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.sampler == nil {
		proc, err := process.NewProcess(int32(os.Getpid()))
		if err != nil {
			return nil, fmt.Errorf("inspect own process: %w", err)
		}
		m.sampler = proc
	}
	if m.numCPU < 1 {
		m.numCPU = 1
	}
	return m, nil
}

// Run samples until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	// The first non-blocking call only primes the sampler.
	if _, err := m.sampler.Percent(0); err != nil {
		m.logger.Debug().Err(err).Msg("cpu sampling unavailable")
		return
	}

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pct, err := m.sampler.Percent(0)
			if err != nil {
				m.logger.Debug().Err(err).Msg("cpu sample failed")
				continue
			}
			m.record(pct / float64(m.numCPU))
		}
	}
}

func (m *Monitor) record(pct float64) {
	m.mu.Lock()
	m.samples++
	m.sum += pct
	if pct > m.peak {
		m.peak = pct
	}
	wasHot := m.hot
	m.hot = pct >= m.threshold
	if m.hot {
		m.saturated++
	}
	hot := m.hot
	m.mu.Unlock()

	switch {
	case hot && !wasHot:
		m.logger.Warn().
			Float64("cpu_percent", pct).
			Float64("threshold", m.threshold).
			Msg("load generator CPU is saturated; latency figures may be inflated")
	case !hot && wasHot:
		m.logger.Info().Float64("cpu_percent", pct).Msg("load generator CPU recovered")
	}
}

// Summary returns what has been observed so far.
func (m *Monitor) Summary() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()
	s := Summary{Samples: m.samples, Peak: m.peak, Saturated: m.saturated}
	if m.samples > 0 {
		s.Mean = m.sum / float64(m.samples)
	}
	return s
}
