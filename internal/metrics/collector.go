package metrics

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// TransportErrorCode is the status bucket used when no response was received.
const TransportErrorCode = "error"

// Observer receives every sample the collector records.
type Observer interface {
	ObserveRequest(latency time.Duration, statusCode int, failed bool)
	ObserveCheck(name string, pass bool)
	ObserveIteration(interrupted bool)
}

// Collector records per-request metrics in a thread-safe manner.
type Collector struct {
	mu           sync.Mutex
	hist         *hdrhistogram.Histogram
	successes    int64
	failures     int64
	minLatency   time.Duration
	maxLatency   time.Duration
	sumLatency   time.Duration
	errorsByCategory map[string]int64
	statusCodes  map[string]int64
	checks       map[string]*checkCounts
	iterations   int64
	interrupted  int64
	observers    []Observer
	start        time.Time
}

type checkCounts struct {
	passes int64
	fails  int64
}

// CheckStats holds the pass/fail tally of one named check.
type CheckStats struct {
	Name   string `json:"name"`
	Passes int64  `json:"passes"`
	Fails  int64  `json:"fails"`
}

// PassRate returns passes / (passes + fails), or 0 without samples.
func (c CheckStats) PassRate() float64 {
	total := c.Passes + c.Fails
	if total == 0 {
		return 0
	}
	return float64(c.Passes) / float64(total)
}

// Stats represents aggregated metrics.
type Stats struct {
	Total                 int64         `json:"total"`
	Successes             int64         `json:"successes"`
	Failures              int64         `json:"failures"`
	Iterations            int64         `json:"iterations"`
	InterruptedIterations int64         `json:"interrupted_iterations"`
	MinLatency            time.Duration `json:"-"`
	MaxLatency            time.Duration `json:"-"`
	MeanLatency           time.Duration `json:"-"`
	P50Latency            time.Duration `json:"-"`
	P90Latency            time.Duration `json:"-"`
	P95Latency            time.Duration `json:"-"`
	P99Latency            time.Duration `json:"-"`
	Duration              time.Duration `json:"-"`
	RequestsPerSec        float64       `json:"requests_per_sec"`
	IterationsPerSec      float64       `json:"iterations_per_sec"`

	// JSON-friendly millisecond fields.
	MinLatencyMs  float64        `json:"min_latency_ms"`
	MaxLatencyMs  float64        `json:"max_latency_ms"`
	MeanLatencyMs float64        `json:"mean_latency_ms"`
	P50LatencyMs  float64        `json:"p50_latency_ms"`
	P90LatencyMs  float64        `json:"p90_latency_ms"`
	P95LatencyMs  float64        `json:"p95_latency_ms"`
	P99LatencyMs  float64        `json:"p99_latency_ms"`
	DurationMs    float64        `json:"duration_ms"`
	Errors        map[string]int `json:"errors,omitempty"`
	StatusCodes   map[string]int `json:"status_codes,omitempty"`
	Checks        []CheckStats   `json:"checks,omitempty"`

	hist *hdrhistogram.Histogram
}

func NewCollector() *Collector {
	// Track latencies from 1µs up to 60s with 3 significant figures.
	h := hdrhistogram.New(1, 60_000_000, 3)
	return &Collector{
		hist:         h,
		errorsByCategory: make(map[string]int64),
		statusCodes:  make(map[string]int64),
		checks:       make(map[string]*checkCounts),
		start:        time.Now(),
	}
}

// AddObserver registers o to receive every subsequent sample. It must be
// called before the run starts.
func (c *Collector) AddObserver(o Observer) {
	if o == nil {
		return
	}
	c.mu.Lock()
	c.observers = append(c.observers, o)
	c.mu.Unlock()
}

// RecordRequest records a single request's latency and outcome. statusCode is
// zero when no response arrived; err carries the transport error in that case.
// A request counts as failed on a transport error or a status of 400 and above.
func (c *Collector) RecordRequest(latency time.Duration, statusCode int, err error) {
	failed := err != nil || statusCode >= 400

	c.mu.Lock()
	if latency > 0 {
		us := latency.Microseconds()
		if us < c.hist.LowestTrackableValue() {
			us = c.hist.LowestTrackableValue()
		}
		if us > c.hist.HighestTrackableValue() {
			us = c.hist.HighestTrackableValue()
		}
		_ = c.hist.RecordValue(us)
	}
	c.sumLatency += latency

	if c.minLatency == 0 || latency < c.minLatency {
		c.minLatency = latency
	}
	if latency > c.maxLatency {
		c.maxLatency = latency
	}

	if statusCode > 0 {
		c.statusCodes[strconv.Itoa(statusCode)]++
	} else {
		c.statusCodes[TransportErrorCode]++
	}

	if !failed {
		c.successes++
	} else {
		c.failures++
		if err != nil {
			c.errorsByCategory[ErrorCategory(err)]++
		} else {
			c.errorsByCategory[httpErrorKey(statusCode)]++
		}
	}
	observers := c.observers
	c.mu.Unlock()

	for _, o := range observers {
		o.ObserveRequest(latency, statusCode, failed)
	}
}

// RecordCheck records the outcome of one named check.
func (c *Collector) RecordCheck(name string, pass bool) {
	c.mu.Lock()
	counts, ok := c.checks[name]
	if !ok {
		counts = &checkCounts{}
		c.checks[name] = counts
	}
	if pass {
		counts.passes++
	} else {
		counts.fails++
	}
	observers := c.observers
	c.mu.Unlock()

	for _, o := range observers {
		o.ObserveCheck(name, pass)
	}
}

// RecordIteration counts one iteration. Interrupted iterations were cut short
// by the end of the run and are tallied separately.
func (c *Collector) RecordIteration(interrupted bool) {
	c.mu.Lock()
	if interrupted {
		c.interrupted++
	} else {
		c.iterations++
	}
	observers := c.observers
	c.mu.Unlock()

	for _, o := range observers {
		o.ObserveIteration(interrupted)
	}
}

// StartedAt returns when the collector was created.
func (c *Collector) StartedAt() time.Time {
	return c.start
}

// Stats computes and returns current aggregated statistics.
func (c *Collector) Stats(elapsed time.Duration) Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := c.successes + c.failures
	stats := Stats{
		Total:                 total,
		Successes:             c.successes,
		Failures:              c.failures,
		Iterations:            c.iterations,
		InterruptedIterations: c.interrupted,
		MinLatency:            c.minLatency,
		MaxLatency:            c.maxLatency,
		hist:                  hdrhistogram.Import(c.hist.Export()),
	}

	if total > 0 {
		stats.MeanLatency = time.Duration(int64(c.sumLatency) / total)
	}

	if c.hist.TotalCount() > 0 {
		stats.P50Latency = stats.Percentile(50)
		stats.P90Latency = stats.Percentile(90)
		stats.P95Latency = stats.Percentile(95)
		stats.P99Latency = stats.Percentile(99)
	}

	stats.MinLatencyMs = durationMs(stats.MinLatency)
	stats.MaxLatencyMs = durationMs(stats.MaxLatency)
	stats.MeanLatencyMs = durationMs(stats.MeanLatency)
	stats.P50LatencyMs = durationMs(stats.P50Latency)
	stats.P90LatencyMs = durationMs(stats.P90Latency)
	stats.P95LatencyMs = durationMs(stats.P95Latency)
	stats.P99LatencyMs = durationMs(stats.P99Latency)

	stats.Duration = elapsed
	stats.DurationMs = durationMs(elapsed)
	if elapsed > 0 {
		stats.RequestsPerSec = float64(total) / elapsed.Seconds()
		stats.IterationsPerSec = float64(c.iterations) / elapsed.Seconds()
	}

	if len(c.errorsByCategory) > 0 {
		stats.Errors = make(map[string]int, len(c.errorsByCategory))
		for k, v := range c.errorsByCategory {
			stats.Errors[k] = int(v)
		}
	}
	if len(c.statusCodes) > 0 {
		stats.StatusCodes = make(map[string]int, len(c.statusCodes))
		for k, v := range c.statusCodes {
			stats.StatusCodes[k] = int(v)
		}
	}
	if len(c.checks) > 0 {
		stats.Checks = make([]CheckStats, 0, len(c.checks))
		for name, counts := range c.checks {
			stats.Checks = append(stats.Checks, CheckStats{Name: name, Passes: counts.passes, Fails: counts.fails})
		}
		sort.Slice(stats.Checks, func(i, j int) bool { return stats.Checks[i].Name < stats.Checks[j].Name })
	}

	return stats
}

// Percentile returns the latency at percentile p (0 < p <= 100), or zero
// when no latency was recorded. Stats not produced by a Collector only
// answer the fixed P50/P90/P95/P99 fields.
func (s Stats) Percentile(p float64) time.Duration {
	if s.hist == nil {
		switch p {
		case 50:
			return s.P50Latency
		case 90:
			return s.P90Latency
		case 95:
			return s.P95Latency
		case 99:
			return s.P99Latency
		}
		return 0
	}
	if s.hist.TotalCount() == 0 {
		return 0
	}
	// ValueAtQuantile reports the top of the bucket, which can exceed every
	// recorded sample.
	v := time.Duration(s.hist.ValueAtQuantile(p)) * time.Microsecond
	if v > s.MaxLatency {
		v = s.MaxLatency
	}
	if v < s.MinLatency {
		v = s.MinLatency
	}
	return v
}

// FailureRate returns the share of requests that failed.
func (s Stats) FailureRate() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Failures) / float64(s.Total)
}

// CheckPassRate returns the pass rate across every check, or 0 without checks.
func (s Stats) CheckPassRate() float64 {
	var passes, total int64
	for _, c := range s.Checks {
		passes += c.Passes
		total += c.Passes + c.Fails
	}
	if total == 0 {
		return 0
	}
	return float64(passes) / float64(total)
}

func durationMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
