package threshold

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Takch02/blabus-session2-item1/internal/metrics"
)

// Metric names understood by the evaluator.
const (
	MetricDuration   = "http_req_duration"
	MetricFailed     = "http_req_failed"
	MetricRequests   = "http_reqs"
	MetricChecks     = "checks"
	MetricIterations = "iterations"
)

// Threshold represents a performance assertion that can pass or fail.
type Threshold struct {
	Metric     string  // e.g., "http_req_duration", "http_req_failed"
	Aggregate  string  // "p", "avg", "min", "max", "med", "rate" or "count"
	Percentile float64 // set when Aggregate is "p", in (0, 100]
	Operator   string  // "<", "<=", ">", ">=", "==" or "!="
	Value      float64 // The threshold value to compare against
	Raw        string  // Original threshold string for display
}

// Result represents the outcome of evaluating a threshold.
type Result struct {
	Threshold Threshold
	Actual    float64
	Pass      bool
	Message   string
}

// Breach is returned when at least one threshold failed at the end of a run.
type Breach struct {
	Failed []Result
}

func (b *Breach) Error() string {
	parts := make([]string, 0, len(b.Failed))
	for _, r := range b.Failed {
		parts = append(parts, fmt.Sprintf("%s (actual %.2f)", r.Threshold.Raw, r.Actual))
	}
	return fmt.Sprintf("%d threshold(s) breached: %s", len(b.Failed), strings.Join(parts, "; "))
}

// Verdict returns a *Breach listing the failed results, or nil when all passed.
func Verdict(results []Result) error {
	var failed []Result
	for _, r := range results {
		if !r.Pass {
			failed = append(failed, r)
		}
	}
	if len(failed) == 0 {
		return nil
	}
	return &Breach{Failed: failed}
}

// Evaluator evaluates thresholds against collected metrics.
type Evaluator struct {
	thresholds []Threshold
}

// NewEvaluator creates a new threshold evaluator.
func NewEvaluator(thresholds []Threshold) *Evaluator {
	return &Evaluator{
		thresholds: thresholds,
	}
}

// Thresholds returns the thresholds the evaluator checks.
func (e *Evaluator) Thresholds() []Threshold {
	return e.thresholds
}

// Evaluate checks all thresholds against the provided stats.
func (e *Evaluator) Evaluate(stats metrics.Stats) []Result {
	if len(e.thresholds) == 0 {
		return nil
	}

	results := make([]Result, 0, len(e.thresholds))
	for _, t := range e.thresholds {
		result := e.evaluateOne(t, stats)
		results = append(results, result)
	}
	return results
}

func (e *Evaluator) evaluateOne(t Threshold, stats metrics.Stats) Result {
	actual, err := extractMetricValue(t, stats)
	if err != nil {
		return Result{
			Threshold: t,
			Actual:    0,
			Pass:      false,
			Message:   fmt.Sprintf("error: %v", err),
		}
	}

	pass := compareValues(actual, t.Operator, t.Value)
	status := "✓"
	if !pass {
		status = "✗"
	}

	message := fmt.Sprintf("%s %s: %.2f %s %.2f", status, t.Raw, actual, t.Operator, t.Value)
	return Result{
		Threshold: t,
		Actual:    actual,
		Pass:      pass,
		Message:   message,
	}
}

// An optional "metric:" prefix, an aggregate (p(95), p95, avg, rate, ...),
// an operator and a number.
var thresholdPattern = regexp.MustCompile(`^(?:([a-z_]+)\s*:\s*)?(p\(\s*[0-9.]+\s*\)|[a-z]+[0-9.]*)\s*(===|==|!=|<=|>=|<|>)\s*(-?[0-9.]+(?:[eE][-+]?[0-9]+)?)$`)

var legacyPercentile = regexp.MustCompile(`^p([0-9]+(?:\.[0-9]+)?)$`)

// Parse parses a threshold string into a Threshold struct.
// Supported formats:
//   - "p(95)<5000"                          (k6 expression, defaults to http_req_duration)
//   - "http_req_duration: p(95)<5000"       (k6 expression with metric)
//   - "http_req_failed: rate<0.01"          (failure rate as decimal)
//   - "checks: rate>0.99"                   (check pass rate)
//   - "http_req_duration:p95 < 500"         (legacy metric:aggregate form)
//   - "http_reqs:rate > 100"                (requests per second)
func Parse(s string) (Threshold, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Threshold{}, fmt.Errorf("empty threshold string")
	}

	matches := thresholdPattern.FindStringSubmatch(s)
	if matches == nil {
		return Threshold{}, fmt.Errorf("invalid threshold format: %q (expected e.g. 'p(95)<5000' or 'http_req_duration: p(95)<5000')", s)
	}

	metric := matches[1]
	if metric == "" {
		metric = MetricDuration
	}
	if metric == "http_requests" {
		metric = MetricRequests
	}
	aggregate := matches[2]
	operator := matches[3]
	if operator == "===" {
		operator = "=="
	}
	valueStr := matches[4]

	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return Threshold{}, fmt.Errorf("invalid threshold value %q: %w", valueStr, err)
	}

	t := Threshold{
		Metric:    metric,
		Aggregate: aggregate,
		Operator:  operator,
		Value:     value,
		Raw:       s,
	}

	if pct, ok, err := parsePercentile(aggregate); err != nil {
		return Threshold{}, err
	} else if ok {
		t.Aggregate = "p"
		t.Percentile = pct
	}
	if t.Aggregate == "mean" {
		t.Aggregate = "avg"
	}

	allowed, known := aggregatesByMetric[metric]
	if !known {
		return Threshold{}, fmt.Errorf("unsupported metric: %q (supported: %s)", metric, strings.Join(supportedMetrics, ", "))
	}
	if !contains(allowed, t.Aggregate) {
		return Threshold{}, fmt.Errorf("unsupported aggregate %q for %s (supported: %s)", aggregate, metric, strings.Join(allowed, ", "))
	}

	return t, nil
}

// parsePercentile recognizes p(N) and the legacy pN spelling.
func parsePercentile(aggregate string) (float64, bool, error) {
	var raw string
	switch {
	case strings.HasPrefix(aggregate, "p("):
		raw = strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(aggregate, "p("), ")"))
	case legacyPercentile.MatchString(aggregate):
		raw = legacyPercentile.FindStringSubmatch(aggregate)[1]
	default:
		return 0, false, nil
	}

	pct, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false, fmt.Errorf("invalid percentile %q: %w", aggregate, err)
	}
	if pct <= 0 || pct > 100 {
		return 0, false, fmt.Errorf("percentile %q must be in (0, 100]", aggregate)
	}
	return pct, true, nil
}

// ParseMultiple parses multiple threshold strings.
func ParseMultiple(thresholds []string) ([]Threshold, error) {
	if len(thresholds) == 0 {
		return nil, nil
	}

	result := make([]Threshold, 0, len(thresholds))
	var errors []string

	for i, s := range thresholds {
		t, err := Parse(s)
		if err != nil {
			errors = append(errors, fmt.Sprintf("threshold[%d]: %v", i, err))
			continue
		}
		result = append(result, t)
	}

	if len(errors) > 0 {
		return nil, fmt.Errorf("threshold parsing errors: %s", strings.Join(errors, "; "))
	}

	return result, nil
}

var supportedMetrics = []string{MetricDuration, MetricFailed, MetricRequests, MetricChecks, MetricIterations}

var aggregatesByMetric = map[string][]string{
	MetricDuration:   {"p", "avg", "min", "max", "med"},
	MetricFailed:     {"rate", "count"},
	MetricRequests:   {"count", "rate"},
	MetricChecks:     {"rate"},
	MetricIterations: {"count", "rate"},
}

func contains(values []string, v string) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}
	return false
}

func extractMetricValue(t Threshold, stats metrics.Stats) (float64, error) {
	switch t.Metric {
	case MetricDuration:
		return extractLatencyMetric(t, stats)
	case MetricFailed:
		return extractFailureMetric(t.Aggregate, stats)
	case MetricRequests:
		return extractRequestMetric(t.Aggregate, stats)
	case MetricChecks:
		return stats.CheckPassRate(), nil
	case MetricIterations:
		return extractIterationMetric(t.Aggregate, stats)
	default:
		return 0, fmt.Errorf("unknown metric: %s", t.Metric)
	}
}

// Latency values are compared in milliseconds.
func extractLatencyMetric(t Threshold, stats metrics.Stats) (float64, error) {
	switch t.Aggregate {
	case "p":
		return toMs(stats.Percentile(t.Percentile)), nil
	case "med":
		return toMs(stats.Percentile(50)), nil
	case "avg":
		return stats.MeanLatencyMs, nil
	case "min":
		return stats.MinLatencyMs, nil
	case "max":
		return stats.MaxLatencyMs, nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for http_req_duration", t.Aggregate)
	}
}

func extractFailureMetric(aggregate string, stats metrics.Stats) (float64, error) {
	switch aggregate {
	case "count":
		return float64(stats.Failures), nil
	case "rate":
		return stats.FailureRate(), nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for http_req_failed (use 'count' or 'rate')", aggregate)
	}
}

func extractRequestMetric(aggregate string, stats metrics.Stats) (float64, error) {
	switch aggregate {
	case "count":
		return float64(stats.Total), nil
	case "rate":
		return stats.RequestsPerSec, nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for http_reqs (use 'count' or 'rate')", aggregate)
	}
}

func extractIterationMetric(aggregate string, stats metrics.Stats) (float64, error) {
	switch aggregate {
	case "count":
		return float64(stats.Iterations), nil
	case "rate":
		return stats.IterationsPerSec, nil
	default:
		return 0, fmt.Errorf("unsupported aggregate %q for iterations (use 'count' or 'rate')", aggregate)
	}
}

func toMs(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

func compareValues(actual float64, operator string, expected float64) bool {
	// Handle floating point comparison with small epsilon
	epsilon := 1e-9

	switch operator {
	case "<":
		return actual < expected
	case "<=":
		return actual <= expected || math.Abs(actual-expected) < epsilon
	case ">":
		return actual > expected
	case ">=":
		return actual >= expected || math.Abs(actual-expected) < epsilon
	case "==":
		return math.Abs(actual-expected) < epsilon
	case "!=":
		return math.Abs(actual-expected) >= epsilon
	default:
		return false
	}
}
