// Package promexport exposes live run metrics in the Prometheus text format.
package promexport

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Takch02/blabus-session2-item1/internal/metrics"
)

const namespace = "auctionload"

// Exporter is a metrics.Observer backed by its own Prometheus registry.
type Exporter struct {
	registry   *prometheus.Registry
	requests   *prometheus.CounterVec
	duration   prometheus.Histogram
	checks     *prometheus.CounterVec
	iterations *prometheus.CounterVec
	vus        prometheus.Gauge
}

var _ metrics.Observer = (*Exporter)(nil)

func New() *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_reqs_total",
			Help:      "HTTP requests issued, by response status.",
		}, []string{"status", "failed"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_req_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}),
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checks_total",
			Help:      "Check evaluations, by check name and result.",
		}, []string{"check", "result"}),
		iterations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "iterations_total",
			Help:      "Completed scenario iterations.",
		}, []string{"interrupted"}),
		vus: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "vus",
			Help:      "Active virtual users.",
		}),
	}
	e.registry.MustRegister(e.requests, e.duration, e.checks, e.iterations, e.vus)
	return e
}

func (e *Exporter) ObserveRequest(latency time.Duration, statusCode int, failed bool) {
	status := metrics.TransportErrorCode
	if statusCode > 0 {
		status = strconv.Itoa(statusCode)
	}
	e.requests.WithLabelValues(status, strconv.FormatBool(failed)).Inc()
	e.duration.Observe(latency.Seconds())
}

func (e *Exporter) ObserveCheck(name string, pass bool) {
	result := "pass"
	if !pass {
		result = "fail"
	}
	e.checks.WithLabelValues(name, result).Inc()
}

func (e *Exporter) ObserveIteration(interrupted bool) {
	e.iterations.WithLabelValues(strconv.FormatBool(interrupted)).Inc()
}

// SetVUs publishes the number of running virtual users.
func (e *Exporter) SetVUs(n int) {
	e.vus.Set(float64(n))
}

// Handler serves the registry in the Prometheus exposition format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}

// Listen binds addr for Serve.
func Listen(addr string) (net.Listener, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("metrics endpoint %s: %w", addr, err)
	}
	return ln, nil
}

// Serve serves /metrics on ln until ctx is done.
func (e *Exporter) Serve(ctx context.Context, ln net.Listener, logger zerolog.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", e.Handler())
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info().Str("addr", ln.Addr().String()).Msg("serving prometheus metrics")
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
