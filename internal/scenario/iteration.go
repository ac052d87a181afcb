package scenario

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/Takch02/blabus-session2-item1/internal/httpclient"
	"github.com/Takch02/blabus-session2-item1/internal/tracing"
)

const maxBodyReadSize = 1024 * 1024

// Sink receives the samples an iteration produces. *metrics.Collector
// satisfies it.
type Sink interface {
	RecordRequest(latency time.Duration, statusCode int, err error)
	RecordCheck(name string, pass bool)
	RecordIteration(interrupted bool)
}

// Iteration runs one pass of the scenario per Do call. It holds no state
// between calls and is safe for concurrent use by every virtual user.
type Iteration struct {
	scenario  Scenario
	builder   *httpclient.RequestBuilder
	client    *http.Client
	sink      Sink
	tracer    trace.Tracer
	propagate bool
}

// IterationOption customizes an Iteration.
type IterationOption func(*Iteration)

// WithTracing emits a client span per request and, when the provider asks
// for it, injects W3C trace headers.
func WithTracing(p *tracing.Provider) IterationOption {
	return func(it *Iteration) {
		it.tracer = p.Tracer()
		it.propagate = p.ShouldPropagate()
	}
}

func NewIteration(sc Scenario, client *http.Client, sink Sink, opts ...IterationOption) (*Iteration, error) {
	if err := sc.Request.Validate(); err != nil {
		return nil, fmt.Errorf("scenario request: %w", err)
	}
	if client == nil {
		return nil, errors.New("http client is required")
	}
	if sink == nil {
		return nil, errors.New("metrics sink is required")
	}
	builder, err := httpclient.NewRequestBuilder(sc.Request.Method, sc.Request.URL, sc.Request.Headers)
	if err != nil {
		return nil, fmt.Errorf("scenario request: %w", err)
	}

	it := &Iteration{
		scenario: sc,
		builder:  builder,
		client:   client,
		sink:     sink,
		tracer:   noop.NewTracerProvider().Tracer(""),
	}
	for _, opt := range opts {
		opt(it)
	}
	return it, nil
}

// Do sends one listing request, evaluates and reports every check, then
// pauses for the scenario's pacing. A failed check is returned as a
// *CheckFailure after the pause. When ctx ends while the request is in flight
// the iteration is reported as interrupted, no checks are recorded, and the
// context error is returned.
func (it *Iteration) Do(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	resp, latency, err := it.send(ctx)
	if err != nil && ctx.Err() != nil {
		it.sink.RecordIteration(true)
		return ctx.Err()
	}

	it.sink.RecordRequest(latency, resp.StatusCode, err)
	results := Evaluate(it.scenario.Checks, resp)
	for _, r := range results {
		it.sink.RecordCheck(r.Name, r.Pass)
	}
	it.sink.RecordIteration(false)

	var failure error
	if failed := failedOnly(results); len(failed) > 0 {
		failure = &CheckFailure{Failed: failed, StatusCode: resp.StatusCode, Err: err}
	}

	pause(ctx, it.scenario.Pacing)
	return failure
}

func (it *Iteration) send(ctx context.Context) (Response, time.Duration, error) {
	req, err := it.builder.Build(ctx)
	if err != nil {
		return Response{}, 0, err
	}

	ctx, span := tracing.StartRequestSpan(ctx, it.tracer, req)
	req = req.WithContext(ctx)
	if it.propagate {
		tracing.InjectHTTPHeaders(ctx, req.Header)
	}

	start := time.Now()
	httpResp, err := it.client.Do(req)
	if err != nil {
		tracing.EndSpan(span, err)
		return Response{}, time.Since(start), err
	}
	defer httpResp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyReadSize))
	latency := time.Since(start)

	resp := Response{StatusCode: httpResp.StatusCode, Header: httpResp.Header, Body: body}
	if readErr != nil {
		tracing.EndSpan(span, readErr, tracing.StatusCode(httpResp.StatusCode))
		return resp, latency, fmt.Errorf("read body: %w", readErr)
	}

	var spanErr error
	if httpResp.StatusCode >= 400 {
		spanErr = fmt.Errorf("status %d", httpResp.StatusCode)
	}
	tracing.EndSpan(span, spanErr, tracing.StatusCode(httpResp.StatusCode))
	return resp, latency, nil
}

func pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
