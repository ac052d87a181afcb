package runner_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Takch02/blabus-session2-item1/internal/runner"
)

type stubRequester struct{ err error }

func (s stubRequester) Do(context.Context) error { return s.err }

type testLogger struct{ errs []error }

func (l *testLogger) LogFailure(err error) { l.errs = append(l.errs, err) }

func TestWithLoggingLogsFailures(t *testing.T) {
	logger := &testLogger{}
	boom := errors.New("check \"status is 200\" failed (status 500)")

	err := runner.WithLogging(stubRequester{err: boom}, logger).Do(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Len(t, logger.errs, 1)

	require.NoError(t, runner.WithLogging(stubRequester{}, logger).Do(context.Background()))
	assert.Len(t, logger.errs, 1, "successful iterations are not logged")
}

func TestWithLoggingSkipsInterruptions(t *testing.T) {
	logger := &testLogger{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_ = runner.WithLogging(stubRequester{err: context.Canceled}, logger).Do(ctx)
	assert.Empty(t, logger.errs, "interrupted iterations are not logged")
}

func TestWithLoggingNilLogger(t *testing.T) {
	req := stubRequester{}
	assert.Equal(t, runner.Requester(req), runner.WithLogging(req, nil))
}

func TestZerologFailureLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := runner.ZerologFailureLogger{Logger: zerolog.New(&buf)}
	logger.LogFailure(errors.New("connection refused"))

	out := buf.String()
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, "connection refused")
}
