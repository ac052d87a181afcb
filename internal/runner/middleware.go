package runner

import (
	"context"

	"github.com/rs/zerolog"
)

// FailureLogger logs failed iterations.
type FailureLogger interface {
	LogFailure(err error)
}

// loggingRequester wraps a Requester with failure logging.
type loggingRequester struct {
	inner  Requester
	logger FailureLogger
}

// WithLogging wraps a Requester to log failures. Interruptions at the end of
// a run are not failures and are not logged.
func WithLogging(req Requester, logger FailureLogger) Requester {
	if logger == nil {
		return req
	}
	return &loggingRequester{
		inner:  req,
		logger: logger,
	}
}

func (l *loggingRequester) Do(ctx context.Context) error {
	err := l.inner.Do(ctx)
	if err != nil && !(ctx.Err() != nil && isContextErr(err)) {
		l.logger.LogFailure(err)
	}
	return err
}

// ZerologFailureLogger writes each failure as a warning.
type ZerologFailureLogger struct {
	Logger zerolog.Logger
}

func (z ZerologFailureLogger) LogFailure(err error) {
	z.Logger.Warn().Err(err).Msg("iteration failed")
}
