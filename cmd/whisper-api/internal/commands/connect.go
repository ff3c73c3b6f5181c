package commands

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"

	sserr "github.com/StricklySoft/whisper-grc/pkg/errors"
)

// connectWithRetry calls connect until it succeeds, ctx ends or maxElapsed
// passes. Configuration errors are not retried.
func connectWithRetry[T any](ctx context.Context, logger *slog.Logger, name string, b backoff.BackOff, maxElapsed time.Duration, connect func(context.Context) (T, error)) (T, error) {
	op := func() (T, error) {
		v, err := connect(ctx)
		if err != nil && sserr.HasCodeInChain(err, sserr.CodeInternalConfiguration) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}
	return backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxElapsedTime(maxElapsed),
		backoff.WithNotify(func(err error, next time.Duration) {
			logger.Warn("dependency not ready, retrying",
				"dependency", name, "retry_in", next, "error", err)
		}),
	)
}
