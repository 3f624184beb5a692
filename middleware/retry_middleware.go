package middleware

import (
	"context"
	"time"

	"editor-bridge/logging"
	"editor-bridge/message"

	"github.com/cenkalti/backoff/v5"
	"github.com/charmbracelet/log"
)

// RetryMiddleware retries calls that timed out, up to maxRetries extra attempts with
// exponential backoff starting at baseDelay. Every other failure is returned as is:
// an editor that rejected a call will reject it again, and a mutating call that timed out
// may still have been applied, so only put this in front of calls that are safe to repeat.
// Each attempt gets the full timeout.
func RetryMiddleware(maxRetries int, baseDelay time.Duration, logger *log.Logger) Middleware {
	logger = logging.OrDiscard(logger)
	return func(next Invoker) Invoker {
		return func(ctx context.Context, env *message.Envelope, timeout time.Duration) message.Result {
			if maxRetries <= 0 {
				return next(ctx, env, timeout)
			}

			b := backoff.NewExponentialBackOff()
			b.InitialInterval = baseDelay
			b.Multiplier = 2

			attempt := 0
			res, _ := backoff.Retry(ctx, func() (message.Result, error) {
				attempt++
				res := next(ctx, env, timeout)
				err := res.Err()
				if err != nil && !res.Kind().Retryable() {
					return res, backoff.Permanent(err)
				}
				return res, err
			},
				backoff.WithBackOff(b),
				backoff.WithMaxTries(uint(maxRetries+1)),
				backoff.WithMaxElapsedTime(0),
				backoff.WithNotify(func(err error, wait time.Duration) {
					logger.Info("retrying editor call",
						"call_id", env.CallID(),
						"method", env.ServiceMethod(),
						"attempt", attempt,
						"wait", wait,
						"err", err,
					)
				}),
			)
			return res
		}
	}
}
