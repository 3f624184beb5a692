package middleware

import (
	"context"
	"time"

	"editor-bridge/message"

	"golang.org/x/time/rate"
)

// RateLimitMiddleware is a token bucket shared by every call through it: r calls per
// second with bursts of up to burst. A call waits for a token, but never longer than its
// own timeout; the time spent waiting is taken off the timeout passed on.
func RateLimitMiddleware(r float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(r), burst)
	return func(next Invoker) Invoker {
		return func(ctx context.Context, env *message.Envelope, timeout time.Duration) message.Result {
			start := time.Now()
			waitCtx, cancel := context.WithTimeout(ctx, timeout)
			err := limiter.Wait(waitCtx)
			cancel()
			if err != nil {
				return message.Failuref(message.KindTimeout, "%s: rate limit: %v", env.ServiceMethod(), err)
			}
			remaining := timeout - time.Since(start)
			if remaining <= 0 {
				return message.Failuref(message.KindTimeout, "%s: rate limit wait used the whole %s timeout", env.ServiceMethod(), timeout)
			}
			return next(ctx, env, remaining)
		}
	}
}
