package middleware

import (
	"context"
	"time"

	"editor-bridge/logging"
	"editor-bridge/message"

	"github.com/charmbracelet/log"
)

// LoggingMiddleware logs each call: debug on success, warn on failure.
func LoggingMiddleware(logger *log.Logger) Middleware {
	logger = logging.OrDiscard(logger)
	return func(next Invoker) Invoker {
		return func(ctx context.Context, env *message.Envelope, timeout time.Duration) message.Result {
			start := time.Now()
			res := next(ctx, env, timeout)
			duration := time.Since(start)

			if ce := res.CallError(); ce != nil {
				logger.Warn("editor call failed",
					"call_id", env.CallID(),
					"method", env.ServiceMethod(),
					"kind", ce.Kind.String(),
					"err", ce.Message,
					"duration", duration,
				)
				return res
			}
			logger.Debug("editor call",
				"call_id", env.CallID(),
				"method", env.ServiceMethod(),
				"bytes", len(res.Payload()),
				"duration", duration,
			)
			return res
		}
	}
}
