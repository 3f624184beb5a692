package middleware

import (
	"context"
	"time"

	"editor-bridge/message"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "editor-bridge"

// Span attributes.
var (
	AttrService   = attribute.Key("editor.service")
	AttrMethod    = attribute.Key("editor.method")
	AttrCallID    = attribute.Key("editor.call_id")
	AttrTimeout   = attribute.Key("editor.timeout_ms")
	AttrErrorKind = attribute.Key("editor.error_kind")
)

// TracingMiddleware records one client span per call. A nil tracer uses the global
// provider.
func TracingMiddleware(tracer trace.Tracer) Middleware {
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	return func(next Invoker) Invoker {
		return func(ctx context.Context, env *message.Envelope, timeout time.Duration) message.Result {
			ctx, span := tracer.Start(ctx, env.ServiceMethod(),
				trace.WithSpanKind(trace.SpanKindClient),
				trace.WithAttributes(
					AttrService.String(env.Service()),
					AttrMethod.String(env.Method()),
					AttrCallID.String(env.CallID()),
					AttrTimeout.Int64(timeout.Milliseconds()),
				),
			)
			defer span.End()

			res := next(ctx, env, timeout)
			if ce := res.CallError(); ce != nil {
				span.SetAttributes(AttrErrorKind.String(ce.Kind.String()))
				span.RecordError(ce)
				span.SetStatus(codes.Error, ce.Message)
				return res
			}
			span.SetStatus(codes.Ok, "")
			return res
		}
	}
}
