package middleware

import (
	"context"
	"time"

	"editor-bridge/message"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsMiddleware records call rate, failures by kind and latency. A nil meter uses
// the global provider.
//
//	editor_bridge.calls        {method, outcome, kind}
//	editor_bridge.call.duration {method, outcome} in seconds
func MetricsMiddleware(meter metric.Meter) (Middleware, error) {
	if meter == nil {
		meter = otel.Meter(tracerName)
	}
	calls, err := meter.Int64Counter("editor_bridge.calls",
		metric.WithDescription("Editor calls by outcome"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}
	duration, err := meter.Float64Histogram("editor_bridge.call.duration",
		metric.WithDescription("Editor call duration in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30),
	)
	if err != nil {
		return nil, err
	}

	return func(next Invoker) Invoker {
		return func(ctx context.Context, env *message.Envelope, timeout time.Duration) message.Result {
			start := time.Now()
			res := next(ctx, env, timeout)

			attrs := []attribute.KeyValue{
				attribute.String("method", env.ServiceMethod()),
				attribute.String("outcome", res.Outcome().String()),
			}
			duration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attrs...))
			if k := res.Kind(); k != 0 {
				attrs = append(attrs, attribute.String("kind", k.String()))
			}
			calls.Add(ctx, 1, metric.WithAttributes(attrs...))
			return res
		}
	}, nil
}
