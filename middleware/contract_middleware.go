package middleware

import (
	"context"
	"time"

	"editor-bridge/contract"
	"editor-bridge/message"
)

// ContractMiddleware checks calls against a catalogue: arguments before anything is sent
// and the payload of successful results. Either mismatch is an InvalidRequest. Methods
// missing from the catalogue pass through unchecked unless strict is set, in which case
// they are refused without being sent.
func ContractMiddleware(catalog *contract.Catalog, strict bool) Middleware {
	return func(next Invoker) Invoker {
		return func(ctx context.Context, env *message.Envelope, timeout time.Duration) message.Result {
			m, err := catalog.Lookup(env.Service(), env.Method())
			if err != nil {
				if strict {
					return message.Failure(message.KindInvalidRequest, err.Error())
				}
				return next(ctx, env, timeout)
			}

			if err := m.ValidateArgs(env.Args()); err != nil {
				return message.Failure(message.KindInvalidRequest, err.Error())
			}
			res := next(ctx, env, timeout)
			if !res.OK() {
				return res
			}
			if err := m.ValidateResult(res.Payload()); err != nil {
				return message.Failure(message.KindInvalidRequest, err.Error())
			}
			return res
		}
	}
}
