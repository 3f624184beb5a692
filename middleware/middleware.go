// Package middleware wraps bridge calls. A Middleware sees every call before it is sent
// and its Result after it completes; Chain composes them onion-style, so the first
// middleware passed is the outermost.
package middleware

import (
	"context"
	"time"

	"editor-bridge/message"
)

// Invoker performs one call. timeout bounds the wait for the editor's response; the
// bridge turns every failure into a Result, so an Invoker never returns an error.
type Invoker func(ctx context.Context, env *message.Envelope, timeout time.Duration) message.Result

type Middleware func(next Invoker) Invoker

// Chain combines middlewares into one:
//
//	Chain(A, B, C)(call) → A(B(C(call)))
func Chain(middlewares ...Middleware) Middleware {
	return func(next Invoker) Invoker {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
