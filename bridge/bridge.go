// Package bridge is the client side of the editor command bridge: it sends one remote
// operation at a time to a running editor and always hands back a Result, never a bare
// transport error.
//
// A Bridge owns at most one connection. It is opened on the first call (or by Dial),
// shared by every concurrent call, and replaced on the next call after it dies:
//
//	Invoke → middleware chain → roundTrip
//	  → connect (join the one in-flight dial, bounded by the dial timeout)
//	  → transport.Send → wait for reply
//
// Every step after the middleware runs under the call timeout and the caller's ctx.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"editor-bridge/codec"
	"editor-bridge/logging"
	"editor-bridge/message"
	"editor-bridge/middleware"
	"editor-bridge/transport"
	"editor-bridge/value"

	"github.com/charmbracelet/log"
)

const DefaultDialTimeout = 500 * time.Millisecond

var (
	errBridgeClosed = errors.New("bridge closed")
	errCallTimeout  = errors.New("call timeout elapsed")
)

// Bridge sends calls to one editor. It is safe for concurrent use.
type Bridge struct {
	resolver    Resolver
	codec       codec.CodecType
	dialTimeout time.Duration
	heartbeat   time.Duration
	logger      *log.Logger
	middlewares []middleware.Middleware
	closers     []io.Closer

	invoke middleware.Invoker

	mu        sync.Mutex // guards transport, dialing and closed
	transport *transport.ClientTransport
	dialing   *dialAttempt
	closed    bool
}

// dialAttempt is one resolve+dial shared by every caller that needs a connection while
// it runs. done is closed once t or err is set.
type dialAttempt struct {
	done   chan struct{}
	cancel context.CancelFunc
	t      *transport.ClientTransport
	err    error
}

type Option func(*Bridge)

// WithCodec selects the body encoding. JSON by default.
func WithCodec(t codec.CodecType) Option {
	return func(b *Bridge) { b.codec = t }
}

// WithDialTimeout bounds resolving and connecting. It is independent of the call
// timeout, so an editor that is not running is reported quickly even for long calls.
func WithDialTimeout(d time.Duration) Option {
	return func(b *Bridge) {
		if d > 0 {
			b.dialTimeout = d
		}
	}
}

// WithHeartbeat sets the heartbeat interval. Negative disables heartbeats.
func WithHeartbeat(d time.Duration) Option {
	return func(b *Bridge) { b.heartbeat = d }
}

func WithLogger(logger *log.Logger) Option {
	return func(b *Bridge) { b.logger = logger }
}

// WithMiddleware appends to the call pipeline; the first one given is the outermost.
func WithMiddleware(mws ...middleware.Middleware) Option {
	return func(b *Bridge) { b.middlewares = append(b.middlewares, mws...) }
}

// withCloser ties the lifetime of a resource the bridge depends on to Close.
func withCloser(c io.Closer) Option {
	return func(b *Bridge) { b.closers = append(b.closers, c) }
}

// New creates a bridge. Nothing is dialed until the first call.
func New(resolver Resolver, opts ...Option) *Bridge {
	b := &Bridge{
		resolver:    resolver,
		codec:       codec.CodecTypeJSON,
		dialTimeout: DefaultDialTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.logger = logging.OrDiscard(b.logger)
	b.invoke = middleware.Chain(b.middlewares...)(b.roundTrip)
	return b
}

// Dial creates a bridge and connects it right away, so a missing editor is reported
// before the first call.
func Dial(ctx context.Context, resolver Resolver, opts ...Option) (*Bridge, error) {
	b := New(resolver, opts...)
	if _, err := b.connect(ctx); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

// Invoke calls service.method with args and waits at most timeout for the editor's
// answer. Malformed calls fail with InvalidRequest before anything is sent.
func (b *Bridge) Invoke(ctx context.Context, service, method string, args value.Value, timeout time.Duration) message.Result {
	env, err := message.NewEnvelope(service, method, args)
	if err != nil {
		return message.Failure(message.KindInvalidRequest, err.Error())
	}
	return b.Call(ctx, env, timeout)
}

// Call is Invoke for a prepared envelope.
func (b *Bridge) Call(ctx context.Context, env *message.Envelope, timeout time.Duration) message.Result {
	if env == nil {
		return message.Failure(message.KindInvalidRequest, "nil envelope")
	}
	if timeout <= 0 {
		return message.Failuref(message.KindInvalidRequest, "%s: timeout must be positive, got %s", env.ServiceMethod(), timeout)
	}
	return b.invoke(ctx, env, timeout)
}

type sendResult struct {
	seq     uint32
	replies <-chan transport.Reply
	err     error
}

// roundTrip is the innermost Invoker: one frame out, one frame (or a failure) back.
// The timeout covers connecting, writing and waiting alike.
func (b *Bridge) roundTrip(ctx context.Context, env *message.Envelope, timeout time.Duration) message.Result {
	if err := ctx.Err(); err != nil {
		return message.Failuref(message.KindTimeout, "%s: %v", env.ServiceMethod(), err)
	}
	callCtx, cancel := context.WithTimeoutCause(ctx, timeout, errCallTimeout)
	defer cancel()

	expired := func() message.Result {
		if cause := context.Cause(callCtx); !errors.Is(cause, errCallTimeout) {
			return message.Failuref(message.KindTimeout, "%s: %v", env.ServiceMethod(), cause)
		}
		return message.Failuref(message.KindTimeout, "%s: no response within %s", env.ServiceMethod(), timeout)
	}

	t, err := b.connect(callCtx)
	if err != nil {
		if ctx.Err() != nil {
			return expired()
		}
		return message.Failuref(message.KindUnavailable, "%s: %v", env.ServiceMethod(), err)
	}

	// Send can block behind other writers on a stalled connection.
	sent := make(chan sendResult, 1)
	go func() {
		seq, replies, err := t.Send(env)
		sent <- sendResult{seq: seq, replies: replies, err: err}
	}()

	var s sendResult
	select {
	case s = <-sent:
	case <-callCtx.Done():
		go func() {
			if s := <-sent; s.err == nil {
				t.Cancel(s.seq)
			}
		}()
		return expired()
	}
	if s.err != nil {
		if errors.Is(s.err, transport.ErrEncode) {
			return message.Failuref(message.KindInvalidRequest, "%s: %v", env.ServiceMethod(), s.err)
		}
		return message.Failuref(message.KindUnavailable, "%s: %v", env.ServiceMethod(), s.err)
	}

	select {
	case reply := <-s.replies:
		if reply.Err != nil {
			return message.Failuref(message.KindUnavailable, "%s: connection lost: %v", env.ServiceMethod(), reply.Err)
		}
		return translate(reply.Msg)
	case <-callCtx.Done():
		t.Cancel(s.seq)
		return expired()
	}
}

// translate maps the editor's response onto a Result.
func translate(msg *message.RPCMessage) message.Result {
	switch msg.Status {
	case message.StatusOK:
		if len(msg.Payload) > 0 && !json.Valid(msg.Payload) {
			return message.Failuref(message.KindInvalidRequest, "%s: malformed result payload", msg.ServiceMethod)
		}
		return message.Success(msg.Payload)
	case message.StatusInvalidRequest:
		return message.Failure(message.KindInvalidRequest, msg.Error)
	case message.StatusRejected:
		return message.Failure(message.KindRemoteRejected, msg.Error)
	default:
		return message.Failuref(message.KindInvalidRequest, "%s: unknown response status %d", msg.ServiceMethod, msg.Status)
	}
}

// connect returns the live transport. Without one, the caller joins the dial in
// progress or starts it. The dial is bounded by the dial timeout and not by any one
// caller, and each caller stops waiting when its own ctx ends.
func (b *Bridge) connect(ctx context.Context) (*transport.ClientTransport, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, errBridgeClosed
	}
	if b.transport != nil {
		if b.transport.Err() == nil {
			t := b.transport
			b.mu.Unlock()
			return t, nil
		}
		b.logger.Info("reconnecting to editor", "after", b.transport.Err())
		b.transport = nil
	}
	d := b.dialing
	if d == nil {
		d = b.startDial()
	}
	b.mu.Unlock()

	select {
	case <-d.done:
		return d.t, d.err
	case <-ctx.Done():
		return nil, fmt.Errorf("editor not reachable: %w", context.Cause(ctx))
	}
}

// startDial must be called with mu held.
func (b *Bridge) startDial() *dialAttempt {
	ctx, cancel := context.WithTimeout(context.Background(), b.dialTimeout)
	d := &dialAttempt{done: make(chan struct{}), cancel: cancel}
	b.dialing = d

	go func() {
		defer cancel()
		t, addr, err := b.dial(ctx)

		b.mu.Lock()
		b.dialing = nil
		switch {
		case err != nil:
		case b.closed:
			t.Close()
			t, err = nil, errBridgeClosed
		default:
			b.transport = t
			b.logger.Info("connected to editor", "addr", addr, "codec", b.codec.String())
		}
		d.t, d.err = t, err
		b.mu.Unlock()
		close(d.done)
	}()
	return d
}

func (b *Bridge) dial(ctx context.Context) (*transport.ClientTransport, string, error) {
	addr, err := b.resolver.Resolve(ctx)
	if err != nil {
		return nil, "", err
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, addr, err
	}
	return transport.NewClientTransport(conn, b.codec, transport.Options{
		Heartbeat: b.heartbeat,
		Logger:    b.logger,
	}), addr, nil
}

// Addr returns the address of the live connection, or "" when there is none.
func (b *Bridge) Addr() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.transport == nil || b.transport.Err() != nil {
		return ""
	}
	return b.transport.Conn().RemoteAddr().String()
}

// Close drops the connection. Calls still waiting fail with Unavailable, and so does
// every later call. Close is idempotent.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	t := b.transport
	b.transport = nil
	if b.dialing != nil {
		b.dialing.cancel()
	}
	b.mu.Unlock()

	var errs []error
	if t != nil {
		errs = append(errs, t.Close())
	}
	for _, c := range b.closers {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}
