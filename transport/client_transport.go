// Package transport implements the client side of one editor connection, with
// multiplexing and heartbeat.
//
// Many concurrent calls share a single connection. Each request gets a unique sequence
// number and a reply channel registered in pending; a background goroutine (recvLoop)
// reads responses and routes each to its caller by sequence number.
//
//	goroutine-1 ──Send(seq=1)──┐
//	goroutine-2 ──Send(seq=2)──┼──→ single conn ──→ editor
//	goroutine-3 ──Send(seq=3)──┘
//
//	recvLoop:  ←── response(seq=2) → pending[2] → goroutine-2 wakes up
package transport

import (
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"editor-bridge/codec"
	"editor-bridge/logging"
	"editor-bridge/message"
	"editor-bridge/protocol"

	"github.com/charmbracelet/log"
)

var (
	// ErrClosed is reported to callers once the transport has been closed locally.
	ErrClosed = errors.New("transport: closed")
	// ErrEncode wraps failures to encode a request, including bodies too large for
	// one frame. Nothing was written, and the connection is still usable.
	ErrEncode = errors.New("transport: encode request")
)

// Reply is what a caller receives on its pending channel: either the editor's response
// or the transport error that ended the connection.
type Reply struct {
	Msg *message.RPCMessage
	Err error
}

// Options tune a ClientTransport. Zero values pick the defaults.
type Options struct {
	Heartbeat    time.Duration // interval between heartbeat frames; negative disables
	WriteTimeout time.Duration // bound on a single frame write
	Logger       *log.Logger
}

const (
	DefaultHeartbeat    = 30 * time.Second
	DefaultWriteTimeout = 5 * time.Second
)

// ClientTransport manages one multiplexed connection to an editor endpoint.
type ClientTransport struct {
	conn    net.Conn
	codec   codec.CodecType
	seq     uint32     // last assigned sequence number, guarded by sending
	pending sync.Map   // map[uint32]chan Reply
	sending sync.Mutex // serializes frame writes so frames never interleave on the wire

	writeTimeout time.Duration
	logger       *log.Logger

	done      chan struct{}
	closeOnce sync.Once
	err       atomic.Pointer[error]
}

// NewClientTransport wraps conn and starts two background goroutines:
//   - recvLoop reads responses and dispatches them to pending callers
//   - heartbeatLoop sends periodic heartbeat frames so a dead peer is noticed
func NewClientTransport(conn net.Conn, codecType codec.CodecType, opts Options) *ClientTransport {
	if opts.Heartbeat == 0 {
		opts.Heartbeat = DefaultHeartbeat
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	t := &ClientTransport{
		conn:         conn,
		codec:        codecType,
		writeTimeout: opts.WriteTimeout,
		logger:       logging.OrDiscard(opts.Logger),
		done:         make(chan struct{}),
	}
	go t.recvLoop()
	if opts.Heartbeat > 0 {
		go t.heartbeatLoop(opts.Heartbeat)
	}
	return t
}

// Send encodes env and writes it as one request frame.
// It returns the sequence number and the channel that will receive exactly one Reply.
// The reply channel is registered before the frame is written, so a fast response
// can never arrive ahead of its waiter.
func (t *ClientTransport) Send(env *message.Envelope) (uint32, <-chan Reply, error) {
	req, err := env.RPCMessage()
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	body, err := codec.GetCodec(t.codec).Encode(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrEncode, err)
	}
	if uint64(len(body)) > uint64(protocol.MaxBodyLen) {
		return 0, nil, fmt.Errorf("%w: %d byte body exceeds %d", ErrEncode, len(body), protocol.MaxBodyLen)
	}

	t.sending.Lock()
	defer t.sending.Unlock()

	if err := t.Err(); err != nil {
		return 0, nil, err
	}

	t.seq++
	seq := t.seq

	header := protocol.Header{
		CodecType: byte(t.codec),
		MsgType:   protocol.MsgTypeRequest,
		Seq:       seq,
		BodyLen:   uint32(len(body)),
	}

	replyChan := make(chan Reply, 1) // buffered so recvLoop never blocks on a slow caller
	t.pending.Store(seq, replyChan)

	if err := t.write(&header, body); err != nil {
		t.pending.Delete(seq)
		// A partial frame leaves the stream unusable for everyone.
		t.fail(fmt.Errorf("transport: write: %w", err))
		return 0, nil, err
	}

	return seq, replyChan, nil
}

// write must be called with sending held.
func (t *ClientTransport) write(h *protocol.Header, body []byte) error {
	if err := t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout)); err != nil {
		return err
	}
	return protocol.Encode(t.conn, h, body)
}

// Cancel stops waiting for seq. A response that arrives later is dropped; the
// connection stays up for other callers.
func (t *ClientTransport) Cancel(seq uint32) {
	t.pending.Delete(seq)
}

// recvLoop is the only reader of the connection: frame boundaries can only be found by
// reading the stream sequentially.
func (t *ClientTransport) recvLoop() {
	for {
		header, body, err := protocol.Decode(t.conn)
		if err != nil {
			t.fail(fmt.Errorf("transport: read: %w", err))
			return
		}
		if header.MsgType != protocol.MsgTypeResponse {
			continue
		}

		var resp message.RPCMessage
		decodeErr := codec.GetCodec(codec.CodecType(header.CodecType)).Decode(body, &resp)

		value, ok := t.pending.LoadAndDelete(header.Seq)
		if !ok {
			t.logger.Debug("dropping response for abandoned call", "seq", header.Seq)
			continue
		}
		if decodeErr != nil {
			// The frame was well formed, only its body was not: the stream is still in sync.
			value.(chan Reply) <- Reply{Msg: &message.RPCMessage{
				ServiceMethod: resp.ServiceMethod,
				Status:        message.StatusInvalidRequest,
				Error:         "undecodable response body: " + decodeErr.Error(),
			}}
			continue
		}
		value.(chan Reply) <- Reply{Msg: &resp}
	}
}

// fail tears the transport down once and notifies every pending caller, so nobody
// blocks forever on a dead connection.
func (t *ClientTransport) fail(err error) {
	t.closeOnce.Do(func() {
		t.err.Store(&err)
		close(t.done)
		t.conn.Close()
		if !errors.Is(err, ErrClosed) {
			t.logger.Warn("editor connection lost", "remote", t.remoteAddr(), "err", err)
		}
	})
	t.pending.Range(func(key, value any) bool {
		if _, loaded := t.pending.LoadAndDelete(key); loaded {
			value.(chan Reply) <- Reply{Err: t.Err()}
		}
		return true
	})
}

func (t *ClientTransport) remoteAddr() string {
	if addr := t.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// Done is closed once the transport stops working.
func (t *ClientTransport) Done() <-chan struct{} {
	return t.done
}

// Err returns why the transport stopped, nil while it is healthy.
func (t *ClientTransport) Err() error {
	if p := t.err.Load(); p != nil {
		return *p
	}
	return nil
}

// Close shuts the connection down. Pending callers receive ErrClosed.
func (t *ClientTransport) Close() error {
	t.fail(ErrClosed)
	return nil
}

// Conn returns the underlying connection.
func (t *ClientTransport) Conn() net.Conn {
	return t.conn
}

// heartbeatLoop writes an empty heartbeat frame every interval. A failed write means
// the peer is gone, which takes the whole transport down.
func (t *ClientTransport) heartbeatLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
		}
		header := &protocol.Header{
			CodecType: byte(t.codec),
			MsgType:   protocol.MsgTypeHeartbeat,
		}
		t.sending.Lock()
		err := t.write(header, nil)
		t.sending.Unlock()
		if err != nil {
			t.fail(fmt.Errorf("transport: heartbeat: %w", err))
			return
		}
	}
}
