// Package server hosts editor-side services behind the bridge protocol.
//
// It is the endpoint the bridge talks to: the editor stub binary runs one, and tests run
// one against in-memory services. Request processing:
//
//	Accept conn → handleConn (single goroutine reads frames)
//	  → for each request: go handleRequest (parallel processing)
//	    → Codec.Decode → dispatch (reflect.Call) → Codec.Encode → write response
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"editor-bridge/codec"
	"editor-bridge/logging"
	"editor-bridge/message"
	"editor-bridge/protocol"
	"editor-bridge/registry"

	"github.com/charmbracelet/log"
)

// ErrInvalidArguments marks a handler error as the caller's fault: the response is
// sent with StatusInvalidRequest instead of StatusRejected.
var ErrInvalidArguments = errors.New("invalid arguments")

// InvalidArguments formats an error wrapping ErrInvalidArguments.
func InvalidArguments(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArguments, fmt.Sprintf(format, args...))
}

// Server dispatches bridge requests to registered services.
type Server struct {
	mu         sync.RWMutex
	serviceMap map[string]*service

	listener net.Listener
	reqMu    sync.Mutex     // orders wg.Add against Shutdown setting shutdown
	wg       sync.WaitGroup // in-flight requests, drained by Shutdown
	shutdown atomic.Bool
	logger   *log.Logger

	connMu sync.Mutex
	conns  map[net.Conn]struct{}

	registry registry.Registry
	instance registry.EditorInstance
}

// NewServer creates a server with no services. A nil logger discards output.
func NewServer(logger *log.Logger) *Server {
	return &Server{
		serviceMap: make(map[string]*service),
		conns:      make(map[net.Conn]struct{}),
		logger:     logging.OrDiscard(logger),
	}
}

// Register exposes rcvr under its type name.
func (svr *Server) Register(rcvr any) error {
	return svr.RegisterName("", rcvr)
}

// RegisterName exposes rcvr's methods as name.method_name.
func (svr *Server) RegisterName(name string, rcvr any) error {
	svc, err := newService(name, rcvr)
	if err != nil {
		return err
	}
	svr.mu.Lock()
	defer svr.mu.Unlock()
	if _, dup := svr.serviceMap[svc.name]; dup {
		return fmt.Errorf("server: service %s already registered", svc.name)
	}
	svr.serviceMap[svc.name] = svc
	return nil
}

// Methods lists every exposed "Service.method", sorted.
func (svr *Server) Methods() []string {
	svr.mu.RLock()
	defer svr.mu.RUnlock()
	var out []string
	for name, svc := range svr.serviceMap {
		for m := range svc.method {
			out = append(out, name+"."+m)
		}
	}
	sort.Strings(out)
	return out
}

// Serve listens on address and serves until Shutdown.
func (svr *Server) Serve(network, address string) error {
	listener, err := net.Listen(network, address)
	if err != nil {
		return err
	}
	return svr.ServeListener(listener)
}

// ServeListener serves on an existing listener until Shutdown. It returns nil after a
// Shutdown and the Accept error otherwise.
func (svr *Server) ServeListener(listener net.Listener) error {
	svr.mu.Lock()
	svr.listener = listener
	svr.mu.Unlock()
	svr.logger.Info("editor endpoint listening", "addr", listener.Addr().String())

	for {
		conn, err := listener.Accept()
		if err != nil {
			if svr.shutdown.Load() {
				return nil
			}
			return err
		}
		svr.trackConn(conn, true)
		go svr.handleConn(conn)
	}
}

// Announce registers this endpoint for discovery. Shutdown deregisters it.
func (svr *Server) Announce(ctx context.Context, reg registry.Registry, instance registry.EditorInstance, ttl int64) error {
	if err := reg.Register(ctx, instance, ttl); err != nil {
		return fmt.Errorf("announce %s: %w", instance.Addr, err)
	}
	svr.mu.Lock()
	svr.registry = reg
	svr.instance = instance
	svr.mu.Unlock()
	return nil
}

func (svr *Server) trackConn(conn net.Conn, add bool) {
	svr.connMu.Lock()
	defer svr.connMu.Unlock()
	if add {
		svr.conns[conn] = struct{}{}
	} else {
		delete(svr.conns, conn)
	}
}

// handleConn reads frames sequentially and handles each request in its own goroutine.
// The per-connection write mutex keeps concurrent responses from interleaving.
func (svr *Server) handleConn(conn net.Conn) {
	defer func() {
		svr.trackConn(conn, false)
		conn.Close()
	}()
	writeMu := &sync.Mutex{}
	for {
		header, body, err := protocol.Decode(conn)
		if err != nil {
			if !svr.shutdown.Load() && !errors.Is(err, net.ErrClosed) {
				svr.logger.Debug("connection closed", "remote", conn.RemoteAddr().String(), "err", err)
			}
			return
		}

		if header.MsgType == protocol.MsgTypeHeartbeat {
			continue
		}
		if header.MsgType != protocol.MsgTypeRequest {
			svr.logger.Warn("ignoring unexpected frame", "type", header.MsgType.String())
			continue
		}

		if !svr.beginRequest() {
			// draining: the caller learns of it when Shutdown closes the connection
			svr.logger.Debug("dropping request during shutdown", "seq", header.Seq)
			continue
		}
		go svr.handleRequest(header, body, conn, writeMu)
	}
}

// beginRequest counts a new in-flight request, or reports false once Shutdown has
// started draining.
func (svr *Server) beginRequest() bool {
	svr.reqMu.Lock()
	defer svr.reqMu.Unlock()
	if svr.shutdown.Load() {
		return false
	}
	svr.wg.Add(1)
	return true
}

func (svr *Server) handleRequest(header *protocol.Header, body []byte, conn net.Conn, writeMu *sync.Mutex) {
	defer svr.wg.Done()

	c := codec.GetCodec(codec.CodecType(header.CodecType))
	var req message.RPCMessage
	var resp *message.RPCMessage
	if err := c.Decode(body, &req); err != nil {
		resp = &message.RPCMessage{Status: message.StatusInvalidRequest, Error: "undecodable request: " + err.Error()}
	} else {
		start := time.Now()
		resp = svr.dispatch(&req)
		svr.logger.Debug("handled call",
			"method", req.ServiceMethod,
			"status", resp.Status.String(),
			"duration", time.Since(start),
		)
	}

	result, err := c.Encode(resp)
	if err != nil {
		svr.logger.Error("failed to encode response", "method", req.ServiceMethod, "err", err)
		result, _ = c.Encode(&message.RPCMessage{
			ServiceMethod: req.ServiceMethod,
			Status:        message.StatusRejected,
			Error:         "response could not be encoded: " + err.Error(),
		})
	} else if uint64(len(result)) > uint64(protocol.MaxBodyLen) {
		svr.logger.Warn("result too large", "method", req.ServiceMethod, "bytes", len(result))
		result, _ = c.Encode(&message.RPCMessage{
			ServiceMethod: req.ServiceMethod,
			Status:        message.StatusRejected,
			Error:         fmt.Sprintf("result too large: %d bytes exceeds %d", len(result), protocol.MaxBodyLen),
		})
	}

	replyHeader := protocol.Header{
		CodecType: header.CodecType,
		MsgType:   protocol.MsgTypeResponse,
		Seq:       header.Seq, // echo the request seq so the caller can match it
	}

	writeMu.Lock()
	defer writeMu.Unlock()
	if err := protocol.Encode(conn, &replyHeader, result); err != nil {
		svr.logger.Debug("failed to write response", "method", req.ServiceMethod, "err", err)
	}
}

// dispatch finds the service and method, decodes the arguments and calls the handler.
func (svr *Server) dispatch(req *message.RPCMessage) *message.RPCMessage {
	invalid := func(format string, args ...any) *message.RPCMessage {
		return &message.RPCMessage{
			ServiceMethod: req.ServiceMethod,
			Status:        message.StatusInvalidRequest,
			Error:         fmt.Sprintf(format, args...),
		}
	}

	serviceName, methodName, err := message.SplitServiceMethod(req.ServiceMethod)
	if err != nil {
		return invalid("%v", err)
	}

	svr.mu.RLock()
	svc := svr.serviceMap[serviceName]
	svr.mu.RUnlock()
	if svc == nil {
		return invalid("unknown service %s", serviceName)
	}
	method := svc.method[methodName]
	if method == nil {
		return invalid("unknown method %s.%s", serviceName, methodName)
	}

	argv := reflect.New(method.ArgType)
	replyv := reflect.New(method.ReplyType)

	payload := req.Payload
	if len(payload) == 0 {
		payload = []byte("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()
	if err := dec.Decode(argv.Interface()); err != nil {
		return invalid("%s: malformed arguments: %v", req.ServiceMethod, err)
	}

	if err := svc.call(method, argv, replyv); err != nil {
		status := message.StatusRejected
		if errors.Is(err, ErrInvalidArguments) {
			status = message.StatusInvalidRequest
		}
		return &message.RPCMessage{ServiceMethod: req.ServiceMethod, Status: status, Error: err.Error()}
	}

	replyMessage, err := json.Marshal(replyv.Interface())
	if err != nil {
		return &message.RPCMessage{
			ServiceMethod: req.ServiceMethod,
			Status:        message.StatusRejected,
			Error:         "failed to marshal result: " + err.Error(),
		}
	}
	return &message.RPCMessage{
		ServiceMethod: req.ServiceMethod,
		Status:        message.StatusOK,
		Payload:       replyMessage,
	}
}

// Shutdown stops the endpoint:
//  1. deregister from discovery so new bridges stop picking it
//  2. close the listener
//  3. wait up to timeout for in-flight requests
//  4. close remaining connections, which fails any call still waiting on them
func (svr *Server) Shutdown(timeout time.Duration) error {
	svr.mu.RLock()
	reg, instance, listener := svr.registry, svr.instance, svr.listener
	svr.mu.RUnlock()

	if reg != nil {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		if err := reg.Deregister(ctx, instance.Project, instance.Addr); err != nil {
			svr.logger.Warn("deregister failed", "addr", instance.Addr, "err", err)
		}
		cancel()
	}

	svr.reqMu.Lock()
	svr.shutdown.Store(true)
	svr.reqMu.Unlock()
	if listener != nil {
		listener.Close()
	}

	done := make(chan struct{})
	go func() {
		svr.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-time.After(timeout):
		err = fmt.Errorf("timeout waiting for ongoing requests to finish")
	}

	svr.connMu.Lock()
	for conn := range svr.conns {
		conn.Close()
	}
	svr.connMu.Unlock()
	return err
}
