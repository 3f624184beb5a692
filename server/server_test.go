package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"editor-bridge/codec"
	"editor-bridge/message"
	"editor-bridge/protocol"
	"editor-bridge/registry"

	"github.com/stretchr/testify/require"
)

type IntensityArgs struct {
	Light     string  `json:"light"`
	Intensity float64 `json:"intensity"`
}

type IntensityReply struct {
	Light    string  `json:"light"`
	Previous float64 `json:"previous"`
}

type BuildArgs struct{}

type BuildReply struct{}

type LightService struct {
	lights map[string]float64
}

func (s *LightService) SetIntensity(args *IntensityArgs, reply *IntensityReply) error {
	if args.Intensity < 0 {
		return InvalidArguments("intensity must not be negative, got %v", args.Intensity)
	}
	prev, ok := s.lights[args.Light]
	if !ok {
		return errors.New("light " + args.Light + " is not in the level")
	}
	s.lights[args.Light] = args.Intensity
	reply.Light = args.Light
	reply.Previous = prev
	return nil
}

func (s *LightService) BuildLighting(args *BuildArgs, reply *BuildReply) error {
	panic("lightmass crashed")
}

// not exposed: wrong signature
func (s *LightService) Reset() {}

type BakeArgs struct {
	Bytes   int `json:"bytes"`
	DelayMS int `json:"delay_ms"`
}

type BakeReply struct {
	Data string `json:"data"`
}

// BakeService returns a lightmap blob of the requested size.
type BakeService struct{}

func (s *BakeService) Bake(args *BakeArgs, reply *BakeReply) error {
	time.Sleep(time.Duration(args.DelayMS) * time.Millisecond)
	reply.Data = strings.Repeat("x", args.Bytes)
	return nil
}

func startServer(t *testing.T) (*Server, string) {
	t.Helper()
	svr := NewServer(nil)
	require.NoError(t, svr.RegisterName("LightService", &LightService{lights: map[string]float64{"Sun": 10}}))
	require.NoError(t, svr.Register(&BakeService{}))

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go svr.ServeListener(l)
	t.Cleanup(func() { svr.Shutdown(time.Second) })
	return svr, l.Addr().String()
}

func roundTrip(t *testing.T, conn net.Conn, ct byte, seq uint32, serviceMethod string, payload []byte) (*protocol.Header, *message.RPCMessage) {
	t.Helper()
	cdc := codec.GetCodec(codec.CodecType(ct))
	body, err := cdc.Encode(&message.RPCMessage{ServiceMethod: serviceMethod, Payload: payload})
	require.NoError(t, err)

	require.NoError(t, protocol.Encode(conn, &protocol.Header{
		CodecType: ct,
		MsgType:   protocol.MsgTypeRequest,
		Seq:       seq,
	}, body))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	replyHeader, responseBody, err := protocol.Decode(conn)
	require.NoError(t, err)

	var resp message.RPCMessage
	require.NoError(t, cdc.Decode(responseBody, &resp))
	return replyHeader, &resp
}

func TestServer(t *testing.T) {
	_, addr := startServer(t)
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	for _, ct := range []byte{protocol.CodecTypeJSON, protocol.CodecTypeBinary} {
		replyHeader, resp := roundTrip(t, conn, ct, 123, "LightService.set_intensity", []byte(`{"light":"Sun","intensity":4.5}`))
		require.Equal(t, uint32(123), replyHeader.Seq)
		require.Equal(t, ct, replyHeader.CodecType)
		require.Equal(t, protocol.MsgTypeResponse, replyHeader.MsgType)
		require.Equal(t, message.StatusOK, resp.Status, resp.Error)

		var reply IntensityReply
		require.NoError(t, json.Unmarshal(resp.Payload, &reply))
		require.Equal(t, "Sun", reply.Light)
	}
}

func TestDispatchStatuses(t *testing.T) {
	_, addr := startServer(t)
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	cases := []struct {
		name          string
		serviceMethod string
		payload       string
		status        message.Status
		errContains   string
	}{
		{"unknown service", "SkyService.set_time", `{}`, message.StatusInvalidRequest, "unknown service"},
		{"unknown method", "LightService.delete_light", `{}`, message.StatusInvalidRequest, "unknown method"},
		{"malformed name", "LightService", `{}`, message.StatusInvalidRequest, ""},
		{"unknown field", "LightService.set_intensity", `{"light":"Sun","colour":"red"}`, message.StatusInvalidRequest, "malformed arguments"},
		{"wrong type", "LightService.set_intensity", `{"light":"Sun","intensity":"bright"}`, message.StatusInvalidRequest, "malformed arguments"},
		{"invalid arguments", "LightService.set_intensity", `{"light":"Sun","intensity":-1}`, message.StatusInvalidRequest, "must not be negative"},
		{"rejected", "LightService.set_intensity", `{"light":"Moon","intensity":1}`, message.StatusRejected, "light Moon is not in the level"},
		{"panic", "LightService.build_lighting", ``, message.StatusRejected, "lightmass crashed"},
		{"wrong signature not exposed", "LightService.reset", `{}`, message.StatusInvalidRequest, "unknown method"},
	}
	for i, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, resp := roundTrip(t, conn, protocol.CodecTypeJSON, uint32(i+1), tc.serviceMethod, []byte(tc.payload))
			require.Equal(t, tc.status, resp.Status)
			require.Contains(t, resp.Error, tc.errContains)
			require.Empty(t, resp.Payload)
		})
	}
}

func TestResultTooLargeIsRejected(t *testing.T) {
	_, addr := startServer(t)
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	payload := fmt.Sprintf(`{"bytes":%d}`, protocol.MaxBodyLen)
	_, resp := roundTrip(t, conn, protocol.CodecTypeJSON, 1, "BakeService.bake", []byte(payload))
	require.Equal(t, message.StatusRejected, resp.Status)
	require.Contains(t, resp.Error, "result too large")

	_, resp = roundTrip(t, conn, protocol.CodecTypeJSON, 2, "BakeService.bake", []byte(`{"bytes":4}`))
	require.Equal(t, message.StatusOK, resp.Status)
}

func TestShutdownStopsTakingRequests(t *testing.T) {
	svr, addr := startServer(t)
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	send := func(seq uint32, payload string) {
		body, err := codec.GetCodec(codec.CodecTypeJSON).Encode(&message.RPCMessage{
			ServiceMethod: "BakeService.bake",
			Payload:       []byte(payload),
		})
		require.NoError(t, err)
		require.NoError(t, protocol.Encode(conn, &protocol.Header{
			CodecType: protocol.CodecTypeJSON,
			MsgType:   protocol.MsgTypeRequest,
			Seq:       seq,
		}, body))
	}

	send(1, `{"bytes":1,"delay_ms":300}`)
	time.Sleep(50 * time.Millisecond)

	drained := make(chan error, 1)
	go func() { drained <- svr.Shutdown(2 * time.Second) }()
	time.Sleep(50 * time.Millisecond)
	send(2, `{"bytes":1}`)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	h, _, err := protocol.Decode(conn)
	require.NoError(t, err)
	require.Equal(t, uint32(1), h.Seq, "the in-flight request is still answered")

	_, _, err = protocol.Decode(conn)
	require.Error(t, err, "no answer for a request that arrived while draining")
	require.NoError(t, <-drained)
}

func TestHeartbeatIgnored(t *testing.T) {
	_, addr := startServer(t)
	conn, err := net.Dial("tcp", addr)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, protocol.Encode(conn, &protocol.Header{MsgType: protocol.MsgTypeHeartbeat}, nil))
	h, resp := roundTrip(t, conn, protocol.CodecTypeJSON, 7, "LightService.set_intensity", []byte(`{"light":"Sun","intensity":1}`))
	require.Equal(t, uint32(7), h.Seq)
	require.Equal(t, message.StatusOK, resp.Status)
}

func TestRegister(t *testing.T) {
	svr := NewServer(nil)

	require.Error(t, svr.Register(LightService{}), "non-pointer")
	require.Error(t, svr.Register(&struct{}{}), "no methods")

	require.NoError(t, svr.Register(&LightService{}))
	require.Error(t, svr.Register(&LightService{}), "duplicate")
	require.NoError(t, svr.RegisterName("Lights", &LightService{}))

	require.Equal(t, []string{
		"LightService.build_lighting",
		"LightService.set_intensity",
		"Lights.build_lighting",
		"Lights.set_intensity",
	}, svr.Methods())
}

func TestSnakeCase(t *testing.T) {
	for in, want := range map[string]string{
		"ScatterFoliage":     "scatter_foliage",
		"CompileWithResults": "compile_with_results",
		"AddSocket":          "add_socket",
		"GetHTTPStatus":      "get_http_status",
		"ListLOD0Meshes":     "list_lod0_meshes",
		"Run":                "run",
	} {
		require.Equal(t, want, SnakeCase(in), in)
	}
}

func TestAnnounceAndShutdown(t *testing.T) {
	reg := registry.NewMemoryRegistry()
	svr := NewServer(nil)
	require.NoError(t, svr.Register(&LightService{lights: map[string]float64{}}))

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	served := make(chan error, 1)
	go func() { served <- svr.ServeListener(l) }()

	ctx := context.Background()
	inst := registry.EditorInstance{Addr: l.Addr().String(), Project: "shooter", Version: "5.4"}
	require.NoError(t, svr.Announce(ctx, reg, inst, 10))

	found, err := reg.Discover(ctx, "shooter")
	require.NoError(t, err)
	require.Len(t, found, 1)

	require.NoError(t, svr.Shutdown(time.Second))
	select {
	case err := <-served:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("ServeListener did not return after Shutdown")
	}

	found, err = reg.Discover(ctx, "shooter")
	require.NoError(t, err)
	require.Empty(t, found)
}
