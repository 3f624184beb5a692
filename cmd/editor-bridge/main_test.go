package main

import (
	"bytes"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"editor-bridge/editorsim"
	"editor-bridge/server"

	"github.com/stretchr/testify/require"
)

func startStub(t *testing.T) string {
	t.Helper()
	srv := server.NewServer(nil)
	require.NoError(t, editorsim.NewEditor().Register(srv))
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go srv.ServeListener(l)
	t.Cleanup(func() { srv.Shutdown(time.Second) })
	return l.Addr().String()
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), err
}

func exitCodeOf(t *testing.T, err error) int {
	t.Helper()
	var ee *exitError
	require.True(t, errors.As(err, &ee), "expected an exit error, got %v", err)
	return ee.code
}

func TestCall(t *testing.T) {
	addr := startStub(t)

	out, err := run(t, "call", "--addr", addr, "--canonical",
		"AssetDiscoveryService.list_assets", `{"class_name":"Skeleton"}`)
	require.NoError(t, err)
	require.Equal(t, `{"assets":[{"class":"Skeleton","path":"/Game/Characters/Hero/SKEL_Hero"}],"total":1}`+"\n", out)
}

func TestCallBinaryCodec(t *testing.T) {
	addr := startStub(t)

	out, err := run(t, "call", "--addr", addr, "--codec", "binary",
		"NiagaraService.compile_with_results", `{"system_path":"/Game/FX/NS_Sparks"}`)
	require.NoError(t, err)
	require.Contains(t, out, `"success": true`)
}

func TestCallFailures(t *testing.T) {
	addr := startStub(t)

	_, err := run(t, "call", "--addr", addr, "SkeletonService.add_socket",
		`{"skeletal_mesh_path":"/Game/Characters/Hero/SKEL_Hero","socket_name":"muzzle","bone_name":"hand_r"}`)
	require.Error(t, err)
	require.Equal(t, exitRejected, exitCodeOf(t, err))
	require.Contains(t, err.Error(), "Skeleton")

	_, err = run(t, "call", "--addr", addr, "FoliageService.scatter_foliage", `{"mesh_path":"/Game/Foliage/SM_Fern","count":0}`)
	require.Equal(t, exitInvalidRequest, exitCodeOf(t, err))

	_, err = run(t, "call", "--addr", addr, "no_dot")
	require.Equal(t, exitInvalidRequest, exitCodeOf(t, err))

	_, err = run(t, "call", "--addr", addr, "FoliageService.list_foliage", `{"broken"`)
	require.Equal(t, exitInvalidRequest, exitCodeOf(t, err))

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	closed := l.Addr().String()
	l.Close()
	_, err = run(t, "call", "--addr", closed, "--timeout", "30s", "FoliageService.list_foliage")
	require.Equal(t, exitUnavailable, exitCodeOf(t, err))
}

func TestContracts(t *testing.T) {
	out, err := run(t, "contracts", "SkeletonService")
	require.NoError(t, err)
	require.Contains(t, out, "SkeletonService\n")
	require.Contains(t, out, "add_socket")
	require.Contains(t, out, "read-only")
	require.Contains(t, out, "requires: call commit_bone_changes before saving the mesh")
	require.NotContains(t, out, "FoliageService")

	out, err = run(t, "contracts")
	require.NoError(t, err)
	require.Contains(t, out, "FoliageService")

	_, err = run(t, "contracts", "SequencerService")
	require.Error(t, err)
}

func TestBadConfig(t *testing.T) {
	_, err := run(t, "call", "--codec", "protobuf", "FoliageService.list_foliage")
	require.Error(t, err)
}
