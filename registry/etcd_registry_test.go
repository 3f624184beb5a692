package registry

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// etcdEndpoint returns the etcd named by EDITOR_BRIDGE_TEST_ETCD, skipping the test
// when it is unset.
func etcdEndpoint(t *testing.T) string {
	t.Helper()
	endpoint := os.Getenv("EDITOR_BRIDGE_TEST_ETCD")
	if endpoint == "" {
		t.Skip("EDITOR_BRIDGE_TEST_ETCD not set")
	}
	return endpoint
}

func TestEtcdRegisterAndDiscover(t *testing.T) {
	reg, err := NewEtcdRegistry([]string{etcdEndpoint(t)}, 2*time.Second)
	require.NoError(t, err)
	defer reg.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	project := "registry-test-" + time.Now().Format("150405.000")
	inst1 := EditorInstance{Addr: "127.0.0.1:8001", Project: project, Weight: 10, Version: "5.4"}
	inst2 := EditorInstance{Addr: "127.0.0.1:8002", Project: project, Weight: 5, Version: "5.4"}

	require.NoError(t, reg.Register(ctx, inst1, 10))
	require.NoError(t, reg.Register(ctx, inst2, 10))

	instances, err := reg.Discover(ctx, project)
	require.NoError(t, err)
	require.Len(t, instances, 2)

	updates := reg.Watch(ctx, project)
	time.Sleep(200 * time.Millisecond) // let the watch attach before changing the prefix
	require.NoError(t, reg.Deregister(ctx, project, inst1.Addr))

	select {
	case list := <-updates:
		require.Len(t, list, 1)
		require.Equal(t, inst2.Addr, list[0].Addr)
	case <-ctx.Done():
		t.Fatal("no watch update after deregister")
	}

	require.NoError(t, reg.Deregister(ctx, project, inst2.Addr))
}
