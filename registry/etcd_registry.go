package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
)

const keyPrefix = "/editor-bridge/"

// EtcdRegistry implements Registry on etcd v3. Instances are stored as
//
//	Key:   /editor-bridge/{project}/{addr}
//	Value: JSON-encoded EditorInstance
//
// Registration uses TTL leases: if an editor crashes, its lease expires and the entry
// disappears instead of leaving a dead endpoint behind.
type EtcdRegistry struct {
	client *clientv3.Client // safe for concurrent use
}

// NewEtcdRegistry connects to the given etcd endpoints.
func NewEtcdRegistry(endpoints []string, dialTimeout time.Duration) (*EtcdRegistry, error) {
	c, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: dialTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("etcd: %w", err)
	}
	return &EtcdRegistry{client: c}, nil
}

func projectPrefix(project string) string {
	return keyPrefix + project + "/"
}

// Register stores instance under a lease of ttl seconds and keeps the lease alive
// until ctx is cancelled or the process exits.
//
// The lease id stays local to this call so one EtcdRegistry can register several
// instances concurrently.
func (r *EtcdRegistry) Register(ctx context.Context, instance EditorInstance, ttl int64) error {
	lease, err := r.client.Grant(ctx, ttl)
	if err != nil {
		return err
	}

	val, err := json.Marshal(instance)
	if err != nil {
		return err
	}

	_, err = r.client.Put(ctx, projectPrefix(instance.Project)+instance.Addr, string(val), clientv3.WithLease(lease.ID))
	if err != nil {
		return err
	}

	// Keep-alive must outlive the registration call, so it gets its own context.
	ch, err := r.client.KeepAlive(context.Background(), lease.ID)
	if err != nil {
		return err
	}

	// Drain keep-alive responses so the channel never fills up.
	go func() {
		for range ch {
		}
	}()
	return nil
}

// Deregister removes an instance, typically during editor shutdown.
func (r *EtcdRegistry) Deregister(ctx context.Context, project string, addr string) error {
	_, err := r.client.Delete(ctx, projectPrefix(project)+addr)
	return err
}

// Watch emits the full instance list of project every time it changes, until ctx ends.
func (r *EtcdRegistry) Watch(ctx context.Context, project string) <-chan []EditorInstance {
	ch := make(chan []EditorInstance, 1)

	go func() {
		defer close(ch)
		watchChan := r.client.Watch(ctx, projectPrefix(project), clientv3.WithPrefix())
		for range watchChan {
			// Re-read the whole prefix rather than applying individual events.
			instances, err := r.Discover(ctx, project)
			if err != nil {
				continue
			}
			select {
			case ch <- instances:
			case <-ctx.Done():
				return
			}
		}
	}()

	return ch
}

// Discover returns every instance currently registered for project.
func (r *EtcdRegistry) Discover(ctx context.Context, project string) ([]EditorInstance, error) {
	resp, err := r.client.Get(ctx, projectPrefix(project), clientv3.WithPrefix())
	if err != nil {
		return nil, err
	}

	instances := make([]EditorInstance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var instance EditorInstance
		if err := json.Unmarshal(kv.Value, &instance); err != nil {
			continue // skip entries written by something else
		}
		instances = append(instances, instance)
	}

	return instances, nil
}

// Close releases the etcd client.
func (r *EtcdRegistry) Close() error {
	return r.client.Close()
}
