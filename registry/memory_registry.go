package registry

import (
	"context"
	"sort"
	"sync"
)

// MemoryRegistry is an in-process Registry for a single machine and for tests.
// TTLs are ignored: entries live until deregistered.
type MemoryRegistry struct {
	mu       sync.Mutex
	projects map[string]map[string]EditorInstance
	watchers map[string][]chan []EditorInstance
}

func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{
		projects: make(map[string]map[string]EditorInstance),
		watchers: make(map[string][]chan []EditorInstance),
	}
}

func (r *MemoryRegistry) Register(ctx context.Context, instance EditorInstance, ttl int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.projects[instance.Project] == nil {
		r.projects[instance.Project] = make(map[string]EditorInstance)
	}
	r.projects[instance.Project][instance.Addr] = instance
	r.notify(instance.Project)
	return nil
}

func (r *MemoryRegistry) Deregister(ctx context.Context, project string, addr string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.projects[project], addr)
	r.notify(project)
	return nil
}

// Discover returns instances sorted by address so balancers see a stable order.
func (r *MemoryRegistry) Discover(ctx context.Context, project string) ([]EditorInstance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.snapshot(project), nil
}

func (r *MemoryRegistry) Watch(ctx context.Context, project string) <-chan []EditorInstance {
	ch := make(chan []EditorInstance, 1)
	r.mu.Lock()
	r.watchers[project] = append(r.watchers[project], ch)
	r.mu.Unlock()

	go func() {
		<-ctx.Done()
		r.mu.Lock()
		defer r.mu.Unlock()
		list := r.watchers[project]
		for i, w := range list {
			if w == ch {
				r.watchers[project] = append(list[:i], list[i+1:]...)
				break
			}
		}
		close(ch)
	}()
	return ch
}

// snapshot must be called with mu held.
func (r *MemoryRegistry) snapshot(project string) []EditorInstance {
	out := make([]EditorInstance, 0, len(r.projects[project]))
	for _, inst := range r.projects[project] {
		out = append(out, inst)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Addr < out[j].Addr })
	return out
}

// notify must be called with mu held. A watcher that has not consumed the previous
// list gets it replaced by the newer one.
func (r *MemoryRegistry) notify(project string) {
	list := r.snapshot(project)
	for _, ch := range r.watchers[project] {
		select {
		case <-ch:
		default:
		}
		ch <- list
	}
}
