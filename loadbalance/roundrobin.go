package loadbalance

import (
	"sync/atomic"

	"editor-bridge/registry"
)

// RoundRobinBalancer hands out instances in order using an atomic counter, no locks.
type RoundRobinBalancer struct {
	counter atomic.Uint64
}

func (b *RoundRobinBalancer) Pick(instances []registry.EditorInstance) (*registry.EditorInstance, error) {
	if len(instances) == 0 {
		return nil, ErrNoInstances
	}
	index := (b.counter.Add(1) - 1) % uint64(len(instances))
	return &instances[index], nil
}

func (b *RoundRobinBalancer) Name() string {
	return "round_robin"
}
