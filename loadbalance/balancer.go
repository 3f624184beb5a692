// Package loadbalance chooses which editor a bridge connects to when discovery
// returns more than one for a project.
//
// Three strategies:
//   - RoundRobin:     spread successive connections evenly
//   - WeightedRandom: favour editors with a higher Weight (e.g. a beefier workstation)
//   - ConsistentHash: pin a client identity to the same editor while the set is stable
package loadbalance

import (
	"errors"
	"fmt"

	"editor-bridge/registry"
)

var ErrNoInstances = errors.New("no editor instances available")

// Balancer picks one instance. Pick is called on every (re)connect and must be safe
// for concurrent use.
type Balancer interface {
	Pick(instances []registry.EditorInstance) (*registry.EditorInstance, error)

	// Name returns the strategy name, for logs.
	Name() string
}

// New returns the balancer with the given configuration name. key is only used by
// consistent_hash.
func New(name, key string) (Balancer, error) {
	switch name {
	case "", "round_robin":
		return &RoundRobinBalancer{}, nil
	case "weighted_random":
		return &WeightedRandomBalancer{}, nil
	case "consistent_hash":
		return NewConsistentHashBalancer(key), nil
	}
	return nil, fmt.Errorf("unknown balancer %q", name)
}
