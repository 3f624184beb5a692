package bridge

import (
	"context"
	"errors"
	"fmt"

	"editor-bridge/loadbalance"
	"editor-bridge/registry"
)

// Resolver finds the address of the editor endpoint to connect to. It is consulted on
// every (re)connect, so a resolver backed by discovery follows editors that restart on a
// new address.
type Resolver interface {
	Resolve(ctx context.Context) (string, error)
}

// StaticResolver always returns the same address.
type StaticResolver string

func (r StaticResolver) Resolve(ctx context.Context) (string, error) {
	if r == "" {
		return "", errors.New("no editor address configured")
	}
	return string(r), nil
}

// DiscoveryResolver picks one of the editors announced for Project.
type DiscoveryResolver struct {
	Registry registry.Registry
	Project  string
	Balancer loadbalance.Balancer // round robin when nil
}

func (r *DiscoveryResolver) Resolve(ctx context.Context) (string, error) {
	instances, err := r.Registry.Discover(ctx, r.Project)
	if err != nil {
		return "", fmt.Errorf("discover editors for %s: %w", r.Project, err)
	}
	bal := r.Balancer
	if bal == nil {
		bal = defaultBalancer
	}
	inst, err := bal.Pick(instances)
	if err != nil {
		return "", fmt.Errorf("project %s: %w", r.Project, err)
	}
	return inst.Addr, nil
}

var defaultBalancer = &loadbalance.RoundRobinBalancer{}
