// Package registry lets editor endpoints announce themselves and bridges find them.
//
// A machine may run several editors (one per project, or several for the same
// project); each endpoint registers an EditorInstance under its project name.
package registry

import "context"

// EditorInstance describes one reachable editor endpoint.
type EditorInstance struct {
	Addr    string `json:"addr"`
	Project string `json:"project"`
	Weight  int    `json:"weight"`  // relative share for weighted balancing
	Version string `json:"version"` // editor build, informational
}

type Registry interface {
	Register(ctx context.Context, instance EditorInstance, ttl int64) error
	Deregister(ctx context.Context, project string, addr string) error
	Discover(ctx context.Context, project string) ([]EditorInstance, error)
	Watch(ctx context.Context, project string) <-chan []EditorInstance
}
