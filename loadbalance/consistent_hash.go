package loadbalance

import (
	"fmt"
	"hash/crc32"
	"sort"
	"strings"
	"sync"

	"editor-bridge/registry"
)

// ConsistentHashBalancer maps a fixed key (a user or machine identity) onto a hash
// ring of editors, so the same client keeps landing on the same editor and adding or
// removing one editor only moves the keys that hashed near it.
//
// Each editor is placed on the ring as replicas virtual nodes hashed from "{addr}#{i}";
// without them a handful of editors would cluster and split the ring unevenly.
//
//	Hash Ring:
//	                  0
//	                ╱   ╲
//	         B ●               ● A
//	           │    key ◆──►   │   (clockwise to nearest node → A)
//	         C ●               ● A' (virtual node of A)
//	                ╲   ╱
type ConsistentHashBalancer struct {
	key      string
	replicas int

	mu   sync.Mutex
	sig  string   // addresses the ring was built from
	ring []uint32 // sorted virtual node hashes
	nodes map[uint32]string // virtual node hash → editor address
}

// NewConsistentHashBalancer creates a ring with 100 virtual nodes per editor.
func NewConsistentHashBalancer(key string) *ConsistentHashBalancer {
	return &ConsistentHashBalancer{
		key:      key,
		replicas: 100,
		nodes:    make(map[uint32]string),
	}
}

// Pick returns the editor owning the balancer's key. The ring is rebuilt only when
// the set of addresses changes.
func (b *ConsistentHashBalancer) Pick(instances []registry.EditorInstance) (*registry.EditorInstance, error) {
	if len(instances) == 0 {
		return nil, ErrNoInstances
	}

	b.mu.Lock()
	b.rebuild(instances)
	addr := b.lookup(b.key)
	b.mu.Unlock()

	for i := range instances {
		if instances[i].Addr == addr {
			return &instances[i], nil
		}
	}
	return nil, fmt.Errorf("consistent hash: %s not among instances", addr)
}

// PickKey is Pick for an explicit key instead of the balancer's own.
func (b *ConsistentHashBalancer) PickKey(key string, instances []registry.EditorInstance) (*registry.EditorInstance, error) {
	if len(instances) == 0 {
		return nil, ErrNoInstances
	}
	b.mu.Lock()
	b.rebuild(instances)
	addr := b.lookup(key)
	b.mu.Unlock()
	for i := range instances {
		if instances[i].Addr == addr {
			return &instances[i], nil
		}
	}
	return nil, fmt.Errorf("consistent hash: %s not among instances", addr)
}

// rebuild must be called with mu held.
func (b *ConsistentHashBalancer) rebuild(instances []registry.EditorInstance) {
	addrs := make([]string, len(instances))
	for i, inst := range instances {
		addrs[i] = inst.Addr
	}
	sort.Strings(addrs)
	sig := strings.Join(addrs, ",")
	if sig == b.sig && len(b.ring) > 0 {
		return
	}

	b.sig = sig
	b.ring = b.ring[:0]
	b.nodes = make(map[uint32]string, len(addrs)*b.replicas)
	for _, addr := range addrs {
		for i := 0; i < b.replicas; i++ {
			hash := crc32.ChecksumIEEE([]byte(fmt.Sprintf("%s#%d", addr, i)))
			if _, taken := b.nodes[hash]; taken {
				continue
			}
			b.ring = append(b.ring, hash)
			b.nodes[hash] = addr
		}
	}
	sort.Slice(b.ring, func(i, j int) bool {
		return b.ring[i] < b.ring[j]
	})
}

// lookup finds the first virtual node clockwise from key's hash, wrapping to the start
// of the ring. Must be called with mu held.
func (b *ConsistentHashBalancer) lookup(key string) string {
	hash := crc32.ChecksumIEEE([]byte(key))
	idx := sort.Search(len(b.ring), func(i int) bool {
		return b.ring[i] >= hash
	})
	if idx == len(b.ring) {
		idx = 0
	}
	return b.nodes[b.ring[idx]]
}

func (b *ConsistentHashBalancer) Name() string {
	return "consistent_hash"
}
