// Package manager implements the manager side of spec.md §4.3: the
// authoritative cluster phase, the node registry backing ring
// computation, and the RPC surface (pkg/proto's ManagerOp family plus
// the SendHeart supplement from §13) that clients and servers poll and
// ack against. GetMetadata is answered by storage servers, not here.
package manager

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sealfs-project/sealfs/pkg/cluster"
	"github.com/sealfs-project/sealfs/pkg/ring"
)

// HeartbeatInterval is how long a server may go without being heard from
// (a heartbeat or a status ack) before Registry excludes it
// from ring computation and from the set of nodes a phase transition
// waits on (spec.md §13 supplement: "3x the 1s poll period").
const HeartbeatInterval = 3 * cluster.PollInterval

type nodeState struct {
	id       string
	weight   int
	lastSeen time.Time
	acked    cluster.Status
	ackedSet bool
}

// Registry is the manager's view of cluster membership: every known
// server address, its ring weight, the last time it was heard from, and
// the phase it most recently acked. All methods are safe for concurrent
// use.
type Registry struct {
	mu    sync.Mutex
	nodes map[string]*nodeState
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{nodes: make(map[string]*nodeState)}
}

// Add registers addr at weight, marking it seen now. Re-adding an
// address already known updates its weight in place but keeps its
// existing node id: the id identifies a registration, not just an
// address, so a server that leaves and rejoins under the same address
// is treated as the same node rather than silently re-keyed.
func (r *Registry) Add(addr string, weight int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[addr]
	if !ok {
		n = &nodeState{id: uuid.NewString(), lastSeen: time.Now()}
		r.nodes[addr] = n
	}
	n.weight = weight
}

// ID returns the node id Add assigned to addr, or "" if addr is not
// registered. Logged alongside the address so an operator can tell a
// genuinely new server apart from one that dropped and rejoined at the
// same address mid-incident.
func (r *Registry) ID(addr string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n, ok := r.nodes[addr]; ok {
		return n.id
	}
	return ""
}

// Remove drops addr from the registry entirely, used by RemoveNodes.
func (r *Registry) Remove(addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.nodes, addr)
}

// Contains reports whether addr is currently registered.
func (r *Registry) Contains(addr string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.nodes[addr]
	return ok
}

// Touch records addr as seen just now (called for OpSendHeart; Ack
// refreshes lastSeen on its own). A heartbeat from an unregistered
// address is ignored.
func (r *Registry) Touch(addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if n, ok := r.nodes[addr]; ok {
		n.lastSeen = time.Now()
	}
}

// Ack records that addr has finished reacting to the phase it just
// observed and is now claiming status. It reports false if addr is not
// registered.
func (r *Registry) Ack(addr string, status cluster.Status) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, ok := r.nodes[addr]
	if !ok {
		return false
	}
	n.lastSeen = time.Now()
	n.acked = status
	n.ackedSet = true
	return true
}

// AllAcked reports whether every node Registry considers live as of now
// has acked exactly status. An empty registry never satisfies this (a
// manager with no known servers cannot advance past Initializing).
func (r *Registry) AllAcked(status cluster.Status, now time.Time) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.nodes) == 0 {
		return false
	}
	for addr, n := range r.nodes {
		if !r.liveLocked(addr, now) {
			continue
		}
		if !n.ackedSet || n.acked != status {
			return false
		}
	}
	return true
}

// ResetAcks clears every node's ack, called once the manager advances
// past the phase the acks were collected for.
func (r *Registry) ResetAcks() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, n := range r.nodes {
		n.ackedSet = false
	}
}

func (r *Registry) liveLocked(addr string, now time.Time) bool {
	n, ok := r.nodes[addr]
	return ok && now.Sub(n.lastSeen) <= HeartbeatInterval
}

// Live returns the ServerNode set for every address Registry has heard
// from within HeartbeatInterval, suitable for building a fresh
// ring.HashRing.
func (r *Registry) Live(now time.Time) []ring.ServerNode {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ring.ServerNode
	for addr, n := range r.nodes {
		if now.Sub(n.lastSeen) <= HeartbeatInterval {
			out = append(out, ring.ServerNode{Address: addr, Weight: n.weight})
		}
	}
	return out
}

// Dead returns every address Registry has not heard from within
// HeartbeatInterval, for logging and eventual eviction by an operator.
func (r *Registry) Dead(now time.Time) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for addr, n := range r.nodes {
		if now.Sub(n.lastSeen) > HeartbeatInterval {
			out = append(out, addr)
		}
	}
	return out
}

// Count returns the number of registered addresses, live or not.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.nodes)
}
