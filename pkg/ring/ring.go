// Package ring implements the consistent-hash placement map: a sorted
// ring of virtual nodes mapping a path to the ServerNode responsible for
// it, and the RingsView that keeps the "primary" and "next" rings (and
// the cluster phase that governs which one is authoritative) behind a
// single lock.
package ring

import (
	"sort"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// ServerNode is one storage server as placed on the ring.
type ServerNode struct {
	Address string
	Weight  int
}

// virtualNodes is the number of ring points a ServerNode occupies.
// Weight zero still gets one point: a server with no declared weight is
// not meant to vanish from the ring, only to carry a smaller share.
func virtualNodes(weight int) int {
	if weight < 1 {
		return 1
	}
	return weight
}

// hashString returns a stable 64-bit hash of s. xxhash is used rather
// than a cryptographic hash because the ring only needs uniform
// distribution and speed, never collision resistance against an
// adversary.
func hashString(s string) uint64 {
	return xxhash.Sum64String(s)
}

type ringPoint struct {
	hash uint64
	node ServerNode
}

// HashRing is an immutable sorted set of ring points. Build one with New
// and query it with Lookup; to change membership, build a new HashRing
// and replace it wholesale (see RingsView).
type HashRing struct {
	points  []ringPoint
	weights map[string]int
}

// New builds a HashRing from the given servers, placing
// max(1, weight) virtual nodes per server at hash(addr + "#" + i).
func New(servers []ServerNode) *HashRing {
	weights := make(map[string]int, len(servers))
	var points []ringPoint
	for _, s := range servers {
		weights[s.Address] = s.Weight
		n := virtualNodes(s.Weight)
		for i := 0; i < n; i++ {
			h := hashString(s.Address + "#" + strconv.Itoa(i))
			points = append(points, ringPoint{hash: h, node: s})
		}
	}
	sort.Slice(points, func(i, j int) bool {
		if points[i].hash != points[j].hash {
			return points[i].hash < points[j].hash
		}
		// Ties broken by address: sort.Slice is not stable, so this
		// keeps the order deterministic.
		return points[i].node.Address < points[j].node.Address
	})
	return &HashRing{points: points, weights: weights}
}

// Empty reports whether the ring has no servers.
func (r *HashRing) Empty() bool {
	return r == nil || len(r.points) == 0
}

// Lookup returns the server responsible for path: the node at the first
// ring point whose hash is >= hash(path), wrapping around to the first
// point if hash(path) is greater than every point on the ring.
func (r *HashRing) Lookup(path string) (ServerNode, bool) {
	if r.Empty() {
		return ServerNode{}, false
	}
	h := hashString(path)
	i := sort.Search(len(r.points), func(i int) bool { return r.points[i].hash >= h })
	if i == len(r.points) {
		i = 0
	}
	return r.points[i].node, true
}

// Servers returns the flat address->weight table, for enumeration (e.g.
// listing cluster membership to an admin client).
func (r *HashRing) Servers() map[string]int {
	out := make(map[string]int, len(r.weights))
	for addr, w := range r.weights {
		out[addr] = w
	}
	return out
}

// Addresses returns the distinct server addresses on the ring, sorted.
func (r *HashRing) Addresses() []string {
	addrs := make([]string, 0, len(r.weights))
	for addr := range r.weights {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	return addrs
}

// Phase mirrors proto.ClusterStatus without importing pkg/cluster, which
// itself depends on RingsView to decide forwarding; keeping the
// dependency one-directional avoids an import cycle. pkg/cluster defines
// the canonical phase values and converts to/from this type at its edges.
type Phase int

// RingsView holds the primary and next rings together with the phase
// that decides which one a node should use to serve a given path,
// all under one RW-lock (spec.md design note: "two rings kept in
// lock-step -> single RingsView{primary, next, phase} record").
type RingsView struct {
	mu      sync.RWMutex
	primary *HashRing
	next    *HashRing
	phase   Phase
}

// NewRingsView returns a RingsView with only a primary ring set.
func NewRingsView(primary *HashRing, phase Phase) *RingsView {
	return &RingsView{primary: primary, phase: phase}
}

// Snapshot is a point-in-time copy of the fields of a RingsView, safe to
// use without holding any lock.
type Snapshot struct {
	Primary *HashRing
	Next    *HashRing
	Phase   Phase
}

// Load returns a Snapshot of the current rings and phase.
func (v *RingsView) Load() Snapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return Snapshot{Primary: v.primary, Next: v.next, Phase: v.phase}
}

// SetPhase updates only the phase, leaving both rings untouched.
func (v *RingsView) SetPhase(p Phase) {
	v.mu.Lock()
	v.phase = p
	v.mu.Unlock()
}

// SetNext installs next as the new-membership ring, replacing it
// wholesale; this is called once per node when SyncNewHashRing is
// observed (spec.md §4.3).
func (v *RingsView) SetNext(next *HashRing) {
	v.mu.Lock()
	v.next = next
	v.mu.Unlock()
}

// PromoteNext moves next into primary and clears next, for the
// PreFinish -> Finishing transition.
func (v *RingsView) PromoteNext() {
	v.mu.Lock()
	if v.next != nil {
		v.primary = v.next
		v.next = nil
	}
	v.mu.Unlock()
}

// ClearNext drops the next ring without promoting it, for a manager-side
// abort of an in-flight rebalance.
func (v *RingsView) ClearNext() {
	v.mu.Lock()
	v.next = nil
	v.mu.Unlock()
}
