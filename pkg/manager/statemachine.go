package manager

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/sealfs-project/sealfs/pkg/cluster"
	"github.com/sealfs-project/sealfs/pkg/ring"
)

// ErrRebalanceInProgress is returned by AddNodes/RemoveNodes when the
// cluster is not Idle, per spec.md §9(b)'s assumption that the manager
// rejects a second rebalance before the first reaches Idle (recorded as
// decision (b) in DESIGN.md).
var ErrRebalanceInProgress = errors.New("manager: rebalance already in progress")

// Manager drives spec.md §4.3's cluster state machine: it holds the
// authoritative phase, the primary and next placement rings, and the
// Registry of known servers whose acks advance the phase. One Manager
// backs one cmd/sealfs-managerd process; spec.md explicitly puts
// manager high availability out of scope, so there is no replication or
// persistence here beyond what Registry and the rings hold in memory.
type Manager struct {
	mu       sync.Mutex
	status   cluster.Status
	primary  *ring.HashRing
	next     *ring.HashRing
	registry *Registry
}

// New returns a Manager in Initializing, with no servers registered yet.
// Call Bootstrap with the cluster's initial server list before starting
// the manager's listener; only registered addresses may Ack.
func New() *Manager {
	return &Manager{
		status:   cluster.Initializing,
		primary:  ring.New(nil),
		registry: NewRegistry(),
	}
}

// Bootstrap registers the cluster's initial server list. It is meant to
// be called once, from cmd/sealfs-managerd's config, before the first
// node ever polls GetClusterStatus: spec.md §4.3's "Initializing → Idle
// (all servers report Finished on boot)" is this implementation's
// Ack(addr, Idle) from every address Bootstrap names, once each server
// has loaded its local engine and is ready to serve.
func (m *Manager) Bootstrap(nodes []NodeDelta) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, d := range nodes {
		m.registry.Add(d.Address, d.Weight)
	}
	if len(nodes) > 0 && m.status == cluster.Initializing {
		m.status = cluster.NodesStarting
		// Ack's boot path promotes next into primary the same way a
		// RequestRebalance-driven transition does; compute it here so
		// that promotion has a real ring to promote instead of nil.
		m.next = ring.New(m.registry.Live(time.Now()))
	}
}

// Status returns the manager's current phase.
func (m *Manager) Status() cluster.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// HashRing returns the current primary ring.
func (m *Manager) HashRing() *ring.HashRing {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.primary
}

// NewHashRing returns the ring being transitioned to, or nil outside
// SyncNewHashRing..Finishing.
func (m *Manager) NewHashRing() *ring.HashRing {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.next
}

// Registry exposes the node registry, e.g. for a heartbeat sweep or
// admin listing.
func (m *Manager) Registry() *Registry {
	return m.registry
}

// RequestRebalance implements the AddNodes/RemoveNodes admin RPC: it
// applies the membership delta to the registry, computes a new ring from
// the resulting live set, and moves the cluster from Idle to
// SyncNewHashRing. Called with add or remove non-empty (never both);
// weight is only consulted for additions.
func (m *Manager) RequestRebalance(add []NodeDelta, remove []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.status != cluster.Idle {
		return ErrRebalanceInProgress
	}
	for _, d := range add {
		m.registry.Add(d.Address, d.Weight)
	}
	for _, addr := range remove {
		m.registry.Remove(addr)
	}
	m.next = ring.New(m.registry.Live(time.Now()))
	m.status = cluster.SyncNewHashRing
	m.registry.ResetAcks()
	rebalancesStarted.Inc()
	clusterPhase.Set(float64(m.status))
	return nil
}

// NodeDelta is one address/weight pair from an AddNodes request.
type NodeDelta struct {
	Address string
	Weight  int
}

// Ack records that addr has finished reacting to the phase it last
// observed and is now at status (spec.md §4.3's per-phase acks, plus the
// boot-time "report Finished" ack this implementation maps onto acking
// Idle — see DESIGN.md's open-question decision (d)). Once every live
// node has acked the same status, the manager phase itself advances to
// it. addr must already be registered, via Bootstrap at startup or
// RequestRebalance afterward; Ack never registers a node implicitly.
func (m *Manager) Ack(addr string, status cluster.Status) error {
	if !status.Valid() {
		return errors.Errorf("manager: unknown status %d", status)
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.registry.Ack(addr, status) {
		return errors.Errorf("manager: unknown server %s", addr)
	}

	// NodesStarting has no entry in cluster.Next (it is not part of the
	// rebalance cycle); the target it is waiting for is always Idle, the same "all servers report Finished
	// on boot" condition spec.md §4.3 lists for Initializing.
	target := cluster.Idle
	if m.status != cluster.NodesStarting && m.status != cluster.Initializing {
		var ok bool
		target, ok = cluster.Next(m.status)
		if !ok {
			return nil
		}
	}
	if target != status {
		return nil
	}
	if !m.registry.AllAcked(status, time.Now()) {
		return nil
	}

	m.status = target
	m.registry.ResetAcks()
	if target == cluster.Idle {
		m.primary = m.next
		m.next = nil
	}
	clusterPhase.Set(float64(m.status))
	liveNodes.Set(float64(len(m.registry.Live(time.Now()))))
	return nil
}
