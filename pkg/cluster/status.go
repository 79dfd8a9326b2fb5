// Package cluster implements the cluster state machine: the
// ClusterStatus phase enum, the manager-side transition table, and the
// per-node poller that watches the manager's phase and drives local
// reactions to it (spec.md §4.3).
package cluster

import "github.com/sealfs-project/sealfs/pkg/ring"

// Status is one phase of the cluster-wide state machine. Values are part
// of the wire contract (carried in GetClusterStatus responses) and must
// never be renumbered.
type Status int32

const (
	Initializing Status = iota
	NodesStarting
	Idle
	SyncNewHashRing
	PreTransfer
	Transferring
	PreFinish
	Finishing
)

var statusNames = [...]string{
	"Initializing", "NodesStarting", "Idle", "SyncNewHashRing",
	"PreTransfer", "Transferring", "PreFinish", "Finishing",
}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "Status(unknown)"
	}
	return statusNames[s]
}

// Valid reports whether s is one of the eight known phases. A node that
// observes an out-of-range value (e.g. from a newer manager) must not
// act on it; the hot path still does a raw integer compare against Idle
// first, so Valid is only consulted on the slow path.
func (s Status) Valid() bool {
	return s >= Initializing && s <= Finishing
}

// ToPhase converts a Status to the ring.Phase type pkg/ring uses, so a
// RingsView can be updated without pkg/ring importing pkg/cluster.
func (s Status) ToPhase() ring.Phase {
	return ring.Phase(s)
}

// next holds the manager-authoritative transition table from spec.md
// §4.3: the only phase each phase may advance to, driven by the named
// condition. A manager receiving an ack for any other phase records it
// but does not advance.
var next = map[Status]Status{
	Initializing:    Idle,
	Idle:            SyncNewHashRing,
	SyncNewHashRing: PreTransfer,
	PreTransfer:     Transferring,
	Transferring:    PreFinish,
	PreFinish:       Finishing,
	Finishing:       Idle,
}

// CanTransition reports whether the manager may move the cluster from
// from to to directly.
func CanTransition(from, to Status) bool {
	want, ok := next[from]
	return ok && want == to
}

// Next returns the phase that follows from, and false if from is
// NodesStarting (which the manager advances to Idle once every registered
// server acks Idle, outside this table) or otherwise has no successor
// recorded.
func Next(from Status) (Status, bool) {
	to, ok := next[from]
	return to, ok
}
