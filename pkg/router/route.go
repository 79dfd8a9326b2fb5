// Package router implements the server-side request router (spec.md
// §4.4) and the per-server rebalance engine it drives during a
// membership change (spec.md §4.5): given an incoming request, decide
// whether this node should serve it locally or forward it to the peer
// that actually owns the path, and, while a rebalance is in flight,
// migrate the paths this node is giving up to their new owner.
package router

import (
	"github.com/sealfs-project/sealfs/pkg/cluster"
	"github.com/sealfs-project/sealfs/pkg/ring"
)

// PlanLookup reports whether a path's rebalance migration has already
// completed; *RebalancePlan implements it. Routing only needs this
// narrow slice of the plan's API.
type PlanLookup interface {
	Done(path string) bool
}

// Decision is what ComputeRoute tells a server to do with a request for
// a given path.
type Decision struct {
	// Forward is true when the request must be relayed to another node.
	Forward bool
	// Target is the address to forward to; meaningful only if Forward.
	Target string
}

// ComputeRoute implements spec.md §4.4's routing table. self is this
// node's own address; rings is the node's current primary/next snapshot;
// mutatesCreatesInode should be true for an op that would create a new
// inode on a path it doesn't yet own (create_file, create_dir) and false
// otherwise; plan may be nil outside the Transferring phase.
func ComputeRoute(self string, phase cluster.Status, rings ring.Snapshot, path string, mutatesCreatesInode bool, plan PlanLookup) Decision {
	primaryNode, ok := rings.Primary.Lookup(path)
	if !ok {
		// No ring at all (not yet initialized); nothing to do but serve
		// locally and let the operation fail on its own merits.
		return Decision{}
	}
	primary := primaryNode.Address

	if primary != self {
		return Decision{Forward: true, Target: primary}
	}

	var next string
	if rings.Next != nil {
		if n, ok := rings.Next.Lookup(path); ok {
			next = n.Address
		}
	}
	if next == "" || next == self {
		return Decision{}
	}

	switch phase {
	case cluster.PreTransfer:
		if mutatesCreatesInode {
			return Decision{Forward: true, Target: next}
		}
	case cluster.Transferring:
		if plan != nil && plan.Done(path) {
			return Decision{Forward: true, Target: next}
		}
	}
	return Decision{}
}
