package sealclient

import (
	"context"

	"github.com/sealfs-project/sealfs/pkg/cluster"
	"github.com/sealfs-project/sealfs/pkg/ring"
)

// reactor is the cluster.Reactor a Client's cluster.Poller drives. Per
// cluster.Reactor's doc comment, a plain client only cares about ring
// membership: it prefetches the next ring and dials its new peers ahead
// of time, then promotes it once the cluster reaches PreFinish, but it
// never acks a phase back to the manager and never computes or runs a
// transfer plan.
type reactor struct {
	rings *ring.RingsView
	pool  *connPool
}

// OnSyncNewHashRing installs the next ring and opens connections to any
// peer it introduces, the same prefetch pkg/router.Dispatcher does
// before a server starts forwarding to it.
func (r *reactor) OnSyncNewHashRing(ctx context.Context, mgr cluster.ManagerClient) error {
	next, err := mgr.GetNewHashRing(ctx)
	if err != nil {
		return err
	}
	r.rings.SetNext(next)
	for _, addr := range next.Addresses() {
		r.pool.get(addr) // best effort; a failed prefetch just means the first real call dials.
	}
	return nil
}

// OnPreTransfer and OnTransferring are no-ops: a client does not own any
// data a rebalance would move, only the ring that tells it who does.
func (r *reactor) OnPreTransfer(ctx context.Context, mgr cluster.ManagerClient) error  { return nil }
func (r *reactor) OnTransferring(ctx context.Context, mgr cluster.ManagerClient) error { return nil }

// OnPreFinish promotes the prefetched next ring into primary, the same
// moment a server swaps its own ring, so routing decisions stay aligned
// with where data actually lives.
func (r *reactor) OnPreFinish(ctx context.Context, mgr cluster.ManagerClient) error {
	r.rings.PromoteNext()
	return nil
}

// OnFinishing drops any ring left over from an aborted rebalance.
func (r *reactor) OnFinishing(ctx context.Context, mgr cluster.ManagerClient) error {
	r.rings.ClearNext()
	return nil
}
