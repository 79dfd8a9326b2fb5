package router

import (
	"context"
	"math"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/sealfs-project/sealfs/pkg/metaengine"
	"github.com/sealfs-project/sealfs/pkg/proto"
	"github.com/sealfs-project/sealfs/pkg/ring"
	"github.com/sealfs-project/sealfs/pkg/rpcconn"
)

// maxConcurrentTransfers bounds how many paths this node migrates at
// once during Transferring, so one rebalance pass doesn't open an
// unbounded number of simultaneous blob reads and peer writes.
const maxConcurrentTransfers = 8

// BuildPlan implements spec.md §4.5's entry step: on transitioning to
// PreTransfer, walk the local attribute index and collect every path
// this node owns under the primary ring but will no longer own once
// next takes effect.
func BuildPlan(engine *metaengine.Engine, self string, rings ring.Snapshot) (*RebalancePlan, error) {
	plan := NewRebalancePlan()
	if rings.Next == nil {
		return plan, nil
	}
	err := engine.Walk(func(path string, attr proto.FileAttr) bool {
		primary, ok := rings.Primary.Lookup(path)
		if !ok || primary.Address != self {
			return true
		}
		owner, ok := rings.Next.Lookup(path)
		if !ok || owner.Address == self {
			return true
		}
		plan.Add(path, attr.IsDir(), attr)
		return true
	})
	return plan, err
}

// ExecuteTransfer implements spec.md §4.5's Transferring phase: every
// path in plan is migrated to its new owner (from rings.Next) under that
// path's write lock, up to maxConcurrentTransfers paths at once, then
// marked Done. The caller acks
// PreFinish to the manager only once this returns successfully for
// every path.
func ExecuteTransfer(ctx context.Context, plan *RebalancePlan, engine *metaengine.Engine, peers *PeerPool, rings ring.Snapshot) error {
	g, ctx := errgroup.WithContext(ctx)
	sem := semaphore.NewWeighted(maxConcurrentTransfers)

	for _, path := range plan.Paths() {
		path := path
		if err := sem.Acquire(ctx, 1); err != nil {
			return err
		}
		g.Go(func() error {
			defer sem.Release(1)
			return transferOne(ctx, plan, engine, peers, rings, path)
		})
	}
	return g.Wait()
}

// transferOne migrates a single path to its new owner under that path's
// per-entry write lock, then marks it Done. Run concurrently across
// paths by ExecuteTransfer, bounded by maxConcurrentTransfers.
func transferOne(ctx context.Context, plan *RebalancePlan, engine *metaengine.Engine, peers *PeerPool, rings ring.Snapshot, path string) error {
	entry, ok := plan.lockPath(path)
	if !ok {
		return nil
	}
	owner, ok := rings.Next.Lookup(path)
	if !ok {
		return nil
	}
	conn, err := peers.Get(owner.Address)
	if err != nil {
		return err
	}

	entry.mu.Lock()
	defer entry.mu.Unlock()
	if entry.isDir {
		err = transferDir(ctx, engine, conn, path, entry.attr)
	} else {
		err = transferFile(ctx, engine, conn, path, entry.attr)
	}
	if err != nil {
		return err
	}
	plan.markDone(path)
	rebalancePathsMigrated.Inc()
	return nil
}

// transferDir implements spec.md §4.5 step 1: create the directory on
// its new owner, replay its children, commit the authoritative
// attribute, then delete the local copy without the emptiness check
// (the parent's entry is left alone; routing, not the dir table, decides
// who answers for the path from here on).
func transferDir(ctx context.Context, engine *metaengine.Engine, conn *rpcconn.ClientConnection, path string, attr proto.FileAttr) error {
	if _, err := remoteCreateDirNoParent(ctx, conn, path, attr.Perm); err != nil {
		return err
	}
	entries, err := engine.ReadDir(path, 0, math.MaxUint32)
	if err != nil {
		return err
	}
	for _, e := range entries {
		if e.FileName == "." || e.FileName == ".." {
			continue
		}
		if err := remoteDirectoryAddEntry(ctx, conn, path, e.FileName, e.FileType); err != nil {
			return err
		}
	}
	if err := remoteCheckDir(ctx, conn, path, attr); err != nil {
		return err
	}
	return engine.DeleteDirNoParent(path)
}

// transferFile implements spec.md §4.5 step 2: create the file on its
// new owner, stream its bytes in ChunkSize pieces, commit the
// authoritative attribute, then delete the local copy.
func transferFile(ctx context.Context, engine *metaengine.Engine, conn *rpcconn.ClientConnection, path string, attr proto.FileAttr) error {
	if _, err := remoteCreateFileNoParent(ctx, conn, path, attr.Perm); err != nil {
		return err
	}
	var offset uint64
	for offset < attr.Size {
		chunk, err := engine.ReadFile(path, offset, proto.ChunkSize)
		if err != nil {
			return err
		}
		if len(chunk) == 0 {
			break
		}
		if err := remoteWriteFile(ctx, conn, path, offset, chunk); err != nil {
			return err
		}
		offset += uint64(len(chunk))
	}
	if err := remoteCheckFile(ctx, conn, path, attr); err != nil {
		return err
	}
	return engine.DeleteFileNoParent(path)
}
