package metaengine

import (
	"sync"
	"sync/atomic"

	"github.com/sealfs-project/sealfs/pkg/proto"
)

// indexEntry is the in-memory FileIndex record for one path: attr is
// mutated under entryMu (a single read-modify-write guard per spec.md's
// "size-monotonicity update... under a single entry guard"), and
// subFilesNum is a free-standing atomic since the busy-names gate
// already serializes the create/delete that touches it.
type indexEntry struct {
	entryMu     sync.Mutex
	attr        proto.FileAttr
	subFilesNum atomic.Uint32
}

// fileIndex is the sharded-in-spirit, sync.Map-backed concurrent index
// from spec.md's `DashMap<Path, FileIndex>`: every entry is independent,
// which is exactly the access pattern sync.Map is built for, so no
// explicit sharding is needed to satisfy the same independence property.
type fileIndex struct {
	m sync.Map // path string -> *indexEntry
}

func (fi *fileIndex) load(p string) (*indexEntry, bool) {
	v, ok := fi.m.Load(p)
	if !ok {
		return nil, false
	}
	return v.(*indexEntry), true
}

func (fi *fileIndex) store(p string, e *indexEntry) {
	fi.m.Store(p, e)
}

func (fi *fileIndex) delete(p string) {
	fi.m.Delete(p)
}

// busyNames is the per-parent-directory name lock from spec.md §4.4: to
// create or delete a name under a parent, the caller must first insert
// it here; if it is already present the caller fails the operation with
// EEXIST or ENOENT rather than proceeding, except CreateFile without
// O_EXCL, which waits in waitRelease and then looks the name up again.
type busyNames struct {
	mu    sync.Mutex
	cond  *sync.Cond
	names map[string]map[string]struct{} // parent -> set of busy child names
}

func newBusyNames() *busyNames {
	b := &busyNames{names: make(map[string]map[string]struct{})}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// tryAcquire inserts name into parent's busy set, returning false if it
// was already present.
func (b *busyNames) tryAcquire(parent, name string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.names[parent]
	if !ok {
		set = make(map[string]struct{})
		b.names[parent] = set
	}
	if _, busy := set[name]; busy {
		return false
	}
	set[name] = struct{}{}
	return true
}

// release removes name from parent's busy set and wakes any waitRelease
// callers blocked on it.
func (b *busyNames) release(parent, name string) {
	b.mu.Lock()
	if set, ok := b.names[parent]; ok {
		delete(set, name)
		if len(set) == 0 {
			delete(b.names, parent)
		}
	}
	b.mu.Unlock()
	b.cond.Broadcast()
}

// waitRelease blocks until name is no longer busy under parent, for a
// caller that lost tryAcquire and needs to find out what the winner did
// instead of guessing.
func (b *busyNames) waitRelease(parent, name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for {
		set, ok := b.names[parent]
		if !ok {
			return
		}
		if _, busy := set[name]; !busy {
			return
		}
		b.cond.Wait()
	}
}
