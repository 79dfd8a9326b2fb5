package router

import (
	"sync"
	"sync/atomic"

	"github.com/sealfs-project/sealfs/pkg/proto"
)

const (
	planPending int32 = iota
	planDone
)

// planEntry is one path's migration record: a status plus a per-path RW
// lock. The transfer loop holds Lock for the path's entire migration
// span. Request handling does not take the lock; it serves or forwards
// a path by its Done status alone.
type planEntry struct {
	mu     sync.RWMutex
	status atomic.Int32
	isDir  bool
	attr   proto.FileAttr
}

// RebalancePlan is the set of paths a server owns under the primary ring
// but not under next, built once on entering PreTransfer and driven to
// completion during Transferring.
type RebalancePlan struct {
	mu    sync.RWMutex
	paths map[string]*planEntry
}

// NewRebalancePlan returns an empty plan.
func NewRebalancePlan() *RebalancePlan {
	return &RebalancePlan{paths: make(map[string]*planEntry)}
}

// Add registers path for migration, Pending, unless it is already
// tracked.
func (p *RebalancePlan) Add(path string, isDir bool, attr proto.FileAttr) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.paths[path]; ok {
		return
	}
	p.paths[path] = &planEntry{isDir: isDir, attr: attr}
}

// Len reports how many paths the plan tracks.
func (p *RebalancePlan) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.paths)
}

// Paths returns a snapshot of every tracked path, in no particular
// order.
func (p *RebalancePlan) Paths() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.paths))
	for path := range p.paths {
		out = append(out, path)
	}
	return out
}

// Done reports whether path's migration has completed. A path this plan
// never tracked is reported as not done, matching ComputeRoute's default
// of serving locally when there's nothing to forward.
func (p *RebalancePlan) Done(path string) bool {
	p.mu.RLock()
	e, ok := p.paths[path]
	p.mu.RUnlock()
	return ok && e.status.Load() == planDone
}

// AllDone reports whether every tracked path has completed.
func (p *RebalancePlan) AllDone() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	for _, e := range p.paths {
		if e.status.Load() != planDone {
			return false
		}
	}
	return true
}

// lockPath returns the per-path lock for path's migration, for the
// transfer loop to hold across the whole of one path's move.
func (p *RebalancePlan) lockPath(path string) (*planEntry, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	e, ok := p.paths[path]
	return e, ok
}

// markDone flips path's status to Done.
func (p *RebalancePlan) markDone(path string) {
	if e, ok := p.lockPath(path); ok {
		e.status.Store(planDone)
	}
}
