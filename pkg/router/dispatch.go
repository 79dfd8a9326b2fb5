package router

import (
	"context"
	"log"
	"sync/atomic"

	"github.com/sealfs-project/sealfs/pkg/cluster"
	"github.com/sealfs-project/sealfs/pkg/metaengine"
	"github.com/sealfs-project/sealfs/pkg/proto"
	"github.com/sealfs-project/sealfs/pkg/ring"
)

// Dispatcher is a storage server's request handler: it decides, per
// request, whether to serve locally against its metaengine.Engine or
// forward to the peer that owns the path (route.go), and it is the
// cluster.Reactor that drives the server-side half of a rebalance
// (spec.md §4.3, §4.5) as the cluster phase advances underneath it.
//
// Handle is the rpcconn.Handler a server's listener feeds every inbound
// frame to; the Reactor methods are instead called by a cluster.Poller
// running against the manager. AttachPoller wires the two together so
// Handle can read the phase currently in effect rather than only the
// edges the Reactor hears about.
type Dispatcher struct {
	self   string
	engine *metaengine.Engine
	rings  *ring.RingsView
	peers  *PeerPool
	logger *log.Logger

	poller *cluster.Poller
	plan   atomic.Pointer[RebalancePlan]
}

// NewDispatcher returns a Dispatcher. logger may be nil.
func NewDispatcher(self string, engine *metaengine.Engine, rings *ring.RingsView, peers *PeerPool, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{self: self, engine: engine, rings: rings, peers: peers, logger: logger}
}

// AttachPoller gives the dispatcher a way to read the cluster's current
// phase on every request rather than just at the edges its own Reactor
// methods observe. Call this once during server startup, before Handle
// starts receiving traffic.
func (d *Dispatcher) AttachPoller(p *cluster.Poller) {
	d.poller = p
}

func (d *Dispatcher) currentPhase() cluster.Status {
	if d.poller == nil {
		return cluster.Idle
	}
	return d.poller.Current()
}

// Handle implements rpcconn.Handler: route the request, then either
// relay it whole to the owning peer or serve it against the local
// engine.
func (d *Dispatcher) Handle(req *proto.Request) *proto.Response {
	op := req.Op.String()
	path, creates := routingPath(req)
	if path != "" {
		var plan PlanLookup
		if p := d.plan.Load(); p != nil {
			plan = p
		}
		decision := ComputeRoute(d.self, d.currentPhase(), d.rings.Load(), path, creates, plan)
		if decision.Forward {
			requestsTotal.WithLabelValues(op, "true").Inc()
			return d.forward(req, decision.Target)
		}
	}
	requestsTotal.WithLabelValues(op, "false").Inc()
	resp := d.serve(req)
	if resp.Status != proto.Success {
		requestErrorsTotal.WithLabelValues(op, resp.Status.String()).Inc()
	}
	return resp
}

// routingPath reports the path an op should be routed on, and whether
// the op creates a new inode at that path (spec.md §4.4 only forwards
// create_file/create_dir on this basis during PreTransfer). Ops the
// rebalance engine addresses directly to a specific peer, and
// cluster-admin volume ops, are exempt from routing: an empty path means
// "always serve locally".
func routingPath(req *proto.Request) (path string, createsInode bool) {
	switch req.Op {
	case proto.OpCreateFile, proto.OpCreateDir:
		return string(req.Path), true
	case proto.OpLookup, proto.OpGetFileAttr, proto.OpReadDir, proto.OpOpenFile,
		proto.OpReadFile, proto.OpWriteFile, proto.OpTruncateFile,
		proto.OpDeleteFile, proto.OpDeleteDir,
		proto.OpDirectoryAddEntry, proto.OpDirectoryDeleteEntry:
		return string(req.Path), false
	default:
		return "", false
	}
}

func (d *Dispatcher) forward(req *proto.Request, target string) *proto.Response {
	conn, err := d.peers.Get(target)
	if err != nil {
		d.logger.Printf("router: dial %s for forward failed: %v", target, err)
		return errResp(proto.EIO)
	}
	resp, err := conn.Call(context.Background(), req, 0)
	if err != nil {
		d.logger.Printf("router: forward to %s failed: %v", target, err)
		d.peers.Drop(target)
		return errResp(proto.EIO)
	}
	return resp
}

// The Reactor methods below implement cluster.Reactor; a cluster.Poller
// constructed with this Dispatcher as its reactor drives them.

// OnSyncNewHashRing fetches and installs the next ring, opens
// connections to any peer it introduces, and acks PreTransfer.
func (d *Dispatcher) OnSyncNewHashRing(ctx context.Context, mgr cluster.ManagerClient) error {
	next, err := mgr.GetNewHashRing(ctx)
	if err != nil {
		return err
	}
	d.rings.SetNext(next)
	for _, addr := range next.Addresses() {
		if addr == d.self {
			continue
		}
		if _, err := d.peers.Get(addr); err != nil {
			d.logger.Printf("router: dial new peer %s failed: %v", addr, err)
		}
	}
	return mgr.UpdateServerStatus(ctx, cluster.PreTransfer)
}

// OnPreTransfer computes this node's rebalance plan and acks
// Transferring.
func (d *Dispatcher) OnPreTransfer(ctx context.Context, mgr cluster.ManagerClient) error {
	plan, err := BuildPlan(d.engine, d.self, d.rings.Load())
	if err != nil {
		return err
	}
	d.plan.Store(plan)
	d.logger.Printf("router: rebalance plan built, %d paths to migrate", plan.Len())
	return mgr.UpdateServerStatus(ctx, cluster.Transferring)
}

// OnTransferring executes the plan built in OnPreTransfer and acks
// PreFinish once every path has moved.
func (d *Dispatcher) OnTransferring(ctx context.Context, mgr cluster.ManagerClient) error {
	plan := d.plan.Load()
	if plan == nil {
		plan = NewRebalancePlan()
	}
	if err := ExecuteTransfer(ctx, plan, d.engine, d.peers, d.rings.Load()); err != nil {
		return err
	}
	return mgr.UpdateServerStatus(ctx, cluster.PreFinish)
}

// OnPreFinish promotes next into primary, now that every server has
// finished transferring, and acks Finishing.
func (d *Dispatcher) OnPreFinish(ctx context.Context, mgr cluster.ManagerClient) error {
	d.rings.PromoteNext()
	d.plan.Store(nil)
	return mgr.UpdateServerStatus(ctx, cluster.Finishing)
}

// OnFinishing drops any leftover next ring and acks Idle, closing this
// node's side of the rebalance cycle.
func (d *Dispatcher) OnFinishing(ctx context.Context, mgr cluster.ManagerClient) error {
	d.rings.ClearNext()
	return mgr.UpdateServerStatus(ctx, cluster.Idle)
}
