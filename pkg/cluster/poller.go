package cluster

import (
	"context"
	"log"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sealfs-project/sealfs/pkg/ring"
)

// PollInterval is how often every client and server polls
// GetClusterStatus, per spec.md §4.3.
const PollInterval = 1 * time.Second

// ManagerClient is the subset of the manager RPC surface the poller
// needs. Both pkg/sealclient and pkg/router implement it by wrapping a
// pkg/rpcconn connection to the manager; kept as an interface here so
// this package does not import the transport.
type ManagerClient interface {
	GetClusterStatus(ctx context.Context) (Status, error)
	GetNewHashRing(ctx context.Context) (*ring.HashRing, error)
	// UpdateServerStatus acks a phase the node has finished reacting to,
	// per spec.md §4.3's "server additionally drives acks". A plain
	// client never calls this; only pkg/router's Reactor does.
	UpdateServerStatus(ctx context.Context, status Status) error
}

// Reactor receives callbacks as the poller observes phase transitions. A
// plain client only cares about ring membership and leaves
// OnPreTransfer/OnTransferring as no-ops; pkg/router's server-side
// Reactor additionally computes and executes the rebalance plan there
// and acks the manager through mgr.UpdateServerStatus.
type Reactor interface {
	// OnSyncNewHashRing fires once when the phase is first observed as
	// SyncNewHashRing: the reactor should fetch and install the next
	// ring and open connections to any new peers. A server additionally
	// acks PreTransfer here; a plain client acks nothing.
	OnSyncNewHashRing(ctx context.Context, mgr ManagerClient) error
	// OnPreTransfer fires once when the phase is first observed as
	// PreTransfer: a server computes its local transfer plan (spec.md
	// §4.5) and acks Transferring.
	OnPreTransfer(ctx context.Context, mgr ManagerClient) error
	// OnTransferring fires once when the phase is first observed as
	// Transferring: a server executes its transfer plan and acks
	// PreFinish once every path is Done.
	OnTransferring(ctx context.Context, mgr ManagerClient) error
	// OnPreFinish fires once when the phase is first observed as
	// PreFinish: the reactor should swap primary<-next and, for a
	// server, ack Finishing.
	OnPreFinish(ctx context.Context, mgr ManagerClient) error
	// OnFinishing fires once when the phase is first observed as
	// Finishing: the reactor should drop any leftover next ring and,
	// for a server, ack Idle (the "acks Finished" step in spec.md
	// §4.3 that lets the manager close the cycle).
	OnFinishing(ctx context.Context, mgr ManagerClient) error
}

// Poller watches a manager's cluster phase on a fixed interval and fans
// phase-edge transitions out to a Reactor. It is the client-side half of
// spec.md §4.3's "every client and server polls GetClusterStatus every
// second"; pkg/router layers the additional server-side acking behavior
// on top via its own Reactor implementation.
//
// Modeled on the teacher's ticker-driven re-evaluate-and-act loop
// together with its stop/start world pattern: New returns an idle
// Poller; call Run in its own goroutine and cancel the context passed
// to Run to stop it.
// FatalFunc is called when a Reactor phase callback errors. The default
// (nil) only logs the error and keeps polling, which is correct for a
// plain client: it just retries on the next tick. A server instead wires
// one that stops the process, per spec.md §7's "UpdateServerStatus
// failures during rebalance are fatal to the server... a manual restart
// is required" — by the time a Reactor callback errors during a
// rebalance phase, the server has already acked a phase or built a plan
// the manager now expects every node to act on, so retrying on the next
// tick would leave the cluster's commit state inconsistent instead.
type FatalFunc func(status Status, err error)

type Poller struct {
	mgr     ManagerClient
	reactor Reactor
	logger  *log.Logger
	limiter *rate.Limiter
	fatal   FatalFunc

	mu   sync.Mutex
	last Status
}

// New returns a Poller. logger may be nil, in which case log.Default is
// used.
func New(mgr ManagerClient, reactor Reactor, logger *log.Logger) *Poller {
	if logger == nil {
		logger = log.Default()
	}
	return &Poller{
		mgr:     mgr,
		reactor: reactor,
		logger:  logger,
		// Burst of 1, refilled once per PollInterval: caps how often a
		// repeatedly-erroring manager gets logged, without affecting the
		// poll itself.
		limiter: rate.NewLimiter(rate.Every(PollInterval), 1),
		last:    Initializing,
	}
}

// OnFatal installs fn to be called, instead of just logged, when a
// Reactor phase callback errors. Call this before Run starts.
func (p *Poller) OnFatal(fn FatalFunc) {
	p.fatal = fn
}

// Run polls until ctx is done. It is meant to be started in its own
// goroutine; it does not return until cancellation.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

func (p *Poller) tick(ctx context.Context) {
	status, err := p.mgr.GetClusterStatus(ctx)
	if err != nil {
		// Errors are expected during a manager restart; rate-limit the
		// log line rather than spamming once per PollInterval failure.
		if p.limiter.Allow() {
			p.logger.Printf("cluster: poll failed: %v", err)
		}
		return
	}
	if !status.Valid() {
		p.logger.Printf("cluster: observed unknown phase %d, ignoring", status)
		return
	}

	p.mu.Lock()
	prev := p.last
	p.last = status
	p.mu.Unlock()

	if prev == status {
		return
	}
	p.logger.Printf("cluster: phase %s -> %s", prev, status)

	var err2 error
	switch status {
	case SyncNewHashRing:
		err2 = p.reactor.OnSyncNewHashRing(ctx, p.mgr)
	case PreTransfer:
		err2 = p.reactor.OnPreTransfer(ctx, p.mgr)
	case Transferring:
		err2 = p.reactor.OnTransferring(ctx, p.mgr)
	case PreFinish:
		err2 = p.reactor.OnPreFinish(ctx, p.mgr)
	case Finishing:
		err2 = p.reactor.OnFinishing(ctx, p.mgr)
	}
	if err2 != nil {
		p.logger.Printf("cluster: reacting to %s failed: %v", status, err2)
		if p.fatal != nil {
			p.fatal(status, err2)
		} else {
			// Forget this edge so the next tick observes it again.
			p.mu.Lock()
			if p.last == status {
				p.last = prev
			}
			p.mu.Unlock()
		}
	}
}

// Current returns the last phase observed by the poller.
func (p *Poller) Current() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}
