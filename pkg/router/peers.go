package router

import (
	"log"
	"sync"

	"github.com/sealfs-project/sealfs/pkg/rpcconn"
)

// PeerPool is a server's address -> ClientConnection table (spec.md
// §4.1's "each client keeps a table address -> ClientConnection"),
// reused here on the server side since forwarding and rebalance both
// require this node to act as a client to a peer.
type PeerPool struct {
	mu     sync.Mutex
	conns  map[string]*rpcconn.ClientConnection
	logger *log.Logger
}

// NewPeerPool returns an empty pool. logger may be nil.
func NewPeerPool(logger *log.Logger) *PeerPool {
	if logger == nil {
		logger = log.Default()
	}
	return &PeerPool{conns: make(map[string]*rpcconn.ClientConnection), logger: logger}
}

// Get returns the connection to addr, dialing one if this is the first
// use of that address.
func (p *PeerPool) Get(addr string) (*rpcconn.ClientConnection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.conns[addr]; ok {
		return c, nil
	}
	c, err := rpcconn.Dial(addr, p.logger)
	if err != nil {
		return nil, err
	}
	p.conns[addr] = c
	return c, nil
}

// Drop closes and forgets the connection to addr, if any, so the next
// Get dials fresh. Used after a forwarded call fails with a transport
// error, per spec.md §7's "connection marked disconnected" handling.
func (p *PeerPool) Drop(addr string) {
	p.mu.Lock()
	c, ok := p.conns[addr]
	delete(p.conns, addr)
	p.mu.Unlock()
	if ok {
		c.Close()
	}
}

// CloseAll tears down every connection in the pool.
func (p *PeerPool) CloseAll() {
	p.mu.Lock()
	conns := p.conns
	p.conns = make(map[string]*rpcconn.ClientConnection)
	p.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
}
