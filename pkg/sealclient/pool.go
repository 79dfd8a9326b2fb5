package sealclient

import (
	"log"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"

	"github.com/sealfs-project/sealfs/pkg/rpcconn"
)

// redialWindow bounds how often a single address may be redialed after a
// failed attempt: a FUSE adapter retries a syscall far more often than
// once a second, and a genuinely down server should not be hammered with
// a fresh TCP handshake on every one of those retries.
const redialWindow = time.Second

// connPool is this client's address -> ClientConnection table, the same
// shape as pkg/router.PeerPool but additionally rate-limited per address
// so a cold or dead server does not get redialed on every call.
type connPool struct {
	mu      sync.Mutex
	conns   map[string]*rpcconn.ClientConnection
	limiter map[string]*rate.Limiter
	logger  *log.Logger
}

func newConnPool(logger *log.Logger) *connPool {
	if logger == nil {
		logger = log.Default()
	}
	return &connPool{
		conns:   make(map[string]*rpcconn.ClientConnection),
		limiter: make(map[string]*rate.Limiter),
		logger:  logger,
	}
}

// get returns the connection to addr, dialing one if this is the first
// use of that address or the previous one was dropped. A second caller
// racing to redial the same address within redialWindow gets an error
// rather than a fresh dial attempt.
func (p *connPool) get(addr string) (*rpcconn.ClientConnection, error) {
	p.mu.Lock()
	if c, ok := p.conns[addr]; ok {
		p.mu.Unlock()
		return c, nil
	}
	lim, ok := p.limiter[addr]
	if !ok {
		lim = rate.NewLimiter(rate.Every(redialWindow), 1)
		p.limiter[addr] = lim
	}
	allowed := lim.Allow()
	p.mu.Unlock()
	if !allowed {
		return nil, errors.Errorf("sealclient: %s is backing off after a recent dial failure", addr)
	}

	c, err := rpcconn.Dial(addr, p.logger)
	if err != nil {
		return nil, err
	}
	p.mu.Lock()
	p.conns[addr] = c
	p.mu.Unlock()
	return c, nil
}

// drop closes and forgets the connection to addr, if any, so the next
// get redials (subject to its own backoff).
func (p *connPool) drop(addr string) {
	p.mu.Lock()
	c, ok := p.conns[addr]
	delete(p.conns, addr)
	p.mu.Unlock()
	if ok {
		c.Close()
	}
}

// closeAll tears down every connection in the pool.
func (p *connPool) closeAll() {
	p.mu.Lock()
	conns := p.conns
	p.conns = make(map[string]*rpcconn.ClientConnection)
	p.mu.Unlock()
	for _, c := range conns {
		c.Close()
	}
}
