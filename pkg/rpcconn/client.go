package rpcconn

import (
	"bufio"
	"context"
	"io"
	"log"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sealfs-project/sealfs/pkg/proto"
)

// ClientConnection is one connection to a storage server or the manager
// shared by every concurrent call a sealclient or router makes to that
// peer: writers serialize on writeMu, a single background reader
// demultiplexes responses off the callback pool as they arrive, matching
// pkg/client.Client's shape of mutex-guarded shared state behind a small
// exported surface.
type ClientConnection struct {
	addr string
	id   string // random, for distinguishing this connection's log lines from a reconnect's

	writeMu sync.Mutex
	conn    net.Conn

	pool *CallbackPool

	logger *log.Logger

	closeOnce sync.Once
	closed    chan struct{}
}

// Dial opens a new connection to addr. logger may be nil, in which case
// log.Default() is used.
func Dial(addr string, logger *log.Logger) (*ClientConnection, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	return newClientConnection(addr, conn, logger), nil
}

func newClientConnection(addr string, conn net.Conn, logger *log.Logger) *ClientConnection {
	if logger == nil {
		logger = log.Default()
	}
	c := &ClientConnection{
		addr:   addr,
		id:     uuid.NewString(),
		conn:   conn,
		pool:   NewCallbackPool(),
		logger: logger,
		closed: make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Close tears down the underlying connection. Any calls still waiting
// for a response fail with the resulting read error rather than sitting
// out their full timeout.
func (c *ClientConnection) Close() error {
	err := c.conn.Close()
	c.closeOnce.Do(func() { close(c.closed) })
	return err
}

// Call sends req and blocks for its matching response, or until timeout
// elapses (DefaultTimeout if timeout is zero). req.Batch and req.ID are
// overwritten with the values the callback pool assigns; callers should
// not set them.
func (c *ClientConnection) Call(ctx context.Context, req *proto.Request, timeout time.Duration) (*proto.Response, error) {
	callsTotal.Inc()
	start := time.Now()
	resp, err := c.call(ctx, req, timeout)
	if err != nil {
		callErrorsTotal.Inc()
	} else {
		callDuration.Observe(time.Since(start).Seconds())
	}
	return resp, err
}

func (c *ClientConnection) call(ctx context.Context, req *proto.Request, timeout time.Duration) (*proto.Response, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	id, uid, err := c.pool.Register(ctx)
	if err != nil {
		return nil, err
	}
	req.ID = id
	req.Batch = uid

	c.writeMu.Lock()
	_, err = req.WriteTo(c.conn)
	c.writeMu.Unlock()
	if err != nil {
		c.pool.Abort(id, uid)
		return nil, err
	}

	res, err := c.pool.Wait(ctx, id, uid, timeout)
	if err != nil {
		return nil, err
	}
	return &proto.Response{
		Batch:  uid,
		ID:     id,
		Status: res.status,
		Flags:  res.flags,
		Meta:   res.meta,
		Data:   res.data,
	}, nil
}

// readLoop is the connection's single reader: it decodes one response
// header at a time and either reads the body into fresh buffers for a
// waiting call, or drains it unread when the call it belonged to has
// already timed out, per spec.md §4.1.
func (c *ClientConnection) readLoop() {
	r := bufio.NewReader(c.conn)
	for {
		hdr, err := proto.ReadResponseHeader(r)
		if err != nil {
			c.fail(err)
			return
		}

		if !c.pool.Pending(hdr.ID, hdr.Batch) {
			if err := proto.DrainBody(r, hdr.MetaLen+hdr.DataLen); err != nil {
				c.fail(err)
				return
			}
			continue
		}

		meta := make([]byte, hdr.MetaLen)
		if _, err := io.ReadFull(r, meta); err != nil {
			c.fail(err)
			return
		}
		data := make([]byte, hdr.DataLen)
		if _, err := io.ReadFull(r, data); err != nil {
			c.fail(err)
			return
		}

		c.pool.Deliver(hdr.ID, hdr.Batch, callbackResult{
			status: hdr.Status,
			flags:  hdr.Flags,
			meta:   meta,
			data:   data,
		})
	}
}

func (c *ClientConnection) fail(err error) {
	select {
	case <-c.closed:
		// an intentional Close, not a peer-side failure; nothing to log.
	default:
		connectionsLost.Inc()
		c.logger.Printf("rpcconn: connection %s to %s lost: %v", c.id, c.addr, err)
	}
	c.pool.FailAll(err)
}
