// Package sealclient implements the client-side API surface spec.md §6
// describes as consumed by the (out-of-scope) FUSE adapter and libc
// shim: one method per operation code, POSIX-shaped signatures, and the
// cluster-status watcher that keeps the client's own placement ring in
// step with the manager. pkg/router's Dispatcher is the server-side
// sibling of this package; both are driven by a cluster.Poller and
// react to the same phase edges, just with the
// server's additional acking and transfer-plan work left out here.
package sealclient

import (
	"context"
	"log"

	"github.com/pkg/errors"

	"github.com/sealfs-project/sealfs/pkg/cluster"
	"github.com/sealfs-project/sealfs/pkg/manager"
	"github.com/sealfs-project/sealfs/pkg/proto"
	"github.com/sealfs-project/sealfs/pkg/ring"
	"github.com/sealfs-project/sealfs/pkg/rpcconn"
)

// Client is a connection to one sealfs cluster: a manager client for
// status polling and ring fetches, a pool of connections to the storage
// servers it ends up routed to, and the placement ring itself.
type Client struct {
	mgr    *manager.Client
	pool   *connPool
	rings  *ring.RingsView
	poller *cluster.Poller
	logger *log.Logger
}

// Dial connects to the manager at managerAddr and fetches the cluster's
// current placement ring. Call Run in its own goroutine afterward to
// keep that ring current as the cluster rebalances; a Client used
// without ever calling Run still works, it just never learns about a
// later AddNodes/RemoveNodes.
func Dial(ctx context.Context, managerAddr string, logger *log.Logger) (*Client, error) {
	if logger == nil {
		logger = log.Default()
	}
	mgrConn, err := rpcconn.Dial(managerAddr, logger)
	if err != nil {
		return nil, err
	}
	mgrClient := manager.NewClient("", mgrConn)

	primary, err := mgrClient.GetHashRing(ctx)
	if err != nil {
		mgrConn.Close()
		return nil, err
	}

	c := &Client{
		mgr:    mgrClient,
		pool:   newConnPool(logger),
		rings:  ring.NewRingsView(primary, ring.Phase(cluster.Idle)),
		logger: logger,
	}
	c.poller = cluster.New(mgrClient, &reactor{rings: c.rings, pool: c.pool}, logger)
	return c, nil
}

// Run drives the cluster-status watcher until ctx is done. Meant to be
// started in its own goroutine right after Dial.
func (c *Client) Run(ctx context.Context) {
	c.poller.Run(ctx)
}

// Close tears down every server connection this client holds, including
// the one to the manager.
func (c *Client) Close() error {
	c.pool.closeAll()
	return c.mgr.Close()
}

// owner returns the address of the server responsible for path under
// the client's current view of the primary ring.
func (c *Client) owner(path string) (string, error) {
	node, ok := c.rings.Load().Primary.Lookup(path)
	if !ok {
		return "", errors.New("sealclient: no placement ring yet")
	}
	return node.Address, nil
}

// anyServer returns an arbitrary address from the primary ring, for the
// handful of ops (ListVolumes, volume accounting) that target one
// specific server rather than a path's owner.
func (c *Client) anyServer() (string, error) {
	addrs := c.rings.Load().Primary.Addresses()
	if len(addrs) == 0 {
		return "", errors.New("sealclient: no servers known")
	}
	return addrs[0], nil
}

// call sends req to the server owning path and returns its response,
// dropping the connection on a transport error so the next call to that
// address redials (spec.md §7's "connection marked disconnected").
func (c *Client) call(ctx context.Context, addr string, req *proto.Request) (*proto.Response, error) {
	conn, err := c.pool.get(addr)
	if err != nil {
		return nil, err
	}
	resp, err := conn.Call(ctx, req, 0)
	if err != nil {
		c.pool.drop(addr)
		return nil, err
	}
	return resp, nil
}

// callPath routes req to path's owner before sending it.
func (c *Client) callPath(ctx context.Context, path string, req *proto.Request) (*proto.Response, error) {
	addr, err := c.owner(path)
	if err != nil {
		return nil, err
	}
	req.Path = []byte(path)
	return c.call(ctx, addr, req)
}

func attrOrErr(resp *proto.Response, err error) (proto.FileAttr, error) {
	if err != nil {
		return proto.FileAttr{}, err
	}
	if resp.Status != proto.Success {
		return proto.FileAttr{}, resp.Status.Err()
	}
	return proto.UnmarshalFileAttr(resp.Data)
}

func errOrNil(resp *proto.Response, err error) error {
	if err != nil {
		return err
	}
	if resp.Status != proto.Success {
		return resp.Status.Err()
	}
	return nil
}
