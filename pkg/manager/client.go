package manager

import (
	"context"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/sealfs-project/sealfs/pkg/cluster"
	"github.com/sealfs-project/sealfs/pkg/proto"
	"github.com/sealfs-project/sealfs/pkg/ring"
	"github.com/sealfs-project/sealfs/pkg/rpcconn"
)

// Client is the typed RPC surface a node uses to talk to the manager:
// it implements cluster.ManagerClient (so a cluster.Poller can drive a
// node's reactions directly against it) and adds the admin/heartbeat
// calls spec.md §4.3 and its SPEC_FULL.md §13 supplement also need.
// cmd/sealfs-serverd holds one per server process and hands it to the
// cluster.Poller driving pkg/router's Dispatcher; pkg/sealclient embeds
// one per client process.
type Client struct {
	self string
	conn *rpcconn.ClientConnection
}

// NewClient wraps an already-dialed connection to the manager. self is
// this node's own listen address (servers) or "" (plain clients, which
// never ack or heartbeat).
func NewClient(self string, conn *rpcconn.ClientConnection) *Client {
	return &Client{self: self, conn: conn}
}

func (c *Client) call(ctx context.Context, op proto.ManagerOp, path, meta, data []byte) (*proto.Response, error) {
	req := &proto.Request{Op: proto.Op(op), Path: path, Meta: meta, Data: data}
	resp, err := c.conn.Call(ctx, req, 0)
	if err != nil {
		return nil, err
	}
	if resp.Status != proto.Success {
		return nil, resp.Status.Err()
	}
	return resp, nil
}

// GetClusterStatus implements cluster.ManagerClient.
func (c *Client) GetClusterStatus(ctx context.Context) (cluster.Status, error) {
	resp, err := c.call(ctx, proto.ManagerOpGetClusterStatus, nil, nil, nil)
	if err != nil {
		return 0, err
	}
	if len(resp.Data) < 4 {
		return 0, errors.New("manager: short GetClusterStatus response")
	}
	return cluster.Status(binary.LittleEndian.Uint32(resp.Data[0:4])), nil
}

// GetHashRing returns the cluster's current primary ring.
func (c *Client) GetHashRing(ctx context.Context) (*ring.HashRing, error) {
	resp, err := c.call(ctx, proto.ManagerOpGetHashRing, nil, nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeRing(resp.Data)
}

// GetNewHashRing implements cluster.ManagerClient.
func (c *Client) GetNewHashRing(ctx context.Context) (*ring.HashRing, error) {
	resp, err := c.call(ctx, proto.ManagerOpGetNewHashRing, nil, nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeRing(resp.Data)
}

func decodeRing(data []byte) (*ring.HashRing, error) {
	nodes, err := proto.UnmarshalNodeList(data)
	if err != nil {
		return nil, err
	}
	servers := make([]ring.ServerNode, len(nodes))
	for i, n := range nodes {
		servers[i] = ring.ServerNode{Address: n.Address, Weight: int(n.Weight)}
	}
	return ring.New(servers), nil
}

// AddNodes is the admin RPC that grows the cluster: per spec.md §4.3 it
// moves the manager from Idle to SyncNewHashRing.
func (c *Client) AddNodes(ctx context.Context, nodes []proto.NodeSpec) error {
	_, err := c.call(ctx, proto.ManagerOpAddNodes, nil, nil, proto.MarshalNodeList(nodes))
	return err
}

// RemoveNodes is the admin RPC that shrinks the cluster.
func (c *Client) RemoveNodes(ctx context.Context, addrs []string) error {
	nodes := make([]proto.NodeSpec, len(addrs))
	for i, a := range addrs {
		nodes[i] = proto.NodeSpec{Address: a}
	}
	_, err := c.call(ctx, proto.ManagerOpRemoveNodes, nil, nil, proto.MarshalNodeList(nodes))
	return err
}

// UpdateServerStatus implements cluster.ManagerClient: it acks, on
// behalf of c.self, that this node has finished reacting to a phase and
// claims status next.
func (c *Client) UpdateServerStatus(ctx context.Context, status cluster.Status) error {
	meta := make([]byte, 4)
	binary.LittleEndian.PutUint32(meta, uint32(status))
	_, err := c.call(ctx, proto.ManagerOpUpdateServerStatus, []byte(c.self), meta, nil)
	return err
}

// SendHeart implements the SPEC_FULL.md §13 heartbeat supplement: a
// server calls this periodically so the manager's Registry can tell a
// merely-quiet server from a dead one.
func (c *Client) SendHeart(ctx context.Context) error {
	req := &proto.Request{Op: proto.OpSendHeart, Path: []byte(c.self)}
	resp, err := c.conn.Call(ctx, req, 0)
	if err != nil {
		return err
	}
	if resp.Status != proto.Success {
		return resp.Status.Err()
	}
	return nil
}

// Close tears down the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
