package manager

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sealfs-project/sealfs/pkg/cluster"
	"github.com/sealfs-project/sealfs/pkg/proto"
	"github.com/sealfs-project/sealfs/pkg/rpcconn"
)

// startTestManager listens on loopback and routes every request to a
// fresh Manager's Server, mirroring pkg/router/transfer_test.go's
// startTestServer so Client can be exercised over a real connection.
func startTestManager(t *testing.T, mgr *Manager) string {
	t.Helper()
	srv := NewServer(mgr, nil)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go rpcconn.NewServerConnection(conn, nil).Serve(srv.Handle)
		}
	}()
	t.Cleanup(func() { ln.Close() })
	return ln.Addr().String()
}

func dialManager(t *testing.T, self, addr string) *Client {
	t.Helper()
	conn, err := rpcconn.Dial(addr, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return NewClient(self, conn)
}

func TestClientGetClusterStatusRoundTrips(t *testing.T) {
	mgr := New()
	mgr.Bootstrap([]NodeDelta{{Address: "a:1", Weight: 1}})
	addr := startTestManager(t, mgr)
	c := dialManager(t, "a:1", addr)

	status, err := c.GetClusterStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, cluster.NodesStarting, status)
}

func TestClientUpdateServerStatusAdvancesManager(t *testing.T) {
	mgr := New()
	mgr.Bootstrap([]NodeDelta{{Address: "a:1", Weight: 1}})
	addr := startTestManager(t, mgr)
	c := dialManager(t, "a:1", addr)

	require.NoError(t, c.UpdateServerStatus(context.Background(), cluster.Idle))
	assert.Equal(t, cluster.Idle, mgr.Status())
}

func TestClientAddNodesStartsRebalanceAndRingsAreFetchable(t *testing.T) {
	mgr := New()
	mgr.Bootstrap([]NodeDelta{{Address: "a:1", Weight: 1}})
	require.NoError(t, mgr.Ack("a:1", cluster.Idle))
	addr := startTestManager(t, mgr)
	c := dialManager(t, "a:1", addr)

	require.NoError(t, c.AddNodes(context.Background(), []proto.NodeSpec{{Address: "b:1", Weight: 2}}))
	assert.Equal(t, cluster.SyncNewHashRing, mgr.Status())

	next, err := c.GetNewHashRing(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a:1", "b:1"}, next.Addresses())
}

func TestClientAddNodesRejectedWhileRebalancing(t *testing.T) {
	mgr := New()
	mgr.Bootstrap([]NodeDelta{{Address: "a:1", Weight: 1}})
	require.NoError(t, mgr.Ack("a:1", cluster.Idle))
	require.NoError(t, mgr.RequestRebalance([]NodeDelta{{Address: "b:1", Weight: 1}}, nil))

	addr := startTestManager(t, mgr)
	c := dialManager(t, "a:1", addr)

	err := c.AddNodes(context.Background(), []proto.NodeSpec{{Address: "c:1", Weight: 1}})
	assert.Error(t, err)
}

func TestClientSendHeartTouchesRegistry(t *testing.T) {
	mgr := New()
	mgr.Bootstrap([]NodeDelta{{Address: "a:1", Weight: 1}})
	addr := startTestManager(t, mgr)
	c := dialManager(t, "a:1", addr)

	require.NoError(t, c.SendHeart(context.Background()))
	live := mgr.Registry().Live(time.Now())
	if assert.Len(t, live, 1) {
		assert.Equal(t, "a:1", live[0].Address)
	}
}
