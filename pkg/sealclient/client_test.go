package sealclient

import (
	"context"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sealfs-project/sealfs/pkg/blobstore"
	"github.com/sealfs-project/sealfs/pkg/cluster"
	"github.com/sealfs-project/sealfs/pkg/kv"
	"github.com/sealfs-project/sealfs/pkg/manager"
	"github.com/sealfs-project/sealfs/pkg/metaengine"
	"github.com/sealfs-project/sealfs/pkg/proto"
	"github.com/sealfs-project/sealfs/pkg/ring"
	"github.com/sealfs-project/sealfs/pkg/router"
	"github.com/sealfs-project/sealfs/pkg/rpcconn"
)

// listenLoopback reserves a loopback address without yet deciding what
// will handle its traffic, so a Dispatcher can be built with its own
// real listen address as self before the listener starts accepting.
func listenLoopback(t *testing.T) (net.Listener, string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })
	return ln, ln.Addr().String()
}

func serveOn(ln net.Listener, handle rpcconn.Handler) {
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go rpcconn.NewServerConnection(conn, nil).Serve(handle)
		}
	}()
}

// newTestCluster brings up one real manager and one real storage server
// over loopback TCP, bootstraps the manager straight to Idle with the
// server as the sole ring member, and returns the manager's address for
// sealclient.Dial.
func newTestCluster(t *testing.T) string {
	t.Helper()

	serverLn, serverAddr := listenLoopback(t)

	blobs, err := blobstore.Open(t.TempDir())
	require.NoError(t, err)
	engine, err := metaengine.Open(kv.NewMemory(), kv.NewMemory(), kv.NewMemory(), blobs)
	require.NoError(t, err)
	_, err = engine.CreateVolume("vol", 0)
	require.NoError(t, err)

	rings := ring.NewRingsView(ring.New([]ring.ServerNode{{Address: serverAddr, Weight: 1}}), ring.Phase(0))
	d := router.NewDispatcher(serverAddr, engine, rings, router.NewPeerPool(nil), nil)
	serveOn(serverLn, d.Handle)

	mgr := manager.New()
	mgr.Bootstrap([]manager.NodeDelta{{Address: serverAddr, Weight: 1}})
	require.NoError(t, mgr.Ack(serverAddr, cluster.Idle))

	managerLn, managerAddr := listenLoopback(t)
	serveOn(managerLn, manager.NewServer(mgr, nil).Handle)

	return managerAddr
}

func TestClientCreateWriteReadRoundTrips(t *testing.T) {
	managerAddr := newTestCluster(t)

	c, err := Dial(context.Background(), managerAddr, nil)
	require.NoError(t, err)
	defer c.Close()

	attr, err := c.CreateFile(context.Background(), "/vol", "a.txt", 0, 0, 0644)
	require.NoError(t, err)
	assert.Equal(t, proto.KindRegularFile, attr.Kind)

	_, err = c.WriteFile(context.Background(), "/vol/a.txt", 0, []byte("hello world"))
	require.NoError(t, err)

	data, err := c.ReadFile(context.Background(), "/vol/a.txt", 0, 64)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello world"), data)

	got, err := c.GetFileAttr(context.Background(), "/vol/a.txt")
	require.NoError(t, err)
	assert.EqualValues(t, len("hello world"), got.Size)
}

func TestClientGetFileAttrMissingReturnsENOENT(t *testing.T) {
	managerAddr := newTestCluster(t)
	c, err := Dial(context.Background(), managerAddr, nil)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.GetFileAttr(context.Background(), "/vol/missing")
	assert.Equal(t, proto.ENOENT, proto.FromError(err))
}

func TestClientListVolumesAnywhere(t *testing.T) {
	managerAddr := newTestCluster(t)
	c, err := Dial(context.Background(), managerAddr, nil)
	require.NoError(t, err)
	defer c.Close()

	vols, err := c.ListVolumesAnywhere(context.Background())
	require.NoError(t, err)
	require.Len(t, vols, 1)
	assert.Equal(t, "vol", vols[0].Name)
}

func TestClientChunkedWriteLargerThanOneChunk(t *testing.T) {
	managerAddr := newTestCluster(t)
	c, err := Dial(context.Background(), managerAddr, nil)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.CreateFile(context.Background(), "/vol", "big.txt", 0, 0, 0644)
	require.NoError(t, err)

	payload := make([]byte, proto.ChunkSize+100)
	for i := range payload {
		payload[i] = byte(i)
	}
	attr, err := c.WriteFile(context.Background(), "/vol/big.txt", 0, payload)
	require.NoError(t, err)
	assert.EqualValues(t, len(payload), attr.Size)

	got, err := c.ReadFile(context.Background(), "/vol/big.txt", 0, uint32(len(payload)))
	require.NoError(t, err)
	assert.Equal(t, payload, got)
}

func TestClientDeleteFile(t *testing.T) {
	managerAddr := newTestCluster(t)
	c, err := Dial(context.Background(), managerAddr, nil)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.CreateFile(context.Background(), "/vol", "gone.txt", 0, 0, 0644)
	require.NoError(t, err)
	require.NoError(t, c.DeleteFile(context.Background(), "/vol", "gone.txt"))

	_, err = c.GetFileAttr(context.Background(), "/vol/gone.txt")
	assert.Equal(t, proto.ENOENT, proto.FromError(err))
}

func TestClientReadDirListsCreatedFile(t *testing.T) {
	managerAddr := newTestCluster(t)
	c, err := Dial(context.Background(), managerAddr, nil)
	require.NoError(t, err)
	defer c.Close()

	_, err = c.CreateFile(context.Background(), "/vol", "listed.txt", 0, 0, 0644)
	require.NoError(t, err)

	entries, err := c.ReadDir(context.Background(), "/vol", 0, 4096)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.FileName)
	}
	assert.Contains(t, names, "listed.txt")
}
