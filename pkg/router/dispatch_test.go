package router

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sealfs-project/sealfs/pkg/blobstore"
	"github.com/sealfs-project/sealfs/pkg/kv"
	"github.com/sealfs-project/sealfs/pkg/metaengine"
	"github.com/sealfs-project/sealfs/pkg/proto"
	"github.com/sealfs-project/sealfs/pkg/ring"
)

// newTestDispatcher returns a Dispatcher over a fresh in-memory engine
// whose sole ring member is itself, so every request serves locally
// (no poller is attached, so currentPhase defaults to Idle and
// ComputeRoute never finds a next-ring owner to forward to).
func newTestDispatcher(t *testing.T) *Dispatcher {
	t.Helper()
	blobs, err := blobstore.Open(t.TempDir())
	require.NoError(t, err)
	engine, err := metaengine.Open(kv.NewMemory(), kv.NewMemory(), kv.NewMemory(), blobs)
	require.NoError(t, err)

	const self = "127.0.0.1:7000"
	rings := ring.NewRingsView(ring.New([]ring.ServerNode{{Address: self, Weight: 1}}), ring.Phase(0))
	_, err = engine.CreateVolume("vol", 0)
	require.NoError(t, err)

	return NewDispatcher(self, engine, rings, NewPeerPool(nil), nil)
}

func TestDispatchCreateAndGetFileAttr(t *testing.T) {
	d := newTestDispatcher(t)

	createResp := d.Handle(&proto.Request{
		Op:   proto.OpCreateFile,
		Path: []byte("/vol"),
		Meta: proto.CreateFileMeta{Mode: 0644, Name: "a.txt"}.Marshal(),
	})
	require.Equal(t, proto.Success, createResp.Status)
	attr, err := proto.UnmarshalFileAttr(createResp.Data)
	require.NoError(t, err)
	assert.Equal(t, proto.KindRegularFile, attr.Kind)

	getResp := d.Handle(&proto.Request{Op: proto.OpGetFileAttr, Path: []byte("/vol/a.txt")})
	require.Equal(t, proto.Success, getResp.Status)
}

func TestDispatchGetFileAttrMissingReturnsENOENT(t *testing.T) {
	d := newTestDispatcher(t)
	resp := d.Handle(&proto.Request{Op: proto.OpGetFileAttr, Path: []byte("/vol/missing")})
	assert.Equal(t, proto.ENOENT, resp.Status)
}

func TestDispatchWriteThenReadFileRoundTrips(t *testing.T) {
	d := newTestDispatcher(t)
	create := d.Handle(&proto.Request{
		Op:   proto.OpCreateFile,
		Path: []byte("/vol"),
		Meta: proto.CreateFileMeta{Mode: 0644, Name: "a.txt"}.Marshal(),
	})
	require.Equal(t, proto.Success, create.Status)

	write := d.Handle(&proto.Request{
		Op:   proto.OpWriteFile,
		Path: []byte("/vol/a.txt"),
		Meta: proto.WriteFileMeta{Offset: 0}.Marshal(),
		Data: []byte("hello"),
	})
	require.Equal(t, proto.Success, write.Status)

	read := d.Handle(&proto.Request{
		Op:   proto.OpReadFile,
		Path: []byte("/vol/a.txt"),
		Meta: proto.ReadFileMeta{Offset: 0, Size: 5}.Marshal(),
	})
	require.Equal(t, proto.Success, read.Status)
	assert.Equal(t, []byte("hello"), read.Data)
}

func TestDispatchLookupReturnsENOSYS(t *testing.T) {
	d := newTestDispatcher(t)
	resp := d.Handle(&proto.Request{Op: proto.OpLookup, Path: []byte("/vol/a.txt")})
	assert.Equal(t, proto.ENOSYS, resp.Status)
}

func TestDispatchGetMetadataReportsEngineStats(t *testing.T) {
	d := newTestDispatcher(t)
	create := d.Handle(&proto.Request{
		Op:   proto.OpCreateFile,
		Path: []byte("/vol"),
		Meta: proto.CreateFileMeta{Mode: 0644, Name: "a.txt"}.Marshal(),
	})
	require.Equal(t, proto.Success, create.Status)
	d.Handle(&proto.Request{
		Op:   proto.OpWriteFile,
		Path: []byte("/vol/a.txt"),
		Meta: proto.WriteFileMeta{Offset: 0}.Marshal(),
		Data: []byte("hello"),
	})

	resp := d.Handle(&proto.Request{Op: proto.OpGetMetadata})
	require.Equal(t, proto.Success, resp.Status)
	meta, err := proto.UnmarshalServerMetadataMeta(resp.Data)
	require.NoError(t, err)
	assert.EqualValues(t, 5, meta.UsedBytes)
	assert.GreaterOrEqual(t, meta.FileCount, uint64(2)) // the volume root plus a.txt
}

func TestDispatchListVolumes(t *testing.T) {
	d := newTestDispatcher(t)
	resp := d.Handle(&proto.Request{Op: proto.OpListVolumes})
	require.Equal(t, proto.Success, resp.Status)
	vols, err := proto.UnmarshalVolumeList(resp.Data)
	require.NoError(t, err)
	require.Len(t, vols, 1)
	assert.Equal(t, "vol", vols[0].Name)
}

func TestDispatchUnknownOpReturnsENOSYS(t *testing.T) {
	d := newTestDispatcher(t)
	resp := d.Handle(&proto.Request{Op: proto.Op(9999)})
	assert.Equal(t, proto.ENOSYS, resp.Status)
}
