package metaengine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sealfs-project/sealfs/pkg/blobstore"
	"github.com/sealfs-project/sealfs/pkg/kv"
	"github.com/sealfs-project/sealfs/pkg/proto"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	blobs, err := blobstore.Open(t.TempDir())
	require.NoError(t, err)
	e, err := Open(kv.NewMemory(), kv.NewMemory(), kv.NewMemory(), blobs)
	require.NoError(t, err)
	require.NoError(t, e.vols.create("vol", 0))
	_, err = e.createDirLocked("", "", "/vol", 0755)
	require.NoError(t, err)
	return e
}

func TestCreateAndStatFile(t *testing.T) {
	e := newTestEngine(t)
	attr, err := e.CreateFile("/vol", "a.txt", 0, 0, 0644)
	require.NoError(t, err)
	assert.Equal(t, proto.KindRegularFile, attr.Kind)

	got, err := e.GetFileAttr("/vol/a.txt")
	require.NoError(t, err)
	assert.Equal(t, attr.Kind, got.Kind)
}

func TestCreateFileExclFailsOnExisting(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.CreateFile("/vol", "a.txt", 0, 0, 0644)
	require.NoError(t, err)

	_, err = e.CreateFile("/vol", "a.txt", uint32(proto.OExcl), 0, 0644)
	assert.Equal(t, proto.EEXIST, proto.FromError(err))
}

func TestCreateFileWithoutExclReturnsExisting(t *testing.T) {
	e := newTestEngine(t)
	first, err := e.CreateFile("/vol", "a.txt", 0, 0, 0644)
	require.NoError(t, err)

	second, err := e.CreateFile("/vol", "a.txt", 0, 0, 0644)
	require.NoError(t, err)
	assert.Equal(t, first.Kind, second.Kind)
}

func TestCreateFileMissingParent(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.CreateFile("/vol/missing", "a.txt", 0, 0, 0644)
	assert.Equal(t, proto.ENOENT, proto.FromError(err))
}

func TestWriteReadTruncate(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.CreateFile("/vol", "a.txt", 0, 0, 0644)
	require.NoError(t, err)

	attr, err := e.WriteFile("/vol/a.txt", 0, []byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, uint64(11), attr.Size)

	data, err := e.ReadFile("/vol/a.txt", 6, 5)
	require.NoError(t, err)
	assert.Equal(t, "world", string(data))

	attr, err = e.TruncateFile("/vol/a.txt", 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), attr.Size)
}

func TestReadWriteRejectsDirectory(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.ReadFile("/vol", 0, 10)
	assert.Equal(t, proto.EISDIR, proto.FromError(err))

	_, err = e.WriteFile("/vol", 0, []byte("x"))
	assert.Equal(t, proto.EISDIR, proto.FromError(err))
}

func TestDeleteFileAndDir(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.CreateDir("/vol", "sub", 0755)
	require.NoError(t, err)
	_, err = e.CreateFile("/vol/sub", "a.txt", 0, 0, 0644)
	require.NoError(t, err)

	err = e.DeleteDir("/vol", "sub")
	assert.Equal(t, proto.ENOTEMPTY, proto.FromError(err))

	require.NoError(t, e.DeleteFile("/vol/sub", "a.txt"))
	require.NoError(t, e.DeleteDir("/vol", "sub"))

	_, err = e.GetFileAttr("/vol/sub")
	assert.Equal(t, proto.ENOENT, proto.FromError(err))
}

func TestReadDirListsChildrenAndPseudoEntries(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.CreateFile("/vol", "a.txt", 0, 0, 0644)
	require.NoError(t, err)
	_, err = e.CreateDir("/vol", "sub", 0755)
	require.NoError(t, err)

	entries, err := e.ReadDir("/vol", 0, 4096)
	require.NoError(t, err)

	names := map[string]bool{}
	for _, en := range entries {
		names[en.FileName] = true
	}
	assert.True(t, names["."])
	assert.True(t, names[".."])
	assert.True(t, names["a.txt"])
	assert.True(t, names["sub"])
}

func TestBusyNamesGateRejectsConcurrentCreate(t *testing.T) {
	b := newBusyNames()
	assert.True(t, b.tryAcquire("/vol", "x"))
	assert.False(t, b.tryAcquire("/vol", "x"))
	b.release("/vol", "x")
	assert.True(t, b.tryAcquire("/vol", "x"))
}

func TestCreateVolumeAndCleanVolume(t *testing.T) {
	blobs, err := blobstore.Open(t.TempDir())
	require.NoError(t, err)
	e, err := Open(kv.NewMemory(), kv.NewMemory(), kv.NewMemory(), blobs)
	require.NoError(t, err)

	_, err = e.CreateVolume("data", 1<<20)
	require.NoError(t, err)

	_, err = e.CreateFile("/data", "f1", 0, 0, 0644)
	require.NoError(t, err)
	_, err = e.CreateDir("/data", "sub", 0755)
	require.NoError(t, err)
	_, err = e.CreateFile("/data/sub", "f2", 0, 0, 0644)
	require.NoError(t, err)

	require.NoError(t, e.CleanVolume("data"))

	entries, err := e.ReadDir("/data", 0, 4096)
	require.NoError(t, err)
	assert.Len(t, entries, 2) // only "." and ".."

	vols := e.ListVolumes()
	require.Len(t, vols, 1)
	assert.Equal(t, "data", vols[0].Name)
}

func TestDeleteVolumeRequiresEmpty(t *testing.T) {
	blobs, err := blobstore.Open(t.TempDir())
	require.NoError(t, err)
	e, err := Open(kv.NewMemory(), kv.NewMemory(), kv.NewMemory(), blobs)
	require.NoError(t, err)

	_, err = e.CreateVolume("data", 0)
	require.NoError(t, err)
	_, err = e.CreateFile("/data", "f1", 0, 0, 0644)
	require.NoError(t, err)

	err = e.DeleteVolume("data")
	assert.Equal(t, proto.ENOTEMPTY, proto.FromError(err))

	require.NoError(t, e.DeleteFile("/data", "f1"))
	require.NoError(t, e.DeleteVolume("data"))
}

func TestFsckRemovesOrphanDirEntry(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.CreateFile("/vol", "a.txt", 0, 0, 0644)
	require.NoError(t, err)

	// Simulate a crash that deleted the attr record but left the dir
	// entry behind.
	require.NoError(t, e.attrKV.Delete([]byte("/vol/a.txt")))
	e.index.delete("/vol/a.txt")

	report, err := e.Fsck()
	require.NoError(t, err)
	assert.Equal(t, 1, report.OrphanDirEntries)

	entries, err := e.ReadDir("/vol", 0, 4096)
	require.NoError(t, err)
	for _, en := range entries {
		assert.NotEqual(t, "a.txt", en.FileName)
	}
}
