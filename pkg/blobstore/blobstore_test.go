package blobstore

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateWriteReadRoundTrip(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)

	const path = "/vol/dir/file.txt"
	require.NoError(t, s.Create(path, 0644))
	assert.True(t, s.Exists(path))

	size, err := s.WriteAt(path, 0, []byte("hello world"))
	require.NoError(t, err)
	assert.Equal(t, int64(11), size)

	buf := make([]byte, 5)
	n, err := s.ReadAt(path, 6, buf)
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "world", string(buf))
}

func TestCreateTwiceFails(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.Create("/a", 0644))
	err = s.Create("/a", 0644)
	assert.True(t, os.IsExist(err))
}

func TestTruncateShrinksSize(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.Create("/a", 0644))
	_, err = s.WriteAt("/a", 0, []byte("0123456789"))
	require.NoError(t, err)

	require.NoError(t, s.Truncate("/a", 4))
	size, err := s.Size("/a")
	require.NoError(t, err)
	assert.Equal(t, int64(4), size)
}

func TestDeleteRemovesBlob(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.Create("/a", 0644))
	require.NoError(t, s.Delete("/a"))
	assert.False(t, s.Exists("/a"))
}

func TestDifferentPathsGetSeparateBlobs(t *testing.T) {
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	require.NoError(t, s.Create("/a", 0644))
	require.NoError(t, s.Create("/b", 0644))

	var blobCount int
	require.NoError(t, s.Walk(func(diskPath string) error {
		blobCount++
		return nil
	}))
	assert.Equal(t, 2, blobCount)
}
