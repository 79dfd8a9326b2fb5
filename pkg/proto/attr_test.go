package proto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileAttrRoundTrip(t *testing.T) {
	now := time.Unix(1700000000, 123456789)
	a := FileAttr{
		Size:    4096,
		Blocks:  8,
		Atime:   now,
		Mtime:   now,
		Ctime:   now,
		Crtime:  now,
		Kind:    KindRegularFile,
		Perm:    0644,
		Nlink:   1,
		Uid:     1000,
		Gid:     1000,
		Rdev:    0,
		Flags:   0,
		Blksize: 4096,
	}

	b := a.Marshal()
	require.Len(t, b, AttrSize)

	got, err := UnmarshalFileAttr(b)
	require.NoError(t, err)
	assert.Equal(t, a.Size, got.Size)
	assert.Equal(t, a.Perm, got.Perm)
	assert.Equal(t, a.Kind, got.Kind)
	assert.True(t, a.Atime.Equal(got.Atime))
	assert.False(t, got.IsDir())
}

func TestUnmarshalFileAttrShort(t *testing.T) {
	_, err := UnmarshalFileAttr(make([]byte, AttrSize-1))
	assert.Error(t, err)
}

func TestFileAttrIsDir(t *testing.T) {
	assert.True(t, FileAttr{Kind: KindDirectory}.IsDir())
	assert.False(t, FileAttr{Kind: KindRegularFile}.IsDir())
}
