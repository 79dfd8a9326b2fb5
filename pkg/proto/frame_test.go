package proto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestRoundTrip(t *testing.T) {
	req := &Request{
		Batch: 1,
		ID:    42,
		Op:    OpCreateFile,
		Flags: 0,
		Path:  []byte("/vol/dir/file.txt"),
		Meta:  CreateFileMeta{Flags: 1, Umask: 022, Mode: 0644, Name: "file.txt"}.Marshal(),
		Data:  nil,
	}

	var buf bytes.Buffer
	_, err := req.WriteTo(&buf)
	require.NoError(t, err)

	got, err := ReadRequest(&buf)
	require.NoError(t, err)
	assert.Equal(t, req.Batch, got.Batch)
	assert.Equal(t, req.ID, got.ID)
	assert.Equal(t, req.Op, got.Op)
	assert.Equal(t, req.Path, got.Path)
	assert.Equal(t, req.Meta, got.Meta)

	meta, err := UnmarshalCreateFileMeta(got.Meta)
	require.NoError(t, err)
	assert.Equal(t, "file.txt", meta.Name)
	assert.Equal(t, uint32(0644), meta.Mode)
}

func TestRequestOversizeRejected(t *testing.T) {
	req := &Request{Path: make([]byte, MaxPathLen+1)}
	var buf bytes.Buffer
	_, err := req.WriteTo(&buf)
	assert.ErrorIs(t, err, ErrOversizeFrame)
}

func TestResponseRoundTrip(t *testing.T) {
	resp := &Response{
		Batch:  7,
		ID:     9,
		Status: ENOENT,
		Meta:   nil,
		Data:   []byte("hello"),
	}

	var buf bytes.Buffer
	_, err := resp.WriteTo(&buf)
	require.NoError(t, err)

	hdr, err := ReadResponseHeader(&buf)
	require.NoError(t, err)
	assert.Equal(t, resp.Batch, hdr.Batch)
	assert.Equal(t, resp.ID, hdr.ID)
	assert.Equal(t, ENOENT, hdr.Status)
	assert.Equal(t, uint32(len(resp.Data)), hdr.DataLen)

	data := make([]byte, hdr.DataLen)
	_, err = buf.Read(data)
	require.NoError(t, err)
	assert.Equal(t, resp.Data, data)
}

func TestDirEntryRunRoundTrip(t *testing.T) {
	entries := []DirectoryEntry{
		{FileType: KindRegularFile, FileName: "a.txt"},
		{FileType: KindDirectory, FileName: "sub"},
	}
	encoded := MarshalDirEntries(entries)
	got, err := UnmarshalDirEntries(encoded)
	require.NoError(t, err)
	assert.Equal(t, entries, got)
}

func TestErrnoConversion(t *testing.T) {
	assert.NoError(t, Success.Err())
	assert.Equal(t, Success, FromError(nil))

	err := ENOENT.Err()
	assert.Error(t, err)
	assert.Equal(t, ENOENT, FromError(err))

	assert.Equal(t, EIO, FromError(assertErr{}))
	assert.Equal(t, EIO, FromError(EInvalidClusterStatus.Err()))
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
