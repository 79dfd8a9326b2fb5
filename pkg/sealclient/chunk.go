package sealclient

import (
	"context"

	"github.com/sealfs-project/sealfs/pkg/proto"
)

// ReadFile reads size bytes starting at offset, issuing one
// proto.ChunkSize-aligned RPC per chunk (spec.md §6: "reads are
// similarly chunked") and stitching the results back into one buffer. It
// stops early, returning fewer bytes than requested, the moment a chunk
// comes back short of a full read (EOF).
func (c *Client) ReadFile(ctx context.Context, path string, offset uint64, size uint32) ([]byte, error) {
	out := make([]byte, 0, size)
	for size > 0 {
		// Stop at the next chunk boundary.
		n := uint32(proto.ChunkSize - offset%proto.ChunkSize)
		if n > size {
			n = size
		}
		meta := proto.ReadFileMeta{Offset: offset, Size: n}.Marshal()
		resp, err := c.callPath(ctx, path, &proto.Request{Op: proto.OpReadFile, Meta: meta})
		if err != nil {
			return out, err
		}
		if resp.Status != proto.Success {
			return out, resp.Status.Err()
		}
		out = append(out, resp.Data...)
		got := uint32(len(resp.Data))
		offset += uint64(got)
		size -= n
		if got < n {
			break // short read: EOF
		}
	}
	return out, nil
}

// WriteFile writes data starting at offset, pre-splitting it into
// proto.ChunkSize-aligned frames (spec.md §6: "client pre-splits large
// file writes into 64 KiB chunks aligned to chunk boundaries"). It
// returns the attribute record from the last chunk written, which
// carries the file's final size.
func (c *Client) WriteFile(ctx context.Context, path string, offset uint64, data []byte) (proto.FileAttr, error) {
	var attr proto.FileAttr
	for len(data) > 0 {
		// Stop at the next chunk boundary.
		n := int(proto.ChunkSize - offset%proto.ChunkSize)
		if n > len(data) {
			n = len(data)
		}
		meta := proto.WriteFileMeta{Offset: offset}.Marshal()
		resp, err := c.callPath(ctx, path, &proto.Request{Op: proto.OpWriteFile, Meta: meta, Data: data[:n]})
		if err != nil {
			return proto.FileAttr{}, err
		}
		if resp.Status != proto.Success {
			return proto.FileAttr{}, resp.Status.Err()
		}
		attr, err = proto.UnmarshalFileAttr(resp.Data)
		if err != nil {
			return proto.FileAttr{}, err
		}
		offset += uint64(n)
		data = data[n:]
	}
	return attr, nil
}
