package sealclient

import (
	"context"

	"github.com/sealfs-project/sealfs/pkg/proto"
)

// Lookup is unimplemented cluster-wide (spec.md §9 leaves it an explicit
// stub); this passes the call through so a caller sees the same ENOSYS a
// server would return rather than a client-side short-circuit.
func (c *Client) Lookup(ctx context.Context, path string) error {
	resp, err := c.callPath(ctx, path, &proto.Request{Op: proto.OpLookup})
	return errOrNil(resp, err)
}

// CreateFile creates name under dir.
func (c *Client) CreateFile(ctx context.Context, dir, name string, flags, umask, mode uint32) (proto.FileAttr, error) {
	meta := proto.CreateFileMeta{Flags: flags, Umask: umask, Mode: mode, Name: name}.Marshal()
	resp, err := c.callPath(ctx, dir, &proto.Request{Op: proto.OpCreateFile, Meta: meta})
	return attrOrErr(resp, err)
}

// CreateDir creates name under dir.
func (c *Client) CreateDir(ctx context.Context, dir, name string, mode uint32) (proto.FileAttr, error) {
	meta := proto.CreateDirMeta{Mode: mode, Name: name}.Marshal()
	resp, err := c.callPath(ctx, dir, &proto.Request{Op: proto.OpCreateDir, Meta: meta})
	return attrOrErr(resp, err)
}

// GetFileAttr returns path's attribute record.
func (c *Client) GetFileAttr(ctx context.Context, path string) (proto.FileAttr, error) {
	resp, err := c.callPath(ctx, path, &proto.Request{Op: proto.OpGetFileAttr})
	return attrOrErr(resp, err)
}

// ReadDir lists up to size bytes of path's entries starting after offset
// entries have been skipped.
func (c *Client) ReadDir(ctx context.Context, path string, offset uint64, size uint32) ([]proto.DirectoryEntry, error) {
	meta := proto.ReadDirMeta{Offset: offset, Size: size}.Marshal()
	resp, err := c.callPath(ctx, path, &proto.Request{Op: proto.OpReadDir, Meta: meta})
	if err != nil {
		return nil, err
	}
	if resp.Status != proto.Success {
		return nil, resp.Status.Err()
	}
	return proto.UnmarshalDirEntries(resp.Data)
}

// OpenFile is bookkeeping-only against this storage engine; it still
// round-trips so a caller gets ENOENT/EISDIR up front rather than on the
// first read.
func (c *Client) OpenFile(ctx context.Context, path string, flags, mode uint32) (proto.FileAttr, error) {
	meta := proto.OpenMeta{Flags: flags, Mode: mode}.Marshal()
	resp, err := c.callPath(ctx, path, &proto.Request{Op: proto.OpOpenFile, Meta: meta})
	return attrOrErr(resp, err)
}

// DeleteFile removes name under dir.
func (c *Client) DeleteFile(ctx context.Context, dir, name string) error {
	meta := proto.NameMeta{Name: name}.Marshal()
	resp, err := c.callPath(ctx, dir, &proto.Request{Op: proto.OpDeleteFile, Meta: meta})
	return errOrNil(resp, err)
}

// DeleteDir removes name under dir; the server rejects non-empty dirs
// with ENOTEMPTY.
func (c *Client) DeleteDir(ctx context.Context, dir, name string) error {
	meta := proto.NameMeta{Name: name}.Marshal()
	resp, err := c.callPath(ctx, dir, &proto.Request{Op: proto.OpDeleteDir, Meta: meta})
	return errOrNil(resp, err)
}

// DirectoryAddEntry and DirectoryDeleteEntry are the low-level directory
// bookkeeping ops spec.md §4.2 describes as rebalance-internal; exposed
// here because they carry their own op code, not because a FUSE adapter
// is expected to call them directly.
func (c *Client) DirectoryAddEntry(ctx context.Context, dir, name string, kind proto.FileKind) error {
	meta := proto.DirectoryEntry{FileType: kind, FileName: name}.Marshal()
	resp, err := c.callPath(ctx, dir, &proto.Request{Op: proto.OpDirectoryAddEntry, Meta: meta})
	return errOrNil(resp, err)
}

func (c *Client) DirectoryDeleteEntry(ctx context.Context, dir, name string, kind proto.FileKind) error {
	meta := proto.DirectoryEntry{FileType: kind, FileName: name}.Marshal()
	resp, err := c.callPath(ctx, dir, &proto.Request{Op: proto.OpDirectoryDeleteEntry, Meta: meta})
	return errOrNil(resp, err)
}

// TruncateFile truncates path to length.
func (c *Client) TruncateFile(ctx context.Context, path string, length uint64) (proto.FileAttr, error) {
	meta := proto.TruncateMeta{Length: length}.Marshal()
	resp, err := c.callPath(ctx, path, &proto.Request{Op: proto.OpTruncateFile, Meta: meta})
	return attrOrErr(resp, err)
}

// CheckFile and CheckDir overwrite path's attribute record unconditionally;
// spec.md §4.5 names these the rebalance recipient's commit point, carried
// here since they are regular op codes like any other.
func (c *Client) CheckFile(ctx context.Context, path string, attr proto.FileAttr) error {
	meta := proto.CheckMeta{Attr: attr}.Marshal()
	resp, err := c.callPath(ctx, path, &proto.Request{Op: proto.OpCheckFile, Meta: meta})
	return errOrNil(resp, err)
}

func (c *Client) CheckDir(ctx context.Context, path string, attr proto.FileAttr) error {
	meta := proto.CheckMeta{Attr: attr}.Marshal()
	resp, err := c.callPath(ctx, path, &proto.Request{Op: proto.OpCheckDir, Meta: meta})
	return errOrNil(resp, err)
}

// CreateFileNoParent and CreateDirNoParent create path directly without
// touching a parent directory's entry list, for recovery and rebalance
// use where the caller already knows the full path is free.
func (c *Client) CreateFileNoParent(ctx context.Context, path string, mode uint32) (proto.FileAttr, error) {
	meta := proto.CreateFileMeta{Mode: mode}.Marshal()
	resp, err := c.callPath(ctx, path, &proto.Request{Op: proto.OpCreateFileNoParent, Meta: meta})
	return attrOrErr(resp, err)
}

func (c *Client) CreateDirNoParent(ctx context.Context, path string, mode uint32) (proto.FileAttr, error) {
	meta := proto.CreateDirMeta{Mode: mode}.Marshal()
	resp, err := c.callPath(ctx, path, &proto.Request{Op: proto.OpCreateDirNoParent, Meta: meta})
	return attrOrErr(resp, err)
}

func (c *Client) DeleteFileNoParent(ctx context.Context, path string) error {
	resp, err := c.callPath(ctx, path, &proto.Request{Op: proto.OpDeleteFileNoParent})
	return errOrNil(resp, err)
}

func (c *Client) DeleteDirNoParent(ctx context.Context, path string) error {
	resp, err := c.callPath(ctx, path, &proto.Request{Op: proto.OpDeleteDirNoParent})
	return errOrNil(resp, err)
}

// CreateVolume creates a volume named name with the given byte capacity.
// A volume's root is a path like any other, so it is routed the same
// way: by hashing name on the placement ring.
func (c *Client) CreateVolume(ctx context.Context, name string, capacity uint64) (proto.FileAttr, error) {
	meta := proto.VolumeMeta{Capacity: capacity}.Marshal()
	resp, err := c.callPath(ctx, name, &proto.Request{Op: proto.OpCreateVolume, Meta: meta})
	return attrOrErr(resp, err)
}

// InitVolume registers a volume record with the given capacity for a
// volume root directory that already exists on the server; a volume that
// is already registered is rejected.
func (c *Client) InitVolume(ctx context.Context, name string, capacity uint64) error {
	meta := proto.VolumeMeta{Capacity: capacity}.Marshal()
	resp, err := c.callPath(ctx, name, &proto.Request{Op: proto.OpInitVolume, Meta: meta})
	return errOrNil(resp, err)
}

// DeleteVolume removes an empty volume; the server rejects a volume that
// still has contents with ENOTEMPTY.
func (c *Client) DeleteVolume(ctx context.Context, name string) error {
	resp, err := c.callPath(ctx, name, &proto.Request{Op: proto.OpDeleteVolume})
	return errOrNil(resp, err)
}

// CleanVolume removes a volume's contents but keeps its registration.
func (c *Client) CleanVolume(ctx context.Context, name string) error {
	resp, err := c.callPath(ctx, name, &proto.Request{Op: proto.OpCleanVolume})
	return errOrNil(resp, err)
}

// ListVolumes lists the volumes hosted on addr. Unlike every other op
// here, volume listing is inherently per-server rather than
// path-routed: each server enumerates only the volumes it locally owns.
func (c *Client) ListVolumes(ctx context.Context, addr string) ([]proto.VolumeInfo, error) {
	resp, err := c.call(ctx, addr, &proto.Request{Op: proto.OpListVolumes})
	if err != nil {
		return nil, err
	}
	if resp.Status != proto.Success {
		return nil, resp.Status.Err()
	}
	return proto.UnmarshalVolumeList(resp.Data)
}

// ListVolumesAnywhere is ListVolumes against an arbitrary known server,
// for a caller that only wants to discover what volumes exist anywhere
// in the cluster rather than on one particular server.
func (c *Client) ListVolumesAnywhere(ctx context.Context) ([]proto.VolumeInfo, error) {
	addr, err := c.anyServer()
	if err != nil {
		return nil, err
	}
	return c.ListVolumes(ctx, addr)
}

// Stats returns addr's aggregate file count and storage usage
// (OpGetMetadata, the SPEC_FULL.md §13 supplement).
func (c *Client) Stats(ctx context.Context, addr string) (proto.ServerMetadataMeta, error) {
	resp, err := c.call(ctx, addr, &proto.Request{Op: proto.OpGetMetadata})
	if err != nil {
		return proto.ServerMetadataMeta{}, err
	}
	if resp.Status != proto.Success {
		return proto.ServerMetadataMeta{}, resp.Status.Err()
	}
	return proto.UnmarshalServerMetadataMeta(resp.Data)
}
