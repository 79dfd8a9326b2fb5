package router

import "github.com/sealfs-project/sealfs/pkg/proto"

// serve answers a request against the local engine, one case per op
// code. Lookup, rename and symlink are explicit stubs: spec.md §9
// leaves them unimplemented and allows ENOSYS/EPERM.
func (d *Dispatcher) serve(req *proto.Request) *proto.Response {
	path := string(req.Path)

	switch req.Op {
	case proto.OpLookup:
		return errResp(proto.ENOSYS)

	case proto.OpCreateFile:
		meta, err := proto.UnmarshalCreateFileMeta(req.Meta)
		if err != nil {
			return errResp(proto.EINVAL)
		}
		attr, err := d.engine.CreateFile(path, meta.Name, meta.Flags, meta.Umask, meta.Mode)
		return attrResp(attr, err)

	case proto.OpCreateDir:
		meta, err := proto.UnmarshalCreateDirMeta(req.Meta)
		if err != nil {
			return errResp(proto.EINVAL)
		}
		attr, err := d.engine.CreateDir(path, meta.Name, meta.Mode)
		return attrResp(attr, err)

	case proto.OpGetFileAttr:
		attr, err := d.engine.GetFileAttr(path)
		return attrResp(attr, err)

	case proto.OpReadDir:
		meta, err := proto.UnmarshalReadDirMeta(req.Meta)
		if err != nil {
			return errResp(proto.EINVAL)
		}
		entries, err := d.engine.ReadDir(path, meta.Offset, meta.Size)
		if err != nil {
			return errResp(proto.FromError(err))
		}
		return &proto.Response{Data: proto.MarshalDirEntries(entries)}

	case proto.OpOpenFile:
		meta, err := proto.UnmarshalOpenMeta(req.Meta)
		if err != nil {
			return errResp(proto.EINVAL)
		}
		attr, err := d.engine.OpenFile(path, meta.Flags, meta.Mode)
		return attrResp(attr, err)

	case proto.OpReadFile:
		meta, err := proto.UnmarshalReadFileMeta(req.Meta)
		if err != nil {
			return errResp(proto.EINVAL)
		}
		data, err := d.engine.ReadFile(path, meta.Offset, meta.Size)
		if err != nil {
			return errResp(proto.FromError(err))
		}
		return &proto.Response{Data: data}

	case proto.OpWriteFile:
		meta, err := proto.UnmarshalWriteFileMeta(req.Meta)
		if err != nil {
			return errResp(proto.EINVAL)
		}
		attr, err := d.engine.WriteFile(path, meta.Offset, req.Data)
		return attrResp(attr, err)

	case proto.OpDeleteFile:
		meta, err := proto.UnmarshalNameMeta(req.Meta)
		if err != nil {
			return errResp(proto.EINVAL)
		}
		return errResp(proto.FromError(d.engine.DeleteFile(path, meta.Name)))

	case proto.OpDeleteDir:
		meta, err := proto.UnmarshalNameMeta(req.Meta)
		if err != nil {
			return errResp(proto.EINVAL)
		}
		return errResp(proto.FromError(d.engine.DeleteDir(path, meta.Name)))

	case proto.OpDirectoryAddEntry:
		entry, _, err := proto.UnmarshalDirectoryEntry(req.Meta)
		if err != nil {
			return errResp(proto.EINVAL)
		}
		return errResp(proto.FromError(d.engine.DirectoryAddEntry(path, entry.FileName, entry.FileType)))

	case proto.OpDirectoryDeleteEntry:
		entry, _, err := proto.UnmarshalDirectoryEntry(req.Meta)
		if err != nil {
			return errResp(proto.EINVAL)
		}
		return errResp(proto.FromError(d.engine.DirectoryDeleteEntry(path, entry.FileName, entry.FileType)))

	case proto.OpTruncateFile:
		meta, err := proto.UnmarshalTruncateMeta(req.Meta)
		if err != nil {
			return errResp(proto.EINVAL)
		}
		attr, err := d.engine.TruncateFile(path, meta.Length)
		return attrResp(attr, err)

	case proto.OpCheckFile:
		meta, err := proto.UnmarshalCheckMeta(req.Meta)
		if err != nil {
			return errResp(proto.EINVAL)
		}
		return errResp(proto.FromError(d.engine.CheckFile(path, meta.Attr)))

	case proto.OpCheckDir:
		meta, err := proto.UnmarshalCheckMeta(req.Meta)
		if err != nil {
			return errResp(proto.EINVAL)
		}
		return errResp(proto.FromError(d.engine.CheckDir(path, meta.Attr)))

	case proto.OpCreateFileNoParent:
		meta, err := proto.UnmarshalCreateFileMeta(req.Meta)
		if err != nil {
			return errResp(proto.EINVAL)
		}
		attr, err := d.engine.CreateFileNoParent(path, meta.Mode)
		return attrResp(attr, err)

	case proto.OpCreateDirNoParent:
		meta, err := proto.UnmarshalCreateDirMeta(req.Meta)
		if err != nil {
			return errResp(proto.EINVAL)
		}
		attr, err := d.engine.CreateDirNoParent(path, meta.Mode)
		return attrResp(attr, err)

	case proto.OpDeleteFileNoParent:
		return errResp(proto.FromError(d.engine.DeleteFileNoParent(path)))

	case proto.OpDeleteDirNoParent:
		return errResp(proto.FromError(d.engine.DeleteDirNoParent(path)))

	case proto.OpCreateVolume:
		meta, err := proto.UnmarshalVolumeMeta(req.Meta)
		if err != nil {
			return errResp(proto.EINVAL)
		}
		attr, err := d.engine.CreateVolume(path, meta.Capacity)
		return attrResp(attr, err)

	case proto.OpInitVolume:
		meta, err := proto.UnmarshalVolumeMeta(req.Meta)
		if err != nil {
			return errResp(proto.EINVAL)
		}
		return errResp(proto.FromError(d.engine.InitVolume(path, meta.Capacity)))

	case proto.OpListVolumes:
		vols := d.engine.ListVolumes()
		infos := make([]proto.VolumeInfo, len(vols))
		for i, v := range vols {
			infos[i] = proto.VolumeInfo{Name: v.Name, SizeLimit: v.SizeLimit, UsedSize: v.UsedSize}
		}
		return &proto.Response{Data: proto.MarshalVolumeList(infos)}

	case proto.OpDeleteVolume:
		return errResp(proto.FromError(d.engine.DeleteVolume(path)))

	case proto.OpCleanVolume:
		return errResp(proto.FromError(d.engine.CleanVolume(path)))

	case proto.OpGetMetadata:
		fileCount, usedBytes, err := d.engine.Stats()
		if err != nil {
			return errResp(proto.EIO)
		}
		return &proto.Response{Data: proto.ServerMetadataMeta{FileCount: fileCount, UsedBytes: usedBytes}.Marshal()}

	default:
		return errResp(proto.ENOSYS)
	}
}

func errResp(errno proto.Errno) *proto.Response {
	return &proto.Response{Status: errno}
}

func attrResp(attr proto.FileAttr, err error) *proto.Response {
	if err != nil {
		return errResp(proto.FromError(err))
	}
	return &proto.Response{Data: attr.Marshal()}
}
