package metaengine

import "github.com/sealfs-project/sealfs/pkg/proto"

// CreateVolume implements OpCreateVolume: volumes are created only at
// volume-root depth (spec.md §3), so this also seeds the volume's root
// directory attribute and index entry.
func (e *Engine) CreateVolume(name string, sizeLimit uint64) (proto.FileAttr, error) {
	if err := e.vols.create(name, sizeLimit); err != nil {
		return proto.FileAttr{}, err
	}
	return e.createDirLocked("", "", "/"+name, 0755)
}

// InitVolume re-registers a volume record for a root directory that
// already exists on disk (e.g. after a server restart that lost its
// volume table but not its data); it is a no-op over CreateVolume's
// directory creation, registering the volume entry only.
func (e *Engine) InitVolume(name string, sizeLimit uint64) error {
	if _, ok := e.index.load("/" + name); !ok {
		return proto.ENOENT.Err()
	}
	return e.vols.create(name, sizeLimit)
}

// ListVolumes implements OpListVolumes.
func (e *Engine) ListVolumes() []Volume {
	return e.vols.list()
}

// DeleteVolume implements OpDeleteVolume: requires the volume root to be
// empty, mirroring DeleteDir's ENOTEMPTY check.
func (e *Engine) DeleteVolume(name string) error {
	root := "/" + name
	entry, ok := e.index.load(root)
	if !ok {
		return proto.ENOENT.Err()
	}
	if entry.subFilesNum.Load() > 2 {
		return proto.ENOTEMPTY.Err()
	}
	if err := e.vols.delete(name); err != nil {
		return err
	}
	return e.deleteDirLocked("", "", root)
}

// CleanVolume implements OpCleanVolume: removes every file and
// subdirectory under the volume root but keeps the volume record itself
// (Open Question (c), resolved in DESIGN.md: clean means delete-contents,
// not delete-and-recreate).
func (e *Engine) CleanVolume(name string) error {
	root := "/" + name
	if _, ok := e.index.load(root); !ok {
		return proto.ENOENT.Err()
	}
	children, err := e.ReadDir(root, 0, ^uint32(0))
	if err != nil {
		return err
	}
	for _, c := range children {
		if c.FileName == "." || c.FileName == ".." {
			continue
		}
		switch c.FileType {
		case proto.KindDirectory:
			if err := e.removeTree(join(root, c.FileName)); err != nil {
				return err
			}
		default:
			if err := e.DeleteFile(root, c.FileName); err != nil {
				return err
			}
		}
	}
	return nil
}

// removeTree recursively deletes a directory and everything under it,
// used by CleanVolume. Regular files are removed through DeleteFile and
// so through the busy-names gate; subdirectories are unlinked directly,
// without the gate or an emptiness check, once their own contents are
// gone.
func (e *Engine) removeTree(dir string) error {
	children, err := e.ReadDir(dir, 0, ^uint32(0))
	if err != nil {
		return err
	}
	for _, c := range children {
		if c.FileName == "." || c.FileName == ".." {
			continue
		}
		child := join(dir, c.FileName)
		if c.FileType == proto.KindDirectory {
			// removeTree removes child's own entry from dir's dir table
			// as its last step, so nothing more is needed here.
			if err := e.removeTree(child); err != nil {
				return err
			}
		} else {
			if err := e.DeleteFile(dir, c.FileName); err != nil {
				return err
			}
		}
	}
	parent, name, err := splitParent(dir)
	if err != nil {
		return nil // dir is a volume root, nothing more to unlink
	}
	if err := e.deleteDirEntry(parent, name, proto.KindDirectory); err != nil {
		return err
	}
	return e.deleteDirLocked("", "", dir)
}
