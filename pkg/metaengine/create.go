package metaengine

import (
	"os"

	"github.com/sealfs-project/sealfs/pkg/proto"
)

// CreateFile implements spec.md §4.6's create_file: requires parent to
// exist and be a directory; if name already exists and O_EXCL is not
// set, returns its existing attributes instead of failing.
func (e *Engine) CreateFile(parent, name string, flags, umask, mode uint32) (proto.FileAttr, error) {
	full := join(parent, name)
	parentEntry, ok := e.index.load(parent)
	if !ok {
		return proto.FileAttr{}, proto.ENOENT.Err()
	}
	if !parentEntry.attr.IsDir() {
		return proto.FileAttr{}, proto.ENOTDIR.Err()
	}

	for !e.busy.tryAcquire(parent, name) {
		if flags&uint32(proto.OExcl) != 0 {
			return proto.FileAttr{}, proto.EEXIST.Err()
		}
		// Someone else is creating or deleting this name right now. Wait
		// for them to finish instead of guessing EEXIST: spec.md §8
		// scenario 6 requires both racing non-O_EXCL callers to see the
		// same attributes, not one of them spuriously failing.
		e.busy.waitRelease(parent, name)
		if existing, exists := e.index.load(full); exists {
			existing.entryMu.Lock()
			defer existing.entryMu.Unlock()
			return existing.attr, nil
		}
		// Released without ever being created (the other caller's create
		// failed); loop back and try to become the creator ourselves.
	}
	defer e.busy.release(parent, name)

	if existing, exists := e.index.load(full); exists {
		if flags&uint32(proto.OExcl) != 0 {
			return proto.FileAttr{}, proto.EEXIST.Err()
		}
		existing.entryMu.Lock()
		defer existing.entryMu.Unlock()
		return existing.attr, nil
	}

	return e.createFileLocked(parent, name, full, mode&^umask)
}

// CreateFileNoParent creates a file's index and attribute record without
// touching a parent directory entry, used by the rebalance engine to
// seed a file on its new owner before streaming the bytes (spec.md
// §4.5).
func (e *Engine) CreateFileNoParent(full string, mode uint32) (proto.FileAttr, error) {
	if existing, ok := e.index.load(full); ok {
		existing.entryMu.Lock()
		defer existing.entryMu.Unlock()
		return existing.attr, nil
	}
	return e.createFileLocked("", "", full, mode)
}

func (e *Engine) createFileLocked(parent, name, full string, mode uint32) (proto.FileAttr, error) {
	if err := e.blobs.Create(full, os.FileMode(mode)); err != nil {
		if os.IsExist(err) {
			return proto.FileAttr{}, proto.EEXIST.Err()
		}
		return proto.FileAttr{}, proto.EIO.Err()
	}
	if err := e.contentKV.Set([]byte(e.blobs.Name(full)), []byte(full)); err != nil {
		return proto.FileAttr{}, proto.EIO.Err()
	}

	attr := newAttr(proto.KindRegularFile, mode)
	if err := e.putAttr(full, attr); err != nil {
		return proto.FileAttr{}, proto.EIO.Err()
	}
	e.index.store(full, &indexEntry{attr: attr})

	if parent != "" {
		if err := e.addDirEntry(parent, name, proto.KindRegularFile); err != nil {
			return proto.FileAttr{}, err
		}
	}
	return attr, nil
}

// CreateDir implements spec.md §4.6's create_dir: analogous to
// CreateFile but seeds sub_files_num at 2 for the "." and ".."
// pseudo-entries.
func (e *Engine) CreateDir(parent, name string, mode uint32) (proto.FileAttr, error) {
	full := join(parent, name)
	parentEntry, ok := e.index.load(parent)
	if !ok {
		return proto.FileAttr{}, proto.ENOENT.Err()
	}
	if !parentEntry.attr.IsDir() {
		return proto.FileAttr{}, proto.ENOTDIR.Err()
	}
	if !e.busy.tryAcquire(parent, name) {
		return proto.FileAttr{}, proto.EEXIST.Err()
	}
	defer e.busy.release(parent, name)

	if _, exists := e.index.load(full); exists {
		return proto.FileAttr{}, proto.EEXIST.Err()
	}
	return e.createDirLocked(parent, name, full, mode)
}

// CreateDirNoParent is CreateDir's rebalance-time counterpart, mirroring
// CreateFileNoParent.
func (e *Engine) CreateDirNoParent(full string, mode uint32) (proto.FileAttr, error) {
	if existing, ok := e.index.load(full); ok {
		existing.entryMu.Lock()
		defer existing.entryMu.Unlock()
		return existing.attr, nil
	}
	return e.createDirLocked("", "", full, mode)
}

func (e *Engine) createDirLocked(parent, name, full string, mode uint32) (proto.FileAttr, error) {
	attr := newAttr(proto.KindDirectory, mode)
	if err := e.putAttr(full, attr); err != nil {
		return proto.FileAttr{}, proto.EIO.Err()
	}
	entry := &indexEntry{attr: attr}
	entry.subFilesNum.Store(2)
	e.index.store(full, entry)

	if parent != "" {
		if err := e.addDirEntry(parent, name, proto.KindDirectory); err != nil {
			return proto.FileAttr{}, err
		}
	}
	return attr, nil
}

// DeleteFile implements spec.md §4.6's delete_file.
func (e *Engine) DeleteFile(parent, name string) error {
	full := join(parent, name)
	if !e.busy.tryAcquire(parent, name) {
		return proto.ENOENT.Err()
	}
	defer e.busy.release(parent, name)

	entry, ok := e.index.load(full)
	if !ok {
		return proto.ENOENT.Err()
	}
	if entry.attr.IsDir() {
		return proto.EISDIR.Err()
	}
	return e.deleteFileLocked(parent, name, full)
}

// DeleteFileNoParent deletes the file's blob, attribute and index entry
// without touching a parent directory entry (rebalance source side,
// spec.md §4.5's "delete locally" after transfer completes).
func (e *Engine) DeleteFileNoParent(full string) error {
	return e.deleteFileLocked("", "", full)
}

func (e *Engine) deleteFileLocked(parent, name, full string) error {
	if err := e.blobs.Delete(full); err != nil && !os.IsNotExist(err) {
		return proto.EIO.Err()
	}
	e.contentKV.Delete([]byte(e.blobs.Name(full))) // best-effort; attrKV is the source of truth
	if err := e.attrKV.Delete([]byte(full)); err != nil {
		return proto.EIO.Err()
	}
	e.index.delete(full)
	if parent != "" {
		return e.deleteDirEntry(parent, name, proto.KindRegularFile)
	}
	return nil
}

// DeleteDir implements spec.md §4.6's delete_dir: refuses a non-empty
// directory with ENOTEMPTY.
func (e *Engine) DeleteDir(parent, name string) error {
	full := join(parent, name)
	if !e.busy.tryAcquire(parent, name) {
		return proto.ENOENT.Err()
	}
	defer e.busy.release(parent, name)

	entry, ok := e.index.load(full)
	if !ok {
		return proto.ENOENT.Err()
	}
	if !entry.attr.IsDir() {
		return proto.ENOTDIR.Err()
	}
	if entry.subFilesNum.Load() > 2 {
		return proto.ENOTEMPTY.Err()
	}
	return e.deleteDirLocked(parent, name, full)
}

// DeleteDirNoParent removes a directory's index and attribute record
// without the emptiness check and without touching a parent entry, used
// by the rebalance engine once a directory's children have already been
// migrated (spec.md §4.5 step 1c, "delete_directory_force").
func (e *Engine) DeleteDirNoParent(full string) error {
	return e.deleteDirLocked("", "", full)
}

func (e *Engine) deleteDirLocked(parent, name, full string) error {
	if err := e.attrKV.Delete([]byte(full)); err != nil {
		return proto.EIO.Err()
	}
	e.index.delete(full)
	if parent != "" {
		return e.deleteDirEntry(parent, name, proto.KindDirectory)
	}
	return nil
}
