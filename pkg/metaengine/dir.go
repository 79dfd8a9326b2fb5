package metaengine

import (
	"time"

	"github.com/sealfs-project/sealfs/pkg/proto"
)

// addDirEntry records name as a child of parent in the dir table and
// increments parent's sub_files_num.
func (e *Engine) addDirEntry(parent, name string, kind proto.FileKind) error {
	typeChar, err := dirTypeChar(kind)
	if err != nil {
		return err
	}
	if err := e.dirKV.Set(dirKey(parent, name, typeChar), []byte(name)); err != nil {
		return proto.EIO.Err()
	}
	if parentEntry, ok := e.index.load(parent); ok {
		parentEntry.subFilesNum.Add(1)
	}
	return nil
}

// deleteDirEntry removes name from parent's dir-table entries and
// decrements parent's sub_files_num.
func (e *Engine) deleteDirEntry(parent, name string, kind proto.FileKind) error {
	typeChar, err := dirTypeChar(kind)
	if err != nil {
		return err
	}
	if err := e.dirKV.Delete(dirKey(parent, name, typeChar)); err != nil {
		return proto.EIO.Err()
	}
	if parentEntry, ok := e.index.load(parent); ok {
		parentEntry.subFilesNum.Add(^uint32(0)) // -1
	}
	return nil
}

// DirectoryAddEntry is the low-level rebalance-time op from spec.md
// §4.6: add a child entry to parent without any create/delete
// serialization, used while replaying a directory's children onto its
// new owner.
func (e *Engine) DirectoryAddEntry(parent, name string, kind proto.FileKind) error {
	return e.addDirEntry(parent, name, kind)
}

// DirectoryDeleteEntry is DirectoryAddEntry's inverse.
func (e *Engine) DirectoryDeleteEntry(parent, name string, kind proto.FileKind) error {
	return e.deleteDirEntry(parent, name, kind)
}

// ReadDir implements spec.md §4.6's read_dir: iterates the dir table
// from "{path}$" forward, skipping offset entries, then filling up to
// size bytes of encoded DirectoryEntry records. "." and ".." are
// synthesized ahead of any real child.
func (e *Engine) ReadDir(path string, offset uint64, size uint32) ([]proto.DirectoryEntry, error) {
	entry, ok := e.index.load(path)
	if !ok {
		return nil, proto.ENOENT.Err()
	}
	if !entry.attr.IsDir() {
		return nil, proto.ENOTDIR.Err()
	}

	all := make([]proto.DirectoryEntry, 0, 2+entry.subFilesNum.Load())
	all = append(all, proto.DirectoryEntry{FileType: proto.KindDirectory, FileName: "."})
	all = append(all, proto.DirectoryEntry{FileType: proto.KindDirectory, FileName: ".."})

	prefix := dirPrefix(path)
	it := e.dirKV.Find(prefix, prefixUpperBound(prefix))
	defer it.Close()
	for it.Next() {
		key := string(it.Key())
		// key is "{path}${name}${typeChar}"; typeChar is the final byte.
		typeChar := key[len(key)-1]
		name := string(it.Value())
		all = append(all, proto.DirectoryEntry{FileType: charToKind(typeChar), FileName: name})
	}
	if err := it.Close(); err != nil {
		return nil, proto.EIO.Err()
	}

	if offset >= uint64(len(all)) {
		return nil, nil
	}
	all = all[offset:]

	var out []proto.DirectoryEntry
	var used uint32
	for _, de := range all {
		encLen := uint32(len(de.Marshal()))
		if used+encLen > size && len(out) > 0 {
			break
		}
		out = append(out, de)
		used += encLen
	}
	return out, nil
}

// OpenFile is pure bookkeeping: the blob store is stateless on open, so
// this only verifies the path exists and is not a directory.
func (e *Engine) OpenFile(path string, flags, mode uint32) (proto.FileAttr, error) {
	entry, ok := e.index.load(path)
	if !ok {
		return proto.FileAttr{}, proto.ENOENT.Err()
	}
	if entry.attr.IsDir() {
		return proto.FileAttr{}, proto.EISDIR.Err()
	}
	entry.entryMu.Lock()
	defer entry.entryMu.Unlock()
	return entry.attr, nil
}

// ReadFile implements spec.md §4.6's read_file.
func (e *Engine) ReadFile(path string, offset uint64, size uint32) ([]byte, error) {
	entry, ok := e.index.load(path)
	if !ok {
		return nil, proto.ENOENT.Err()
	}
	if entry.attr.IsDir() {
		return nil, proto.EISDIR.Err()
	}
	buf := make([]byte, size)
	n, err := e.blobs.ReadAt(path, int64(offset), buf)
	if err != nil {
		return nil, proto.EIO.Err()
	}
	return buf[:n], nil
}

// WriteFile implements spec.md §4.6's write_file: size is updated as
// max(old_size, offset+written) and the new attr persisted.
func (e *Engine) WriteFile(path string, offset uint64, data []byte) (proto.FileAttr, error) {
	entry, ok := e.index.load(path)
	if !ok {
		return proto.FileAttr{}, proto.ENOENT.Err()
	}
	if entry.attr.IsDir() {
		return proto.FileAttr{}, proto.EISDIR.Err()
	}
	newSize, err := e.blobs.WriteAt(path, int64(offset), data)
	if err != nil {
		return proto.FileAttr{}, proto.EIO.Err()
	}

	entry.entryMu.Lock()
	defer entry.entryMu.Unlock()
	if uint64(newSize) > entry.attr.Size {
		entry.attr.Size = uint64(newSize)
	}
	entry.attr.Blocks = (entry.attr.Size + 511) / 512
	entry.attr.Mtime = time.Now()
	if err := e.putAttr(path, entry.attr); err != nil {
		return proto.FileAttr{}, proto.EIO.Err()
	}
	return entry.attr, nil
}

// TruncateFile implements spec.md §4.6's truncate_file.
func (e *Engine) TruncateFile(path string, length uint64) (proto.FileAttr, error) {
	entry, ok := e.index.load(path)
	if !ok {
		return proto.FileAttr{}, proto.ENOENT.Err()
	}
	if entry.attr.IsDir() {
		return proto.FileAttr{}, proto.EISDIR.Err()
	}
	if err := e.blobs.Truncate(path, int64(length)); err != nil {
		return proto.FileAttr{}, proto.EIO.Err()
	}

	entry.entryMu.Lock()
	defer entry.entryMu.Unlock()
	entry.attr.Size = length
	entry.attr.Blocks = (length + 511) / 512
	entry.attr.Mtime = time.Now()
	if err := e.putAttr(path, entry.attr); err != nil {
		return proto.FileAttr{}, proto.EIO.Err()
	}
	return entry.attr, nil
}

// CheckFile overwrites path's local attribute with remote, the commit
// point a rebalance recipient uses after a file's bytes have already
// arrived (spec.md §4.5 step 2c).
func (e *Engine) CheckFile(path string, remote proto.FileAttr) error {
	return e.overwriteAttr(path, remote)
}

// CheckDir is CheckFile's directory counterpart (spec.md §4.5 step 1c).
func (e *Engine) CheckDir(path string, remote proto.FileAttr) error {
	return e.overwriteAttr(path, remote)
}

func (e *Engine) overwriteAttr(path string, attr proto.FileAttr) error {
	entry, ok := e.index.load(path)
	if !ok {
		entry = &indexEntry{}
		e.index.store(path, entry)
	}
	entry.entryMu.Lock()
	entry.attr = attr
	entry.entryMu.Unlock()
	return e.putAttr(path, attr)
}
