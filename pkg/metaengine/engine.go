package metaengine

import (
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/sealfs-project/sealfs/pkg/blobstore"
	"github.com/sealfs-project/sealfs/pkg/kv"
	"github.com/sealfs-project/sealfs/pkg/proto"
)

// Engine is one server's storage and metadata engine: the three ordered
// KV tables from spec.md §4.6 (file-content, dir, file-attr), the blob
// store holding file bytes, and the in-memory FileIndex built from them
// at startup.
type Engine struct {
	attrKV    kv.KeyValue // path -> packed FileAttr
	dirKV     kv.KeyValue // "{parent}${name}${type}" -> name
	contentKV kv.KeyValue // blob name -> path, for audit/GC and Fsck

	blobs *blobstore.Store
	index fileIndex
	busy  *busyNames
	vols  *volumeTable
}

// Open builds an Engine over the given KV tables and blob store, then
// populates the in-memory FileIndex by scanning attrKV for attributes
// and dirKV for child counts, as spec.md §4.6 describes for startup.
func Open(attrKV, dirKV, contentKV kv.KeyValue, blobs *blobstore.Store) (*Engine, error) {
	e := &Engine{
		attrKV:    attrKV,
		dirKV:     dirKV,
		contentKV: contentKV,
		blobs:     blobs,
		busy:      newBusyNames(),
		vols:      newVolumeTable(attrKV),
	}
	if err := e.loadIndex(); err != nil {
		return nil, errors.Wrap(err, "metaengine: loading index")
	}
	if err := e.vols.load(); err != nil {
		return nil, errors.Wrap(err, "metaengine: loading volumes")
	}
	return e, nil
}

func (e *Engine) loadIndex() error {
	it := e.attrKV.Find(nil, nil)
	for it.Next() {
		p := string(it.Key())
		if isVolumeRecordKey(p) {
			continue
		}
		attr, err := proto.UnmarshalFileAttr(it.Value())
		if err != nil {
			it.Close()
			return errors.Wrapf(err, "corrupt attr record for %q", p)
		}
		entry := &indexEntry{attr: attr}
		if attr.IsDir() {
			entry.subFilesNum.Store(2 + e.countChildren(p))
		}
		e.index.store(p, entry)
	}
	return it.Close()
}

// countChildren counts entries in the dir table under the "{parent}$"
// prefix, without loading them.
func (e *Engine) countChildren(parent string) uint32 {
	it := e.dirKV.Find(dirPrefix(parent), prefixUpperBound(dirPrefix(parent)))
	defer it.Close()
	var n uint32
	for it.Next() {
		n++
	}
	return n
}

// prefixUpperBound returns the smallest byte string greater than every
// string sharing prefix, for use as an exclusive Find end bound.
func prefixUpperBound(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil // prefix was all 0xff bytes; no finite upper bound
}

// Walk calls fn once for every path holding an attribute record
// (volume records are skipped), stopping early if fn returns false. The
// rebalance engine uses this to build its set of paths owned by self but
// not by next.
func (e *Engine) Walk(fn func(path string, attr proto.FileAttr) bool) error {
	it := e.attrKV.Find(nil, nil)
	for it.Next() {
		p := string(it.Key())
		if isVolumeRecordKey(p) {
			continue
		}
		attr, err := proto.UnmarshalFileAttr(it.Value())
		if err != nil {
			it.Close()
			return err
		}
		if !fn(p, attr) {
			break
		}
	}
	return it.Close()
}

// Stats returns this server's aggregate storage usage: the total number
// of indexed paths (files and directories) and the total bytes occupied
// by regular file data. It answers OpGetMetadata, the supplement
// described in SPEC_FULL.md §13; sealclient.Client.Stats requests it,
// the manager does not.
func (e *Engine) Stats() (fileCount, usedBytes uint64, err error) {
	err = e.Walk(func(path string, attr proto.FileAttr) bool {
		fileCount++
		if !attr.IsDir() {
			usedBytes += attr.Size
		}
		return true
	})
	return fileCount, usedBytes, err
}

func (e *Engine) getAttr(p string) (proto.FileAttr, error) {
	b, err := e.attrKV.Get([]byte(p))
	if err != nil {
		if err == kv.ErrNotFound {
			return proto.FileAttr{}, proto.ENOENT.Err()
		}
		return proto.FileAttr{}, err
	}
	return proto.UnmarshalFileAttr(b)
}

func (e *Engine) putAttr(p string, attr proto.FileAttr) error {
	return e.attrKV.Set([]byte(p), attr.Marshal())
}

// GetFileAttr returns the packed attribute record for path.
func (e *Engine) GetFileAttr(path string) (proto.FileAttr, error) {
	entry, ok := e.index.load(path)
	if !ok {
		return proto.FileAttr{}, proto.ENOENT.Err()
	}
	entry.entryMu.Lock()
	defer entry.entryMu.Unlock()
	return entry.attr, nil
}

// newAttr fills in the record for a freshly created path. Uid/Gid are
// the server process's own, the same stand-in every node in a cluster
// with no multi-user identity layer uses (spec.md has no concept of a
// request-time caller identity to stamp a file with instead).
func newAttr(kind proto.FileKind, perm uint32) proto.FileAttr {
	now := time.Now()
	nlink := uint32(1)
	if kind == proto.KindDirectory {
		nlink = 2
	}
	return proto.FileAttr{
		Atime: now, Mtime: now, Ctime: now, Crtime: now,
		Kind: kind, Perm: perm, Nlink: nlink, Blksize: uint32(proto.ChunkSize),
		Uid: uint32(unix.Getuid()), Gid: uint32(unix.Getgid()),
	}
}

// dirTypeChar returns the one-byte discriminator recorded in a dir-table
// key for the given kind: 'f' for a regular file, 'd' for a directory,
// 'l' for a symlink. Only these three DirEntry kinds are valid children.
func dirTypeChar(kind proto.FileKind) (byte, error) {
	switch kind {
	case proto.KindRegularFile:
		return 'f', nil
	case proto.KindDirectory:
		return 'd', nil
	case proto.KindSymlink:
		return 'l', nil
	default:
		return 0, proto.EINVAL.Err()
	}
}

func charToKind(c byte) proto.FileKind {
	switch c {
	case 'f':
		return proto.KindRegularFile
	case 'd':
		return proto.KindDirectory
	case 'l':
		return proto.KindSymlink
	default:
		return proto.KindUnknown
	}
}
