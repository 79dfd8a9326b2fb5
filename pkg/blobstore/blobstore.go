// Package blobstore stores each file's bytes as one opaque blob on
// local disk, named by a hash of the file's sealfs path rather than its
// content: two files with identical bytes still get two blobs, because
// sealfs identifies content by path, not by a content hash (spec.md's
// data model keys the file-attr and file-content tables by Path).
//
// The sharded two-level directory layout and path-building convention
// are carried over from a content-addressed blob store; only the key fed
// into the hash changes.
package blobstore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
)

// Store is a directory tree of opaque per-file blobs on local disk.
type Store struct {
	root string

	// dirLockMu is held for writing while removing an (now-empty)
	// shard directory after a Delete, and for reading while opening a
	// blob for write, so a Delete never races a Create into removing a
	// directory the Create just populated.
	dirLockMu sync.RWMutex
}

// Open returns a Store rooted at dir, which must already exist.
func Open(dir string) (*Store, error) {
	fi, err := os.Stat(dir)
	if err != nil {
		return nil, errors.Wrapf(err, "blobstore: root %q", dir)
	}
	if !fi.IsDir() {
		return nil, errors.Errorf("blobstore: root %q is not a directory", dir)
	}
	return &Store{root: dir}, nil
}

// blobName derives the on-disk name for path: a 16-hex-digit xxhash
// digest of the path, so the name is fixed-length regardless of how deep
// path is.
func blobName(path string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(path))
}

// shardDir returns the two-level sharded directory a path's blob lives
// under, spreading files across subdirectories so no single directory
// accumulates millions of entries.
func (s *Store) shardDir(name string) string {
	if len(name) < 4 {
		name = name + "0000"
	}
	return filepath.Join(s.root, name[0:2], name[2:4])
}

func (s *Store) blobPath(path string) string {
	name := blobName(path)
	return filepath.Join(s.shardDir(name), name+".blob")
}

// Create creates a new, empty blob for path with the given permission
// bits. It returns EEXIST-shaped behavior by way of *os.PathError when
// the blob already exists; callers translate that to proto.EEXIST.
func (s *Store) Create(path string, mode os.FileMode) error {
	blobPath := s.blobPath(path)
	s.dirLockMu.RLock()
	defer s.dirLockMu.RUnlock()
	if err := os.MkdirAll(filepath.Dir(blobPath), 0755); err != nil {
		return errors.Wrapf(err, "blobstore: mkdir for %s", path)
	}
	f, err := os.OpenFile(blobPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, mode)
	if err != nil {
		return err
	}
	return f.Close()
}

// Open opens path's blob for positional reads and writes.
func (s *Store) Open(path string) (*os.File, error) {
	return os.OpenFile(s.blobPath(path), os.O_RDWR, 0644)
}

// ReadAt reads up to len(buf) bytes from path's blob at offset, returning
// the number of bytes read. Per spec.md §4.6 a short read at EOF is not
// an error: io.EOF is always swallowed, so a read starting at or past EOF
// returns 0 and a nil error.
func (s *Store) ReadAt(path string, offset int64, buf []byte) (int, error) {
	f, err := s.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	n, err := f.ReadAt(buf, offset)
	if err == io.EOF {
		err = nil
	}
	return n, err
}

// WriteAt writes data to path's blob at offset, returning the resulting
// file size.
func (s *Store) WriteAt(path string, offset int64, data []byte) (int64, error) {
	f, err := s.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()
	if _, err := f.WriteAt(data, offset); err != nil {
		return 0, err
	}
	fi, err := f.Stat()
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// Truncate resizes path's blob to length.
func (s *Store) Truncate(path string, length int64) error {
	return os.Truncate(s.blobPath(path), length)
}

// Size returns the current size of path's blob.
func (s *Store) Size(path string) (int64, error) {
	fi, err := os.Stat(s.blobPath(path))
	if err != nil {
		return 0, err
	}
	return fi.Size(), nil
}

// Delete removes path's blob and, opportunistically, any now-empty shard
// directories above it.
func (s *Store) Delete(path string) error {
	blobPath := s.blobPath(path)
	s.dirLockMu.Lock()
	defer s.dirLockMu.Unlock()
	if err := os.Remove(blobPath); err != nil {
		return err
	}
	dir := filepath.Dir(blobPath)
	os.Remove(dir)               // best-effort; fails silently if non-empty
	os.Remove(filepath.Dir(dir)) // likewise for the first-level shard
	return nil
}

// Exists reports whether path has a blob on disk.
func (s *Store) Exists(path string) bool {
	_, err := os.Stat(s.blobPath(path))
	return err == nil
}

// Name returns the on-disk blob name for path: the same key Fsck's
// content table maps back to a path to find blobs with no surviving
// owner.
func (s *Store) Name(path string) string {
	return blobName(path)
}

// DeleteDisk removes the blob file at diskPath directly, for a caller
// that found it by Walk rather than by recomputing blobPath from a
// sealfs path.
func (s *Store) DeleteDisk(diskPath string) error {
	s.dirLockMu.Lock()
	defer s.dirLockMu.Unlock()
	if err := os.Remove(diskPath); err != nil {
		return err
	}
	dir := filepath.Dir(diskPath)
	os.Remove(dir)               // best-effort; fails silently if non-empty
	os.Remove(filepath.Dir(dir)) // likewise for the first-level shard
	return nil
}

// Walk calls fn once per blob file found under the store root, passing
// its on-disk path. It is used by Fsck to find blobs with no surviving
// attribute entry.
func (s *Store) Walk(fn func(diskPath string) error) error {
	return filepath.Walk(s.root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			return nil
		}
		return fn(p)
	})
}
