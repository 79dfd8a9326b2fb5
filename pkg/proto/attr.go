package proto

import (
	"encoding/binary"
	"time"

	"github.com/pkg/errors"
)

// FileKind is the POSIX file type carried in a FileAttr.
type FileKind uint8

const (
	KindUnknown     FileKind = 0
	KindNamedPipe   FileKind = 1
	KindCharDevice  FileKind = 2
	KindBlockDevice FileKind = 3
	KindDirectory   FileKind = 4
	KindRegularFile FileKind = 8
	KindSymlink     FileKind = 10
	KindSocket      FileKind = 12
)

// AttrSize is the fixed, bit-compatible on-wire size of a FileAttr record.
const AttrSize = 8*5 /* size, blocks, atime, mtime, ctime */ + 8 /* crtime */ +
	1 /* kind */ + 4 /* perm */ + 4 /* nlink */ + 4 /* uid */ + 4 /* gid */ +
	8 /* rdev */ + 4 /* flags */ + 4 /* blksize */

// FileAttr is the fixed-layout POSIX attribute record shared by every
// server and client, serialized bit-compatibly on the wire (spec.md §3).
type FileAttr struct {
	Size    uint64
	Blocks  uint64
	Atime   time.Time
	Mtime   time.Time
	Ctime   time.Time
	Crtime  time.Time
	Kind    FileKind
	Perm    uint32
	Nlink   uint32
	Uid     uint32
	Gid     uint32
	Rdev    uint64
	Flags   uint32
	Blksize uint32
}

func putTime(b []byte, t time.Time) {
	binary.LittleEndian.PutUint64(b, uint64(t.UnixNano()))
}

func getTime(b []byte) time.Time {
	return time.Unix(0, int64(binary.LittleEndian.Uint64(b)))
}

// Marshal encodes the attribute into a newly allocated AttrSize-byte slice.
func (a FileAttr) Marshal() []byte {
	b := make([]byte, AttrSize)
	a.MarshalTo(b)
	return b
}

// MarshalTo encodes the attribute into b, which must be at least AttrSize
// bytes long.
func (a FileAttr) MarshalTo(b []byte) {
	binary.LittleEndian.PutUint64(b[0:8], a.Size)
	binary.LittleEndian.PutUint64(b[8:16], a.Blocks)
	putTime(b[16:24], a.Atime)
	putTime(b[24:32], a.Mtime)
	putTime(b[32:40], a.Ctime)
	putTime(b[40:48], a.Crtime)
	b[48] = byte(a.Kind)
	binary.LittleEndian.PutUint32(b[49:53], a.Perm)
	binary.LittleEndian.PutUint32(b[53:57], a.Nlink)
	binary.LittleEndian.PutUint32(b[57:61], a.Uid)
	binary.LittleEndian.PutUint32(b[61:65], a.Gid)
	binary.LittleEndian.PutUint64(b[65:73], a.Rdev)
	binary.LittleEndian.PutUint32(b[73:77], a.Flags)
	binary.LittleEndian.PutUint32(b[77:81], a.Blksize)
}

// UnmarshalFileAttr decodes a FileAttr from an AttrSize-byte slice.
func UnmarshalFileAttr(b []byte) (FileAttr, error) {
	if len(b) < AttrSize {
		return FileAttr{}, errors.Errorf("proto: short FileAttr: got %d bytes, want %d", len(b), AttrSize)
	}
	var a FileAttr
	a.Size = binary.LittleEndian.Uint64(b[0:8])
	a.Blocks = binary.LittleEndian.Uint64(b[8:16])
	a.Atime = getTime(b[16:24])
	a.Mtime = getTime(b[24:32])
	a.Ctime = getTime(b[32:40])
	a.Crtime = getTime(b[40:48])
	a.Kind = FileKind(b[48])
	a.Perm = binary.LittleEndian.Uint32(b[49:53])
	a.Nlink = binary.LittleEndian.Uint32(b[53:57])
	a.Uid = binary.LittleEndian.Uint32(b[57:61])
	a.Gid = binary.LittleEndian.Uint32(b[61:65])
	a.Rdev = binary.LittleEndian.Uint64(b[65:73])
	a.Flags = binary.LittleEndian.Uint32(b[73:77])
	a.Blksize = binary.LittleEndian.Uint32(b[77:81])
	return a, nil
}

// IsDir reports whether the attribute describes a directory.
func (a FileAttr) IsDir() bool { return a.Kind == KindDirectory }
