package proto

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// The structs below are the op-specific meta payloads carried in a
// Request's or Response's Meta field (spec.md §6). Each has a fixed-size
// numeric prefix followed by an optional variable-length name, matching
// the same little-endian, no-padding convention as the frame header.

// CreateFileMeta is the meta payload for OpCreateFile / OpCreateFileNoParent.
type CreateFileMeta struct {
	Flags uint32
	Umask uint32
	Mode  uint32
	Name  string
}

func (m CreateFileMeta) Marshal() []byte {
	b := make([]byte, 12+len(m.Name))
	binary.LittleEndian.PutUint32(b[0:4], m.Flags)
	binary.LittleEndian.PutUint32(b[4:8], m.Umask)
	binary.LittleEndian.PutUint32(b[8:12], m.Mode)
	copy(b[12:], m.Name)
	return b
}

func UnmarshalCreateFileMeta(b []byte) (CreateFileMeta, error) {
	if len(b) < 12 {
		return CreateFileMeta{}, errors.New("proto: short CreateFileMeta")
	}
	return CreateFileMeta{
		Flags: binary.LittleEndian.Uint32(b[0:4]),
		Umask: binary.LittleEndian.Uint32(b[4:8]),
		Mode:  binary.LittleEndian.Uint32(b[8:12]),
		Name:  string(b[12:]),
	}, nil
}

// CreateDirMeta is the meta payload for OpCreateDir / OpCreateDirNoParent.
type CreateDirMeta struct {
	Mode uint32
	Name string
}

func (m CreateDirMeta) Marshal() []byte {
	b := make([]byte, 4+len(m.Name))
	binary.LittleEndian.PutUint32(b[0:4], m.Mode)
	copy(b[4:], m.Name)
	return b
}

func UnmarshalCreateDirMeta(b []byte) (CreateDirMeta, error) {
	if len(b) < 4 {
		return CreateDirMeta{}, errors.New("proto: short CreateDirMeta")
	}
	return CreateDirMeta{Mode: binary.LittleEndian.Uint32(b[0:4]), Name: string(b[4:])}, nil
}

// NameMeta is the meta payload for operations whose only argument besides
// the path is a single child name: OpDeleteFile, OpDeleteDir,
// OpDeleteFileNoParent, OpDeleteDirNoParent.
type NameMeta struct {
	Name string
}

func (m NameMeta) Marshal() []byte { return []byte(m.Name) }

func UnmarshalNameMeta(b []byte) (NameMeta, error) {
	return NameMeta{Name: string(b)}, nil
}

// OpenMeta is the meta payload for OpOpenFile.
type OpenMeta struct {
	Flags uint32
	Mode  uint32
}

func (m OpenMeta) Marshal() []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint32(b[0:4], m.Flags)
	binary.LittleEndian.PutUint32(b[4:8], m.Mode)
	return b
}

func UnmarshalOpenMeta(b []byte) (OpenMeta, error) {
	if len(b) < 8 {
		return OpenMeta{}, errors.New("proto: short OpenMeta")
	}
	return OpenMeta{Flags: binary.LittleEndian.Uint32(b[0:4]), Mode: binary.LittleEndian.Uint32(b[4:8])}, nil
}

// TruncateMeta is the meta payload for OpTruncateFile.
type TruncateMeta struct {
	Length uint64
}

func (m TruncateMeta) Marshal() []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b[0:8], m.Length)
	return b
}

func UnmarshalTruncateMeta(b []byte) (TruncateMeta, error) {
	if len(b) < 8 {
		return TruncateMeta{}, errors.New("proto: short TruncateMeta")
	}
	return TruncateMeta{Length: binary.LittleEndian.Uint64(b[0:8])}, nil
}

// ReadFileMeta is the meta payload for OpReadFile.
type ReadFileMeta struct {
	Offset uint64
	Size   uint32
}

func (m ReadFileMeta) Marshal() []byte {
	b := make([]byte, 12)
	binary.LittleEndian.PutUint64(b[0:8], m.Offset)
	binary.LittleEndian.PutUint32(b[8:12], m.Size)
	return b
}

func UnmarshalReadFileMeta(b []byte) (ReadFileMeta, error) {
	if len(b) < 12 {
		return ReadFileMeta{}, errors.New("proto: short ReadFileMeta")
	}
	return ReadFileMeta{
		Offset: binary.LittleEndian.Uint64(b[0:8]),
		Size:   binary.LittleEndian.Uint32(b[8:12]),
	}, nil
}

// WriteFileMeta is the meta payload for OpWriteFile; the bytes to write
// travel in the Request's Data field, not here.
type WriteFileMeta struct {
	Offset uint64
}

func (m WriteFileMeta) Marshal() []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b[0:8], m.Offset)
	return b
}

func UnmarshalWriteFileMeta(b []byte) (WriteFileMeta, error) {
	if len(b) < 8 {
		return WriteFileMeta{}, errors.New("proto: short WriteFileMeta")
	}
	return WriteFileMeta{Offset: binary.LittleEndian.Uint64(b[0:8])}, nil
}

// ReadDirMeta is the meta payload for OpReadDir: Offset is the number of
// entries to skip (in dir_db iteration order) before emitting, and Size
// bounds how many response bytes the server fills before stopping.
type ReadDirMeta struct {
	Offset uint64
	Size   uint32
}

func (m ReadDirMeta) Marshal() []byte {
	b := make([]byte, 12)
	binary.LittleEndian.PutUint64(b[0:8], m.Offset)
	binary.LittleEndian.PutUint32(b[8:12], m.Size)
	return b
}

func UnmarshalReadDirMeta(b []byte) (ReadDirMeta, error) {
	if len(b) < 12 {
		return ReadDirMeta{}, errors.New("proto: short ReadDirMeta")
	}
	return ReadDirMeta{
		Offset: binary.LittleEndian.Uint64(b[0:8]),
		Size:   binary.LittleEndian.Uint32(b[8:12]),
	}, nil
}

// DirectoryEntry is a single entry as carried in an OpReadDir response's
// Data field (a sequence of these, spec.md §4.6) or as the meta payload
// of OpDirectoryAddEntry/OpDirectoryDeleteEntry. On the wire it is
// [file_type u8 | name_len u16 LE | name bytes].
type DirectoryEntry struct {
	FileType FileKind
	FileName string
}

func (e DirectoryEntry) Marshal() []byte {
	b := make([]byte, 3+len(e.FileName))
	b[0] = byte(e.FileType)
	binary.LittleEndian.PutUint16(b[1:3], uint16(len(e.FileName)))
	copy(b[3:], e.FileName)
	return b
}

// UnmarshalDirectoryEntry decodes a single entry from the head of b and
// returns it along with the remainder of b after the entry.
func UnmarshalDirectoryEntry(b []byte) (DirectoryEntry, []byte, error) {
	if len(b) < 3 {
		return DirectoryEntry{}, nil, errors.New("proto: short DirectoryEntry")
	}
	nameLen := int(binary.LittleEndian.Uint16(b[1:3]))
	if len(b) < 3+nameLen {
		return DirectoryEntry{}, nil, errors.New("proto: truncated DirectoryEntry name")
	}
	e := DirectoryEntry{FileType: FileKind(b[0]), FileName: string(b[3 : 3+nameLen])}
	return e, b[3+nameLen:], nil
}

// MarshalDirEntries encodes a slice of directory entries into the
// sequence used as the Data payload of an OpReadDir response.
func MarshalDirEntries(entries []DirectoryEntry) []byte {
	var out []byte
	for _, e := range entries {
		out = append(out, e.Marshal()...)
	}
	return out
}

// UnmarshalDirEntries decodes the sequence produced by MarshalDirEntries.
func UnmarshalDirEntries(b []byte) ([]DirectoryEntry, error) {
	var entries []DirectoryEntry
	for len(b) > 0 {
		e, rest, err := UnmarshalDirectoryEntry(b)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
		b = rest
	}
	return entries, nil
}

// CheckMeta is the meta payload for OpCheckFile / OpCheckDir: the server
// overwrites its local attribute record for the request's path with
// Attr unconditionally. This is the rebalance recipient's commit point
// once a directory's or file's data has already arrived (spec.md §4.5).
type CheckMeta struct {
	Attr FileAttr
}

func (m CheckMeta) Marshal() []byte { return m.Attr.Marshal() }

func UnmarshalCheckMeta(b []byte) (CheckMeta, error) {
	a, err := UnmarshalFileAttr(b)
	if err != nil {
		return CheckMeta{}, err
	}
	return CheckMeta{Attr: a}, nil
}

// VolumeMeta is the meta payload for OpCreateVolume / OpInitVolume /
// OpDeleteVolume / OpCleanVolume: the path field carries the volume name.
type VolumeMeta struct {
	Capacity uint64
}

func (m VolumeMeta) Marshal() []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b[0:8], m.Capacity)
	return b
}

func UnmarshalVolumeMeta(b []byte) (VolumeMeta, error) {
	if len(b) < 8 {
		return VolumeMeta{}, nil
	}
	return VolumeMeta{Capacity: binary.LittleEndian.Uint64(b[0:8])}, nil
}

// VolumeInfo is one volume's listing record as carried in an
// OpListVolumes response's Data field (a sequence of these).
type VolumeInfo struct {
	Name      string
	SizeLimit uint64
	UsedSize  uint64
}

func (v VolumeInfo) Marshal() []byte {
	b := make([]byte, 18+len(v.Name))
	binary.LittleEndian.PutUint64(b[0:8], v.SizeLimit)
	binary.LittleEndian.PutUint64(b[8:16], v.UsedSize)
	binary.LittleEndian.PutUint16(b[16:18], uint16(len(v.Name)))
	copy(b[18:], v.Name)
	return b
}

// UnmarshalVolumeInfo decodes a single record from the head of b and
// returns it along with the remainder of b after the record.
func UnmarshalVolumeInfo(b []byte) (VolumeInfo, []byte, error) {
	if len(b) < 18 {
		return VolumeInfo{}, nil, errors.New("proto: short VolumeInfo")
	}
	nameLen := int(binary.LittleEndian.Uint16(b[16:18]))
	if len(b) < 18+nameLen {
		return VolumeInfo{}, nil, errors.New("proto: truncated VolumeInfo name")
	}
	v := VolumeInfo{
		SizeLimit: binary.LittleEndian.Uint64(b[0:8]),
		UsedSize:  binary.LittleEndian.Uint64(b[8:16]),
		Name:      string(b[18 : 18+nameLen]),
	}
	return v, b[18+nameLen:], nil
}

// MarshalVolumeList encodes a slice of volume records into the sequence
// used as the Data payload of an OpListVolumes response.
func MarshalVolumeList(vols []VolumeInfo) []byte {
	var out []byte
	for _, v := range vols {
		out = append(out, v.Marshal()...)
	}
	return out
}

// UnmarshalVolumeList decodes the sequence produced by MarshalVolumeList.
func UnmarshalVolumeList(b []byte) ([]VolumeInfo, error) {
	var out []VolumeInfo
	for len(b) > 0 {
		v, rest, err := UnmarshalVolumeInfo(b)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		b = rest
	}
	return out, nil
}

// ServerMetadataMeta is the Data payload of an OpGetMetadata response:
// this server's aggregate storage usage, as returned to
// sealclient.Client.Stats (SPEC_FULL.md §13 supplement).
type ServerMetadataMeta struct {
	FileCount uint64
	UsedBytes uint64
}

func (m ServerMetadataMeta) Marshal() []byte {
	b := make([]byte, 16)
	binary.LittleEndian.PutUint64(b[0:8], m.FileCount)
	binary.LittleEndian.PutUint64(b[8:16], m.UsedBytes)
	return b
}

func UnmarshalServerMetadataMeta(b []byte) (ServerMetadataMeta, error) {
	if len(b) < 16 {
		return ServerMetadataMeta{}, errors.New("proto: short ServerMetadataMeta")
	}
	return ServerMetadataMeta{
		FileCount: binary.LittleEndian.Uint64(b[0:8]),
		UsedBytes: binary.LittleEndian.Uint64(b[8:16]),
	}, nil
}

// NodeSpec is one server's placement entry, as carried in the Data field
// of a GetHashRing/GetNewHashRing response (a sequence of these) or of
// an AddNodes/RemoveNodes request to the manager.
type NodeSpec struct {
	Address string
	Weight  uint32
}

func (n NodeSpec) Marshal() []byte {
	b := make([]byte, 6+len(n.Address))
	binary.LittleEndian.PutUint32(b[0:4], n.Weight)
	binary.LittleEndian.PutUint16(b[4:6], uint16(len(n.Address)))
	copy(b[6:], n.Address)
	return b
}

// UnmarshalNodeSpec decodes a single record from the head of b and
// returns it along with the remainder of b after the record.
func UnmarshalNodeSpec(b []byte) (NodeSpec, []byte, error) {
	if len(b) < 6 {
		return NodeSpec{}, nil, errors.New("proto: short NodeSpec")
	}
	addrLen := int(binary.LittleEndian.Uint16(b[4:6]))
	if len(b) < 6+addrLen {
		return NodeSpec{}, nil, errors.New("proto: truncated NodeSpec address")
	}
	n := NodeSpec{
		Weight:  binary.LittleEndian.Uint32(b[0:4]),
		Address: string(b[6 : 6+addrLen]),
	}
	return n, b[6+addrLen:], nil
}

// MarshalNodeList encodes a slice of node records, used both as the Data
// payload of a GetHashRing/GetNewHashRing response and as the request
// body of AddNodes/RemoveNodes.
func MarshalNodeList(nodes []NodeSpec) []byte {
	var out []byte
	for _, n := range nodes {
		out = append(out, n.Marshal()...)
	}
	return out
}

// UnmarshalNodeList decodes the sequence produced by MarshalNodeList.
func UnmarshalNodeList(b []byte) ([]NodeSpec, error) {
	var out []NodeSpec
	for len(b) > 0 {
		n, rest, err := UnmarshalNodeSpec(b)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
		b = rest
	}
	return out, nil
}
