// Package proto defines the wire format shared by sealfs clients, servers
// and the manager: request/response framing, operation codes, the
// fixed-layout FileAttr record, and the small per-operation meta-payload
// structs carried inside a frame.
package proto

// Op identifies the operation a request frame carries.
type Op uint32

// Operation codes, as enumerated in the spec. Values are part of the wire
// contract and must never be renumbered.
const (
	OpUnknown              Op = 0
	OpLookup               Op = 1
	OpCreateFile           Op = 2
	OpCreateDir            Op = 3
	OpGetFileAttr          Op = 4
	OpReadDir              Op = 5
	OpOpenFile             Op = 6
	OpReadFile             Op = 7
	OpWriteFile            Op = 8
	OpDeleteFile           Op = 9
	OpDeleteDir            Op = 10
	OpDirectoryAddEntry    Op = 11
	OpDirectoryDeleteEntry Op = 12
	OpSendHeart            Op = 13
	OpGetMetadata          Op = 14
	OpTruncateFile         Op = 15
	OpCheckDir             Op = 16
	OpCheckFile            Op = 17
	OpCreateDirNoParent    Op = 18
	OpCreateFileNoParent   Op = 19
	OpDeleteDirNoParent    Op = 20
	OpDeleteFileNoParent   Op = 21
	OpCreateVolume         Op = 22
	OpInitVolume           Op = 23
	OpListVolumes          Op = 24
	OpDeleteVolume         Op = 25
	OpCleanVolume          Op = 26
)

var opNames = map[Op]string{
	OpUnknown:              "Unknown",
	OpLookup:               "Lookup",
	OpCreateFile:           "CreateFile",
	OpCreateDir:            "CreateDir",
	OpGetFileAttr:          "GetFileAttr",
	OpReadDir:              "ReadDir",
	OpOpenFile:             "OpenFile",
	OpReadFile:             "ReadFile",
	OpWriteFile:            "WriteFile",
	OpDeleteFile:           "DeleteFile",
	OpDeleteDir:            "DeleteDir",
	OpDirectoryAddEntry:    "DirectoryAddEntry",
	OpDirectoryDeleteEntry: "DirectoryDeleteEntry",
	OpSendHeart:            "SendHeart",
	OpGetMetadata:          "GetMetadata",
	OpTruncateFile:         "TruncateFile",
	OpCheckDir:             "CheckDir",
	OpCheckFile:            "CheckFile",
	OpCreateDirNoParent:    "CreateDirNoParent",
	OpCreateFileNoParent:   "CreateFileNoParent",
	OpDeleteDirNoParent:    "DeleteDirNoParent",
	OpDeleteFileNoParent:   "DeleteFileNoParent",
	OpCreateVolume:         "CreateVolume",
	OpInitVolume:           "InitVolume",
	OpListVolumes:          "ListVolumes",
	OpDeleteVolume:         "DeleteVolume",
	OpCleanVolume:          "CleanVolume",
}

func (o Op) String() string {
	if n, ok := opNames[o]; ok {
		return n
	}
	return "Op(unknown)"
}

// ManagerOp identifies an operation sent to the manager rather than a
// storage server. These never travel over the same listener as the
// server op codes above, so they share a separate, smaller space.
type ManagerOp uint32

const (
	ManagerOpUnknown ManagerOp = iota
	ManagerOpGetClusterStatus
	ManagerOpGetHashRing
	ManagerOpGetNewHashRing
	ManagerOpAddNodes
	ManagerOpRemoveNodes
	ManagerOpUpdateServerStatus
)

var managerOpNames = map[ManagerOp]string{
	ManagerOpUnknown:            "Unknown",
	ManagerOpGetClusterStatus:   "GetClusterStatus",
	ManagerOpGetHashRing:        "GetHashRing",
	ManagerOpGetNewHashRing:     "GetNewHashRing",
	ManagerOpAddNodes:           "AddNodes",
	ManagerOpRemoveNodes:        "RemoveNodes",
	ManagerOpUpdateServerStatus: "UpdateServerStatus",
}

func (o ManagerOp) String() string {
	if n, ok := managerOpNames[o]; ok {
		return n
	}
	return "ManagerOp(unknown)"
}
