package proto

import "golang.org/x/sys/unix"

// Open-flag bits carried in CreateFileMeta.Flags and OpenMeta.Flags.
// These are the real Linux values (unix.O_*), not sealfs-private
// numbering, since the wire format is meant to carry flags straight
// through from a FUSE or libc caller without translation.
const (
	OCreat  = unix.O_CREAT
	OExcl   = unix.O_EXCL
	OTrunc  = unix.O_TRUNC
	ORDOnly = unix.O_RDONLY
	OWROnly = unix.O_WRONLY
	ORDWR   = unix.O_RDWR
)
