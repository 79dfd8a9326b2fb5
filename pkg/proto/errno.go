package proto

import "fmt"

// Errno is the status code carried in a response frame: 0 for success, or
// a POSIX errno-like value otherwise. Numeric values are fixed at the
// Linux errno numbers so that a sealfs server built on any OS puts the
// same bytes on the wire.
type Errno int32

const (
	Success    Errno = 0
	EPERM      Errno = 1
	ENOENT     Errno = 2
	EIO        Errno = 5
	EBUSY      Errno = 16
	EINVAL     Errno = 22
	EEXIST     Errno = 17
	ENOTDIR    Errno = 20
	EISDIR     Errno = 21
	ENOSPC     Errno = 28
	ENOSYS     Errno = 38
	ENOTEMPTY  Errno = 39
	ETIMEDOUT  Errno = 110
	// EInvalidClusterStatus is a private code used internally when a node
	// observes a ClusterStatus value it does not recognize (e.g. a future
	// phase added by a newer manager). It is never sent on the wire: per
	// spec.md §7 it is logged and mapped to EIO before the response frame
	// is written.
	EInvalidClusterStatus Errno = -1
)

var errnoText = map[Errno]string{
	Success:               "success",
	EPERM:                 "operation not permitted",
	ENOENT:                "no such file or directory",
	EIO:                   "i/o error",
	EBUSY:                 "device or resource busy",
	EINVAL:                "invalid argument",
	EEXIST:                "file exists",
	ENOTDIR:               "not a directory",
	EISDIR:                "is a directory",
	ENOSPC:                "no space left on device",
	ENOSYS:                "function not implemented",
	ENOTEMPTY:             "directory not empty",
	ETIMEDOUT:             "connection timed out",
	EInvalidClusterStatus: "invalid cluster status",
}

func (e Errno) String() string {
	if s, ok := errnoText[e]; ok {
		return s
	}
	return fmt.Sprintf("errno %d", int32(e))
}

// Err converts a non-zero Errno into a Go error. Success converts to nil.
func (e Errno) Err() error {
	if e == Success {
		return nil
	}
	// Never let the private sentinel leak to a caller as a distinct wire
	// value; collapse it to EIO the way the server does before replying.
	if e == EInvalidClusterStatus {
		return wireError{EIO}
	}
	return wireError{e}
}

type wireError struct {
	errno Errno
}

func (e wireError) Error() string { return e.errno.String() }

// FromError extracts the Errno carried by an error produced by Err, or EIO if
// err is a non-nil error of another kind, or Success if err is nil.
func FromError(err error) Errno {
	if err == nil {
		return Success
	}
	if we, ok := err.(wireError); ok {
		return we.errno
	}
	return EIO
}
