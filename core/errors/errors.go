// Package gkfserr implements the error taxonomy from spec §7: kinds, not
// concrete type hierarchies, since the RPC boundary must serialize an error
// kind and an errno-compatible code into the response rather than propagate
// a Go error value (or, in the original, a C++ exception) across the wire.
package gkfserr

import (
	"fmt"
	"syscall"
)

// Kind names one of the five error categories from spec §7.
type Kind uint8

const (
	// KindStorageIO is a local disk failure; propagated verbatim as out.err.
	KindStorageIO Kind = iota
	// KindNotFound is a missing chunk file on read.
	KindNotFound
	// KindTransport is an RPC delivery/timeout/bulk-init failure, surfaced
	// as EBUSY.
	KindTransport
	// KindProtocol is malformed RPC input, surfaced as EINVAL.
	KindProtocol
	// KindCapacity is a statfs-reported out-of-space/quota condition.
	KindCapacity
)

func (k Kind) String() string {
	switch k {
	case KindStorageIO:
		return "storage_io"
	case KindNotFound:
		return "not_found"
	case KindTransport:
		return "transport"
	case KindProtocol:
		return "protocol"
	case KindCapacity:
		return "capacity"
	default:
		return "unknown"
	}
}

// Error is the concrete error type used throughout the data path. Errno
// carries the errno-compatible code that ends up in an RPC output struct's
// err field; it is always non-zero for a non-nil *Error.
type Error struct {
	Kind  Kind
	Errno syscall.Errno
	Op    string
	Err   error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("gkfs: %s: %s: %v", e.Op, e.Kind, e.Err)
	}
	return fmt.Sprintf("gkfs: %s: %s (errno %d)", e.Op, e.Kind, e.Errno)
}

func (e *Error) Unwrap() error { return e.Err }

// Io builds a StorageError::Io(errno) as named in spec §7.
func Io(op string, errno syscall.Errno, cause error) *Error {
	return &Error{Kind: KindStorageIO, Errno: errno, Op: op, Err: cause}
}

// NotFound builds a StorageError::NotFound.
func NotFound(op string, cause error) *Error {
	return &Error{Kind: KindNotFound, Errno: syscall.ENOENT, Op: op, Err: cause}
}

// Transport builds a TransportError, always surfaced as EBUSY per spec §7.
func Transport(op string, cause error) *Error {
	return &Error{Kind: KindTransport, Errno: syscall.EBUSY, Op: op, Err: cause}
}

// Protocol builds a ProtocolError, always surfaced as EINVAL per spec §7.
func Protocol(op string, cause error) *Error {
	return &Error{Kind: KindProtocol, Errno: syscall.EINVAL, Op: op, Err: cause}
}

// Capacity builds a CapacityError carrying the underlying statfs errno.
func Capacity(op string, errno syscall.Errno, cause error) *Error {
	return &Error{Kind: KindCapacity, Errno: errno, Op: op, Err: cause}
}

// Errno extracts the effective errno for an RPC out.err field from any
// error value; nil maps to 0, a *Error maps to its Errno, anything else
// maps to EIO (the conservative default the source itself falls back to).
func Errno(err error) int32 {
	if err == nil {
		return 0
	}

	var gerr *Error
	if ok := As(err, &gerr); ok {
		return int32(gerr.Errno)
	}

	return int32(syscall.EIO)
}

// FromErrno reconstructs an error from an RPC reply's embedded errno field,
// the client-side mirror of Errno. A zero errno yields a nil error so
// callers can write `if err := gkfserr.FromErrno(reply.Err); err != nil`.
// The reconstructed error only carries the errno and kind guess; the rich
// *Error detail (Op, wrapped cause) lived on the daemon and does not cross
// the wire, matching spec §6's `{ err: i32, ... }` reply shape.
func FromErrno(errno int32) error {
	if errno == 0 {
		return nil
	}

	e := syscall.Errno(errno)
	kind := KindStorageIO
	switch e {
	case syscall.ENOENT:
		kind = KindNotFound
	case syscall.EBUSY:
		kind = KindTransport
	case syscall.EINVAL:
		kind = KindProtocol
	}

	return &Error{Kind: kind, Errno: e, Op: "rpc", Err: e}
}

// IsNotFound reports whether err is (or wraps) a StorageError::NotFound,
// the case callers like core/server's Truncate treat as a no-op instead of
// a failure (spec §4.2: truncating a file whose last chunk was never
// written is not an error).
func IsNotFound(err error) bool {
	var gerr *Error
	return As(err, &gerr) && gerr.Kind == KindNotFound
}

// As reports whether err, or any error reached by following its single
// Unwrap() chain, is a *Error, and if so stores it in target. It stands in
// for errors.As so callers of this package don't need a second import for
// the common case; errors that wrap several errors at once are not searched.
func As(err error, target **Error) bool {
	for err != nil {
		if e, ok := err.(*Error); ok {
			*target = e
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}
	return false
}
