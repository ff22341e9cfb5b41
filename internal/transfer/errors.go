package transfer

import (
	"errors"
	"fmt"
)

type ErrorKind int

const (
	ErrFileNotFound ErrorKind = iota + 1
	ErrHandshakeFailed
	ErrTransferInterrupted
	ErrInvalidFilename
	ErrConnectionClosedEarly
	ErrChecksumMismatch
	ErrDiskIO
)

func (k ErrorKind) String() string {
	switch k {
	case ErrFileNotFound:
		return "FILE_NOT_FOUND"
	case ErrHandshakeFailed:
		return "HANDSHAKE_FAILED"
	case ErrTransferInterrupted:
		return "TRANSFER_INTERRUPTED"
	case ErrInvalidFilename:
		return "INVALID_FILENAME"
	case ErrConnectionClosedEarly:
		return "CONNECTION_CLOSED_EARLY"
	case ErrChecksumMismatch:
		return "CHECKSUM_MISMATCH"
	case ErrDiskIO:
		return "DISK_IO"
	default:
		return "UNKNOWN"
	}
}

// Category groups kinds by how a failure affects the connection.
type Category int

const (
	CategoryUnknown Category = iota
	// CategoryConnection: the transfer connection is no longer usable.
	CategoryConnection
	// CategoryProtocol: the single operation failed, the stream is still aligned.
	CategoryProtocol
	// CategoryIO: local filesystem failure.
	CategoryIO
)

func (c Category) String() string {
	switch c {
	case CategoryConnection:
		return "ConnectionError"
	case CategoryProtocol:
		return "ProtocolError"
	case CategoryIO:
		return "IOError"
	default:
		return "Unknown"
	}
}

func (k ErrorKind) Category() Category {
	switch k {
	case ErrTransferInterrupted, ErrConnectionClosedEarly:
		return CategoryConnection
	case ErrHandshakeFailed, ErrInvalidFilename, ErrChecksumMismatch:
		return CategoryProtocol
	case ErrFileNotFound, ErrDiskIO:
		return CategoryIO
	default:
		return CategoryUnknown
	}
}

// Error is returned by every failed Send or Receive.
type Error struct {
	Kind ErrorKind
	// Name is the sanitized file name when it is known.
	Name string
	Err  error
}

func (e *Error) Error() string {
	var msg string
	switch e.Kind {
	case ErrFileNotFound:
		msg = fmt.Sprintf("file not found: %s", e.Name)
	case ErrHandshakeFailed:
		msg = "connection handshake failed"
	case ErrTransferInterrupted:
		msg = "connection lost during transfer"
	case ErrInvalidFilename:
		msg = fmt.Sprintf("invalid filename %q", e.Name)
	case ErrConnectionClosedEarly:
		msg = "connection closed unexpectedly"
	case ErrChecksumMismatch:
		msg = fmt.Sprintf("integrity check failed for %s", e.Name)
	case ErrDiskIO:
		msg = "disk error"
		if e.Name != "" {
			msg = fmt.Sprintf("disk error on %s", e.Name)
		}
	default:
		msg = "transfer failed"
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so callers can write
// errors.Is(err, &transfer.Error{Kind: transfer.ErrDiskIO}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of a transfer error, or 0 for anything else.
func KindOf(err error) ErrorKind {
	var terr *Error
	if errors.As(err, &terr) {
		return terr.Kind
	}
	return 0
}

var errDigest = errors.New("sha-256 digest does not match")

func sizeMismatch(got, want uint64) error {
	return fmt.Errorf("received %d bytes, header declared %d", got, want)
}

func newError(kind ErrorKind, name string, err error) *Error {
	return &Error{Kind: kind, Name: name, Err: err}
}
