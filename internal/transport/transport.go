// Package transport establishes the reliable stream connections a peer
// session runs on. The responder performs a single-shot rendezvous: it
// listens, accepts exactly one peer and stops listening. The initiator dials
// with a fixed number of attempts separated by a constant delay.
package transport

import (
	"errors"
	"fmt"
)

// ErrorKind classifies connection-establishment failures.
type ErrorKind uint8

const (
	ErrPortInUse ErrorKind = iota + 1
	ErrBindFailed
	ErrAcceptTimeout
	ErrAcceptFailed
	ErrConnectFailed
)

func (k ErrorKind) String() string {
	switch k {
	case ErrPortInUse:
		return "PORT_IN_USE"
	case ErrBindFailed:
		return "BIND_FAILED"
	case ErrAcceptTimeout:
		return "ACCEPT_TIMEOUT"
	case ErrAcceptFailed:
		return "ACCEPT_FAILED"
	case ErrConnectFailed:
		return "CONNECT_FAILED"
	default:
		return "UNKNOWN"
	}
}

// ConnectionError reports a bind, accept or connect failure.
type ConnectionError struct {
	Kind ErrorKind
	// Addr is the local port or remote address involved.
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	switch e.Kind {
	case ErrPortInUse:
		return fmt.Sprintf("port %s is already in use", e.Addr)
	case ErrAcceptTimeout:
		return fmt.Sprintf("connection timed out waiting on port %s", e.Addr)
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Addr)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Is matches another ConnectionError by kind, so callers can write
// errors.Is(err, &ConnectionError{Kind: ErrAcceptTimeout}).
func (e *ConnectionError) Is(target error) bool {
	var t *ConnectionError
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// KindOf returns the kind of a ConnectionError in err's chain, or 0.
func KindOf(err error) ErrorKind {
	var ce *ConnectionError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return 0
}
