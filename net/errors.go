package net

import (
	"errors"
	"fmt"
	"syscall"

	"github.com/lcx/pokernet/protocol"
)

var (
	// ErrWouldBlock is the normal "call again" signal of a non-blocking operation.
	ErrWouldBlock = errors.New("operation would block")
	// ErrConnectionClosed is returned once the peer has closed its end.
	ErrConnectionClosed = errors.New("connection closed by peer")
)

// ErrorKind groups error codes by the phase that failed.
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindSetup
	KindResolve
	KindConnect
	KindProtocol
)

func (k ErrorKind) String() string {
	switch k {
	case KindSetup:
		return "setup"
	case KindResolve:
		return "resolve"
	case KindConnect:
		return "connect"
	case KindProtocol:
		return "protocol"
	}
	return "none"
}

// Error is a fatal connection error: a numeric code, the platform errno when one
// was reported, and optionally the underlying cause.
type Error struct {
	Code  protocol.ErrorCode
	Errno syscall.Errno
	Err   error
}

func newError(code protocol.ErrorCode, err error) *Error {
	e := &Error{Code: code, Err: err}
	errors.As(err, &e.Errno)
	return e
}

func (e *Error) Error() string {
	switch {
	case e.Errno != 0:
		return fmt.Sprintf("%s: %s (errno %d)", e.Code, e.Errno.Error(), int(e.Errno))
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code.String()
}

func (e *Error) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	if e.Errno != 0 {
		return e.Errno
	}
	return nil
}

// Kind classifies the code.
func (e *Error) Kind() ErrorKind {
	switch e.Code {
	case protocol.ErrNone:
		return KindNone
	case protocol.ErrSockServerAddrNotSet, protocol.ErrSockInvalidPort, protocol.ErrSockCreationFailed,
		protocol.ErrSockSetPortFailed, protocol.ErrSockInvalidAddrFamily:
		return KindSetup
	case protocol.ErrSockResolveFailed:
		return KindResolve
	case protocol.ErrSockConnectFailed, protocol.ErrSockSelectFailed, protocol.ErrSockConnReset,
		protocol.ErrSockSendFailed, protocol.ErrSockRecvFailed:
		return KindConnect
	}
	return KindProtocol
}

// CodeOf extracts the error code from err, or ErrNone if err carries none.
func CodeOf(err error) protocol.ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return protocol.ErrNone
}

// KindOf extracts the error kind from err.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind()
	}
	return KindNone
}
