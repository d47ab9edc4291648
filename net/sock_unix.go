//go:build unix

package net

import (
	"errors"
	"net/netip"
	"time"

	"golang.org/x/sys/unix"

	"github.com/lcx/pokernet/protocol"
)

func isWouldBlock(err error) bool {
	return errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EWOULDBLOCK) ||
		errors.Is(err, unix.EINPROGRESS) || errors.Is(err, unix.EALREADY) || errors.Is(err, unix.EINTR)
}

func isPeerGone(err error) bool {
	return errors.Is(err, unix.ECONNRESET) || errors.Is(err, unix.EPIPE) || errors.Is(err, unix.ENOTCONN)
}

func domainOf(family AddrFamily) int {
	if family == FamilyIPv6 {
		return unix.AF_INET6
	}
	return unix.AF_INET
}

func sockaddrOf(ap netip.AddrPort) unix.Sockaddr {
	a := ap.Addr().Unmap()
	if a.Is4() {
		return &unix.SockaddrInet4{Port: int(ap.Port()), Addr: a.As4()}
	}
	return &unix.SockaddrInet6{Port: int(ap.Port()), Addr: a.As16()}
}

func addrPortOf(sa unix.Sockaddr) netip.AddrPort {
	switch sa := sa.(type) {
	case *unix.SockaddrInet4:
		return netip.AddrPortFrom(netip.AddrFrom4(sa.Addr), uint16(sa.Port))
	case *unix.SockaddrInet6:
		return netip.AddrPortFrom(netip.AddrFrom16(sa.Addr), uint16(sa.Port))
	}
	return netip.AddrPort{}
}

func prepare(fd int) error {
	unix.CloseOnExec(fd)
	return unix.SetNonblock(fd, true)
}

// NewSocket creates a non-blocking TCP socket of the given family.
func NewSocket(family AddrFamily) (Socket, error) {
	fd, err := unix.Socket(domainOf(family), unix.SOCK_STREAM, unix.IPPROTO_TCP)
	if err != nil {
		return InvalidSocket, newError(protocol.ErrSockCreationFailed, err)
	}
	if err := prepare(fd); err != nil {
		_ = unix.Close(fd)
		return InvalidSocket, newError(protocol.ErrSockCreationFailed, err)
	}
	return Socket(fd), nil
}

// Connect starts a non-blocking connect. ErrWouldBlock means the handshake is in
// progress and completion must be checked with PollWritable and ConnectResult.
func Connect(s Socket, ap netip.AddrPort) error {
	if ap.Port() == 0 {
		return newError(protocol.ErrSockInvalidPort, errors.New("port is zero"))
	}
	err := unix.Connect(int(s), sockaddrOf(ap))
	switch {
	case err == nil, errors.Is(err, unix.EISCONN):
		return nil
	case isWouldBlock(err):
		return ErrWouldBlock
	case errors.Is(err, unix.EAFNOSUPPORT):
		return newError(protocol.ErrSockInvalidAddrFamily, err)
	}
	return newError(protocol.ErrSockConnectFailed, err)
}

// ConnectResult reads SO_ERROR after a pending connect became writable.
func ConnectResult(s Socket) error {
	v, err := unix.GetsockoptInt(int(s), unix.SOL_SOCKET, unix.SO_ERROR)
	if err != nil {
		return newError(protocol.ErrSockConnectFailed, err)
	}
	if v != 0 {
		return newError(protocol.ErrSockConnectFailed, unix.Errno(v))
	}
	return nil
}

func pollTimeout(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	ms := int(d / time.Millisecond)
	if ms == 0 {
		ms = 1
	}
	return ms
}

func poll(fds []unix.PollFd, timeout time.Duration) (int, error) {
	n, err := unix.Poll(fds, pollTimeout(timeout))
	if errors.Is(err, unix.EINTR) {
		return 0, nil
	}
	if err != nil {
		return 0, newError(protocol.ErrSockSelectFailed, err)
	}
	return n, nil
}

// PollWritable waits up to timeout for s to become writable or report an error.
func PollWritable(s Socket, timeout time.Duration) (bool, error) {
	fds := []unix.PollFd{{Fd: int32(s), Events: unix.POLLOUT}}
	n, err := poll(fds, timeout)
	if err != nil || n == 0 {
		return false, err
	}
	return fds[0].Revents&(unix.POLLOUT|unix.POLLERR|unix.POLLHUP) != 0, nil
}

// PollReadable waits up to timeout for s to become readable, closed or failed.
func PollReadable(s Socket, timeout time.Duration) (bool, error) {
	fds := []unix.PollFd{{Fd: int32(s), Events: unix.POLLIN}}
	n, err := poll(fds, timeout)
	if err != nil || n == 0 {
		return false, err
	}
	return fds[0].Revents&(unix.POLLIN|unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0, nil
}

// PollRead waits up to timeout for any of socks to become readable and returns
// the ready ones in input order.
func PollRead(socks []Socket, timeout time.Duration) ([]Socket, error) {
	if len(socks) == 0 {
		if timeout > 0 {
			time.Sleep(timeout)
		}
		return nil, nil
	}
	fds := make([]unix.PollFd, len(socks))
	for i, s := range socks {
		fds[i] = unix.PollFd{Fd: int32(s), Events: unix.POLLIN}
	}
	n, err := poll(fds, timeout)
	if err != nil || n == 0 {
		return nil, err
	}
	ready := make([]Socket, 0, n)
	for i := range fds {
		if fds[i].Revents&(unix.POLLIN|unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
			ready = append(ready, socks[i])
		}
	}
	return ready, nil
}

// Read reads what is available without blocking.
func Read(s Socket, buf []byte) (int, error) {
	n, err := unix.Read(int(s), buf)
	switch {
	case err == nil && n == 0 && len(buf) > 0:
		return 0, ErrConnectionClosed
	case err == nil:
		return n, nil
	case isWouldBlock(err):
		return 0, ErrWouldBlock
	case isPeerGone(err):
		return 0, ErrConnectionClosed
	}
	return 0, newError(protocol.ErrSockRecvFailed, err)
}

// Write writes as much of b as the socket accepts without blocking.
func Write(s Socket, b []byte) (int, error) {
	n, err := unix.Write(int(s), b)
	if n < 0 {
		n = 0
	}
	switch {
	case err == nil:
		return n, nil
	case isWouldBlock(err):
		return n, ErrWouldBlock
	case isPeerGone(err):
		return n, ErrConnectionClosed
	}
	return n, newError(protocol.ErrSockSendFailed, err)
}

// Close releases the descriptor.
func Close(s Socket) error {
	if !s.Valid() {
		return nil
	}
	return unix.Close(int(s))
}

// Listen binds a non-blocking listening socket on ap.
func Listen(ap netip.AddrPort, backlog int) (Socket, error) {
	family := FamilyIPv4
	if !ap.Addr().Unmap().Is4() {
		family = FamilyIPv6
	}
	s, err := NewSocket(family)
	if err != nil {
		return InvalidSocket, err
	}
	if err := unix.SetsockoptInt(int(s), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		_ = Close(s)
		return InvalidSocket, newError(protocol.ErrSockCreationFailed, err)
	}
	if err := unix.Bind(int(s), sockaddrOf(ap)); err != nil {
		_ = Close(s)
		return InvalidSocket, newError(protocol.ErrSockSetPortFailed, err)
	}
	if backlog <= 0 {
		backlog = unix.SOMAXCONN
	}
	if err := unix.Listen(int(s), backlog); err != nil {
		_ = Close(s)
		return InvalidSocket, newError(protocol.ErrSockSetPortFailed, err)
	}
	return s, nil
}

// Accept takes one pending connection off a listening socket.
func Accept(s Socket) (Socket, netip.AddrPort, error) {
	fd, sa, err := unix.Accept(int(s))
	if err != nil {
		if isWouldBlock(err) || errors.Is(err, unix.ECONNABORTED) {
			return InvalidSocket, netip.AddrPort{}, ErrWouldBlock
		}
		return InvalidSocket, netip.AddrPort{}, newError(protocol.ErrSockConnectFailed, err)
	}
	if err := prepare(fd); err != nil {
		_ = unix.Close(fd)
		return InvalidSocket, netip.AddrPort{}, newError(protocol.ErrSockCreationFailed, err)
	}
	return Socket(fd), addrPortOf(sa), nil
}

// LocalAddr returns the bound address of s.
func LocalAddr(s Socket) (netip.AddrPort, error) {
	sa, err := unix.Getsockname(int(s))
	if err != nil {
		return netip.AddrPort{}, newError(protocol.ErrSockSetPortFailed, err)
	}
	return addrPortOf(sa), nil
}

// Pair returns two connected non-blocking stream sockets.
func Pair() (Socket, Socket, error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		return InvalidSocket, InvalidSocket, newError(protocol.ErrSockCreationFailed, err)
	}
	for _, fd := range fds {
		if err := prepare(fd); err != nil {
			_ = unix.Close(fds[0])
			_ = unix.Close(fds[1])
			return InvalidSocket, InvalidSocket, newError(protocol.ErrSockCreationFailed, err)
		}
	}
	return Socket(fds[0]), Socket(fds[1]), nil
}
