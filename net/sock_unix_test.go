//go:build unix

package net

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcx/pokernet/protocol"
)

func listenLoopback(t *testing.T) (Socket, netip.AddrPort) {
	t.Helper()
	ls, err := Listen(netip.MustParseAddrPort("127.0.0.1:0"), 8)
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(ls) })
	ap, err := LocalAddr(ls)
	require.NoError(t, err)
	require.NotZero(t, ap.Port())
	return ls, ap
}

func TestConnectAcceptLoopback(t *testing.T) {
	ls, ap := listenLoopback(t)

	s, err := NewSocket(FamilyIPv4)
	require.NoError(t, err)
	defer Close(s)

	err = Connect(s, ap)
	if err != nil {
		require.ErrorIs(t, err, ErrWouldBlock)
		require.Eventually(t, func() bool {
			writable, perr := PollWritable(s, 10*time.Millisecond)
			return perr == nil && writable
		}, time.Second, time.Millisecond)
	}
	require.NoError(t, ConnectResult(s))

	conn := InvalidSocket
	require.Eventually(t, func() bool {
		c, _, aerr := Accept(ls)
		if aerr != nil {
			return false
		}
		conn = c
		return true
	}, time.Second, time.Millisecond)
	defer Close(conn)

	sender, receiver := NewSender(), NewReceiver()
	require.NoError(t, sender.Send(s, &protocol.JoinGame{PlayerName: "Alice"}))
	got := recvWithin(t, receiver, conn, time.Second)
	assert.Equal(t, "Alice", got.(*protocol.JoinGame).PlayerName)
}

func TestConnectRefused(t *testing.T) {
	ls, ap := listenLoopback(t)
	require.NoError(t, Close(ls))

	s, err := NewSocket(FamilyIPv4)
	require.NoError(t, err)
	defer Close(s)

	err = Connect(s, ap)
	if err == ErrWouldBlock {
		require.Eventually(t, func() bool {
			ok, perr := PollWritable(s, 10*time.Millisecond)
			return perr == nil && ok
		}, time.Second, time.Millisecond)
		err = ConnectResult(s)
	}
	require.Error(t, err)
	assert.Equal(t, protocol.ErrSockConnectFailed, CodeOf(err))
	assert.Equal(t, KindConnect, KindOf(err))
	var ne *Error
	require.ErrorAs(t, err, &ne)
	assert.NotZero(t, ne.Errno)
}

func TestConnectZeroPort(t *testing.T) {
	s, err := NewSocket(FamilyIPv4)
	require.NoError(t, err)
	defer Close(s)

	err = Connect(s, netip.MustParseAddrPort("127.0.0.1:0"))
	assert.Equal(t, protocol.ErrSockInvalidPort, CodeOf(err))
	assert.Equal(t, KindSetup, KindOf(err))
}

func TestPollReadTimeout(t *testing.T) {
	a, b := newPair(t)

	start := time.Now()
	ready, err := PollRead([]Socket{a, b}, 20*time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, ready)
	assert.GreaterOrEqual(t, time.Since(start), 15*time.Millisecond)

	_, err = Write(a, []byte{1})
	require.NoError(t, err)
	ready, err = PollRead([]Socket{a, b}, 100*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, []Socket{b}, ready)
}

func TestReadWouldBlock(t *testing.T) {
	_, b := newPair(t)
	n, err := Read(b, make([]byte, 8))
	assert.Zero(t, n)
	assert.ErrorIs(t, err, ErrWouldBlock)
}
