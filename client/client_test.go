package client

import (
	"context"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcx/pokernet/net"
	"github.com/lcx/pokernet/protocol"
)

// fakeTable accepts one connection and answers the join request.
type fakeTable struct {
	ls   net.Socket
	port uint16
}

func newFakeTable(t *testing.T) *fakeTable {
	t.Helper()
	ls, err := net.Listen(netip.MustParseAddrPort("127.0.0.1:0"), 4)
	require.NoError(t, err)
	t.Cleanup(func() { _ = net.Close(ls) })
	ap, err := net.LocalAddr(ls)
	require.NoError(t, err)
	return &fakeTable{ls: ls, port: ap.Port()}
}

func (f *fakeTable) accept(t *testing.T) net.Socket {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		ready, err := net.PollReadable(f.ls, 20*time.Millisecond)
		require.NoError(t, err)
		if !ready {
			continue
		}
		conn, _, err := net.Accept(f.ls)
		if err == nil {
			t.Cleanup(func() { _ = net.Close(conn) })
			return conn
		}
	}
	t.Fatal("no connection")
	return net.InvalidSocket
}

func recvPacket(t *testing.T, r *net.Receiver, sock net.Socket) protocol.Packet {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		pkt, err := r.Recv(sock, 20*time.Millisecond)
		require.NoError(t, err)
		if pkt != nil {
			return pkt
		}
	}
	t.Fatal("no packet")
	return nil
}

func testCfg(port uint16) *Cfg {
	cfg := DefaultCfg()
	cfg.ServerAddr = "127.0.0.1"
	cfg.ServerPort = port
	cfg.PlayerName = "Alice"
	cfg.Password = "secret"
	cfg.PollTimeoutMillSec = 10
	return cfg
}

func TestClientJoinsTable(t *testing.T) {
	table := newFakeTable(t)
	cb := &recorder{}
	c, err := New(testCfg(table.port), cb)
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))
	defer c.Stop()

	conn := table.accept(t)
	in, out := net.NewReceiver(), net.NewSender()

	join, ok := recvPacket(t, in, conn).(*protocol.JoinGame)
	require.True(t, ok)
	assert.Equal(t, &protocol.JoinGame{Password: "secret", PlayerName: "Alice", PlayerType: protocol.PlayerTypeHuman}, join)

	require.NoError(t, out.Send(conn, &protocol.JoinGameAck{PlayerID: 1, GameData: protocol.GameData{MaxNumberOfPlayers: 4}}))
	require.Eventually(t, func() bool { return c.State() == StateWaitGame }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, out.Send(conn, &protocol.GameStart{StartDealerPlayerID: 1}))
	require.Eventually(t, func() bool { return c.State() == StateFinal }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, c.Stop())
	assert.ErrorIs(t, c.Wait(), ErrStopped)

	cb.mu.Lock()
	defer cb.mu.Unlock()
	assert.Equal(t, []string{"Alice"}, cb.joined)
	assert.Equal(t, []Status{StatusInitDone, StatusResolveDone, StatusConnectDone, StatusSessionDone, StatusGameStart}, cb.statuses)
	assert.Empty(t, cb.failed)
}

func TestClientReportsServerError(t *testing.T) {
	table := newFakeTable(t)
	cb := &recorder{}
	c, err := New(testCfg(table.port), cb)
	require.NoError(t, err)
	require.NoError(t, c.Start(context.Background()))

	conn := table.accept(t)
	recvPacket(t, net.NewReceiver(), conn)
	require.NoError(t, net.NewSender().Send(conn, &protocol.Error{ErrorCode: protocol.ErrNetPlayerNameInUse}))

	err = c.Wait()
	assert.Equal(t, protocol.ErrNetPlayerNameInUse, net.CodeOf(err))

	cb.mu.Lock()
	defer cb.mu.Unlock()
	require.Len(t, cb.failed, 1)
	assert.Equal(t, protocol.ErrNetPlayerNameInUse, net.CodeOf(cb.failed[0]))
}

func TestClientRestartsWithFreshContext(t *testing.T) {
	table := newFakeTable(t)
	c, err := New(testCfg(table.port), nil)
	require.NoError(t, err)

	require.NoError(t, c.Start(context.Background()))
	assert.Error(t, c.Start(context.Background()))
	table.accept(t)
	require.NoError(t, c.Stop())

	require.NoError(t, c.Start(context.Background()))
	table.accept(t)
	require.NoError(t, c.Stop())
}

func TestNewRejectsInvalidCfg(t *testing.T) {
	_, err := New(nil, nil)
	assert.Error(t, err)

	cfg := testCfg(7234)
	cfg.PlayerName = ""
	_, err = New(cfg, nil)
	assert.Error(t, err)

	cfg = testCfg(7234)
	cfg.AddrFamily = "ipx"
	_, err = New(cfg, nil)
	assert.Error(t, err)
}
