//go:build unix

package net

import (
	"context"
	stdnet "net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcx/pokernet/config"
	"github.com/lcx/pokernet/protocol"
)

func TestListenerAcceptsConnections(t *testing.T) {
	accepted := make(chan ConnectData, 4)
	l := NewListener(&ListenerCfg{Addr: "127.0.0.1:0", AcceptRate: 100}, ConnectHandlerFunc(func(cd ConnectData) {
		accepted <- cd
	}))
	require.NoError(t, l.Start(context.Background()))
	defer l.Stop()

	addr := l.Addr()
	require.NotZero(t, addr.Port())

	client, err := stdnet.Dial("tcp", addr.String())
	require.NoError(t, err)
	defer client.Close()

	var cd ConnectData
	select {
	case cd = <-accepted:
	case <-time.After(2 * time.Second):
		t.Fatal("connection not accepted")
	}
	defer Close(cd.Socket)
	assert.True(t, cd.Socket.Valid())
	local := client.LocalAddr().(*stdnet.TCPAddr).AddrPort()
	assert.Equal(t, local.Addr().Unmap(), cd.Peer.Addr())
	assert.Equal(t, local.Port(), cd.Peer.Port())

	frame, err := AppendFrame(nil, &protocol.JoinGame{PlayerName: "Carol"}, 1)
	require.NoError(t, err)
	_, err = client.Write(frame)
	require.NoError(t, err)

	got := recvWithin(t, NewReceiver(), cd.Socket, time.Second)
	assert.Equal(t, "Carol", got.(*protocol.JoinGame).PlayerName)
}

func TestListenerStartTwice(t *testing.T) {
	l := NewListener(&ListenerCfg{Addr: "127.0.0.1:0"}, ConnectHandlerFunc(func(cd ConnectData) { _ = Close(cd.Socket) }))
	require.NoError(t, l.Start(context.Background()))
	assert.Error(t, l.Start(context.Background()))
	require.NoError(t, l.Stop())
	require.NoError(t, l.Stop())
}

func TestListenerBadAddr(t *testing.T) {
	l := NewListener(&ListenerCfg{Addr: "not an address"}, ConnectHandlerFunc(func(ConnectData) {}))
	assert.Error(t, l.Start(context.Background()))
}

func TestListenerCfgValidate(t *testing.T) {
	assert.Error(t, (&ListenerCfg{}).Validate())
	assert.Error(t, (&ListenerCfg{Addr: ":7234", AcceptRate: -1}).Validate())
	assert.NoError(t, (&ListenerCfg{Addr: ":7234"}).Validate())
}

func TestListenerConfigReload(t *testing.T) {
	l := NewListener(&ListenerCfg{Addr: ":7234"}, ConnectHandlerFunc(func(ConnectData) {}))
	require.NoError(t, l.OnConfigChanged("listener", &ListenerCfg{Addr: ":7234", AcceptRate: 5}, nil))
	assert.Equal(t, 5, l.cfg.AcceptRate)
	assert.Error(t, l.OnConfigChanged("listener", &otherCfg{}, nil))
	assert.NoError(t, l.OnConfigChanged("other", nil, nil))
}

type tableCfg struct {
	listener ListenerCfg
}

func (c *tableCfg) GetName() string           { return "server" }
func (c *tableCfg) Validate() error           { return nil }
func (c *tableCfg) ListenerCfg() *ListenerCfg { return &c.listener }

type recordingManager struct {
	config.ConfigManager
	added []config.ConfigChangeListener
}

func (m *recordingManager) AddChangeListener(l config.ConfigChangeListener) {
	m.added = append(m.added, l)
}

func TestListenerFollowsSection(t *testing.T) {
	l := NewListener(&ListenerCfg{Addr: ":7234"}, ConnectHandlerFunc(func(ConnectData) {}))
	assert.Equal(t, "listener", l.GetConfigName())

	cm := &recordingManager{}
	l.Follow(cm, "server")
	require.Len(t, cm.added, 1)
	assert.Same(t, l, cm.added[0])
	assert.Equal(t, "server", l.GetConfigName())

	assert.NoError(t, l.OnConfigChanged("listener", &ListenerCfg{Addr: ":7234", AcceptRate: 9}, nil))
	assert.Zero(t, l.cfg.AcceptRate)

	require.NoError(t, l.OnConfigChanged("server", &tableCfg{listener: ListenerCfg{Addr: ":7000", AcceptRate: 7}}, nil))
	assert.Equal(t, 7, l.cfg.AcceptRate)
	assert.Equal(t, ":7000", l.cfg.Addr)
	assert.NotNil(t, l.currentLimiter())
}

type otherCfg struct{}

func (otherCfg) GetName() string  { return "other" }
func (otherCfg) Validate() error { return nil }
