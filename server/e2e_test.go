package server

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcx/pokernet/client"
	"github.com/lcx/pokernet/net"
)

type clientEvents struct {
	client.NopCallback
	mu     sync.Mutex
	joined []string
}

func (c *clientEvents) PlayerJoined(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.joined = append(c.joined, name)
}

func (c *clientEvents) names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.joined...)
}

func TestClientJoinsServer(t *testing.T) {
	cfg := testCfg()
	cfg.Addr = "127.0.0.1:0"
	s, err := New(cfg, nil, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	ln := net.NewListener(cfg.ListenerCfg(), s)
	require.NoError(t, ln.Start(ctx))
	defer ln.Stop()

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()
	defer func() {
		cancel()
		assert.NoError(t, <-done)
	}()

	ccfg := client.DefaultCfg()
	ccfg.ServerAddr = "127.0.0.1"
	ccfg.ServerPort = ln.Addr().Port()
	ccfg.PlayerName = "Alice"
	ccfg.Password = "pw"
	ccfg.PollTimeoutMillSec = 10
	events := &clientEvents{}
	c, err := client.New(ccfg, events)
	require.NoError(t, err)
	require.NoError(t, c.Start(ctx))
	defer c.Stop()

	require.Eventually(t, func() bool { return c.State() == client.StateWaitGame }, 3*time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return s.NumberOfPlayers() == 1 }, 3*time.Second, 5*time.Millisecond)

	assert.Equal(t, []string{"Alice"}, events.names())
	sessions := s.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, SessionEstablished, sessions[0].State)
	require.NotNil(t, sessions[0].Player)
	assert.Equal(t, "Alice", sessions[0].Player.Name)
	assert.Equal(t, uint32(1), sessions[0].Player.ID)
}
