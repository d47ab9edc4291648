package history

import (
	"context"
	"net/netip"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcx/pokernet/plugin"
	"github.com/lcx/pokernet/protocol"
	"github.com/lcx/pokernet/server"
)

func testCfg(t *testing.T) *Cfg {
	t.Helper()
	cfg := DefaultCfg()
	cfg.Path = filepath.Join(t.TempDir(), "db", "history.db")
	return cfg
}

func TestRecorderPersistsTable(t *testing.T) {
	cfg := testCfg(t)
	r, err := Open(cfg)
	require.NoError(t, err)

	alice := server.PlayerData{ID: 1, Name: "Alice", Peer: netip.MustParseAddrPort("10.0.0.1:5000")}
	bot := server.PlayerData{ID: 2, Name: "Bot", Type: protocol.PlayerTypeComputer}
	r.PlayerJoined(alice)
	r.PlayerJoined(bot)
	r.GameStarted([]server.PlayerData{alice, bot})
	r.HandStarted(1, 2)
	r.HandStarted(2, 2)
	r.PlayerLeft(bot, protocol.ErrSockConnReset)
	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	assert.Zero(t, r.Dropped())

	r, err = Open(cfg)
	require.NoError(t, err)
	defer r.Close()
	ctx := context.Background()

	games, err := r.RecentGames(ctx, 10)
	require.NoError(t, err)
	require.Len(t, games, 1)
	assert.Equal(t, []string{"Alice", "Bot"}, games[0].Players)
	assert.Equal(t, 2, games[0].Hands)

	sessions, err := r.Sessions(ctx, "Bot")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.True(t, sessions[0].Computer)
	require.NotNil(t, sessions[0].LeftAt)
	assert.Equal(t, protocol.ErrSockConnReset.String(), sessions[0].LeaveReason)

	sessions, err = r.Sessions(ctx, "Alice")
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Nil(t, sessions[0].LeftAt)
	assert.Equal(t, "10.0.0.1:5000", sessions[0].Peer)
	assert.Equal(t, uint32(1), sessions[0].PlayerID)
}

func TestRecorderIgnoresEventsAfterClose(t *testing.T) {
	r, err := Open(testCfg(t))
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.NotPanics(t, func() {
		r.PlayerJoined(server.PlayerData{ID: 1, Name: "late"})
	})
}

func TestCfgValidate(t *testing.T) {
	assert.NoError(t, DefaultCfg().Validate())
	assert.Error(t, (&Cfg{QueueSize: 1}).Validate())
	assert.Error(t, (&Cfg{Path: "x.db"}).Validate())
}

func TestFactory(t *testing.T) {
	f := &factory{}
	assert.Equal(t, plugin.History, f.Type())

	path := filepath.Join(t.TempDir(), "h.db")
	p, err := f.Setup(map[string]any{"path": path, "queuesize": 8})
	require.NoError(t, err)
	r := p.(*Recorder)
	assert.Equal(t, path, r.Path())
	assert.Equal(t, "sqlite", p.FactoryName())

	assert.NoError(t, f.Reload(p, map[string]any{"path": path, "queuesize": 8, "tag": "main"}))
	assert.Error(t, f.Reload(p, map[string]any{"path": path + "2", "queuesize": 8}))
	assert.True(t, f.CanDelete(p))
	assert.NoError(t, f.Destroy(p, nil))

	_, err = f.Setup(map[string]any{"path": ""})
	assert.Error(t, err)
}
