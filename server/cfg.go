package server

import (
	"fmt"
	"time"

	"github.com/lcx/pokernet/net"
	"github.com/lcx/pokernet/protocol"
)

// MaxPlayerNameLen bounds the length of a player name in bytes.
const MaxPlayerNameLen = 64

// Cfg is the "server" config section.
type Cfg struct {
	Addr       string `mapstructure:"addr"`
	Backlog    int    `mapstructure:"backlog"`
	AcceptRate int    `mapstructure:"acceptRate"`
	Password   string `mapstructure:"password"`

	MaxNumberOfPlayers     uint32 `mapstructure:"maxNumberOfPlayers"`
	StartMoney             uint32 `mapstructure:"startMoney"`
	SmallBlind             uint32 `mapstructure:"smallBlind"`
	HandsBeforeRaise       uint32 `mapstructure:"handsBeforeRaise"`
	GuiSpeed               uint32 `mapstructure:"guiSpeed"`
	PlayerActionTimeoutSec uint32 `mapstructure:"playerActionTimeoutSec"`

	// MinPlayers is the number of identified players a game start needs.
	MinPlayers int `mapstructure:"minPlayers"`
	// AutoStart starts the game as soon as the table is full.
	AutoStart bool `mapstructure:"autoStart"`

	RecvTimeoutMillSec       int `mapstructure:"recvTimeoutMillSec"`
	CloseSessionDelayMillSec int `mapstructure:"closeSessionDelayMillSec"`
	// InitTimeoutMillSec closes connections that never send a join request. Zero disables it.
	InitTimeoutMillSec int `mapstructure:"initTimeoutMillSec"`

	// PacketRate is the sustained packets per second a session may send. Zero disables the limit.
	PacketRate  float64 `mapstructure:"packetRate"`
	PacketBurst int     `mapstructure:"packetBurst"`
}

// DefaultCfg returns the settings used for keys the config file leaves out.
func DefaultCfg() *Cfg {
	return &Cfg{
		Addr:                     ":7234",
		MaxNumberOfPlayers:       10,
		StartMoney:               2000,
		SmallBlind:               10,
		HandsBeforeRaise:         8,
		GuiSpeed:                 4,
		PlayerActionTimeoutSec:   20,
		MinPlayers:               2,
		RecvTimeoutMillSec:       50,
		CloseSessionDelayMillSec: 10000,
		InitTimeoutMillSec:       30000,
		PacketRate:               50,
		PacketBurst:              100,
	}
}

// GetName implements config.Config.
func (c *Cfg) GetName() string {
	return "server"
}

// Validate implements config.Config.
func (c *Cfg) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("addr cannot be empty")
	}
	if c.MaxNumberOfPlayers < 2 || c.MaxNumberOfPlayers > 10 {
		return fmt.Errorf("maxNumberOfPlayers must be between 2 and 10, got %d", c.MaxNumberOfPlayers)
	}
	if c.MinPlayers < 2 || c.MinPlayers > int(c.MaxNumberOfPlayers) {
		return fmt.Errorf("minPlayers must be between 2 and maxNumberOfPlayers, got %d", c.MinPlayers)
	}
	if c.RecvTimeoutMillSec < 0 || c.InitTimeoutMillSec < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	if c.CloseSessionDelayMillSec <= 0 {
		return fmt.Errorf("closeSessionDelayMillSec must be positive")
	}
	if c.PacketRate < 0 {
		return fmt.Errorf("packetRate must not be negative")
	}
	if c.PacketRate > 0 && c.PacketBurst < 1 {
		return fmt.Errorf("packetBurst must be at least 1 when packetRate is set")
	}
	return nil
}

// GameData is the table configuration sent in every JoinGameAck.
func (c *Cfg) GameData() protocol.GameData {
	return protocol.GameData{
		MaxNumberOfPlayers:     c.MaxNumberOfPlayers,
		StartMoney:             c.StartMoney,
		SmallBlind:             c.SmallBlind,
		HandsBeforeRaise:       c.HandsBeforeRaise,
		GuiSpeed:               c.GuiSpeed,
		PlayerActionTimeoutSec: c.PlayerActionTimeoutSec,
	}
}

var _ net.ListenerCfgProvider = (*Cfg)(nil)

// ListenerCfg derives the acceptor settings. A listener following the "server"
// section picks up the accept rate on reload.
func (c *Cfg) ListenerCfg() *net.ListenerCfg {
	return &net.ListenerCfg{Addr: c.Addr, Backlog: c.Backlog, AcceptRate: c.AcceptRate}
}

func (c *Cfg) recvTimeout() time.Duration {
	return time.Duration(c.RecvTimeoutMillSec) * time.Millisecond
}

func (c *Cfg) closeDelay() time.Duration {
	return time.Duration(c.CloseSessionDelayMillSec) * time.Millisecond
}

func (c *Cfg) initTimeout() time.Duration {
	return time.Duration(c.InitTimeoutMillSec) * time.Millisecond
}
