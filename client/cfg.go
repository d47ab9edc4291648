package client

import (
	"fmt"
	"net/netip"
	"time"

	"github.com/lcx/pokernet/net"
	"github.com/lcx/pokernet/protocol"
)

// Cfg is the "client" config section.
type Cfg struct {
	ServerAddr string `mapstructure:"serverAddr"`
	ServerPort uint16 `mapstructure:"serverPort"`
	AddrFamily string `mapstructure:"addrFamily"` // ipv4 or ipv6
	PlayerName string `mapstructure:"playerName"`
	Password   string `mapstructure:"password"`
	Computer   bool   `mapstructure:"computer"`

	// PollTimeoutMillSec bounds every wait inside one tick.
	PollTimeoutMillSec int `mapstructure:"pollTimeoutMillSec"`
	// ResolverGraceMillSec bounds the wait for an abandoned resolver.
	ResolverGraceMillSec int `mapstructure:"resolverGraceMillSec"`
}

// DefaultCfg returns the settings used for keys the config file leaves out.
func DefaultCfg() *Cfg {
	return &Cfg{
		ServerPort:           7234,
		AddrFamily:           "ipv4",
		PollTimeoutMillSec:   50,
		ResolverGraceMillSec: 500,
	}
}

// GetName implements config.Config.
func (c *Cfg) GetName() string {
	return "client"
}

// Validate implements config.Config. An empty server address is left to the
// connection attempt, which reports it as a setup error.
func (c *Cfg) Validate() error {
	if _, err := net.ParseFamily(c.AddrFamily); err != nil {
		return err
	}
	if c.PlayerName == "" {
		return fmt.Errorf("playerName cannot be empty")
	}
	if c.PollTimeoutMillSec < 0 || c.ResolverGraceMillSec < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	return nil
}

func (c *Cfg) pollTimeout() time.Duration {
	return time.Duration(c.PollTimeoutMillSec) * time.Millisecond
}

func (c *Cfg) resolverGrace() time.Duration {
	return time.Duration(c.ResolverGraceMillSec) * time.Millisecond
}

// ConnectionContext is everything one connection attempt owns. A reconnect
// builds a fresh context instead of reusing the old one.
type ConnectionContext struct {
	ServerAddr string
	ServerPort uint16
	Family     net.AddrFamily
	PlayerName string
	Password   string
	PlayerType protocol.PlayerType

	Socket net.Socket
	Remote netip.AddrPort

	PlayerID uint32
	GameData protocol.GameData
}

// NewConnectionContext builds a context from cfg.
func NewConnectionContext(cfg *Cfg) (*ConnectionContext, error) {
	family, err := net.ParseFamily(cfg.AddrFamily)
	if err != nil {
		return nil, err
	}
	cc := &ConnectionContext{
		ServerAddr: cfg.ServerAddr,
		ServerPort: cfg.ServerPort,
		Family:     family,
		PlayerName: cfg.PlayerName,
		Password:   cfg.Password,
		PlayerType: protocol.PlayerTypeHuman,
		Socket:     net.InvalidSocket,
	}
	if cfg.Computer {
		cc.PlayerType = protocol.PlayerTypeComputer
	}
	return cc, nil
}
