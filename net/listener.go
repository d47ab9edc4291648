package net

import (
	"context"
	"errors"
	"fmt"
	stdnet "net"
	"net/netip"
	"sync"
	"time"

	"go.uber.org/ratelimit"

	"github.com/lcx/pokernet/config"
	"github.com/lcx/pokernet/log"
	"github.com/lcx/pokernet/metrics"
)

const acceptPollInterval = 100 * time.Millisecond

// ListenerCfg is the "listener" config section.
type ListenerCfg struct {
	Addr       string `mapstructure:"addr"`
	Backlog    int    `mapstructure:"backlog"`
	AcceptRate int    `mapstructure:"acceptRate"` // accepts per second, 0 for unlimited
}

// GetName returns the configuration name for ListenerCfg
func (c *ListenerCfg) GetName() string {
	return "listener"
}

// Validate validates the ListenerCfg parameters
func (c *ListenerCfg) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("Addr cannot be empty")
	}
	if c.Backlog < 0 {
		return fmt.Errorf("Backlog must not be negative")
	}
	if c.AcceptRate < 0 {
		return fmt.Errorf("AcceptRate must not be negative")
	}
	return nil
}

func newAcceptLimiter(rate int) ratelimit.Limiter {
	if rate <= 0 {
		return ratelimit.NewUnlimited()
	}
	return ratelimit.New(rate)
}

// Listener accepts TCP connections on one goroutine and hands each socket,
// already non-blocking, to a ConnectHandler.
type Listener struct {
	mu      sync.Mutex
	cfg     *ListenerCfg
	handler ConnectHandler
	limiter ratelimit.Limiter
	sock    Socket
	cancel  context.CancelFunc
	done    chan struct{}
	section string
}

// NewListener creates a stopped listener.
func NewListener(cfg *ListenerCfg, handler ConnectHandler) *Listener {
	return &Listener{
		cfg:     cfg,
		handler: handler,
		limiter: newAcceptLimiter(cfg.AcceptRate),
		sock:    InvalidSocket,
		section: "listener",
	}
}

// ListenerCfgProvider is a config section that carries listener settings.
type ListenerCfgProvider interface {
	ListenerCfg() *ListenerCfg
}

// Follow registers l with configManager so reloads of section reach it. The
// section is a *ListenerCfg or a ListenerCfgProvider.
func (l *Listener) Follow(configManager config.ConfigManager, section string) {
	l.mu.Lock()
	l.section = section
	l.mu.Unlock()
	configManager.AddChangeListener(l)
}

// OnConfigChanged applies a new accept rate. The address takes effect on the next Start.
func (l *Listener) OnConfigChanged(configName string, newConfig, oldConfig config.Config) error {
	if configName != l.GetConfigName() {
		return nil
	}
	var newCfg *ListenerCfg
	switch c := newConfig.(type) {
	case *ListenerCfg:
		newCfg = c
	case ListenerCfgProvider:
		newCfg = c.ListenerCfg()
	default:
		return fmt.Errorf("invalid configuration type for Listener")
	}
	l.mu.Lock()
	l.cfg = newCfg
	l.limiter = newAcceptLimiter(newCfg.AcceptRate)
	l.mu.Unlock()

	log.Info().Str("configName", configName).Int("acceptRate", newCfg.AcceptRate).Msg("listener configuration updated")
	return nil
}

// GetConfigName implements config.ConfigChangeListener.
func (l *Listener) GetConfigName() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.section
}

func resolveListenAddr(addr string) (netip.AddrPort, error) {
	if ap, err := netip.ParseAddrPort(addr); err == nil {
		return ap, nil
	}
	tcpAddr, err := stdnet.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return netip.AddrPort{}, err
	}
	ap := tcpAddr.AddrPort()
	if !ap.Addr().IsValid() {
		ap = netip.AddrPortFrom(netip.IPv4Unspecified(), ap.Port())
	}
	return ap, nil
}

// Start binds the configured address and begins accepting.
func (l *Listener) Start(ctx context.Context) error {
	metrics.IncrCounterWithGroup("net", "listener_start_total", 1)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.done != nil {
		return errors.New("listener already started")
	}

	ap, err := resolveListenAddr(l.cfg.Addr)
	if err != nil {
		metrics.IncrCounterWithDimGroup("net", "listener_start_error_total", 1, metrics.Dimension{"error_type": "resolve"})
		return fmt.Errorf("resolve %s: %w", l.cfg.Addr, err)
	}
	sock, err := Listen(ap, l.cfg.Backlog)
	if err != nil {
		metrics.IncrCounterWithDimGroup("net", "listener_start_error_total", 1, metrics.Dimension{"error_type": "listen"})
		return fmt.Errorf("listen %s: %w", ap, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	l.sock = sock
	l.cancel = cancel
	l.done = make(chan struct{})
	go l.serve(ctx, sock, l.done)

	local, _ := LocalAddr(sock)
	log.Info().Str("addr", local.String()).Msg("listening")
	return nil
}

// Addr returns the bound address, which resolves a configured port 0.
func (l *Listener) Addr() netip.AddrPort {
	l.mu.Lock()
	defer l.mu.Unlock()
	ap, _ := LocalAddr(l.sock)
	return ap
}

// Stop ends the accept loop and closes the listening socket.
func (l *Listener) Stop() error {
	l.mu.Lock()
	cancel, done, sock := l.cancel, l.done, l.sock
	l.cancel, l.done, l.sock = nil, nil, InvalidSocket
	l.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return Close(sock)
}

func (l *Listener) currentLimiter() ratelimit.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.limiter
}

func (l *Listener) serve(ctx context.Context, sock Socket, done chan struct{}) {
	defer close(done)

	for ctx.Err() == nil {
		ready, err := PollReadable(sock, acceptPollInterval)
		if err != nil {
			log.Error().Err(err).Msg("listener poll failed")
			metrics.IncrCounterWithDimGroup("net", "accept_error_total", 1, metrics.Dimension{"error_type": "poll"})
			return
		}
		if !ready {
			continue
		}

		l.currentLimiter().Take()
		conn, peer, err := Accept(sock)
		if err == ErrWouldBlock {
			continue
		}
		if err != nil {
			log.Warn().Err(err).Msg("accept failed")
			metrics.IncrCounterWithDimGroup("net", "accept_error_total", 1, metrics.Dimension{"error_type": "accept"})
			continue
		}

		metrics.IncrCounterWithGroup("net", "accept_total", 1)
		log.Debug().Int("socket", int(conn)).Str("peer", peer.String()).Msg("connection accepted")
		l.handler.AddConnection(ConnectData{Socket: conn, Peer: peer})
	}
}
