// Package client is the connecting side of a poker table: a non-blocking state
// machine that resolves, connects and joins, and a driver that ticks it on its
// own goroutine.
package client

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"

	"github.com/lcx/pokernet/config"
	"github.com/lcx/pokernet/log"
	"github.com/lcx/pokernet/metrics"
	"github.com/lcx/pokernet/net"
	"github.com/lcx/pokernet/tracing"
)

// ErrStopped is returned by Wait when Stop ended the session.
var ErrStopped = errors.New("client stopped")

// Client runs one connection attempt at a time.
type Client struct {
	cfg  *Cfg
	cb   Callback
	opts []Option

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	err    error

	state atomic.Int32
}

// New creates a stopped client.
func New(cfg *Cfg, cb Callback, opts ...Option) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("client cfg cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid client config: %w", err)
	}
	if cb == nil {
		cb = NopCallback{}
	}
	base := []Option{
		WithPollTimeout(cfg.pollTimeout()),
		WithResolverGrace(cfg.resolverGrace()),
	}
	return &Client{cfg: cfg, cb: cb, opts: append(base, opts...)}, nil
}

// NewWithConfigManager loads the "client" section on top of DefaultCfg.
func NewWithConfigManager(configManager config.ConfigManager, cb Callback, opts ...Option) (*Client, error) {
	if configManager == nil {
		return nil, errors.New("configManager cannot be nil")
	}
	cfg := DefaultCfg()
	if err := configManager.LoadConfig("client", cfg); err != nil {
		return nil, fmt.Errorf("failed to load client config: %w", err)
	}
	return New(cfg, cb, opts...)
}

// Start begins a new connection attempt from Init with a fresh context.
func (c *Client) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.done != nil {
		select {
		case <-c.done:
		default:
			return errors.New("client already running")
		}
	}

	cc, err := NewConnectionContext(c.cfg)
	if err != nil {
		return err
	}
	m := NewMachine(cc, c.cb, c.opts...)

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.done = make(chan struct{})
	c.err = nil
	c.state.Store(int32(StateInit))
	go c.run(ctx, m, c.done)
	return nil
}

func (c *Client) run(ctx context.Context, m *Machine, done chan struct{}) {
	defer close(done)

	_, span := tracing.StartSpan(ctx, "client.session",
		attribute.String("server", m.cc.ServerAddr+":"+strconv.Itoa(int(m.cc.ServerPort))),
		attribute.String("player", m.cc.PlayerName))

	var err error
	defer func() {
		if cerr := m.Close(); cerr != nil {
			log.Warn().Err(cerr).Msg("close client socket")
		}
		tracing.EndSpan(span, err)
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
	}()

	for {
		if ctx.Err() != nil {
			err = ErrStopped
			return
		}
		var status Status
		status, err = m.Process()
		c.state.Store(int32(m.State()))
		if err != nil {
			metrics.IncrCounterWithDimGroup("client", "failure_total", 1, metrics.Dimension{"kind": net.KindOf(err).String()})
			log.Error().Str("state", m.State().String()).Str("player", m.cc.PlayerName).Err(err).Msg("client session failed")
			c.cb.Failed(err)
			return
		}
		if status != StatusPending {
			metrics.IncrCounterWithDimGroup("client", "status_total", 1, metrics.Dimension{"status": status.String()})
			log.Info().Str("status", status.String()).Str("state", m.State().String()).Msg("client status")
			span.AddEvent(status.String())
			c.cb.StatusChanged(status)
		}
	}
}

// State returns the state of the running attempt.
func (c *Client) State() State {
	return State(c.state.Load())
}

// Stop ends the attempt and waits for the loop to exit.
func (c *Client) Stop() error {
	c.mu.Lock()
	cancel, done := c.cancel, c.done
	c.mu.Unlock()
	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}

// Wait blocks until the attempt ends and returns why.
func (c *Client) Wait() error {
	c.mu.Lock()
	done := c.done
	c.mu.Unlock()
	if done == nil {
		return nil
	}
	<-done
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}
