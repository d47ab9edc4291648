// Package server is the accepting side of a poker table: a session registry
// driven by a single receive loop, with thread-safe inboxes for new connections
// and notifications from game logic.
package server

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/lcx/pokernet/config"
	"github.com/lcx/pokernet/log"
	"github.com/lcx/pokernet/metrics"
	"github.com/lcx/pokernet/net"
)

type snapshot struct {
	sessions    []SessionInfo
	players     []PlayerData
	gameRunning bool
}

// Server owns the session registry. Everything except the inboxes, the
// snapshot readers and config reloads runs on the loop goroutine that calls
// Tick or Run.
type Server struct {
	cfg     atomic.Pointer[Cfg]
	applied *Cfg

	game     Game
	gui      Callback
	recorder Recorder
	now      func() time.Time

	sender   *net.Sender
	receiver *net.Receiver
	reg      *registry

	pending       *inbox[net.ConnectData]
	notifications *inbox[Notification]

	snap atomic.Pointer[snapshot]

	nextPlayerID uint32
	gameRunning  bool
	closed       bool
}

// Option customizes a Server.
type Option func(*Server)

// WithRecorder persists table events.
func WithRecorder(r Recorder) Option {
	return func(s *Server) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		if now != nil {
			s.now = now
		}
	}
}

// New creates a server. A nil game uses a Dealer, a nil gui ignores events.
func New(cfg *Cfg, game Game, gui Callback, opts ...Option) (*Server, error) {
	if cfg == nil {
		return nil, errors.New("server cfg cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid server config: %w", err)
	}
	if game == nil {
		game = NewDealer()
	}
	if gui == nil {
		gui = NopCallback{}
	}
	s := &Server{
		applied:       cfg,
		game:          game,
		gui:           gui,
		recorder:      nopRecorder{},
		now:           time.Now,
		sender:        net.NewSender(),
		receiver:      net.NewReceiver(),
		reg:           newRegistry(),
		pending:       newInbox[net.ConnectData](),
		notifications: newInbox[Notification](),
	}
	s.cfg.Store(cfg)
	for _, opt := range opts {
		opt(s)
	}
	s.publish()
	return s, nil
}

// NewWithConfigManager loads the "server" section on top of DefaultCfg and follows its reloads.
func NewWithConfigManager(configManager config.ConfigManager, game Game, gui Callback, opts ...Option) (*Server, error) {
	if configManager == nil {
		return nil, errors.New("configManager cannot be nil")
	}
	cfg := DefaultCfg()
	if err := configManager.LoadConfig("server", cfg); err != nil {
		return nil, fmt.Errorf("failed to load server config: %w", err)
	}
	s, err := New(cfg, game, gui, opts...)
	if err != nil {
		return nil, err
	}
	configManager.AddChangeListener(s)
	return s, nil
}

// OnConfigChanged implements config.ConfigChangeListener. The loop applies the
// new packet rate to existing sessions on its next tick.
func (s *Server) OnConfigChanged(configName string, newConfig, oldConfig config.Config) error {
	if configName != "server" {
		return nil
	}
	newCfg, ok := newConfig.(*Cfg)
	if !ok {
		return fmt.Errorf("invalid configuration type for server")
	}
	s.cfg.Store(newCfg)
	log.Info().Str("configName", configName).Msg("server configuration updated")
	return nil
}

// GetConfigName implements config.ConfigChangeListener.
func (s *Server) GetConfigName() string {
	return "server"
}

// Cfg returns the current configuration.
func (s *Server) Cfg() *Cfg {
	return s.cfg.Load()
}

// AddConnection queues an accepted socket for admission. Safe from any goroutine; never blocks.
// After Close the socket is closed at once.
func (s *Server) AddConnection(cd net.ConnectData) {
	if !s.pending.push(cd) {
		_ = net.Close(cd.Socket)
		metrics.IncrCounterWithDimGroup("server", "connection_rejected_total", 1, metrics.Dimension{"reason": "closed"})
		return
	}
	metrics.IncrCounterWithGroup("server", "connection_queued_total", 1)
}

// AddNotification queues an event for the loop. Safe from any goroutine; never blocks.
func (s *Server) AddNotification(kind NotificationKind, param1, param2 uint32) {
	s.notifications.push(Notification{Kind: kind, Param1: param1, Param2: param2})
}

// CheckPassword reports whether password opens the table.
func (s *Server) CheckPassword(password string) bool {
	want := s.cfg.Load().Password
	return subtle.ConstantTimeCompare([]byte(password), []byte(want)) == 1
}

// PlayerDataList returns the identified players in join order as of the last tick.
func (s *Server) PlayerDataList() []PlayerData {
	return append([]PlayerData(nil), s.snap.Load().players...)
}

// NumberOfPlayers returns the number of identified players as of the last tick.
func (s *Server) NumberOfPlayers() int {
	return len(s.snap.Load().players)
}

// Sessions returns every registered session, closing ones included, as of the last tick.
func (s *Server) Sessions() []SessionInfo {
	return append([]SessionInfo(nil), s.snap.Load().sessions...)
}

// GameRunning reports whether the game has started, as of the last tick.
func (s *Server) GameRunning() bool {
	return s.snap.Load().gameRunning
}

func (s *Server) publish() {
	snap := &snapshot{gameRunning: s.gameRunning}
	for _, sess := range s.reg.all() {
		snap.sessions = append(snap.sessions, sess.info())
		if sess.established() {
			snap.players = append(snap.players, *sess.player)
		}
	}
	s.snap.Store(snap)
	metrics.UpdateGaugeWithGroup("server", "sessions", metrics.Value(len(snap.sessions)))
	metrics.UpdateGaugeWithGroup("server", "players", metrics.Value(len(snap.players)))
}

// Run ticks until ctx is done or polling fails. On return every socket is closed.
func (s *Server) Run(ctx context.Context) error {
	log.Info().Msg("server loop started")
	defer s.Close()
	for {
		if ctx.Err() != nil {
			log.Info().Msg("server loop stopped")
			return nil
		}
		if err := s.Tick(ctx); err != nil {
			log.Error().Err(err).Msg("server loop failed")
			return err
		}
	}
}

// Tick runs one pass: admit, poll, receive, notify, reap, flush. Only a poll
// failure is returned; per-session errors close that session.
func (s *Server) Tick(ctx context.Context) error {
	if s.closed {
		return errors.New("server closed")
	}
	start := time.Now()
	defer func() {
		metrics.ObserveWithGroup("server", "tick_seconds", metrics.Value(time.Since(start).Seconds()))
	}()

	cfg := s.applyCfg()
	s.admitPending(s.now())

	ready, err := s.poll(cfg)
	if err != nil {
		return err
	}
	for _, sock := range ready {
		s.receive(ctx, sock, s.now())
	}

	s.processNotifications()
	s.reap(s.now())
	s.flush()
	s.publish()
	return nil
}

func (s *Server) applyCfg() *Cfg {
	cfg := s.cfg.Load()
	if cfg == s.applied {
		return cfg
	}
	for _, sess := range s.reg.all() {
		applyLimit(sess.limiter, cfg)
	}
	log.Info().Float64("packetRate", cfg.PacketRate).Int("packetBurst", cfg.PacketBurst).Msg("session limits updated")
	s.applied = cfg
	return cfg
}

func (s *Server) poll(cfg *Cfg) ([]net.Socket, error) {
	live := s.reg.live()
	socks := make([]net.Socket, 0, len(live))
	var buffered []net.Socket
	for _, sess := range live {
		socks = append(socks, sess.sock)
		if s.receiver.Buffered(sess.sock) {
			buffered = append(buffered, sess.sock)
		}
	}

	timeout := cfg.recvTimeout()
	if len(buffered) > 0 || s.pending.len() > 0 || s.notifications.len() > 0 {
		timeout = 0
	}
	ready, err := net.PollRead(socks, timeout)
	if err != nil {
		metrics.IncrCounterWithGroup("server", "poll_error_total", 1)
		return nil, fmt.Errorf("poll %d sessions: %w", len(socks), err)
	}
	if len(buffered) == 0 {
		return ready, nil
	}
	seen := make(map[net.Socket]struct{}, len(ready))
	for _, sock := range ready {
		seen[sock] = struct{}{}
	}
	for _, sock := range buffered {
		if _, ok := seen[sock]; !ok {
			ready = append(ready, sock)
		}
	}
	return ready, nil
}

// Close closes every session and every queued connection. The server cannot be ticked afterwards.
func (s *Server) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	for _, cd := range s.pending.seal() {
		_ = net.Close(cd.Socket)
	}
	for _, sess := range s.reg.all() {
		_ = s.sender.Flush(sess.sock)
		s.destroy(sess)
	}
	s.reg.closing = nil
	s.publish()
	return nil
}

// destroy drops every trace of a session and closes its socket.
func (s *Server) destroy(sess *Session) {
	s.reg.remove(sess.sock)
	s.sender.Remove(sess.sock)
	s.receiver.Remove(sess.sock)
	if err := net.Close(sess.sock); err != nil {
		sess.logger.Warn().Err(err).Msg("close socket")
	}
}
