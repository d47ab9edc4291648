package server

import (
	"net/netip"
	"time"

	"golang.org/x/time/rate"

	"github.com/lcx/pokernet/log"
	"github.com/lcx/pokernet/net"
	"github.com/lcx/pokernet/protocol"
)

// SessionState is the sub-state of an admitted connection.
type SessionState int

const (
	// SessionInit is admitted but not yet identified by a join request.
	SessionInit SessionState = iota
	// SessionEstablished has completed the join handshake.
	SessionEstablished
	// SessionClosing waits in the delayed-close list for its grace period to end.
	SessionClosing
)

func (s SessionState) String() string {
	switch s {
	case SessionInit:
		return "init"
	case SessionEstablished:
		return "established"
	case SessionClosing:
		return "closing"
	}
	return "unknown"
}

// PlayerData identifies a joined player.
type PlayerData struct {
	ID   uint32
	Name string
	Type protocol.PlayerType
	Peer netip.AddrPort
}

// Session is the loop's view of one connection. Only the loop goroutine touches it.
type Session struct {
	sock       net.Socket
	peer       netip.AddrPort
	state      SessionState
	player     *PlayerData
	created    time.Time
	lastActive time.Time
	limiter    *rate.Limiter
	logger     *log.SessionLogger
}

func newSession(cd net.ConnectData, now time.Time, limiter *rate.Limiter) *Session {
	return &Session{
		sock:       cd.Socket,
		peer:       cd.Peer,
		state:      SessionInit,
		created:    now,
		lastActive: now,
		limiter:    limiter,
		logger:     log.NewSessionLogger(log.Default(), int(cd.Socket)),
	}
}

func (s *Session) established() bool {
	return s.state == SessionEstablished
}

// SessionInfo is a read-only copy of a session.
type SessionInfo struct {
	Socket     net.Socket
	Peer       netip.AddrPort
	State      SessionState
	Player     *PlayerData
	LastActive time.Time
}

func (s *Session) info() SessionInfo {
	si := SessionInfo{
		Socket:     s.sock,
		Peer:       s.peer,
		State:      s.state,
		LastActive: s.lastActive,
	}
	if s.player != nil {
		p := *s.player
		si.Player = &p
	}
	return si
}

func newLimiter(cfg *Cfg) *rate.Limiter {
	if cfg.PacketRate <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(cfg.PacketRate), cfg.PacketBurst)
}

func applyLimit(l *rate.Limiter, cfg *Cfg) {
	if cfg.PacketRate <= 0 {
		l.SetLimit(rate.Inf)
		return
	}
	l.SetLimit(rate.Limit(cfg.PacketRate))
	l.SetBurst(cfg.PacketBurst)
}
