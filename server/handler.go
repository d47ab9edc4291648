package server

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/lcx/pokernet/log"
	"github.com/lcx/pokernet/metrics"
	"github.com/lcx/pokernet/net"
	"github.com/lcx/pokernet/protocol"
	"github.com/lcx/pokernet/tracing"
)

// admitPending moves queued connections into the registry. Connections that
// cannot join are told why and closed right away.
func (s *Server) admitPending(now time.Time) {
	cfg := s.cfg.Load()
	for _, cd := range s.pending.drain() {
		if s.reg.get(cd.Socket) != nil {
			log.Warn().Stringer("socket", cd.Socket).Msg("connection already registered")
			continue
		}
		switch {
		case s.gameRunning:
			s.reject(cd, protocol.ErrNetGameAlreadyRunning)
			continue
		case len(s.reg.live()) >= int(cfg.MaxNumberOfPlayers):
			s.reject(cd, protocol.ErrNetServerFull)
			continue
		}
		sess := newSession(cd, now, newLimiter(cfg))
		s.reg.add(sess)
		metrics.IncrCounterWithGroup("server", "session_admitted_total", 1)
		sess.logger.Info().Stringer("peer", cd.Peer).Msg("session admitted")
	}
}

func (s *Server) reject(cd net.ConnectData, code protocol.ErrorCode) {
	log.Info().Stringer("socket", cd.Socket).Stringer("peer", cd.Peer).Stringer("reason", code).Msg("connection rejected")
	metrics.IncrCounterWithDimGroup("server", "connection_rejected_total", 1, metrics.Dimension{"reason": code.String()})
	if err := s.sender.Send(cd.Socket, &protocol.Error{ErrorCode: code}); err != nil {
		log.Debug().Err(err).Stringer("socket", cd.Socket).Msg("reject notice not delivered")
	}
	s.sender.Remove(cd.Socket)
	s.receiver.Remove(cd.Socket)
	_ = net.Close(cd.Socket)
}

// receive handles at most one packet from sock.
func (s *Server) receive(ctx context.Context, sock net.Socket, now time.Time) {
	sess := s.reg.get(sock)
	if sess == nil || sess.state == SessionClosing {
		return
	}
	pkt, err := s.receiver.Recv(sock, 0)
	if err != nil {
		s.sessionError(sess, err)
		return
	}
	if pkt == nil {
		return
	}
	sess.lastActive = now
	metrics.IncrCounterWithDimGroup("server", "packet_received_total", 1, metrics.Dimension{"kind": pkt.Kind().String()})

	if !sess.limiter.AllowN(now, 1) {
		s.sessionError(sess, &net.Error{Code: protocol.ErrNetTooManyPackets})
		return
	}

	switch sess.state {
	case SessionInit:
		join, ok := pkt.(*protocol.JoinGame)
		if !ok {
			sess.logger.Warn().Stringer("kind", pkt.Kind()).Msg("packet before join")
			s.sessionError(sess, &net.Error{Code: protocol.ErrNetInvalidState})
			return
		}
		s.handleJoin(ctx, sess, join)
	case SessionEstablished:
		s.game.OnPacket(*sess.player, pkt)
	}
}

func (s *Server) validateJoin(join *protocol.JoinGame) (string, protocol.ErrorCode) {
	cfg := s.cfg.Load()
	if !s.CheckPassword(join.Password) {
		return "", protocol.ErrNetWrongPassword
	}
	name := strings.TrimSpace(join.PlayerName)
	if name == "" || len(name) > MaxPlayerNameLen {
		return "", protocol.ErrNetInvalidPlayerName
	}
	for _, other := range s.reg.established() {
		if strings.EqualFold(other.player.Name, name) {
			return "", protocol.ErrNetPlayerNameInUse
		}
	}
	if s.gameRunning {
		return "", protocol.ErrNetGameAlreadyRunning
	}
	if len(s.reg.established()) >= int(cfg.MaxNumberOfPlayers) {
		return "", protocol.ErrNetServerFull
	}
	return name, protocol.ErrNone
}

func (s *Server) handleJoin(ctx context.Context, sess *Session, join *protocol.JoinGame) {
	_, span := tracing.StartSpan(ctx, "server.join",
		attribute.String("player.name", join.PlayerName),
		attribute.Int("socket", int(sess.sock)))

	name, code := s.validateJoin(join)
	if code != protocol.ErrNone {
		sess.logger.Info().Str("name", join.PlayerName).Stringer("reason", code).Msg("join refused")
		err := &net.Error{Code: code}
		s.sessionError(sess, err)
		tracing.EndSpan(span, err)
		return
	}

	s.nextPlayerID++
	player := &PlayerData{
		ID:   s.nextPlayerID,
		Name: name,
		Type: join.PlayerType,
		Peer: sess.peer,
	}
	existing := s.reg.established()
	sess.logger.SetPlayer(name)

	// the session joins the table only once the newcomer has its ack and the roster
	cfg := s.cfg.Load()
	if err := s.sender.Send(sess.sock, &protocol.JoinGameAck{PlayerID: player.ID, GameData: cfg.GameData()}); err != nil {
		s.sessionError(sess, err)
		tracing.EndSpan(span, err)
		return
	}
	for _, other := range existing {
		if err := s.sender.Send(sess.sock, &protocol.PlayerJoined{PlayerID: other.player.ID, PlayerName: other.player.Name}); err != nil {
			s.sessionError(sess, err)
			tracing.EndSpan(span, err)
			return
		}
	}
	sess.player = player
	sess.state = SessionEstablished
	s.SendToAllButOne(&protocol.PlayerJoined{PlayerID: player.ID, PlayerName: player.Name}, sess.sock)

	sess.logger.Info().Uint32("playerID", player.ID).Stringer("peer", sess.peer).Msg("player joined")
	metrics.IncrCounterWithGroup("server", "player_joined_total", 1)
	s.gui.PlayerJoined(*player)
	s.recorder.PlayerJoined(*player)
	tracing.EndSpan(span, nil)

	if cfg.AutoStart && len(s.reg.established()) == int(cfg.MaxNumberOfPlayers) {
		s.startGame(0)
	}
}

// sessionError reports err to the peer when it can still hear it and schedules
// the session for delayed close. Repeated calls for a closing session do nothing.
func (s *Server) sessionError(sess *Session, err error) {
	if sess.state == SessionClosing {
		return
	}
	code := net.CodeOf(err)
	peerGone := errors.Is(err, net.ErrConnectionClosed) || code == protocol.ErrSockConnReset
	if peerGone {
		code = protocol.ErrSockConnReset
	} else if code < protocol.ErrNetWrongPassword {
		code = protocol.ErrNetInternal
	}

	wasPlayer := sess.established()
	if peerGone {
		sess.logger.Info().Msg("peer closed connection")
	} else {
		sess.logger.Warn().Err(err).Stringer("code", code).Msg("session error")
		if sendErr := s.sender.Send(sess.sock, &protocol.Error{ErrorCode: code}); sendErr != nil {
			sess.logger.Debug().Err(sendErr).Msg("error notice not delivered")
		}
	}

	s.reg.scheduleClose(sess, s.now().Add(s.cfg.Load().closeDelay()))
	metrics.IncrCounterWithDimGroup("server", "session_error_total", 1, metrics.Dimension{"code": code.String()})

	if wasPlayer {
		player := *sess.player
		s.SendToAllButOne(&protocol.PlayerLeft{PlayerID: player.ID}, sess.sock)
		sess.logger.Info().Uint32("playerID", player.ID).Msg("player left")
		s.gui.PlayerLeft(player)
		s.recorder.PlayerLeft(player, code)
	}
}

// SendTo sends pkt to the player with the given id. Loop goroutine only.
func (s *Server) SendTo(playerID uint32, pkt protocol.Packet) bool {
	for _, sess := range s.reg.established() {
		if sess.player.ID == playerID {
			if err := s.sender.Send(sess.sock, pkt); err != nil {
				s.sessionError(sess, err)
				return false
			}
			return true
		}
	}
	return false
}

// SendToAll sends pkt to every identified player. Loop goroutine only.
func (s *Server) SendToAll(pkt protocol.Packet) {
	s.SendToAllButOne(pkt, net.InvalidSocket)
}

// SendToAllButOne sends pkt to every identified player except the one on except.
// Loop goroutine only.
func (s *Server) SendToAllButOne(pkt protocol.Packet, except net.Socket) {
	type failure struct {
		sess *Session
		err  error
	}
	var failed []failure
	for _, sess := range s.reg.established() {
		if sess.sock == except {
			continue
		}
		if err := s.sender.Send(sess.sock, pkt); err != nil {
			sess.logger.Warn().Err(err).Stringer("kind", pkt.Kind()).Msg("broadcast failed")
			failed = append(failed, failure{sess, err})
		}
	}
	for _, f := range failed {
		s.sessionError(f.sess, f.err)
	}
}

// reap closes sessions that stayed anonymous too long and finishes delayed closes.
func (s *Server) reap(now time.Time) {
	cfg := s.cfg.Load()
	if limit := cfg.initTimeout(); limit > 0 {
		for _, sess := range s.reg.live() {
			if sess.state == SessionInit && now.Sub(sess.created) >= limit {
				s.sessionError(sess, &net.Error{Code: protocol.ErrNetSessionTimedOut})
			}
		}
	}
	for _, sess := range s.reg.expire(now) {
		_ = s.sender.Flush(sess.sock)
		s.sender.Remove(sess.sock)
		s.receiver.Remove(sess.sock)
		if err := net.Close(sess.sock); err != nil {
			sess.logger.Warn().Err(err).Msg("close socket")
		}
		metrics.IncrCounterWithGroup("server", "session_closed_total", 1)
		sess.logger.Info().Msg("session closed")
	}
}

func (s *Server) flush() {
	var failed []net.Socket
	var errs []error
	s.sender.FlushAll(func(sock net.Socket, err error) {
		failed = append(failed, sock)
		errs = append(errs, err)
	})
	for i, sock := range failed {
		if sess := s.reg.get(sock); sess != nil {
			s.sessionError(sess, errs[i])
		} else {
			s.sender.Remove(sock)
		}
	}
}
