package server

import (
	"fmt"
	"slices"

	"github.com/lcx/pokernet/log"
	"github.com/lcx/pokernet/metrics"
	"github.com/lcx/pokernet/protocol"
)

// NotificationKind selects what the loop does with a notification.
type NotificationKind uint32

const (
	// NotifyGameStart starts the game if enough players are identified.
	// Param1, when non-zero, is the id of the starting dealer.
	NotifyGameStart NotificationKind = iota + 1
	// NotifyWaitForClientAction broadcasts PlayersTurn{Param1 player, Param2 round}.
	NotifyWaitForClientAction
	// NotifyHandStart sends every player its hole cards for hand Param1.
	NotifyHandStart
)

func (k NotificationKind) String() string {
	switch k {
	case NotifyGameStart:
		return "GameStart"
	case NotifyWaitForClientAction:
		return "WaitForClientAction"
	case NotifyHandStart:
		return "HandStart"
	}
	return fmt.Sprintf("Notification(%d)", uint32(k))
}

// Notification is an event posted into the loop by another goroutine.
type Notification struct {
	Kind   NotificationKind
	Param1 uint32
	Param2 uint32
}

func (s *Server) processNotifications() {
	for _, n := range s.notifications.drain() {
		log.Debug().Stringer("kind", n.Kind).Uint32("param1", n.Param1).Uint32("param2", n.Param2).Msg("notification")
		metrics.IncrCounterWithDimGroup("server", "notification_total", 1, metrics.Dimension{"kind": n.Kind.String()})
		switch n.Kind {
		case NotifyGameStart:
			s.startGame(n.Param1)
		case NotifyWaitForClientAction:
			s.SendToAll(&protocol.PlayersTurn{PlayerID: n.Param1, Round: n.Param2})
		case NotifyHandStart:
			s.startHand(n.Param1)
		default:
			log.Warn().Stringer("kind", n.Kind).Msg("unknown notification dropped")
		}
	}
}

func (s *Server) players() []PlayerData {
	var players []PlayerData
	for _, sess := range s.reg.established() {
		players = append(players, *sess.player)
	}
	return players
}

// startGame starts the game when enough players are identified. A dealer id of
// zero or one not at the table falls back to the first player.
func (s *Server) startGame(dealer uint32) {
	if s.gameRunning {
		log.Warn().Msg("game already running")
		return
	}
	cfg := s.cfg.Load()
	players := s.players()
	if len(players) < cfg.MinPlayers {
		log.Warn().Int("players", len(players)).Int("minPlayers", cfg.MinPlayers).Msg("not enough players to start")
		return
	}
	if err := s.game.Start(players, cfg.GameData()); err != nil {
		log.Error().Err(err).Msg("game start failed")
		return
	}
	if !slices.ContainsFunc(players, func(p PlayerData) bool { return p.ID == dealer }) {
		dealer = players[0].ID
	}
	s.gameRunning = true
	s.SendToAll(&protocol.GameStart{StartDealerPlayerID: dealer})
	log.Info().Int("players", len(players)).Uint32("dealer", dealer).Msg("game started")
	metrics.IncrCounterWithGroup("server", "game_started_total", 1)
	s.gui.GameStarted(players)
	s.recorder.GameStarted(players)
}

func (s *Server) startHand(hand uint32) {
	if !s.gameRunning {
		log.Warn().Uint32("hand", hand).Msg("hand start without a running game")
		return
	}
	dealt := 0
	for _, sess := range s.reg.established() {
		cards, ok := s.game.HoleCards(sess.player.ID, hand)
		if !ok {
			sess.logger.Warn().Uint32("hand", hand).Msg("no hole cards")
			continue
		}
		if err := s.sender.Send(sess.sock, &protocol.HandStart{HandNum: hand, YourCards: cards}); err != nil {
			s.sessionError(sess, err)
			continue
		}
		dealt++
	}
	s.recorder.HandStarted(hand, dealt)
}
