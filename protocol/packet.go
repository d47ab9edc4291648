// Package protocol defines the packets exchanged between a poker client and server.
// Byte layout is owned by the codec package; this package only names the packet kinds
// and the fields each kind must carry.
package protocol

import (
	"fmt"

	"github.com/paulhankin/poker"
)

// Kind identifies a packet type on the wire.
type Kind uint32

const (
	KindUnknown Kind = iota
	KindJoinGame
	KindJoinGameAck
	KindError
	KindPlayerJoined
	KindPlayerLeft
	KindGameStart
	KindHandStart
	KindPlayersTurn
)

var _kindNames = map[Kind]string{
	KindJoinGame:     "JoinGame",
	KindJoinGameAck:  "JoinGameAck",
	KindError:        "Error",
	KindPlayerJoined: "PlayerJoined",
	KindPlayerLeft:   "PlayerLeft",
	KindGameStart:    "GameStart",
	KindHandStart:    "HandStart",
	KindPlayersTurn:  "PlayersTurn",
}

func (k Kind) String() string {
	if s, ok := _kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", uint32(k))
}

// Valid reports whether k names a known packet kind.
func (k Kind) Valid() bool {
	_, ok := _kindNames[k]
	return ok
}

// Packet is a decoded protocol record.
type Packet interface {
	Kind() Kind
}

// PlayerType distinguishes human players from computer opponents.
type PlayerType uint32

const (
	PlayerTypeHuman PlayerType = iota
	PlayerTypeComputer
)

// GameData is the table configuration handed to every joining client.
type GameData struct {
	MaxNumberOfPlayers     uint32
	StartMoney             uint32
	SmallBlind             uint32
	HandsBeforeRaise       uint32
	GuiSpeed               uint32
	PlayerActionTimeoutSec uint32
}

// JoinGame is the first packet a client sends after connecting.
type JoinGame struct {
	Password   string
	PlayerName string
	PlayerType PlayerType
}

// JoinGameAck confirms a join and carries the table configuration.
type JoinGameAck struct {
	PlayerID uint32
	GameData GameData
}

// Error reports a server side rejection or failure.
type Error struct {
	ErrorCode ErrorCode
}

// PlayerJoined announces an identified player at the table.
type PlayerJoined struct {
	PlayerID   uint32
	PlayerName string
}

// PlayerLeft announces that a player left the table.
type PlayerLeft struct {
	PlayerID uint32
}

// GameStart tells every client that the game begins.
type GameStart struct {
	StartDealerPlayerID uint32
}

// HandStart opens a new hand and carries the receiving player's hole cards.
type HandStart struct {
	HandNum   uint32
	YourCards [2]poker.Card
}

// PlayersTurn names the player whose action the table is waiting for.
type PlayersTurn struct {
	PlayerID uint32
	Round    uint32
}

func (*JoinGame) Kind() Kind     { return KindJoinGame }
func (*JoinGameAck) Kind() Kind  { return KindJoinGameAck }
func (*Error) Kind() Kind        { return KindError }
func (*PlayerJoined) Kind() Kind { return KindPlayerJoined }
func (*PlayerLeft) Kind() Kind   { return KindPlayerLeft }
func (*GameStart) Kind() Kind    { return KindGameStart }
func (*HandStart) Kind() Kind    { return KindHandStart }
func (*PlayersTurn) Kind() Kind  { return KindPlayersTurn }

// New returns an empty packet of the given kind.
func New(k Kind) (Packet, error) {
	switch k {
	case KindJoinGame:
		return &JoinGame{}, nil
	case KindJoinGameAck:
		return &JoinGameAck{}, nil
	case KindError:
		return &Error{}, nil
	case KindPlayerJoined:
		return &PlayerJoined{}, nil
	case KindPlayerLeft:
		return &PlayerLeft{}, nil
	case KindGameStart:
		return &GameStart{}, nil
	case KindHandStart:
		return &HandStart{}, nil
	case KindPlayersTurn:
		return &PlayersTurn{}, nil
	}
	return nil, fmt.Errorf("unknown packet kind %d", uint32(k))
}
