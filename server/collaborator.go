package server

import (
	"github.com/paulhankin/poker"

	"github.com/lcx/pokernet/protocol"
)

// Game is the game-logic side of the table. The loop calls it on its own
// goroutine; implementations must not block.
type Game interface {
	// Start begins a game with the identified players in join order.
	Start(players []PlayerData, data protocol.GameData) error
	// HoleCards returns the two private cards of a player for a hand.
	HoleCards(playerID, hand uint32) ([2]poker.Card, bool)
	// OnPacket receives packets from established sessions.
	OnPacket(player PlayerData, pkt protocol.Packet)
}

// Callback reports table changes to a presentation layer.
type Callback interface {
	PlayerJoined(player PlayerData)
	PlayerLeft(player PlayerData)
	GameStarted(players []PlayerData)
}

// Recorder persists table events. Calls must return quickly.
type Recorder interface {
	PlayerJoined(player PlayerData)
	PlayerLeft(player PlayerData, reason protocol.ErrorCode)
	GameStarted(players []PlayerData)
	HandStarted(hand uint32, players int)
}

// NopCallback ignores every event.
type NopCallback struct{}

func (NopCallback) PlayerJoined(PlayerData)  {}
func (NopCallback) PlayerLeft(PlayerData)    {}
func (NopCallback) GameStarted([]PlayerData) {}

type nopRecorder struct{}

func (nopRecorder) PlayerJoined(PlayerData)                   {}
func (nopRecorder) PlayerLeft(PlayerData, protocol.ErrorCode) {}
func (nopRecorder) GameStarted([]PlayerData)                  {}
func (nopRecorder) HandStarted(uint32, int)                   {}
