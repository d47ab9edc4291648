package server

import (
	"fmt"
	"math/rand/v2"
	"sync"

	"github.com/paulhankin/poker"

	"github.com/lcx/pokernet/log"
	"github.com/lcx/pokernet/protocol"
)

// Dealer is a minimal Game that only deals hole cards: each hand gets a fresh
// shuffled deck and players receive two cards each in seat order. Betting is
// left to a real game implementation.
type Dealer struct {
	mu      sync.Mutex
	seats   []uint32
	hands   map[uint32]map[uint32][2]poker.Card
	shuffle func(n int) []int
}

// NewDealer creates a dealer using a random shuffle.
func NewDealer() *Dealer {
	return &Dealer{
		hands:   make(map[uint32]map[uint32][2]poker.Card),
		shuffle: rand.Perm,
	}
}

func fullDeck() ([]poker.Card, error) {
	deck := make([]poker.Card, 0, 52)
	for s := 0; s < 4; s++ {
		for r := 1; r <= 13; r++ {
			c, err := poker.MakeCard(poker.Suit(s), poker.Rank(r))
			if err != nil {
				return nil, fmt.Errorf("make card %d/%d: %w", s, r, err)
			}
			deck = append(deck, c)
		}
	}
	return deck, nil
}

// Start seats the players.
func (d *Dealer) Start(players []PlayerData, data protocol.GameData) error {
	if len(players)*2 > 52 {
		return fmt.Errorf("too many players: %d", len(players))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seats = d.seats[:0]
	for _, p := range players {
		d.seats = append(d.seats, p.ID)
	}
	d.hands = make(map[uint32]map[uint32][2]poker.Card)
	return nil
}

// HoleCards deals hand on first use and returns the cards of playerID.
func (d *Dealer) HoleCards(playerID, hand uint32) ([2]poker.Card, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	dealt, ok := d.hands[hand]
	if !ok {
		deck, err := fullDeck()
		if err != nil {
			log.Error().Err(err).Msg("build deck")
			return [2]poker.Card{}, false
		}
		order := d.shuffle(len(deck))
		dealt = make(map[uint32][2]poker.Card, len(d.seats))
		for i, id := range d.seats {
			dealt[id] = [2]poker.Card{deck[order[2*i]], deck[order[2*i+1]]}
		}
		d.hands[hand] = dealt
		for old := range d.hands {
			if old+1 < hand {
				delete(d.hands, old)
			}
		}
	}
	cards, ok := dealt[playerID]
	return cards, ok
}

// OnPacket logs packets; the dealer has no betting logic.
func (d *Dealer) OnPacket(player PlayerData, pkt protocol.Packet) {
	log.Debug().Uint32("player", player.ID).Str("kind", pkt.Kind().String()).Msg("packet from player")
}
