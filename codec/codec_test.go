package codec

import (
	"testing"

	"github.com/paulhankin/poker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/lcx/pokernet/protocol"
)

func TestRoundTrip(t *testing.T) {
	ace, err := poker.MakeCard(poker.Suit(0), poker.Rank(1))
	require.NoError(t, err)
	deuce, err := poker.MakeCard(poker.Suit(3), poker.Rank(2))
	require.NoError(t, err)
	cards := [2]poker.Card{ace, deuce}
	packets := []protocol.Packet{
		&protocol.JoinGame{Password: "secret", PlayerName: "Alice", PlayerType: protocol.PlayerTypeComputer},
		&protocol.JoinGameAck{PlayerID: 3, GameData: protocol.GameData{
			MaxNumberOfPlayers: 10, StartMoney: 5000, SmallBlind: 50,
			HandsBeforeRaise: 8, GuiSpeed: 2, PlayerActionTimeoutSec: 20,
		}},
		&protocol.Error{ErrorCode: protocol.ErrNetPlayerNameInUse},
		&protocol.PlayerJoined{PlayerID: 7, PlayerName: "Bob"},
		&protocol.PlayerLeft{PlayerID: 7},
		&protocol.GameStart{StartDealerPlayerID: 2},
		&protocol.HandStart{HandNum: 12, YourCards: cards},
		&protocol.PlayersTurn{PlayerID: 4, Round: 1},
	}
	for _, p := range packets {
		t.Run(p.Kind().String(), func(t *testing.T) {
			b, err := Encode(p, nil)
			require.NoError(t, err)
			got, err := Decode(p.Kind(), b)
			require.NoError(t, err)
			assert.Equal(t, p, got)
		})
	}
}

func TestZeroFieldsEncodeEmpty(t *testing.T) {
	b, err := Encode(&protocol.PlayerLeft{}, nil)
	require.NoError(t, err)
	assert.Empty(t, b)

	p, err := Decode(protocol.KindPlayerLeft, nil)
	require.NoError(t, err)
	assert.Equal(t, &protocol.PlayerLeft{}, p)
}

func TestEncodeAppends(t *testing.T) {
	prefix := []byte{0xde, 0xad}
	b, err := Encode(&protocol.PlayerLeft{PlayerID: 1}, prefix)
	require.NoError(t, err)
	assert.Equal(t, prefix, b[:2])
	assert.Greater(t, len(b), 2)
}

func TestDecodeSkipsUnknownFields(t *testing.T) {
	b, err := Encode(&protocol.PlayerJoined{PlayerID: 5, PlayerName: "Carol"}, nil)
	require.NoError(t, err)
	b = protowire.AppendTag(b, 9, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, 0xcafe)
	b = protowire.AppendTag(b, 10, protowire.BytesType)
	b = protowire.AppendString(b, "future")
	b = protowire.AppendTag(b, 11, protowire.VarintType)
	b = protowire.AppendVarint(b, 99)

	p, err := Decode(protocol.KindPlayerJoined, b)
	require.NoError(t, err)
	assert.Equal(t, &protocol.PlayerJoined{PlayerID: 5, PlayerName: "Carol"}, p)
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode(protocol.Kind(200), nil)
	assert.Error(t, err)

	b, err := Encode(&protocol.JoinGame{PlayerName: "Alice"}, nil)
	require.NoError(t, err)
	_, err = Decode(protocol.KindJoinGame, b[:len(b)-1])
	assert.Error(t, err)

	bad := protowire.AppendTag(nil, 2, protowire.BytesType)
	bad = protowire.AppendBytes(bad, []byte{1, 2, 3})
	_, err = Decode(protocol.KindHandStart, bad)
	assert.Error(t, err)
}

func TestHandStartCarriesEveryCard(t *testing.T) {
	var deck []poker.Card
	for s := 0; s < 4; s++ {
		for r := 1; r <= 13; r++ {
			c, err := poker.MakeCard(poker.Suit(s), poker.Rank(r))
			require.NoError(t, err)
			deck = append(deck, c)
		}
	}
	require.Len(t, deck, 52)

	for i, c := range deck {
		other := deck[(i+13)%len(deck)]
		b, err := Encode(&protocol.HandStart{HandNum: 1, YourCards: [2]poker.Card{c, other}}, nil)
		require.NoError(t, err)
		p, err := Decode(protocol.KindHandStart, b)
		require.NoError(t, err)
		got := p.(*protocol.HandStart).YourCards
		assert.Equal(t, c, got[0])
		assert.Equal(t, other, got[1])
		assert.Contains(t, deck, got[0])
		assert.Contains(t, deck, got[1])
	}
}

func TestHandStartRejectsInvalidCard(t *testing.T) {
	b := appendUint(nil, 1, 4)
	b = appendUint(b, 2, 0x7fff)
	_, err := Decode(protocol.KindHandStart, b)
	assert.Error(t, err)

	b = appendUint(nil, 3, 1<<20)
	_, err = Decode(protocol.KindHandStart, b)
	assert.Error(t, err)
}

func TestEncodeErrors(t *testing.T) {
	_, err := Encode(nil, nil)
	assert.ErrorIs(t, err, errNilPacket)

	var join *protocol.JoinGame
	_, err = Encode(join, nil)
	assert.ErrorIs(t, err, errNilPacket)
	var hand *protocol.HandStart
	_, err = Encode(hand, nil)
	assert.ErrorIs(t, err, errNilPacket)

	_, err = Encode(unknownPacket{}, nil)
	assert.Error(t, err)
}

func TestSetCodec(t *testing.T) {
	defer SetCodec(&DefaultCodec{})

	SetCodec(nil)
	_, err := Encode(&protocol.PlayerLeft{PlayerID: 1}, nil)
	assert.ErrorIs(t, err, errCodecNotInit)
	_, err = Decode(protocol.KindPlayerLeft, nil)
	assert.ErrorIs(t, err, errCodecNotInit)
}

type unknownPacket struct{}

func (unknownPacket) Kind() protocol.Kind { return protocol.KindUnknown }
