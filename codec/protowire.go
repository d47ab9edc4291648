package codec

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulhankin/poker"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/lcx/pokernet/protocol"
)

var errNilPacket = errors.New("encode nil packet")

var _deck = func() map[poker.Card]struct{} {
	deck := make(map[poker.Card]struct{}, 52)
	for s := 0; s < 4; s++ {
		for r := 1; r <= 13; r++ {
			if c, err := poker.MakeCard(poker.Suit(s), poker.Rank(r)); err == nil {
				deck[c] = struct{}{}
			}
		}
	}
	return deck
}()

// DefaultCodec writes packet bodies in protobuf wire format without generated types.
// Unknown fields are skipped on decode so older peers tolerate newer packets.
type DefaultCodec struct{}

// Encode ...
func (c *DefaultCodec) Encode(p protocol.Packet, b []byte) ([]byte, error) {
	if nilPacket(p) {
		return nil, errNilPacket
	}
	switch v := p.(type) {
	case *protocol.JoinGame:
		b = appendString(b, 1, v.Password)
		b = appendString(b, 2, v.PlayerName)
		b = appendUint(b, 3, uint32(v.PlayerType))
	case *protocol.JoinGameAck:
		b = appendUint(b, 1, v.PlayerID)
		b = protowire.AppendTag(b, 2, protowire.BytesType)
		b = protowire.AppendBytes(b, appendGameData(nil, &v.GameData))
	case *protocol.Error:
		b = appendUint(b, 1, uint32(v.ErrorCode))
	case *protocol.PlayerJoined:
		b = appendUint(b, 1, v.PlayerID)
		b = appendString(b, 2, v.PlayerName)
	case *protocol.PlayerLeft:
		b = appendUint(b, 1, v.PlayerID)
	case *protocol.GameStart:
		b = appendUint(b, 1, v.StartDealerPlayerID)
	case *protocol.HandStart:
		b = appendUint(b, 1, v.HandNum)
		b = appendUint(b, 2, uint32(v.YourCards[0]))
		b = appendUint(b, 3, uint32(v.YourCards[1]))
	case *protocol.PlayersTurn:
		b = appendUint(b, 1, v.PlayerID)
		b = appendUint(b, 2, v.Round)
	default:
		return nil, fmt.Errorf("encode: unsupported packet %T", p)
	}
	return b, nil
}

// Decode ...
func (c *DefaultCodec) Decode(k protocol.Kind, b []byte) (protocol.Packet, error) {
	p, err := protocol.New(k)
	if err != nil {
		return nil, err
	}

	switch v := p.(type) {
	case *protocol.JoinGame:
		err = consumeFields(b, func(num protowire.Number, f field) error {
			switch num {
			case 1:
				v.Password = f.str()
			case 2:
				v.PlayerName = f.str()
			case 3:
				v.PlayerType = protocol.PlayerType(f.u32())
			}
			return nil
		})
	case *protocol.JoinGameAck:
		err = consumeFields(b, func(num protowire.Number, f field) error {
			switch num {
			case 1:
				v.PlayerID = f.u32()
			case 2:
				return consumeGameData(f.raw, &v.GameData)
			}
			return nil
		})
	case *protocol.Error:
		err = consumeFields(b, func(num protowire.Number, f field) error {
			if num == 1 {
				v.ErrorCode = protocol.ErrorCode(f.u32())
			}
			return nil
		})
	case *protocol.PlayerJoined:
		err = consumeFields(b, func(num protowire.Number, f field) error {
			switch num {
			case 1:
				v.PlayerID = f.u32()
			case 2:
				v.PlayerName = f.str()
			}
			return nil
		})
	case *protocol.PlayerLeft:
		err = consumeFields(b, func(num protowire.Number, f field) error {
			if num == 1 {
				v.PlayerID = f.u32()
			}
			return nil
		})
	case *protocol.GameStart:
		err = consumeFields(b, func(num protowire.Number, f field) error {
			if num == 1 {
				v.StartDealerPlayerID = f.u32()
			}
			return nil
		})
	case *protocol.HandStart:
		err = consumeFields(b, func(num protowire.Number, f field) error {
			switch num {
			case 1:
				v.HandNum = f.u32()
			case 2, 3:
				c, err := f.card()
				if err != nil {
					return err
				}
				v.YourCards[num-2] = c
			}
			return nil
		})
	case *protocol.PlayersTurn:
		err = consumeFields(b, func(num protowire.Number, f field) error {
			switch num {
			case 1:
				v.PlayerID = f.u32()
			case 2:
				v.Round = f.u32()
			}
			return nil
		})
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", k, err)
	}
	return p, nil
}

// nilPacket also catches a nil pointer stored in the interface.
func nilPacket(p protocol.Packet) bool {
	switch v := p.(type) {
	case nil:
		return true
	case *protocol.JoinGame:
		return v == nil
	case *protocol.JoinGameAck:
		return v == nil
	case *protocol.Error:
		return v == nil
	case *protocol.PlayerJoined:
		return v == nil
	case *protocol.PlayerLeft:
		return v == nil
	case *protocol.GameStart:
		return v == nil
	case *protocol.HandStart:
		return v == nil
	case *protocol.PlayersTurn:
		return v == nil
	}
	return false
}

func appendUint(b []byte, num protowire.Number, v uint32) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, uint64(v))
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	if s == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, s)
}

func appendGameData(b []byte, d *protocol.GameData) []byte {
	b = appendUint(b, 1, d.MaxNumberOfPlayers)
	b = appendUint(b, 2, d.StartMoney)
	b = appendUint(b, 3, d.SmallBlind)
	b = appendUint(b, 4, d.HandsBeforeRaise)
	b = appendUint(b, 5, d.GuiSpeed)
	b = appendUint(b, 6, d.PlayerActionTimeoutSec)
	return b
}

func consumeGameData(b []byte, d *protocol.GameData) error {
	return consumeFields(b, func(num protowire.Number, f field) error {
		switch num {
		case 1:
			d.MaxNumberOfPlayers = f.u32()
		case 2:
			d.StartMoney = f.u32()
		case 3:
			d.SmallBlind = f.u32()
		case 4:
			d.HandsBeforeRaise = f.u32()
		case 5:
			d.GuiSpeed = f.u32()
		case 6:
			d.PlayerActionTimeoutSec = f.u32()
		}
		return nil
	})
}

// field holds one decoded value; varints land in num, length-delimited values in raw.
type field struct {
	typ protowire.Type
	num uint64
	raw []byte
}

func (f field) u32() uint32 {
	if f.typ != protowire.VarintType {
		return 0
	}
	return uint32(f.num)
}

// card accepts only the 52 values poker.MakeCard produces.
func (f field) card() (poker.Card, error) {
	if f.typ != protowire.VarintType || f.num > math.MaxUint16 {
		return 0, fmt.Errorf("invalid card field")
	}
	c := poker.Card(f.num)
	if _, ok := _deck[c]; !ok {
		return 0, fmt.Errorf("invalid card %#x", f.num)
	}
	return c, nil
}

func (f field) str() string {
	if f.typ != protowire.BytesType {
		return ""
	}
	return string(f.raw)
}

func consumeFields(b []byte, fn func(protowire.Number, field) error) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		var f field
		f.typ = typ
		switch typ {
		case protowire.VarintType:
			f.num, n = protowire.ConsumeVarint(b)
		case protowire.BytesType:
			f.raw, n = protowire.ConsumeBytes(b)
		default:
			n = protowire.ConsumeFieldValue(num, typ, b)
			if n >= 0 {
				b = b[n:]
				continue
			}
		}
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		if err := fn(num, f); err != nil {
			return err
		}
	}
	return nil
}
