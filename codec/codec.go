// Package codec encodes packet bodies. The framing around a body belongs to the net package.
package codec

import (
	"errors"

	"github.com/lcx/pokernet/protocol"
)

var (
	errCodecNotInit = errors.New("codec not init")

	_codec Codec = &DefaultCodec{}
)

// Codec 解码器.
type Codec interface {
	Encode(p protocol.Packet, b []byte) ([]byte, error)
	Decode(k protocol.Kind, b []byte) (protocol.Packet, error)
}

// Encode appends the body of p to b.
func Encode(p protocol.Packet, b []byte) ([]byte, error) {
	if _codec == nil {
		return nil, errCodecNotInit
	}
	return _codec.Encode(p, b)
}

// Decode parses a body of kind k.
func Decode(k protocol.Kind, b []byte) (protocol.Packet, error) {
	if _codec == nil {
		return nil, errCodecNotInit
	}
	return _codec.Decode(k, b)
}

// SetCodec 设置解码器.
func SetCodec(c Codec) {
	_codec = c
}
