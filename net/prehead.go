package net

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/lcx/pokernet/codec"
	"github.com/lcx/pokernet/protocol"
)

// PRE_HEAD_SIZE PreHead长度.
const PRE_HEAD_SIZE = 12

// MaxPacketSize bounds the body of one frame.
const MaxPacketSize = 64 * 1024

// PreHead precedes every packet body on the wire.
type PreHead struct {
	Kind     uint32
	BodySize uint32
	Seq      uint32
}

// EncodePreHead 编码preHead.
func EncodePreHead(hdr *PreHead) []byte {
	return AppendPreHead(make([]byte, 0, PRE_HEAD_SIZE), hdr)
}

// AppendPreHead appends the encoded header to b.
func AppendPreHead(b []byte, hdr *PreHead) []byte {
	b = binary.LittleEndian.AppendUint32(b, hdr.Kind)
	b = binary.LittleEndian.AppendUint32(b, hdr.BodySize)
	return binary.LittleEndian.AppendUint32(b, hdr.Seq)
}

// DecodePreHead 解prehead.
func DecodePreHead(buf []byte) (*PreHead, error) {
	if len(buf) < PRE_HEAD_SIZE {
		return &PreHead{}, errors.New("buff too small")
	}
	hdr := &PreHead{
		Kind:     binary.LittleEndian.Uint32(buf[0:4]),
		BodySize: binary.LittleEndian.Uint32(buf[4:8]),
		Seq:      binary.LittleEndian.Uint32(buf[8:12]),
	}
	if !protocol.Kind(hdr.Kind).Valid() {
		return hdr, fmt.Errorf("invalid packet kind %d", hdr.Kind)
	}
	if hdr.BodySize > MaxPacketSize {
		return hdr, fmt.Errorf("body size %d exceeds %d", hdr.BodySize, MaxPacketSize)
	}
	return hdr, nil
}

// AppendFrame appends one framed packet to b. On error b is returned unchanged.
func AppendFrame(b []byte, pkt protocol.Packet, seq uint32) ([]byte, error) {
	start := len(b)
	out, err := codec.Encode(pkt, append(b, make([]byte, PRE_HEAD_SIZE)...))
	if err != nil {
		return b[:start], err
	}
	body := len(out) - start - PRE_HEAD_SIZE
	if body > MaxPacketSize {
		return b[:start], fmt.Errorf("%s body of %d bytes exceeds %d", pkt.Kind(), body, MaxPacketSize)
	}
	AppendPreHead(out[start:start], &PreHead{Kind: uint32(pkt.Kind()), BodySize: uint32(body), Seq: seq})
	return out, nil
}
