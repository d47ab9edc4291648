package net

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcx/pokernet/protocol"
)

func TestEncodeDecodePreHead(t *testing.T) {
	hdr := &PreHead{Kind: uint32(protocol.KindJoinGame), BodySize: 200, Seq: 7}
	buf := EncodePreHead(hdr)
	require.Len(t, buf, PRE_HEAD_SIZE)

	got, err := DecodePreHead(buf)
	require.NoError(t, err)
	assert.Equal(t, hdr, got)
}

func TestDecodePreHeadErrors(t *testing.T) {
	tests := []struct {
		name string
		buf  []byte
	}{
		{"too small", make([]byte, PRE_HEAD_SIZE-1)},
		{"unknown kind", EncodePreHead(&PreHead{Kind: 99, BodySize: 1, Seq: 1})},
		{"zero kind", EncodePreHead(&PreHead{Kind: 0, BodySize: 1, Seq: 1})},
		{"oversized body", EncodePreHead(&PreHead{Kind: uint32(protocol.KindError), BodySize: MaxPacketSize + 1, Seq: 1})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodePreHead(tt.buf)
			assert.Error(t, err)
		})
	}
}

func TestAppendFrame(t *testing.T) {
	prefix := []byte{0xAA}
	frame, err := AppendFrame(prefix, &protocol.PlayerJoined{PlayerID: 3, PlayerName: "Alice"}, 5)
	require.NoError(t, err)
	assert.Equal(t, byte(0xAA), frame[0])

	hdr, err := DecodePreHead(frame[1:])
	require.NoError(t, err)
	assert.Equal(t, uint32(protocol.KindPlayerJoined), hdr.Kind)
	assert.Equal(t, uint32(5), hdr.Seq)
	assert.Equal(t, len(frame)-1-PRE_HEAD_SIZE, int(hdr.BodySize))
}

func TestAppendFrameEmptyBody(t *testing.T) {
	frame, err := AppendFrame(nil, &protocol.GameStart{}, 1)
	require.NoError(t, err)
	hdr, err := DecodePreHead(frame)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), hdr.BodySize)
}

func TestAppendFrameOversized(t *testing.T) {
	big := make([]byte, MaxPacketSize+1)
	for i := range big {
		big[i] = 'x'
	}
	prefix := []byte{1, 2, 3}
	out, err := AppendFrame(prefix, &protocol.JoinGame{PlayerName: string(big)}, 1)
	assert.Error(t, err)
	assert.Equal(t, prefix, out)
}
