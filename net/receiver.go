package net

import (
	"fmt"
	"time"

	"github.com/lcx/pokernet/codec"
	"github.com/lcx/pokernet/metrics"
	"github.com/lcx/pokernet/protocol"
)

const readChunk = 16 * 1024

type recvState struct {
	buf []byte
	seq uint32
}

// Receiver reassembles frames per socket and decodes at most one packet per call.
// A Receiver belongs to a single loop goroutine.
type Receiver struct {
	conns   map[Socket]*recvState
	readBuf []byte
}

func NewReceiver() *Receiver {
	return &Receiver{
		conns:   make(map[Socket]*recvState),
		readBuf: make([]byte, readChunk),
	}
}

func (r *Receiver) state(sock Socket) *recvState {
	st, ok := r.conns[sock]
	if !ok {
		st = &recvState{}
		r.conns[sock] = st
	}
	return st
}

// Recv returns the next packet of sock, or nil when no complete frame arrived
// within wait. It polls at most once and reads at most once.
func (r *Receiver) Recv(sock Socket, wait time.Duration) (protocol.Packet, error) {
	st := r.state(sock)
	if pkt, err := r.next(st); pkt != nil || err != nil {
		return pkt, err
	}

	if wait > 0 {
		ready, err := PollReadable(sock, wait)
		if err != nil || !ready {
			return nil, err
		}
	}

	n, err := Read(sock, r.readBuf)
	if n > 0 {
		metrics.IncrCounterWithGroup("net", "bytes_recv_total", metrics.Value(n))
		st.buf = append(st.buf, r.readBuf[:n]...)
	}
	if err == ErrWouldBlock {
		err = nil
	}
	if err != nil {
		return nil, err
	}
	return r.next(st)
}

// Buffered reports whether a complete frame for sock is already buffered.
func (r *Receiver) Buffered(sock Socket) bool {
	st, ok := r.conns[sock]
	if !ok || len(st.buf) < PRE_HEAD_SIZE {
		return false
	}
	hdr, err := DecodePreHead(st.buf)
	if err != nil {
		return true // surfaces as an error on the next Recv
	}
	return len(st.buf) >= PRE_HEAD_SIZE+int(hdr.BodySize)
}

func (r *Receiver) next(st *recvState) (protocol.Packet, error) {
	if len(st.buf) < PRE_HEAD_SIZE {
		return nil, nil
	}
	hdr, err := DecodePreHead(st.buf)
	if err != nil {
		metrics.IncrCounterWithGroup("net", "invalid_packet_total", 1)
		return nil, newError(protocol.ErrNetInvalidPacket, err)
	}
	total := PRE_HEAD_SIZE + int(hdr.BodySize)
	if len(st.buf) < total {
		return nil, nil
	}
	if hdr.Seq != st.seq+1 {
		metrics.IncrCounterWithGroup("net", "invalid_packet_total", 1)
		return nil, newError(protocol.ErrNetInvalidPacket, fmt.Errorf("sequence %d, expected %d", hdr.Seq, st.seq+1))
	}
	pkt, err := codec.Decode(protocol.Kind(hdr.Kind), st.buf[PRE_HEAD_SIZE:total])
	if err != nil {
		metrics.IncrCounterWithGroup("net", "invalid_packet_total", 1)
		return nil, newError(protocol.ErrNetInvalidPacket, err)
	}
	st.seq = hdr.Seq
	st.buf = append(st.buf[:0], st.buf[total:]...)
	metrics.IncrCounterWithDimGroup("net", "packet_recv_total", 1, metrics.Dimension{"kind": pkt.Kind().String()})
	return pkt, nil
}

// Remove forgets buffered bytes and the sequence of sock.
func (r *Receiver) Remove(sock Socket) {
	delete(r.conns, sock)
}
