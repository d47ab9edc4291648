package net

import (
	"github.com/lcx/pokernet/metrics"
	"github.com/lcx/pokernet/protocol"
)

type sendState struct {
	buf []byte
	seq uint32
}

// Sender frames packets and writes them without blocking. Bytes the socket does
// not take immediately stay queued per socket until a later Flush.
// A Sender belongs to a single loop goroutine.
type Sender struct {
	conns map[Socket]*sendState
}

func NewSender() *Sender {
	return &Sender{conns: make(map[Socket]*sendState)}
}

func (s *Sender) state(sock Socket) *sendState {
	st, ok := s.conns[sock]
	if !ok {
		st = &sendState{}
		s.conns[sock] = st
	}
	return st
}

// Send queues pkt for sock and tries to flush. Encoding errors leave the queue untouched.
func (s *Sender) Send(sock Socket, pkt protocol.Packet) error {
	st := s.state(sock)
	buf, err := AppendFrame(st.buf, pkt, st.seq+1)
	if err != nil {
		metrics.IncrCounterWithGroup("net", "encode_error_total", 1)
		return newError(protocol.ErrNetInvalidPacket, err)
	}
	st.buf = buf
	st.seq++
	metrics.IncrCounterWithDimGroup("net", "packet_sent_total", 1, metrics.Dimension{"kind": pkt.Kind().String()})
	return s.Flush(sock)
}

// Flush writes queued bytes until the socket would block.
func (s *Sender) Flush(sock Socket) error {
	st, ok := s.conns[sock]
	if !ok {
		return nil
	}
	for len(st.buf) > 0 {
		n, err := Write(sock, st.buf)
		if n > 0 {
			metrics.IncrCounterWithGroup("net", "bytes_sent_total", metrics.Value(n))
			st.buf = append(st.buf[:0], st.buf[n:]...)
		}
		if err == ErrWouldBlock {
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// FlushAll flushes every socket and reports the ones that failed.
func (s *Sender) FlushAll(onErr func(Socket, error)) {
	for sock, st := range s.conns {
		if len(st.buf) == 0 {
			continue
		}
		if err := s.Flush(sock); err != nil && onErr != nil {
			onErr(sock, err)
		}
	}
}

// Pending returns the number of queued bytes for sock.
func (s *Sender) Pending(sock Socket) int {
	if st, ok := s.conns[sock]; ok {
		return len(st.buf)
	}
	return 0
}

// Remove forgets the queue and sequence of sock.
func (s *Sender) Remove(sock Socket) {
	delete(s.conns, sock)
}
