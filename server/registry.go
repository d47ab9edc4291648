package server

import (
	"time"

	"github.com/lcx/pokernet/net"
)

type closeEntry struct {
	deadline time.Time
	sess     *Session
}

// registry maps sockets to sessions in admission order and keeps the
// delayed-close list. It belongs to the loop goroutine and has no lock.
type registry struct {
	sessions map[net.Socket]*Session
	order    []net.Socket
	closing  []closeEntry
}

func newRegistry() *registry {
	return &registry{sessions: make(map[net.Socket]*Session)}
}

func (r *registry) add(s *Session) bool {
	if _, ok := r.sessions[s.sock]; ok {
		return false
	}
	r.sessions[s.sock] = s
	r.order = append(r.order, s.sock)
	return true
}

func (r *registry) get(sock net.Socket) *Session {
	return r.sessions[sock]
}

func (r *registry) remove(sock net.Socket) {
	if _, ok := r.sessions[sock]; !ok {
		return
	}
	delete(r.sessions, sock)
	for i, s := range r.order {
		if s == sock {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

func (r *registry) all() []*Session {
	out := make([]*Session, 0, len(r.order))
	for _, sock := range r.order {
		out = append(out, r.sessions[sock])
	}
	return out
}

// live returns the sessions not yet closing.
func (r *registry) live() []*Session {
	out := make([]*Session, 0, len(r.order))
	for _, sock := range r.order {
		if s := r.sessions[sock]; s.state != SessionClosing {
			out = append(out, s)
		}
	}
	return out
}

func (r *registry) established() []*Session {
	out := make([]*Session, 0, len(r.order))
	for _, sock := range r.order {
		if s := r.sessions[sock]; s.established() {
			out = append(out, s)
		}
	}
	return out
}

func (r *registry) len() int {
	return len(r.sessions)
}

// scheduleClose moves s to the delayed-close list. A session is listed at most once.
func (r *registry) scheduleClose(s *Session, deadline time.Time) bool {
	if s.state == SessionClosing {
		return false
	}
	s.state = SessionClosing
	r.closing = append(r.closing, closeEntry{deadline: deadline, sess: s})
	return true
}

// expire removes every session whose grace period ended by now, from both the
// list and the map, and returns them for the caller to close.
func (r *registry) expire(now time.Time) []*Session {
	var expired []*Session
	kept := r.closing[:0]
	for _, e := range r.closing {
		if now.Before(e.deadline) {
			kept = append(kept, e)
			continue
		}
		expired = append(expired, e.sess)
		r.remove(e.sess.sock)
	}
	for i := len(kept); i < len(r.closing); i++ {
		r.closing[i] = closeEntry{}
	}
	r.closing = kept
	return expired
}
