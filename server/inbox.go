package server

import (
	"sync"

	"github.com/eapache/queue"
)

// inbox is an unbounded FIFO that producers on any goroutine push into and the
// loop drains once per tick. The lock covers only the push or the drain.
// A sealed inbox refuses pushes.
type inbox[T any] struct {
	mu     sync.Mutex
	q      *queue.Queue
	sealed bool
}

func newInbox[T any]() *inbox[T] {
	return &inbox[T]{q: queue.New()}
}

// push appends v and reports false when the inbox is sealed.
func (b *inbox[T]) push(v T) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.sealed {
		return false
	}
	b.q.Add(v)
	return true
}

func (b *inbox[T]) drain() []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.take()
}

// seal drains the inbox and refuses every later push.
func (b *inbox[T]) seal() []T {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sealed = true
	return b.take()
}

func (b *inbox[T]) take() []T {
	n := b.q.Length()
	if n == 0 {
		return nil
	}
	out := make([]T, 0, n)
	for b.q.Length() > 0 {
		out = append(out, b.q.Remove().(T))
	}
	return out
}

func (b *inbox[T]) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.q.Length()
}
