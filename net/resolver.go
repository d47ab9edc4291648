package net

import (
	"context"
	"errors"
	"fmt"
	stdnet "net"
	"net/netip"
	"time"

	"github.com/lcx/pokernet/protocol"
)

// LookupFunc resolves host for network "ip4" or "ip6".
type LookupFunc func(ctx context.Context, network, host string) ([]netip.Addr, error)

// ResolveStatus is the result of joining a ResolverTask.
type ResolveStatus int

const (
	ResolveRunning ResolveStatus = iota
	ResolveSucceeded
	ResolveFailed
)

func (s ResolveStatus) String() string {
	switch s {
	case ResolveSucceeded:
		return "succeeded"
	case ResolveFailed:
		return "failed"
	}
	return "running"
}

var errResolveRunning = errors.New("resolution still running")

// ResolverTask runs one hostname lookup on its own goroutine. The goroutine owns
// the result until done is closed; an abandoned task finishes and is collected
// without anyone reading it.
type ResolverTask struct {
	host   string
	done   chan struct{}
	cancel context.CancelFunc
	addr   netip.Addr
	err    error
}

// StartResolve launches resolution of host. A nil lookup uses the system resolver.
func StartResolve(host string, family AddrFamily, lookup LookupFunc) *ResolverTask {
	if lookup == nil {
		lookup = stdnet.DefaultResolver.LookupNetIP
	}
	ctx, cancel := context.WithCancel(context.Background())
	t := &ResolverTask{
		host:   host,
		done:   make(chan struct{}),
		cancel: cancel,
	}
	go t.run(ctx, family, lookup)
	return t
}

func (t *ResolverTask) run(ctx context.Context, family AddrFamily, lookup LookupFunc) {
	defer close(t.done)
	defer t.cancel()

	addrs, err := lookup(ctx, family.network(), t.host)
	if err != nil {
		t.err = newError(protocol.ErrSockResolveFailed, err)
		return
	}
	for _, a := range addrs {
		if family.Matches(a) {
			t.addr = a.Unmap()
			return
		}
	}
	t.err = newError(protocol.ErrSockResolveFailed, fmt.Errorf("no %s address for %q", family, t.host))
}

// Join waits at most wait for the lookup to finish.
func (t *ResolverTask) Join(wait time.Duration) ResolveStatus {
	if wait <= 0 {
		select {
		case <-t.done:
		default:
			return ResolveRunning
		}
	} else {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-t.done:
		case <-timer.C:
			return ResolveRunning
		}
	}
	if t.err != nil {
		return ResolveFailed
	}
	return ResolveSucceeded
}

// Result returns the resolved address once Join reported completion.
func (t *ResolverTask) Result() (netip.Addr, error) {
	select {
	case <-t.done:
		return t.addr, t.err
	default:
		return netip.Addr{}, errResolveRunning
	}
}

// Abandon cancels the lookup and waits at most grace for it to wind down.
// It reports whether the task finished within grace.
func (t *ResolverTask) Abandon(grace time.Duration) bool {
	t.cancel()
	return t.Join(grace) != ResolveRunning
}
