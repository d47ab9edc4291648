package client

import (
	"time"

	"github.com/lcx/pokernet/net"
)

type options struct {
	lookup        net.LookupFunc
	pollTimeout   time.Duration
	resolverGrace time.Duration
}

func defaultOptions() options {
	return options{
		pollTimeout:   50 * time.Millisecond,
		resolverGrace: 500 * time.Millisecond,
	}
}

// Option customizes a Machine or Client.
type Option func(*options)

// WithLookup replaces the system resolver.
func WithLookup(lookup net.LookupFunc) Option {
	return func(o *options) {
		o.lookup = lookup
	}
}

// WithPollTimeout bounds the wait of each tick.
func WithPollTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.pollTimeout = d
		}
	}
}

// WithResolverGrace bounds the wait for an abandoned resolver.
func WithResolverGrace(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.resolverGrace = d
		}
	}
}
