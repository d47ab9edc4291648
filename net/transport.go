// Package net is the socket layer shared by the poker client and server: non-blocking
// socket primitives, packet framing, per-socket send and receive queues, background
// name resolution and the accepting listener.
package net

// ConnectHandler receives accepted connections. Implementations must not block.
type ConnectHandler interface {
	AddConnection(cd ConnectData)
}

// ConnectHandlerFunc adapts a function to ConnectHandler.
type ConnectHandlerFunc func(cd ConnectData)

func (f ConnectHandlerFunc) AddConnection(cd ConnectData) {
	f(cd)
}
