package net

import (
	"net/netip"
	"strconv"
)

// Socket is a non-blocking stream socket descriptor.
type Socket int

// InvalidSocket marks a socket that was never created or is already closed.
const InvalidSocket Socket = -1

func (s Socket) String() string {
	return strconv.Itoa(int(s))
}

// Valid reports whether s refers to a descriptor.
func (s Socket) Valid() bool {
	return s >= 0
}

// ConnectData describes an accepted connection awaiting admission.
type ConnectData struct {
	Socket Socket
	Peer   netip.AddrPort
}
