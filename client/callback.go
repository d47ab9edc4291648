package client

import "github.com/lcx/pokernet/protocol"

// Callback receives session events on the loop goroutine. Implementations must not block.
type Callback interface {
	PlayerJoined(name string)
	PlayerLeft(name string)
	// InGamePacket delivers packets the session layer does not consume itself.
	InGamePacket(pkt protocol.Packet)
	StatusChanged(status Status)
	// Failed is called once with the error that ended the attempt.
	Failed(err error)
}

// NopCallback ignores everything. Embed it to implement only part of Callback.
type NopCallback struct{}

func (NopCallback) PlayerJoined(string)          {}
func (NopCallback) PlayerLeft(string)            {}
func (NopCallback) InGamePacket(protocol.Packet) {}
func (NopCallback) StatusChanged(Status)         {}
func (NopCallback) Failed(error)                 {}
