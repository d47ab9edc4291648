package main

import (
	"github.com/pterm/pterm"

	"github.com/lcx/pokernet/client"
	"github.com/lcx/pokernet/protocol"
)

// printer shows table events on the terminal.
type printer struct{}

func newPrinter() client.Callback {
	return printer{}
}

func (printer) PlayerJoined(name string) {
	pterm.Success.Printfln("%s joined the table", name)
}

func (printer) PlayerLeft(name string) {
	pterm.Warning.Printfln("%s left the table", name)
}

func (printer) StatusChanged(status client.Status) {
	switch status {
	case client.StatusResolveDone:
		pterm.Info.Println("server address resolved")
	case client.StatusConnectDone:
		pterm.Info.Println("connected")
	case client.StatusSessionDone:
		pterm.Info.Println("joined, waiting for the game to start")
	case client.StatusGameStart:
		pterm.Info.Println("game started")
	}
}

func (printer) InGamePacket(pkt protocol.Packet) {
	switch p := pkt.(type) {
	case *protocol.HandStart:
		pterm.Info.Printfln("hand %d: %v %v", p.HandNum, p.YourCards[0], p.YourCards[1])
	case *protocol.PlayersTurn:
		pterm.Info.Printfln("player %d to act, round %d", p.PlayerID, p.Round)
	default:
		pterm.Debug.Printfln("%s", pkt.Kind())
	}
}

func (printer) Failed(err error) {
	pterm.Error.Println(err)
}
