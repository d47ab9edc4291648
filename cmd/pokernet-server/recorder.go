package main

import (
	"github.com/lcx/pokernet/history"
	"github.com/lcx/pokernet/plugin"
	"github.com/lcx/pokernet/protocol"
	"github.com/lcx/pokernet/server"
)

// pluginRecorder forwards to the sqlite history plugin current at call time, so
// a reload that recreates the plugin is picked up. Without the plugin it does nothing.
type pluginRecorder struct{}

func (pluginRecorder) current() *history.Recorder {
	p, err := plugin.GetDefaultPlugin(plugin.History, "sqlite")
	if err != nil {
		return nil
	}
	r, _ := p.(*history.Recorder)
	return r
}

func (pr pluginRecorder) PlayerJoined(player server.PlayerData) {
	if r := pr.current(); r != nil {
		r.PlayerJoined(player)
	}
}

func (pr pluginRecorder) PlayerLeft(player server.PlayerData, reason protocol.ErrorCode) {
	if r := pr.current(); r != nil {
		r.PlayerLeft(player, reason)
	}
}

func (pr pluginRecorder) GameStarted(players []server.PlayerData) {
	if r := pr.current(); r != nil {
		r.GameStarted(players)
	}
}

func (pr pluginRecorder) HandStarted(hand uint32, players int) {
	if r := pr.current(); r != nil {
		r.HandStarted(hand, players)
	}
}
