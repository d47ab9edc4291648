package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcx/pokernet/server"
)

func TestParseCommand(t *testing.T) {
	n, ok, err := parseCommand("start")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, server.Notification{Kind: server.NotifyGameStart}, n)

	n, ok, err = parseCommand("start 3")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, uint32(3), n.Param1)

	n, ok, err = parseCommand("  turn 2 4 ")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, server.Notification{Kind: server.NotifyWaitForClientAction, Param1: 2, Param2: 4}, n)

	n, ok, err = parseCommand("hand 7")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, server.Notification{Kind: server.NotifyHandStart, Param1: 7}, n)

	_, _, err = parseCommand("hand")
	assert.Error(t, err)
	_, _, err = parseCommand("turn x 1")
	assert.Error(t, err)

	_, ok, err = parseCommand("")
	assert.NoError(t, err)
	assert.False(t, ok)
	_, ok, _ = parseCommand("dance")
	assert.False(t, ok)
}
