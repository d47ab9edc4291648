package main

import (
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcx/pokernet/config"
)

func newFlagSet(f *flags) *pflag.FlagSet {
	set := pflag.NewFlagSet("test", pflag.ContinueOnError)
	set.StringVar(&f.addr, "addr", "", "")
	set.Uint16Var(&f.port, "port", 7234, "")
	set.StringVar(&f.family, "family", "ipv4", "")
	set.StringVar(&f.name, "name", "", "")
	set.StringVar(&f.password, "password", "", "")
	set.BoolVar(&f.computer, "computer", false, "")
	return set
}

func TestLoadCfgFlagsOverrideDefaults(t *testing.T) {
	cm := config.NewConfigManager()
	cm.SetBasePath(t.TempDir())
	defer cm.Close()

	f := &flags{}
	set := newFlagSet(f)
	require.NoError(t, set.Parse([]string{"--addr", "poker.example", "--name", "Bob", "--computer"}))

	cfg, err := loadCfg(cm, f, set)
	require.NoError(t, err)
	assert.Equal(t, "poker.example", cfg.ServerAddr)
	assert.Equal(t, "Bob", cfg.PlayerName)
	assert.True(t, cfg.Computer)
	assert.Equal(t, uint16(7234), cfg.ServerPort)
	assert.Equal(t, "ipv4", cfg.AddrFamily)
}
