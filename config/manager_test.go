package config

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tableConfig struct {
	Name       string `mapstructure:"name"`
	Port       int    `mapstructure:"port"`
	MaxPlayers int    `mapstructure:"maxPlayers"`
}

func (c *tableConfig) GetName() string { return "table" }

func (c *tableConfig) Validate() error {
	if c.Port <= 0 {
		return errors.New("port must be positive")
	}
	return nil
}

type recordingListener struct {
	mu      sync.Mutex
	changes []*tableConfig
}

func (l *recordingListener) OnConfigChanged(name string, newConfig, oldConfig Config) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.changes = append(l.changes, newConfig.(*tableConfig))
	return nil
}

func (l *recordingListener) GetConfigName() string { return "table" }

func writeConfig(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name+".yaml"), []byte(body), 0o644))
}

func newTestManager(t *testing.T) (*configManager, string) {
	t.Helper()
	dir := t.TempDir()
	cm := NewConfigManager().(*configManager)
	cm.SetBasePath(dir)
	t.Cleanup(func() { _ = cm.Close() })
	return cm, dir
}

func TestLoadConfigKeepsDefaults(t *testing.T) {
	cm, dir := newTestManager(t)
	writeConfig(t, dir, "table", "name: holdem\nport: 7234\n")

	cfg := &tableConfig{MaxPlayers: 10}
	require.NoError(t, cm.LoadConfig("table", cfg))

	assert.Equal(t, "holdem", cfg.Name)
	assert.Equal(t, 7234, cfg.Port)
	assert.Equal(t, 10, cfg.MaxPlayers)

	got, err := cm.GetConfig("table")
	require.NoError(t, err)
	assert.Same(t, cfg, got)
}

func TestLoadConfigValidation(t *testing.T) {
	cm, dir := newTestManager(t)
	writeConfig(t, dir, "table", "name: holdem\nport: 0\n")

	err := cm.LoadConfig("table", &tableConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "validate config failed")

	_, err = cm.GetConfig("table")
	assert.Error(t, err)
}

func TestRegisterValidator(t *testing.T) {
	cm, dir := newTestManager(t)
	writeConfig(t, dir, "table", "port: 7234\nmaxPlayers: 11\n")

	cm.RegisterValidator("table", func(c Config) error {
		if c.(*tableConfig).MaxPlayers > 10 {
			return errors.New("too many seats")
		}
		return nil
	})

	assert.Error(t, cm.LoadConfig("table", &tableConfig{}))
}

func TestLoadConfigMissingFile(t *testing.T) {
	cm, _ := newTestManager(t)
	assert.Error(t, cm.LoadConfig("table", &tableConfig{}))
}

func TestLoadConfigEnvironmentDir(t *testing.T) {
	cm, dir := newTestManager(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "production"), 0o755))
	writeConfig(t, filepath.Join(dir, "production"), "table", "port: 9000\n")
	cm.SetEnvironment("production")

	cfg := &tableConfig{}
	require.NoError(t, cm.LoadConfig("table", cfg))
	assert.Equal(t, 9000, cfg.Port)
}

func TestReloadNotifiesListeners(t *testing.T) {
	cm, dir := newTestManager(t)
	writeConfig(t, dir, "table", "name: holdem\nport: 7234\n")

	cfg := &tableConfig{MaxPlayers: 10}
	require.NoError(t, cm.LoadConfig("table", cfg))

	listener := &recordingListener{}
	cm.AddChangeListener(listener)

	var hookCalls int
	cm.RegisterHook("table", func(oldVal, newVal Config) error {
		hookCalls++
		return nil
	})

	writeConfig(t, dir, "table", "name: omaha\nport: 7235\n")
	cm.reloadConfig("table")

	listener.mu.Lock()
	defer listener.mu.Unlock()
	require.Len(t, listener.changes, 1)
	assert.Equal(t, "omaha", listener.changes[0].Name)
	assert.Equal(t, 7235, listener.changes[0].Port)
	assert.Equal(t, 10, listener.changes[0].MaxPlayers)
	assert.Equal(t, 1, hookCalls)

	// the value handed to LoadConfig is left untouched
	assert.Equal(t, "holdem", cfg.Name)
}

func TestReloadInvalidKeepsOldConfig(t *testing.T) {
	cm, dir := newTestManager(t)
	writeConfig(t, dir, "table", "port: 7234\n")

	cfg := &tableConfig{}
	require.NoError(t, cm.LoadConfig("table", cfg))

	listener := &recordingListener{}
	cm.AddChangeListener(listener)

	writeConfig(t, dir, "table", "port: -1\n")
	cm.reloadConfig("table")

	got, err := cm.GetConfig("table")
	require.NoError(t, err)
	assert.Equal(t, 7234, got.(*tableConfig).Port)
	assert.Empty(t, listener.changes)
}

func TestDecodeSection(t *testing.T) {
	var cfg tableConfig
	require.NoError(t, Decode(map[string]any{"name": "holdem", "port": "7234", "maxplayers": 6}, &cfg))
	assert.Equal(t, tableConfig{Name: "holdem", Port: 7234, MaxPlayers: 6}, cfg)

	assert.Error(t, Decode(map[string]any{"port": "seven"}, &cfg))
}
