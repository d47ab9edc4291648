package plugin

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lcx/pokernet/config"
)

type fakePlugin struct {
	path      string
	destroyed bool
	busy      bool
}

func (p *fakePlugin) FactoryName() string { return "fake" }

type fakeFactory struct {
	mu       sync.Mutex
	setups   int
	reloads  int
	destroys int
	failOn   string
}

func (f *fakeFactory) Type() Type   { return History }
func (f *fakeFactory) Name() string { return "fake" }

func (f *fakeFactory) Setup(v map[string]any) (Plugin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	path, _ := v["path"].(string)
	if path == f.failOn {
		return nil, errors.New("setup refused")
	}
	f.setups++
	return &fakePlugin{path: path}, nil
}

func (f *fakeFactory) Destroy(p Plugin, _ any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.destroys++
	p.(*fakePlugin).destroyed = true
	return nil
}

// Reload only applies path changes inside the same directory.
func (f *fakeFactory) Reload(p Plugin, v map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	fp := p.(*fakePlugin)
	path, _ := v["path"].(string)
	if filepath.Dir(path) != filepath.Dir(fp.path) {
		return errors.New("directory changed")
	}
	fp.path = path
	f.reloads++
	return nil
}

func (f *fakeFactory) CanDelete(p Plugin) bool {
	return !p.(*fakePlugin).busy
}

var _fake = &fakeFactory{}

func init() {
	RegisterPlugin(_fake)
}

func resetFake(t *testing.T) {
	t.Helper()
	_fake.mu.Lock()
	_fake.setups, _fake.reloads, _fake.destroys, _fake.failOn = 0, 0, 0, ""
	_fake.mu.Unlock()
	t.Cleanup(DestroyPlugins)
}

func newManager(t *testing.T, body string) config.ConfigManager {
	t.Helper()
	dir := t.TempDir()
	cm := config.NewConfigManager()
	cm.SetBasePath(dir)
	t.Cleanup(func() { _ = cm.Close() })
	if body != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "plugin.yaml"), []byte(body), 0o644))
	}
	return cm
}

func TestInitPluginsBuildsInstances(t *testing.T) {
	resetFake(t)
	cm := newManager(t, `
history:
  fake:
    path: /a/one.db
  fake_second:
    path: /a/two.db
    tag: second
`)
	require.NoError(t, InitPlugins(cm))

	p, err := GetDefaultPlugin(History, "fake")
	require.NoError(t, err)
	assert.Equal(t, "/a/one.db", p.(*fakePlugin).path)

	p, err = GetPlugin(History, "fake", "second")
	require.NoError(t, err)
	assert.Equal(t, "/a/two.db", p.(*fakePlugin).path)

	assert.Equal(t, map[string][]string{"history/fake": {"default", "second"}}, ListPlugins())

	_, err = GetPlugin(Discovery, "consul", DefaultInsName)
	assert.Error(t, err)
	_, err = GetPlugin(History, "fake", "third")
	assert.Error(t, err)
}

func TestInitPluginsWithoutConfig(t *testing.T) {
	resetFake(t)
	require.NoError(t, InitPlugins(newManager(t, "")))
	assert.Empty(t, ListPlugins())
}

func TestInitPluginsUnknownFactory(t *testing.T) {
	resetFake(t)
	cm := newManager(t, "history:\n  nosuch:\n    path: x\n")
	err := InitPlugins(cm)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fake")
}

func TestInitPluginsRollsBack(t *testing.T) {
	resetFake(t)
	_fake.failOn = "/b/bad.db"
	cm := newManager(t, `
history:
  fake:
    path: /a/good.db
  fake_z:
    path: /b/bad.db
    tag: z
`)
	require.Error(t, InitPlugins(cm))
	assert.Empty(t, ListPlugins())
	assert.Equal(t, 1, _fake.setups)
	assert.Equal(t, 1, _fake.destroys)
}

func TestHotReload(t *testing.T) {
	resetFake(t)
	cm := newManager(t, `
history:
  fake:
    path: /a/one.db
  fake_x:
    path: /a/x.db
    tag: x
  fake_y:
    path: /a/y.db
    tag: y
`)
	require.NoError(t, InitPlugins(cm))
	before, _ := GetDefaultPlugin(History, "fake")
	x, _ := GetPlugin(History, "fake", "x")
	y, _ := GetPlugin(History, "fake", "y")

	next := &PluginConfig{"history": {
		"fake":   {"path": "/a/one.db"},
		"fake_x": {"path": "/a/x2.db", "tag": "x"},
		"fake_z": {"path": "/c/z.db", "tag": "z"},
	}}
	require.NoError(t, _pluginMgr.OnConfigChanged("plugin", next, nil))

	after, _ := GetDefaultPlugin(History, "fake")
	assert.Same(t, before, after, "unchanged instance kept")

	x2, err := GetPlugin(History, "fake", "x")
	require.NoError(t, err)
	assert.Same(t, x, x2, "reloaded in place")
	assert.Equal(t, "/a/x2.db", x2.(*fakePlugin).path)

	assert.True(t, y.(*fakePlugin).destroyed, "removed instance destroyed")
	_, err = GetPlugin(History, "fake", "z")
	assert.NoError(t, err)
	assert.Equal(t, 1, _fake.reloads)
}

func TestHotReloadRefusedWhileBusy(t *testing.T) {
	resetFake(t)
	cm := newManager(t, "history:\n  fake:\n    path: /a/one.db\n")
	require.NoError(t, InitPlugins(cm))
	p, _ := GetDefaultPlugin(History, "fake")
	p.(*fakePlugin).busy = true
	defer func() { p.(*fakePlugin).busy = false }()

	next := &PluginConfig{"history": {"fake": {"path": "/b/moved.db"}}}
	assert.Error(t, _pluginMgr.OnConfigChanged("plugin", next, nil))
	assert.False(t, p.(*fakePlugin).destroyed)
	assert.Equal(t, "/a/one.db", p.(*fakePlugin).path)
}

func TestHotReloadRecreates(t *testing.T) {
	resetFake(t)
	cm := newManager(t, "history:\n  fake:\n    path: /a/one.db\n")
	require.NoError(t, InitPlugins(cm))
	old, _ := GetDefaultPlugin(History, "fake")

	next := &PluginConfig{"history": {"fake": {"path": "/b/moved.db"}}}
	require.NoError(t, _pluginMgr.OnConfigChanged("plugin", next, nil))

	cur, err := GetDefaultPlugin(History, "fake")
	require.NoError(t, err)
	assert.NotSame(t, old, cur)
	assert.True(t, old.(*fakePlugin).destroyed)
	assert.Equal(t, "/b/moved.db", cur.(*fakePlugin).path)
}

func TestPluginConfigValidate(t *testing.T) {
	assert.NoError(t, (&PluginConfig{}).Validate())
	assert.Error(t, (&PluginConfig{"history": {}}).Validate())
	assert.Error(t, (&PluginConfig{"history": {"sqlite": nil}}).Validate())
}
