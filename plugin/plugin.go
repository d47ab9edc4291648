// Package plugin instantiates optional server components (game history,
// service discovery) from the "plugin" config section and keeps them in step
// with reloads of that section.
package plugin

import (
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"
	"strings"
	"sync"

	"github.com/spf13/viper"

	"github.com/lcx/pokernet/config"
	"github.com/lcx/pokernet/log"
)

// Type is the category of a plugin.
type Type string

const (
	// History 对局记录插件类型.
	History Type = "history"
	// Discovery 服务发现插件类型.
	Discovery Type = "discovery"
)

// DefaultInsName is the instance name used when a section sets no tag.
const DefaultInsName = "default"

// PluginConfig maps plugin type to factory key to settings. A factory key is the
// factory name optionally followed by "_suffix", so one factory can appear twice:
//
//	history:
//	  sqlite:
//	    path: ./history.db
//	discovery:
//	  consul:
//	    address: 127.0.0.1:8500
//	    tag: primary  # instance name, "default" when absent
type PluginConfig map[string]map[string]map[string]any

// GetName implements config.Config.
func (c *PluginConfig) GetName() string {
	return "plugin"
}

// Validate implements config.Config.
func (c *PluginConfig) Validate() error {
	if c == nil {
		return nil
	}
	for pluginType, factories := range *c {
		if len(factories) == 0 {
			return fmt.Errorf("plugin type %s has no factory config", pluginType)
		}
		for factoryName, settings := range factories {
			if settings == nil {
				return fmt.Errorf("plugin %s_%s has no instance config", pluginType, factoryName)
			}
		}
	}
	return nil
}

// Plugin is an instance built by a Factory.
type Plugin interface { //nolint:revive
	FactoryName() string
}

type instance struct {
	factory Factory
	plugin  Plugin
	cfg     map[string]any
}

type pluginMgr struct {
	mu        sync.RWMutex
	factories map[string]Factory
	// type -> factory -> instance name
	insMap map[Type]map[string]map[string]*instance
}

var _pluginMgr = &pluginMgr{
	factories: make(map[string]Factory),
	insMap:    make(map[Type]map[string]map[string]*instance),
}

func factoryKey(ft Type, fn string) string {
	return fmt.Sprintf("%s_%s", ft, fn)
}

// RegisterPlugin makes a factory available to InitPlugins. Call it from init.
func RegisterPlugin(f Factory) {
	_pluginMgr.mu.Lock()
	defer _pluginMgr.mu.Unlock()
	_pluginMgr.factories[factoryKey(f.Type(), f.Name())] = f
}

func getFactoryName(key string) string {
	return strings.Split(key, "_")[0]
}

func getPluginNameFromCfg(c map[string]any) string {
	if tag, ok := c["tag"].(string); ok && tag != "" {
		return tag
	}
	return DefaultInsName
}

type planned struct {
	ft  Type
	fn  string
	pn  string
	cfg map[string]any
}

// plan flattens cfg and rejects unknown factories and duplicate instances.
func (pm *pluginMgr) plan(cfg PluginConfig) ([]planned, error) {
	var out []planned
	seen := make(map[string]bool)
	for _, ft := range slices.Sorted(maps.Keys(cfg)) {
		for _, key := range slices.Sorted(maps.Keys(cfg[ft])) {
			c := cfg[ft][key]
			p := planned{ft: Type(ft), fn: getFactoryName(key), pn: getPluginNameFromCfg(c), cfg: c}
			if _, ok := pm.factories[factoryKey(p.ft, p.fn)]; !ok {
				return nil, fmt.Errorf("plugin factory [%s/%s] not found, available factories: %v",
					p.ft, p.fn, pm.available(p.ft))
			}
			id := fmt.Sprintf("%s/%s/%s", p.ft, p.fn, p.pn)
			if seen[id] {
				return nil, fmt.Errorf("plugin instance [%s] configured twice", id)
			}
			seen[id] = true
			out = append(out, p)
		}
	}
	return out, nil
}

func (pm *pluginMgr) available(ft Type) []string {
	var names []string
	for key := range pm.factories {
		if name, ok := strings.CutPrefix(key, string(ft)+"_"); ok {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names
}

func (pm *pluginMgr) lookup(ft Type, fn, pn string) *instance {
	return pm.insMap[ft][fn][pn]
}

func (pm *pluginMgr) store(ft Type, fn, pn string, ins *instance) {
	if pm.insMap[ft] == nil {
		pm.insMap[ft] = make(map[string]map[string]*instance)
	}
	if pm.insMap[ft][fn] == nil {
		pm.insMap[ft][fn] = make(map[string]*instance)
	}
	pm.insMap[ft][fn][pn] = ins
}

func (pm *pluginMgr) setup(p planned) (*instance, error) {
	f := pm.factories[factoryKey(p.ft, p.fn)]
	log.Info().Str("type", string(p.ft)).Str("name", p.fn).Str("instance", p.pn).Msg("plugin setup begin")
	ins, err := f.Setup(p.cfg)
	if err != nil {
		return nil, fmt.Errorf("plugin [%s/%s] setup failed: %w", p.ft, p.fn, err)
	}
	log.Info().Str("type", string(p.ft)).Str("name", p.fn).Str("instance", p.pn).Msg("plugin setup success")
	return &instance{factory: f, plugin: ins, cfg: maps.Clone(p.cfg)}, nil
}

func destroy(ins *instance) {
	if err := ins.factory.Destroy(ins.plugin, nil); err != nil {
		log.Error().Err(err).Str("factory", ins.factory.Name()).Msg("destroy plugin failed")
	}
}

// InitPlugins loads the "plugin" section and sets up every instance it names,
// destroying the ones already built when a later one fails. A missing section
// file means no plugins. configManager defaults to config.GetInstance().
func InitPlugins(configManager config.ConfigManager) error {
	if configManager == nil {
		configManager = config.GetInstance()
	}
	cfg := PluginConfig{}
	if err := configManager.LoadConfig("plugin", &cfg); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			log.Info().Msg("no plugin config, running without plugins")
			return nil
		}
		return fmt.Errorf("load plugin config failed: %w", err)
	}

	pm := _pluginMgr
	pm.mu.Lock()
	defer pm.mu.Unlock()

	plans, err := pm.plan(cfg)
	if err != nil {
		return err
	}
	var built []*instance
	for _, p := range plans {
		ins, err := pm.setup(p)
		if err != nil {
			log.Warn().Int("count", len(built)).Msg("rolling back initialized plugins")
			for i := len(built) - 1; i >= 0; i-- {
				destroy(built[i])
			}
			pm.insMap = make(map[Type]map[string]map[string]*instance)
			return err
		}
		pm.store(p.ft, p.fn, p.pn, ins)
		built = append(built, ins)
	}

	configManager.AddChangeListener(pm)
	log.Info().Int("count", len(built)).Msg("InitPlugins success")
	return nil
}

// OnConfigChanged implements config.ConfigChangeListener. Unchanged instances
// are kept, changed ones are reloaded in place or recreated, and instances no
// longer configured are destroyed. Nothing changes unless every affected
// instance allows deletion.
func (pm *pluginMgr) OnConfigChanged(configName string, newConfig, oldConfig config.Config) error {
	if configName != "plugin" {
		return nil
	}
	newCfg, ok := newConfig.(*PluginConfig)
	if !ok {
		return fmt.Errorf("invalid config type: expected *PluginConfig, got %T", newConfig)
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()

	plans, err := pm.plan(*newCfg)
	if err != nil {
		return err
	}
	wanted := make(map[*instance]bool)
	for _, p := range plans {
		if cur := pm.lookup(p.ft, p.fn, p.pn); cur != nil {
			wanted[cur] = true
		}
	}

	// safety check before touching anything
	for ft, factories := range pm.insMap {
		for fn, instances := range factories {
			for pn, ins := range instances {
				if wanted[ins] && reflect.DeepEqual(ins.cfg, findCfg(plans, ft, fn, pn)) {
					continue
				}
				if !ins.factory.CanDelete(ins.plugin) {
					return fmt.Errorf("plugin [%s/%s/%s] cannot be deleted: has active tasks", ft, fn, pn)
				}
			}
		}
	}

	next := make(map[Type]map[string]map[string]*instance)
	old := pm.insMap
	pm.insMap = next
	reloaded, recreated := 0, 0
	for _, p := range plans {
		cur := old[p.ft][p.fn][p.pn]
		switch {
		case cur != nil && reflect.DeepEqual(cur.cfg, p.cfg):
			pm.store(p.ft, p.fn, p.pn, cur)
			continue
		case cur != nil:
			err := cur.factory.Reload(cur.plugin, p.cfg)
			if err == nil {
				cur.cfg = maps.Clone(p.cfg)
				pm.store(p.ft, p.fn, p.pn, cur)
				reloaded++
				log.Info().Str("type", string(p.ft)).Str("factory", p.fn).Str("instance", p.pn).Msg("hot reload success (lightweight)")
				continue
			}
			log.Warn().Err(err).Str("type", string(p.ft)).Str("factory", p.fn).Str("instance", p.pn).Msg("hot reload failed, will recreate plugin")
			destroy(cur)
		}
		ins, err := pm.setup(p)
		if err != nil {
			log.Error().Err(err).Msg("plugin recreate failed")
			continue
		}
		pm.store(p.ft, p.fn, p.pn, ins)
		recreated++
	}

	for ft, factories := range old {
		for fn, instances := range factories {
			for pn, ins := range instances {
				if pm.lookup(ft, fn, pn) != ins && !wanted[ins] {
					destroy(ins)
				}
			}
		}
	}

	log.Info().Int("reloaded", reloaded).Int("recreated", recreated).Msg("all plugins hot reload completed")
	return nil
}

func findCfg(plans []planned, ft Type, fn, pn string) map[string]any {
	for _, p := range plans {
		if p.ft == ft && p.fn == fn && p.pn == pn {
			return p.cfg
		}
	}
	return nil
}

// GetConfigName implements config.ConfigChangeListener.
func (pm *pluginMgr) GetConfigName() string {
	return "plugin"
}

// GetPlugin returns the instance pn of factory fn of type ft.
func GetPlugin(ft Type, fn, pn string) (Plugin, error) {
	_pluginMgr.mu.RLock()
	defer _pluginMgr.mu.RUnlock()

	factories, ok := _pluginMgr.insMap[ft]
	if !ok {
		return nil, fmt.Errorf("plugin type [%s] not registered", ft)
	}
	instances, ok := factories[fn]
	if !ok {
		return nil, fmt.Errorf("plugin factory [%s/%s] not found", ft, fn)
	}
	ins, ok := instances[pn]
	if !ok {
		return nil, fmt.Errorf("plugin instance [%s/%s/%s] not found", ft, fn, pn)
	}
	return ins.plugin, nil
}

// GetDefaultPlugin returns the untagged instance of a factory.
func GetDefaultPlugin(ft Type, fn string) (Plugin, error) {
	return GetPlugin(ft, fn, DefaultInsName)
}

// ListPlugins reports instance names keyed by "type/factory".
func ListPlugins() map[string][]string {
	_pluginMgr.mu.RLock()
	defer _pluginMgr.mu.RUnlock()

	result := make(map[string][]string)
	for ft, factories := range _pluginMgr.insMap {
		for fn, instances := range factories {
			key := fmt.Sprintf("%s/%s", ft, fn)
			for pn := range instances {
				result[key] = append(result[key], pn)
			}
			slices.Sort(result[key])
		}
	}
	return result
}

// DestroyPlugins destroys every instance. Registered factories stay.
func DestroyPlugins() {
	_pluginMgr.mu.Lock()
	defer _pluginMgr.mu.Unlock()
	for _, factories := range _pluginMgr.insMap {
		for _, instances := range factories {
			for _, ins := range instances {
				destroy(ins)
			}
		}
	}
	_pluginMgr.insMap = make(map[Type]map[string]map[string]*instance)
}
