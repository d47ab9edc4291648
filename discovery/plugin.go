package discovery

import (
	"fmt"

	"github.com/lcx/pokernet/config"
	"github.com/lcx/pokernet/plugin"
)

func init() {
	plugin.RegisterPlugin(&factory{})
}

// factory builds registrars from "plugin.discovery.consul".
type factory struct{}

func (f *factory) Type() plugin.Type {
	return plugin.Discovery
}

func (f *factory) Name() string {
	return "consul"
}

func (f *factory) Setup(v map[string]any) (plugin.Plugin, error) {
	cfg := DefaultCfg()
	if err := config.Decode(v, cfg); err != nil {
		return nil, err
	}
	return New(cfg)
}

func (f *factory) Destroy(p plugin.Plugin, _ any) error {
	r, ok := p.(*Registrar)
	if !ok {
		return fmt.Errorf("unexpected plugin %T", p)
	}
	return r.Deregister()
}

// Reload always recreates; the new registrar announces itself on its first Sync.
func (f *factory) Reload(plugin.Plugin, map[string]any) error {
	return fmt.Errorf("consul registrar does not reload in place")
}

func (f *factory) CanDelete(plugin.Plugin) bool {
	return true
}
