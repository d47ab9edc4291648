package history

import (
	"fmt"

	"github.com/lcx/pokernet/config"
	"github.com/lcx/pokernet/plugin"
)

var (
	// openRecorderFn lets tests substitute the database.
	openRecorderFn = Open
)

func init() {
	plugin.RegisterPlugin(&factory{})
}

// factory builds sqlite recorders from "plugin.history.sqlite".
type factory struct{}

func (f *factory) Type() plugin.Type {
	return plugin.History
}

func (f *factory) Name() string {
	return "sqlite"
}

func (f *factory) Setup(v map[string]any) (plugin.Plugin, error) {
	cfg := DefaultCfg()
	if err := config.Decode(v, cfg); err != nil {
		return nil, err
	}
	return openRecorderFn(cfg)
}

func (f *factory) Destroy(p plugin.Plugin, _ any) error {
	r, ok := p.(*Recorder)
	if !ok {
		return fmt.Errorf("unexpected plugin %T", p)
	}
	return r.Close()
}

// Reload accepts only settings that leave the database file in place; anything
// else recreates the recorder.
func (f *factory) Reload(p plugin.Plugin, v map[string]any) error {
	r, ok := p.(*Recorder)
	if !ok {
		return fmt.Errorf("unexpected plugin %T", p)
	}
	cfg := DefaultCfg()
	if err := config.Decode(v, cfg); err != nil {
		return err
	}
	if cfg.Path != r.path || cfg.QueueSize != cap(r.events) {
		return fmt.Errorf("history path or queue size changed")
	}
	return nil
}

func (f *factory) CanDelete(plugin.Plugin) bool {
	return true
}
