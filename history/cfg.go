package history

import "fmt"

// Cfg configures one sqlite history instance inside the "plugin" section.
type Cfg struct {
	Path string `mapstructure:"path"`
	// QueueSize bounds the events waiting to be written. Events beyond it are dropped.
	QueueSize int    `mapstructure:"queueSize"`
	Tag       string `mapstructure:"tag"`
}

// DefaultCfg returns the settings used for keys the section leaves out.
func DefaultCfg() *Cfg {
	return &Cfg{Path: "./data/history.db", QueueSize: 1024}
}

// Validate checks the settings.
func (c *Cfg) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("path cannot be empty")
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("queueSize must be positive, got %d", c.QueueSize)
	}
	return nil
}
