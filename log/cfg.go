package log

import "fmt"

// LogCfg is the "logger" config section.
type LogCfg struct {
	// LogPath is the target file of the file appender.
	LogPath string `mapstructure:"path"`

	// LogLevel is the minimum level written. Hot-reloadable.
	// Valid levels: debug, info, warn, error, fatal.
	LogLevel string `mapstructure:"level"`

	// FileSplitMB rotates the log file once it exceeds this size. Zero disables rotation.
	FileSplitMB int `mapstructure:"splitmb"`

	// CallerSkip is the number of extra stack frames between the caller and the logger.
	CallerSkip int `mapstructure:"callerSkip"`

	FileAppender    bool `mapstructure:"fileAppender"`
	ConsoleAppender bool `mapstructure:"consoleAppender"`

	EnabledCallerInfo bool `mapstructure:"enabledCallerInfo"`
}

// GetName implements config.Config.
func (cfg *LogCfg) GetName() string {
	return "logger"
}

// Validate implements config.Config.
func (cfg *LogCfg) Validate() error {
	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		return err
	}
	if cfg.FileSplitMB < 0 {
		return fmt.Errorf("splitmb must not be negative, got %d", cfg.FileSplitMB)
	}
	if cfg.FileAppender && cfg.LogPath == "" {
		return fmt.Errorf("file appender enabled without a path")
	}
	return nil
}

func (cfg *LogCfg) level() Level {
	lv, err := ParseLevel(cfg.LogLevel)
	if err != nil {
		return DebugLevel
	}
	return lv
}

var _defaultCfg = &LogCfg{
	LogPath:         "./pokernet.log",
	LogLevel:        "debug",
	FileSplitMB:     50,
	CallerSkip:      1,
	ConsoleAppender: true,
}

func getDefaultCfg() *LogCfg {
	return _defaultCfg
}
