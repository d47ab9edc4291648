package log

import (
	"github.com/lcx/pokernet/config"
)

type Logger interface {
	Debug() *LogEvent
	Info() *LogEvent
	Warn() *LogEvent
	Error() *LogEvent
	Fatal() *LogEvent
	IgnoreCheckLevel() bool
	GetAppender() []LogAppender
	AddAppender(appender LogAppender)
	OnEventEnd(e *LogEvent)
}

var _defaultLogger *GameLogger

func init() {
	_defaultLogger = NewLogger(nil)
}

// Default returns the package-level logger.
func Default() *GameLogger {
	return _defaultLogger
}

// AddAppender adds an appender to the default logger.
func AddAppender(appender LogAppender) {
	_defaultLogger.AddAppender(appender)
}

// Refresh refreshes the appenders of the default logger.
func Refresh() {
	_defaultLogger.Refresh()
}

// SetDefaultLogger replaces the package-level logger.
func SetDefaultLogger(logger *GameLogger) {
	_defaultLogger = logger
}

// InitializeWithConfigManager loads the "logger" section and installs a hot-reloading default logger.
// The defaults are used for keys the file leaves out.
func InitializeWithConfigManager(configManager config.ConfigManager) error {
	if configManager == nil {
		return nil
	}

	logCfg := *getDefaultCfg()
	if err := configManager.LoadConfig("logger", &logCfg); err != nil {
		return err
	}

	SetDefaultLogger(NewLoggerWithConfigManager(&logCfg, configManager))
	return nil
}

// Initialize uses the process-wide config manager.
func Initialize() error {
	return InitializeWithConfigManager(config.GetInstance())
}

func Debug() *LogEvent {
	return _defaultLogger.Debug()
}

func Info() *LogEvent {
	return _defaultLogger.Info()
}

func Warn() *LogEvent {
	return _defaultLogger.Warn()
}

func Error() *LogEvent {
	return _defaultLogger.Error()
}

func Fatal() *LogEvent {
	return _defaultLogger.Fatal()
}
