package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/lcx/pokernet/config"
)

// LogAppender writes finished log lines to one destination.
type LogAppender interface {
	Write(p []byte) (n int, err error)
	Refresh()
}

// ConsoleAppender writes to stdout.
type ConsoleAppender struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsoleAppender creates an appender on os.Stdout.
func NewConsoleAppender() *ConsoleAppender {
	return &ConsoleAppender{w: os.Stdout}
}

func (a *ConsoleAppender) Write(p []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.w.Write(p)
}

// Refresh is a no-op for the console.
func (a *ConsoleAppender) Refresh() {}

// FileAppender appends to a file and rotates it once it grows past FileSplitMB.
// Rotated files get a timestamp suffix.
type FileAppender struct {
	mu         sync.Mutex
	path       string
	splitBytes int64
	file       *os.File
	size       int64
}

// NewFileAppender creates a file appender for cfg.LogPath. The file is opened on first write.
func NewFileAppender(cfg *LogCfg) *FileAppender {
	a := &FileAppender{}
	a.apply(cfg)
	return a
}

func (a *FileAppender) apply(cfg *LogCfg) {
	a.path = cfg.LogPath
	a.splitBytes = int64(cfg.FileSplitMB) * 1024 * 1024
}

func (a *FileAppender) open() error {
	if err := os.MkdirAll(filepath.Dir(a.path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return err
	}
	a.file = f
	a.size = st.Size()
	return nil
}

func (a *FileAppender) rotate() error {
	if a.file != nil {
		_ = a.file.Close()
		a.file = nil
	}
	rotated := fmt.Sprintf("%s.%s", a.path, time.Now().Format("20060102-150405.000"))
	if err := os.Rename(a.path, rotated); err != nil && !os.IsNotExist(err) {
		return err
	}
	return a.open()
}

func (a *FileAppender) Write(p []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.file == nil {
		if err := a.open(); err != nil {
			return 0, err
		}
	}
	if a.splitBytes > 0 && a.size+int64(len(p)) > a.splitBytes && a.size > 0 {
		if err := a.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := a.file.Write(p)
	a.size += int64(n)
	return n, err
}

// Refresh closes the file; the next write reopens it, picking up external rotation.
func (a *FileAppender) Refresh() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file != nil {
		_ = a.file.Close()
		a.file = nil
	}
}

// OnConfigChanged switches to a new path or split size.
func (a *FileAppender) OnConfigChanged(configName string, newConfig, oldConfig config.Config) error {
	cfg, ok := newConfig.(*LogCfg)
	if !ok {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if cfg.LogPath != a.path && a.file != nil {
		_ = a.file.Close()
		a.file = nil
	}
	a.apply(cfg)
	return nil
}

// GetConfigName implements config.ConfigChangeListener.
func (a *FileAppender) GetConfigName() string {
	return "logger"
}
