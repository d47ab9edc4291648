package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bufAppender struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	refreshes int
}

func (a *bufAppender) Write(p []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.buf.Write(p)
}

func (a *bufAppender) Refresh() {
	a.mu.Lock()
	a.refreshes++
	a.mu.Unlock()
}

func (a *bufAppender) lines(t *testing.T) []map[string]any {
	t.Helper()
	a.mu.Lock()
	defer a.mu.Unlock()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(a.buf.String()), "\n") {
		if line == "" {
			continue
		}
		m := map[string]any{}
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}
	return out
}

func newTestLogger(level string) (*GameLogger, *bufAppender) {
	logger := NewLogger(&LogCfg{LogLevel: level})
	app := &bufAppender{}
	logger.AddAppender(app)
	return logger, app
}

func TestLoggerWritesJSONFields(t *testing.T) {
	logger, app := newTestLogger("debug")

	logger.Info().
		Str("player", "Alice \"the\" shark\n").
		Int("socket", 7).
		Uint32("seq", 3).
		Bool("ok", true).
		Dur("wait", 50*time.Millisecond).
		Err(errors.New("boom")).
		Msg("joined")

	lines := app.lines(t)
	require.Len(t, lines, 1)
	line := lines[0]
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "joined", line["msg"])
	assert.Equal(t, "Alice \"the\" shark\n", line["player"])
	assert.EqualValues(t, 7, line["socket"])
	assert.EqualValues(t, 3, line["seq"])
	assert.Equal(t, true, line["ok"])
	assert.Equal(t, "50ms", line["wait"])
	assert.Equal(t, "boom", line["error"])
	assert.Contains(t, line, "time")
}

func TestLoggerLevelFiltering(t *testing.T) {
	logger, app := newTestLogger("warn")

	assert.Nil(t, logger.Debug())
	assert.Nil(t, logger.Info())
	logger.Info().Str("k", "v").Msg("dropped")
	logger.Warn().Msg("kept")

	lines := app.lines(t)
	require.Len(t, lines, 1)
	assert.Equal(t, "kept", lines[0]["msg"])

	logger.SetLevel(DebugLevel)
	logger.Debug().Msg("now visible")
	assert.Len(t, app.lines(t), 2)
}

func TestLoggerFatalPanics(t *testing.T) {
	logger, app := newTestLogger("debug")
	assert.Panics(t, func() { logger.Fatal().Msg("bye") })
	assert.Len(t, app.lines(t), 1)
}

func TestLoggerCallerInfo(t *testing.T) {
	logger := NewLogger(&LogCfg{LogLevel: "debug", EnabledCallerInfo: true})
	app := &bufAppender{}
	logger.AddAppender(app)

	logger.Info().Msg("where")

	lines := app.lines(t)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0]["caller"], ".go:")
}

func TestOnConfigChangedUpdatesLevel(t *testing.T) {
	logger, app := newTestLogger("debug")

	err := logger.OnConfigChanged("logger", &LogCfg{LogLevel: "error"}, &LogCfg{LogLevel: "debug"})
	require.NoError(t, err)

	assert.Nil(t, logger.Warn())
	assert.NotNil(t, logger.Error())
	assert.Equal(t, "error", logger.GetCurrentConfig().LogLevel)
	assert.Equal(t, 1, app.refreshes)

	require.NoError(t, logger.OnConfigChanged("server", &LogCfg{LogLevel: "debug"}, nil))
	assert.Nil(t, logger.Warn())
}

func TestSessionLoggerTagsEvents(t *testing.T) {
	base, app := newTestLogger("debug")
	sl := NewSessionLogger(base, 12)

	sl.Info().Msg("accepted")
	sl.SetPlayer("Bob")
	sl.Warn().Msg("flood")

	lines := app.lines(t)
	require.Len(t, lines, 2)
	assert.EqualValues(t, 12, lines[0]["socket"])
	assert.NotContains(t, lines[0], "player")
	assert.Equal(t, "Bob", lines[1]["player"])
}

func TestParseLevel(t *testing.T) {
	for in, want := range map[string]Level{"": DebugLevel, "INFO": InfoLevel, "warning": WarnLevel, "error": ErrorLevel, "fatal": FatalLevel} {
		lv, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, lv, in)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
	assert.Error(t, (&LogCfg{LogLevel: "loud"}).Validate())
	assert.Error(t, (&LogCfg{FileAppender: true}).Validate())
}

func TestFileAppenderRotates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "server.log")
	app := NewFileAppender(&LogCfg{LogPath: path})
	app.splitBytes = 64

	line := []byte(strings.Repeat("x", 40) + "\n")
	for i := 0; i < 3; i++ {
		_, err := app.Write(line)
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}
	app.Refresh()

	entries, err := os.ReadDir(filepath.Join(dir, "sub"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(entries), 2)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, line, data)
}
