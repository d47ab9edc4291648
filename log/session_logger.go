package log

import "sync/atomic"

// SessionLogger tags every event with the socket of one connection and, once
// identified, the player name.
type SessionLogger struct {
	*GameLogger
	socket int64
	player atomic.Pointer[string]
}

// NewSessionLogger wraps base for the connection on socket.
func NewSessionLogger(base *GameLogger, socket int) *SessionLogger {
	if base == nil {
		base = _defaultLogger
	}
	return &SessionLogger{GameLogger: base, socket: int64(socket)}
}

// SetPlayer adds the player name to subsequent events.
func (l *SessionLogger) SetPlayer(name string) {
	l.player.Store(&name)
}

func (l *SessionLogger) decorate(e *LogEvent) *LogEvent {
	if e == nil {
		return nil
	}
	e.Int64("socket", l.socket)
	if p := l.player.Load(); p != nil {
		e.Str("player", *p)
	}
	return e
}

func (l *SessionLogger) Debug() *LogEvent {
	return l.decorate(l.GameLogger.Debug())
}

func (l *SessionLogger) Info() *LogEvent {
	return l.decorate(l.GameLogger.Info())
}

func (l *SessionLogger) Warn() *LogEvent {
	return l.decorate(l.GameLogger.Warn())
}

func (l *SessionLogger) Error() *LogEvent {
	return l.decorate(l.GameLogger.Error())
}

func (l *SessionLogger) Fatal() *LogEvent {
	return l.decorate(l.GameLogger.Fatal())
}
