package log

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
	"unicode/utf8"
)

// LogEvent accumulates the fields of one log line as a JSON object. Every method
// is safe on a nil event, which is what a disabled level returns.
type LogEvent struct {
	buf    *bytes.Buffer
	level  Level
	logger Logger
	fields int
}

func newEvent(logger Logger) *LogEvent {
	e := &LogEvent{
		buf:    bytes.NewBuffer(make([]byte, 0, 256)),
		logger: logger,
	}
	e.Reset()
	return e
}

// Reset clears the event for reuse.
func (e *LogEvent) Reset() {
	e.buf.Reset()
	e.buf.WriteByte('{')
	e.fields = 0
}

func (e *LogEvent) key(k string) {
	if e.fields > 0 {
		e.buf.WriteByte(',')
	}
	e.fields++
	writeJSONString(e.buf, k)
	e.buf.WriteByte(':')
}

// Str adds a string field.
func (e *LogEvent) Str(key, val string) *LogEvent {
	if e == nil {
		return e
	}
	e.key(key)
	writeJSONString(e.buf, val)
	return e
}

// Stringer adds the String() of val.
func (e *LogEvent) Stringer(key string, val fmt.Stringer) *LogEvent {
	if e == nil {
		return e
	}
	if val == nil {
		return e.Str(key, "<nil>")
	}
	return e.Str(key, val.String())
}

// Int adds an int field.
func (e *LogEvent) Int(key string, val int) *LogEvent {
	return e.Int64(key, int64(val))
}

// Int64 adds an int64 field.
func (e *LogEvent) Int64(key string, val int64) *LogEvent {
	if e == nil {
		return e
	}
	e.key(key)
	e.buf.WriteString(strconv.FormatInt(val, 10))
	return e
}

// Uint32 adds a uint32 field.
func (e *LogEvent) Uint32(key string, val uint32) *LogEvent {
	return e.Uint64(key, uint64(val))
}

// Uint64 adds a uint64 field.
func (e *LogEvent) Uint64(key string, val uint64) *LogEvent {
	if e == nil {
		return e
	}
	e.key(key)
	e.buf.WriteString(strconv.FormatUint(val, 10))
	return e
}

// Float64 adds a float64 field.
func (e *LogEvent) Float64(key string, val float64) *LogEvent {
	if e == nil {
		return e
	}
	e.key(key)
	e.buf.WriteString(strconv.FormatFloat(val, 'g', -1, 64))
	return e
}

// Bool adds a bool field.
func (e *LogEvent) Bool(key string, val bool) *LogEvent {
	if e == nil {
		return e
	}
	e.key(key)
	e.buf.WriteString(strconv.FormatBool(val))
	return e
}

// Dur adds a duration field in its String form.
func (e *LogEvent) Dur(key string, d time.Duration) *LogEvent {
	return e.Str(key, d.String())
}

// Time adds a timestamp field.
func (e *LogEvent) Time(key string, t *time.Time) *LogEvent {
	if e == nil || t == nil {
		return e
	}
	return e.Str(key, t.Format(time.RFC3339Nano))
}

// Err adds the error under "error". A nil error adds nothing.
func (e *LogEvent) Err(err error) *LogEvent {
	if e == nil || err == nil {
		return e
	}
	return e.Str("error", err.Error())
}

// Msg finishes the event and hands it to the logger's appenders.
func (e *LogEvent) Msg(msg string) {
	if e == nil {
		return
	}
	e.Str("msg", msg)
	e.buf.WriteString("}\n")
	e.logger.OnEventEnd(e)
}

// Msgf is Msg with formatting.
func (e *LogEvent) Msgf(format string, args ...any) {
	if e == nil {
		return
	}
	e.Msg(fmt.Sprintf(format, args...))
}

const _hex = "0123456789abcdef"

func writeJSONString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')
	for i := 0; i < len(s); {
		c := s[i]
		if c < utf8.RuneSelf {
			switch {
			case c == '"' || c == '\\':
				buf.WriteByte('\\')
				buf.WriteByte(c)
			case c == '\n':
				buf.WriteString(`\n`)
			case c == '\r':
				buf.WriteString(`\r`)
			case c == '\t':
				buf.WriteString(`\t`)
			case c < 0x20:
				buf.WriteString(`\u00`)
				buf.WriteByte(_hex[c>>4])
				buf.WriteByte(_hex[c&0xf])
			default:
				buf.WriteByte(c)
			}
			i++
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			buf.WriteString(`�`)
		} else {
			buf.WriteString(s[i : i+size])
		}
		i += size
	}
	buf.WriteByte('"')
}
