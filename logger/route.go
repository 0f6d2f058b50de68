package logger

import (
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// ZerologRoute writes entries through a zerolog.Logger, dropping entries
// below its minimum level.
//
// zerolog has no notice, critical, alert or emergency levels. Those entries
// are written at the nearest zerolog level and keep their original name in
// the "severity" field.
type ZerologRoute struct {
	mu     sync.RWMutex
	logger zerolog.Logger
	level  Level
}

var _ LeveledRoute = (*ZerologRoute)(nil)

// NewStdRoute returns a route writing timestamped JSON to stdout.
func NewStdRoute(level Level) *ZerologRoute {
	return NewWriterRoute(os.Stdout, level)
}

// NewWriterRoute returns a route writing timestamped JSON to w.
func NewWriterRoute(w io.Writer, level Level) *ZerologRoute {
	return NewZerologRoute(zerolog.New(w).With().Timestamp().Logger(), level)
}

// NewZerologRoute adapts an existing zerolog logger.
func NewZerologRoute(l zerolog.Logger, level Level) *ZerologRoute {
	return &ZerologRoute{logger: l, level: level}
}

// SetLevel implements LeveledRoute.
func (r *ZerologRoute) SetLevel(level Level) {
	r.mu.Lock()
	r.level = level
	r.mu.Unlock()
}

// Level returns the current minimum level.
func (r *ZerologRoute) Level() Level {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.level
}

// Log implements Route.
func (r *ZerologRoute) Log(level Level, msg string, ctx Context) {
	r.mu.RLock()
	minLevel, zl := r.level, r.logger
	r.mu.RUnlock()

	if level < minLevel {
		return
	}

	// WithLevel never exits or panics, even for FatalLevel.
	e := zl.WithLevel(toZerolog(level))
	if e == nil {
		return
	}
	e = e.Str("severity", level.String())
	if len(ctx) > 0 {
		e = e.Fields(map[string]any(ctx))
	}
	e.Msg(msg)
}

func toZerolog(level Level) zerolog.Level {
	switch level {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelInfo, LevelNotice:
		return zerolog.InfoLevel
	case LevelWarning:
		return zerolog.WarnLevel
	case LevelError, LevelCritical:
		return zerolog.ErrorLevel
	default:
		return zerolog.FatalLevel
	}
}

// MemoryRoute keeps entries in memory. It is intended for tests.
type MemoryRoute struct {
	mu      sync.Mutex
	entries []Entry
}

// Entry is a log entry captured by MemoryRoute.
type Entry struct {
	Level   Level
	Message string
	Context Context
}

// NewMemoryRoute creates an empty MemoryRoute.
func NewMemoryRoute() *MemoryRoute {
	return &MemoryRoute{}
}

// Log implements Route.
func (m *MemoryRoute) Log(level Level, msg string, ctx Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, Entry{Level: level, Message: msg, Context: ctx})
}

// Entries returns a copy of the captured entries.
func (m *MemoryRoute) Entries() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Entry(nil), m.entries...)
}

// Find returns the first entry with the given message.
func (m *MemoryRoute) Find(msg string) (Entry, bool) {
	for _, e := range m.Entries() {
		if e.Message == msg {
			return e, true
		}
	}
	return Entry{}, false
}
