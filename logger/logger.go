// Package logger provides the logging fan-out used by the API client.
//
// A Logger forwards every (level, message, context) entry to each attached
// Route. Routes decide on their own whether an entry is emitted, so level
// filtering happens per route rather than in the Logger itself.
//
// # Quick Start
//
//	log := logger.New(logger.NewStdRoute(logger.LevelInfo))
//	log.Info("client created", logger.Context{"domain": "example.pro"})
//
// Switching every leveled route to debug output:
//
//	log.SetLevel(logger.LevelDebug)
package logger

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// Level is a log severity. Levels are ordered from the least severe
// (LevelDebug) to the most severe (LevelEmergency).
type Level int

// Severity levels in ascending order.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelNotice
	LevelWarning
	LevelError
	LevelCritical
	LevelAlert
	LevelEmergency
)

var levelNames = [...]string{
	LevelDebug:     "debug",
	LevelInfo:      "info",
	LevelNotice:    "notice",
	LevelWarning:   "warning",
	LevelError:     "error",
	LevelCritical:  "critical",
	LevelAlert:     "alert",
	LevelEmergency: "emergency",
}

// String returns the lowercase level name.
func (l Level) String() string {
	if l < LevelDebug || l > LevelEmergency {
		return fmt.Sprintf("level(%d)", int(l))
	}
	return levelNames[l]
}

// ParseLevel converts a level name (case-insensitive) to a Level.
func ParseLevel(s string) (Level, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for i, n := range levelNames {
		if n == name {
			return Level(i), nil
		}
	}
	return LevelDebug, fmt.Errorf("unknown log level %q", s)
}

// Context carries structured values attached to a log entry.
type Context map[string]any

// Route receives log entries from a Logger.
type Route interface {
	Log(level Level, msg string, ctx Context)
}

// LeveledRoute is a Route with an adjustable minimum level.
// Logger.SetLevel only affects routes implementing this interface.
type LeveledRoute interface {
	Route
	SetLevel(level Level)
}

// Logger fans entries out to its routes. It is safe for concurrent use.
type Logger struct {
	mu     sync.RWMutex
	routes []Route
}

// New creates a Logger with the given routes attached.
func New(routes ...Route) *Logger {
	l := &Logger{}
	for _, r := range routes {
		l.AddRoute(r)
	}
	return l
}

// Nop returns a Logger without routes. Every entry is discarded.
func Nop() *Logger {
	return &Logger{}
}

// AddRoute attaches a route. Attaching the same route value twice is a no-op.
func (l *Logger) AddRoute(route Route) {
	if route == nil {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if reflect.TypeOf(route).Comparable() {
		for _, r := range l.routes {
			if reflect.TypeOf(r) == reflect.TypeOf(route) && r == route {
				return
			}
		}
	}
	l.routes = append(l.routes, route)
}

// Routes returns a copy of the attached routes.
func (l *Logger) Routes() []Route {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]Route(nil), l.routes...)
}

// SetLevel changes the minimum level of every LeveledRoute.
func (l *Logger) SetLevel(level Level) {
	for _, r := range l.Routes() {
		if lr, ok := r.(LeveledRoute); ok {
			lr.SetLevel(level)
		}
	}
}

// Log sends an entry to all routes.
func (l *Logger) Log(level Level, msg string, ctx Context) {
	if l == nil {
		return
	}
	for _, r := range l.Routes() {
		r.Log(level, msg, ctx)
	}
}

// Debug logs at LevelDebug.
func (l *Logger) Debug(msg string, ctx Context) { l.Log(LevelDebug, msg, ctx) }

// Info logs at LevelInfo.
func (l *Logger) Info(msg string, ctx Context) { l.Log(LevelInfo, msg, ctx) }

// Notice logs at LevelNotice.
func (l *Logger) Notice(msg string, ctx Context) { l.Log(LevelNotice, msg, ctx) }

// Warning logs at LevelWarning.
func (l *Logger) Warning(msg string, ctx Context) { l.Log(LevelWarning, msg, ctx) }

// Error logs at LevelError.
func (l *Logger) Error(msg string, ctx Context) { l.Log(LevelError, msg, ctx) }

// Critical logs at LevelCritical.
func (l *Logger) Critical(msg string, ctx Context) { l.Log(LevelCritical, msg, ctx) }

// Alert logs at LevelAlert.
func (l *Logger) Alert(msg string, ctx Context) { l.Log(LevelAlert, msg, ctx) }

// Emergency logs at LevelEmergency.
func (l *Logger) Emergency(msg string, ctx Context) { l.Log(LevelEmergency, msg, ctx) }
