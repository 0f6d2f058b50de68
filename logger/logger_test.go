package logger

import (
	"bytes"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevel_String(t *testing.T) {
	tests := []struct {
		name  string
		level Level
		want  string
	}{
		{name: "given debug, then returns debug", level: LevelDebug, want: "debug"},
		{name: "given notice, then returns notice", level: LevelNotice, want: "notice"},
		{name: "given emergency, then returns emergency", level: LevelEmergency, want: "emergency"},
		{name: "given out of range, then returns numeric form", level: Level(42), want: "level(42)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.level.String())
		})
	}
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel(" Warning ")
	require.NoError(t, err)
	assert.Equal(t, LevelWarning, lvl)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)
}

func TestLogger_FanOut(t *testing.T) {
	first := NewMemoryRoute()
	second := NewMemoryRoute()
	log := New(first, second)

	log.Info("hello", Context{"k": "v"})

	require.Len(t, first.Entries(), 1)
	require.Len(t, second.Entries(), 1)
	assert.Equal(t, LevelInfo, first.Entries()[0].Level)
	assert.Equal(t, "v", second.Entries()[0].Context["k"])
}

func TestLogger_AddRoute_IgnoresDuplicates(t *testing.T) {
	route := NewMemoryRoute()
	log := New(route)
	log.AddRoute(route)
	log.AddRoute(nil)

	log.Debug("once", nil)

	assert.Len(t, log.Routes(), 1)
	assert.Len(t, route.Entries(), 1)
}

func TestLogger_NilAndNop(t *testing.T) {
	var nilLogger *Logger
	assert.NotPanics(t, func() { nilLogger.Error("x", nil) })
	assert.NotPanics(t, func() { Nop().Emergency("x", nil) })
}

func TestZerologRoute_Filtering(t *testing.T) {
	tests := []struct {
		name     string
		minLevel Level
		logLevel Level
		wantOut  bool
	}{
		{
			name:     "given entry below minimum, then drops it",
			minLevel: LevelInfo,
			logLevel: LevelDebug,
			wantOut:  false,
		},
		{
			name:     "given entry at minimum, then writes it",
			minLevel: LevelInfo,
			logLevel: LevelInfo,
			wantOut:  true,
		},
		{
			name:     "given emergency entry, then writes without exiting",
			minLevel: LevelWarning,
			logLevel: LevelEmergency,
			wantOut:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			route := NewWriterRoute(&buf, tt.minLevel)

			route.Log(tt.logLevel, "msg", Context{"url": "https://example.pro"})

			assert.Equal(t, tt.wantOut, buf.Len() > 0)
		})
	}
}

func TestZerologRoute_WritesSeverityAndContext(t *testing.T) {
	var buf bytes.Buffer
	route := NewWriterRoute(&buf, LevelDebug)

	route.Log(LevelNotice, "created", Context{"model": "Order"})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "notice", entry["severity"])
	assert.Equal(t, "Order", entry["model"])
	assert.Equal(t, "created", entry["message"])
}

func TestLogger_SetLevel(t *testing.T) {
	var buf bytes.Buffer
	leveled := NewWriterRoute(&buf, LevelInfo)
	memory := NewMemoryRoute()
	log := New(leveled, memory)

	log.Debug("hidden", nil)
	assert.Zero(t, buf.Len())

	log.SetLevel(LevelDebug)
	assert.Equal(t, LevelDebug, leveled.Level())

	log.Debug("visible", nil)
	assert.NotZero(t, buf.Len())
	assert.Len(t, memory.Entries(), 2)
}

func TestMemoryRoute_Find(t *testing.T) {
	route := NewMemoryRoute()
	route.Log(LevelDebug, "url", Context{"value": "https://x.test"})

	entry, ok := route.Find("url")
	require.True(t, ok)
	assert.Equal(t, "https://x.test", entry.Context["value"])

	_, ok = route.Find("missing")
	assert.False(t, ok)
}
