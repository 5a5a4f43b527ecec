package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]Level{
		"debug":   DEBUG,
		"INFO":    INFO,
		"warning": WARN,
		" error ": ERROR,
		"fatal":   FATAL,
		"bogus":   INFO,
	}
	for in, want := range cases {
		assert.Equal(t, want, ParseLevel(in), in)
	}
}

func TestLogger_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(WARN, false)
	l.SetOutput(&buf)

	l.Info("hidden")
	l.Warn("shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "WARN: shown")
}

func TestLogger_TextFieldsAreSorted(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(DEBUG, false)
	l.SetOutput(&buf)

	l.WithField("service", "photo-service").Info("launched", Fields{"pid": 42})

	line := strings.TrimSpace(buf.String())
	assert.True(t, strings.HasSuffix(line, "launched pid=42 service=photo-service"), line)
}

func TestLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(DEBUG, true)
	l.SetOutput(&buf)

	l.WithComponent("supervisor").Error("boom", Fields{"pid": 7})

	var entry LogEntry
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ERROR", entry.Level)
	assert.Equal(t, "supervisor", entry.Component)
	assert.Equal(t, "boom", entry.Message)
	assert.EqualValues(t, 7, entry.Fields["pid"])
}

func TestLogger_WithFieldDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := NewLogger(DEBUG, false)
	parent.SetOutput(&buf)

	_ = parent.WithField("a", 1)
	parent.Info("plain")

	assert.NotContains(t, buf.String(), "a=1")
}

func TestLogger_FatalExits(t *testing.T) {
	var buf bytes.Buffer
	code := -1
	l := NewLogger(INFO, false)
	l.SetOutput(&buf)
	l.exit = func(c int) { code = c }

	l.Fatal("cannot continue")

	assert.Equal(t, 1, code)
	assert.Contains(t, buf.String(), "FATAL: cannot continue")
}

func TestNewFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "svclaunch.log")

	l, err := NewFileLogger(path, INFO, false)
	require.NoError(t, err)
	l.Info("to file")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "to file")
}
