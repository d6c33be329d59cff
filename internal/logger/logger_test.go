package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel("WARNING"))
	assert.Equal(t, LevelNone, ParseLevel("none"))
	// Unknown strings default to info.
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}

func TestLoggerWritesLeveledLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.log")
	l, err := New(LevelInfo, path, "gate")
	require.NoError(t, err)

	l.Debug("should not appear")
	l.Info("hello %d", 42)
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.NotContains(t, out, "should not appear")
	assert.Contains(t, out, "[INFO] [gate] hello 42")
}

func TestLoggerRedactor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.log")
	l, err := New(LevelInfo, path, "")
	require.NoError(t, err)
	l.SetRedactor(func(s string) string {
		return strings.ReplaceAll(s, "123456789:secret", "[REDACTED]")
	})

	l.Error("auth failed for token 123456789:secret")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "123456789:secret")
	assert.Contains(t, string(data), "[REDACTED]")
}

func TestDisabledLogger(t *testing.T) {
	l, err := New(LevelNone, "", "")
	require.NoError(t, err)
	// Must be a no-op, not a crash.
	l.Info("dropped")
	require.NoError(t, l.Close())
}

func TestWithPrefixChainsPrefixes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gateway.log")
	l, err := New(LevelDebug, path, "gate")
	require.NoError(t, err)

	l.WithPrefix("vault").Warn("fallback backend in use")
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "[gate:vault]")
}
