// file: logger/logger_test.go
//go:build unit
// +build unit

package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test: SetOutput redirects structured JSON lines to the new writer
func TestSetOutput_WritesJSON(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)
	SetLogLevel("development")

	Info().Str("role", "Player1").Msg("[Test] hello")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "Player1", entry["role"])
	assert.Equal(t, "[Test] hello", entry["message"])
}

// Test: production environment drops debug output
func TestSetLogLevel_ProductionDropsDebug(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf)
	defer SetOutput(os.Stderr)

	SetLogLevel("production")
	defer SetLogLevel("development")

	Debug().Msg("should not appear")
	assert.Empty(t, buf.String())

	Info().Msg("should appear")
	assert.Contains(t, buf.String(), "should appear")
}

// Test: SetLevel rejects unknown names
func TestSetLevel_Invalid(t *testing.T) {
	err := SetLevel("loud")
	assert.Error(t, err)

	assert.NoError(t, SetLevel("debug"))
}

// Test: InitLogger creates the directory and a log file
func TestInitLogger_CreatesFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	require.NoError(t, InitLogger(dir))
	defer SetOutput(os.Stderr)

	Info().Msg("to file")

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
	assert.Equal(t, ".log", filepath.Ext(entries[0].Name()))
}

// Test: re-initializing closes the previous log file, and Close closes the last
func TestInitLogger_ClosesPreviousFile(t *testing.T) {
	require.NoError(t, InitLogger(t.TempDir()))
	defer SetOutput(os.Stderr)
	first := logFile
	require.NotNil(t, first)

	require.NoError(t, InitLogger(t.TempDir()))
	second := logFile
	require.NotNil(t, second)
	assert.NotSame(t, first, second)

	_, err := first.WriteString("late\n")
	assert.True(t, errors.Is(err, os.ErrClosed), "first log file left open: %v", err)

	Info().Msg("still logging")
	_, err = second.WriteString("ok\n")
	assert.NoError(t, err)

	Close()
	assert.Nil(t, logFile)
	_, err = second.WriteString("late\n")
	assert.True(t, errors.Is(err, os.ErrClosed), "last log file left open: %v", err)
}
