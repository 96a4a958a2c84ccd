package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewProductionLogger(t *testing.T) {
	l, err := NewProductionLogger(false)
	require.NoError(t, err)
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))

	l, err = NewProductionLogger(true)
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestNewDevelopmentLogger(t *testing.T) {
	l, err := NewDevelopmentLogger(false)
	require.NoError(t, err)
	assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
	assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
}

func TestNewFileLogger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "notes.log")
	l, err := NewFileLogger(path, false)
	require.NoError(t, err)

	l.Info("note_created", zap.String("id", "n1"))
	l.Debug("hidden")
	require.NoError(t, Sync(l))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(b)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "note_created", entry["msg"])
	assert.Equal(t, "n1", entry["id"])
	assert.Equal(t, "info", entry["level"])
}

func TestSync_Nil(t *testing.T) {
	assert.NoError(t, Sync(nil))
}
