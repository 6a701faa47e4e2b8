package log

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetOutputLevels(t *testing.T) {
	var buf bytes.Buffer
	SetOutput(&buf, slog.LevelInfo)
	defer SetOutput(os.Stderr, slog.LevelInfo)

	Debug("hidden", "k", 1)
	Info("shown", "k", 2)
	Warn("also shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "k=2")
}

func TestSetFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "engine.log")
	require.NoError(t, SetFileOutput(path, slog.LevelDebug))
	defer SetOutput(os.Stderr, slog.LevelInfo)

	Debug("filed", "battle", 7)
	Close()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "filed")
	assert.Contains(t, string(data), "battle=7")
}
