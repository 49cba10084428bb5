package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("unknown"))
}

func TestComponentAddsAttribute(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	base := New(Config{Level: slog.LevelInfo, Format: "json", Output: &buf})

	Component(base, ComponentBot).Info("回答を生成しました")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, ComponentBot, entry["component"])
	assert.Equal(t, "回答を生成しました", entry["msg"])
}

func TestNewFileWriterCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "doc-voicebot.log")

	w, err := NewFileWriter(path)
	require.NoError(t, err)
	defer w.Close()

	_, err = w.Write([]byte("{\"msg\":\"started\"}\n"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "started")
}
