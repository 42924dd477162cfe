package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragchat/internal/domain"
)

func TestNewLogger_LevelAndFields(t *testing.T) {
	var buf bytes.Buffer
	l, err := NewLogger(Config{Level: "warn", Output: &buf})
	require.NoError(t, err)

	c := l.Component("loader")
	c.Info().Msg("hidden")
	c.Warn().Str("path", "b.pdf").Msg("skipped document: empty content")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "loader", entry["component"])
	assert.Equal(t, "ragchat", entry["service"])
	assert.Equal(t, "b.pdf", entry["path"])
}

func TestNewLogger_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "ragchat.log")
	l, err := NewLogger(Config{Level: "info", File: path})
	require.NoError(t, err)

	l.LogIngest(domain.IngestReport{Documents: 2, Segments: 5, Stored: 5}, time.Second, nil)
	l.LogQuestion("hours?", 3, time.Second, "failed", errors.New("boom"))
	require.NoError(t, l.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"stored":5`)
	assert.Contains(t, string(data), `"outcome":"failed"`)
	assert.Contains(t, string(data), `"error":"boom"`)
}

func TestNop(t *testing.T) {
	l := Nop()
	l.LogIngest(domain.IngestReport{}, 0, nil)
	assert.NoError(t, l.Close())
}
