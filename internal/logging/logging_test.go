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

func TestNew_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log, closer := New(Options{Level: "warn", JSON: true, Console: &buf})
	defer closer.Close()

	log.Info().Msg("hidden")
	log.Warn().Str("vault_id", "v1").Msg("shown")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "shown", entry["message"])
	assert.Equal(t, "v1", entry["vault_id"])
	assert.Equal(t, "vaultbook", entry["app"])
}

func TestNew_VerboseAndFallbackLevel(t *testing.T) {
	var buf bytes.Buffer
	log, _ := New(Options{Level: "error", Verbose: true, Console: &buf})
	log.Debug().Msg("debugging")
	assert.Contains(t, buf.String(), "debugging")

	buf.Reset()
	log, _ = New(Options{Level: "bogus", Console: &buf})
	log.Info().Msg("info")
	assert.Empty(t, buf.String(), "unknown levels fall back to warn")
}

func TestNew_WritesRotatingFile(t *testing.T) {
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "vaultbook.log")
	log, closer := New(Options{Level: "info", File: path, MaxSizeMB: 1, Console: &buf})

	log.Info().Msg("to file")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"to file"`)
	assert.Contains(t, buf.String(), "to file")
}
