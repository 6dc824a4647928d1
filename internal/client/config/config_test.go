package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "http://127.0.0.1:8080", c.ServerAddr)
	assert.Equal(t, "default", c.BoardID)
	assert.Equal(t, 300*time.Millisecond, c.WriteDebounce)
	assert.Equal(t, 10*time.Second, c.Heartbeat)
}

func writeTempJSON(t *testing.T, data map[string]any) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cfg.json")
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	path := writeTempJSON(t, map[string]any{
		"server_addr":    "http://boards.example:9000",
		"board_id":       "retro-42",
		"write_debounce": "150ms",
	})

	t.Run("loads from flags", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", path}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, "http://boards.example:9000", cfg.ServerAddr)
		assert.Equal(t, "retro-42", cfg.BoardID)
		assert.Equal(t, 150*time.Millisecond, cfg.WriteDebounce)
		assert.Equal(t, 10*time.Second, cfg.Heartbeat, "absent fields keep defaults")
	})

	t.Run("no config flag leaves values alone", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{ServerAddr: "http://kept:1234", WriteDebounce: 42 * time.Millisecond}
		parseJson(cfg)

		assert.Equal(t, "http://kept:1234", cfg.ServerAddr)
		assert.Equal(t, 42*time.Millisecond, cfg.WriteDebounce)
	})
}

func Test_parseFlags_Overrides(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	os.Args = []string{"testbin", "-a", "http://flagged:7000", "-b", "standup", "-n", "Mara"}

	cfg := &Config{}
	cfg.LoadDefaults()
	parseFlags(cfg)

	assert.Equal(t, "http://flagged:7000", cfg.ServerAddr)
	assert.Equal(t, "standup", cfg.BoardID)
	assert.Equal(t, "Mara", cfg.DisplayName)
	assert.Equal(t, "boardsync.db", cfg.LocalDBPath, "untouched flags keep defaults")
}
