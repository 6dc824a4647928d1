package config

import "time"

// Config holds runtime settings for the boardsync client.
//
// Fields:
//   - ServerAddr: base URL of the board server, e.g. http://127.0.0.1:8080.
//   - BoardID: board to join on startup.
//   - DisplayName, Color: how this user appears in other sessions' rosters.
//   - LocalDBPath: sqlite file for the durable upload staging store.
//   - WriteDebounce: quiet period before a mutated entity is persisted.
//   - Heartbeat: presence renewal interval.
type Config struct {
	ServerAddr    string
	BoardID       string
	DisplayName   string
	Color         string
	LocalDBPath   string
	WriteDebounce time.Duration
	Heartbeat     time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerAddr = "http://127.0.0.1:8080"
	c.BoardID = "default"
	c.DisplayName = "anonymous"
	c.Color = "#4a90d9"
	c.LocalDBPath = "boardsync.db"
	c.WriteDebounce = 300 * time.Millisecond
	c.Heartbeat = 10 * time.Second
}

// LoadConfig constructs a Config, applies defaults, then overlays values from
// JSON (if present) and command-line flags (if present). Later sources take
// precedence over earlier ones.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
