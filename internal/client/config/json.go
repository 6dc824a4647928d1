package config

import (
	"encoding/json"
	"os"

	"github.com/dmitrijs2005/boardsync/internal/flagx"
	"github.com/dmitrijs2005/boardsync/internal/timex"
)

// JsonConfig is a DTO used exclusively for JSON unmarshalling. It relies on
// timex.Duration so JSON can specify intervals either as strings like
// "300ms" or as integer nanoseconds.
type JsonConfig struct {
	ServerAddr    string         `json:"server_addr"`
	BoardID       string         `json:"board_id"`
	DisplayName   string         `json:"display_name"`
	Color         string         `json:"color"`
	LocalDBPath   string         `json:"local_db_path"`
	WriteDebounce timex.Duration `json:"write_debounce"`
	Heartbeat     timex.Duration `json:"heartbeat"`
}

// parseJson overlays Config with values loaded from a JSON file. The file
// path comes from the -c/-config flags; when absent nothing is loaded.
// Zero-valued JSON fields leave the existing Config values alone.
func parseJson(cfg *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	var jc JsonConfig

	data, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, &jc); err != nil {
		panic(err)
	}

	if jc.ServerAddr != "" {
		cfg.ServerAddr = jc.ServerAddr
	}
	if jc.BoardID != "" {
		cfg.BoardID = jc.BoardID
	}
	if jc.DisplayName != "" {
		cfg.DisplayName = jc.DisplayName
	}
	if jc.Color != "" {
		cfg.Color = jc.Color
	}
	if jc.LocalDBPath != "" {
		cfg.LocalDBPath = jc.LocalDBPath
	}
	if jc.WriteDebounce.Duration > 0 {
		cfg.WriteDebounce = jc.WriteDebounce.Duration
	}
	if jc.Heartbeat.Duration > 0 {
		cfg.Heartbeat = jc.Heartbeat.Duration
	}
}
