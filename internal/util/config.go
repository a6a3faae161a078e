package util

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Configuration carries everything a session and the CLI need. Values come
// from an optional TOML file, overridden by command-line flags.
type Configuration struct {
	Version   string `toml:"-"`
	BuildDate string `toml:"-"`
	Commit    string `toml:"-"`

	RootPath string `toml:"root_path"`
	LogLevel string `toml:"log_level"`
	LogFile  string `toml:"log_file"`

	// Seed makes the random built-in deterministic; zero picks a fresh seed.
	Seed uint64 `toml:"seed"`

	// SinkDriver/SinkDSN wire the alteration sink: sqlite3, mysql or postgres.
	SinkDriver string `toml:"sink_driver"`
	SinkDSN    string `toml:"sink_dsn"`
}

// LoadFile reads a TOML configuration file into cfg, keeping any values the
// file does not mention.
func LoadFile(path string, cfg *Configuration) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("load config '%s': %w", path, err)
	}
	return nil
}
