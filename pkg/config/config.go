// Package config loads fleetctl's process-level configuration: where
// LiveStore and PlanStore live, where the RPC façade binds, and how to
// log. The tunables LiveStore itself exposes through env_info rows
// (update_interval, ROBOT_JOB_DURATION) are not here — those are read
// at runtime from the database, not from this file.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level YAML document. TickInterval is a
// time.ParseDuration string ("1s", "500ms") rather than a
// time.Duration field: yaml.v3 decodes a Go Duration as a bare
// integer of nanoseconds, which is not how operators write durations
// in a config file.
type Config struct {
	LiveStore    LiveStoreConfig `yaml:"livestore"`
	PlanStore    PlanStoreConfig `yaml:"planstore"`
	HTTP         HTTPConfig      `yaml:"http"`
	Log          LogConfig       `yaml:"log"`
	TickInterval string          `yaml:"tick_interval"`
}

// Tick parses TickInterval, defaulting to 1s (spec.md §6.3's
// update_interval default) if empty or invalid.
func (c Config) Tick() time.Duration {
	d, err := time.ParseDuration(c.TickInterval)
	if err != nil || d <= 0 {
		return time.Second
	}
	return d
}

// LiveStoreConfig selects the external LiveStore backend.
type LiveStoreConfig struct {
	// MySQLDSN, if set, is tried first.
	MySQLDSN string `yaml:"mysql_dsn"`
	// SQLitePath is the embedded fallback, used when MySQLDSN is
	// empty or unreachable at startup.
	SQLitePath string `yaml:"sqlite_path"`
}

// PlanStoreConfig points at the bbolt data directory.
type PlanStoreConfig struct {
	DataDir string `yaml:"data_dir"`
}

// HTTPConfig configures the RPC façade's listener.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// LogConfig configures pkg/log.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		LiveStore:    LiveStoreConfig{SQLitePath: "chargepal_ldb.db"},
		PlanStore:    PlanStoreConfig{DataDir: "chargepal_pdb"},
		HTTP:         HTTPConfig{Addr: ":8080"},
		Log:          LogConfig{Level: "info", JSON: false},
		TickInterval: "1s",
	}
}

// Load reads and parses a YAML config file at path, filling in
// defaults for anything the file leaves zero-valued.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}

	loaded := Default()
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return loaded, nil
}
