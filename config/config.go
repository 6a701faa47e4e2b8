// Package config loads the engine's YAML configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Simulator configures the local simulator process.
type Simulator struct {
	// Command is the simulator entry point, e.g.
	// ["./pokemon-showdown", "simulate-battle"].
	Command []string `yaml:"command"`
}

// Server configures a battle server connection.
type Server struct {
	URL      string `yaml:"url"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Battle configures what to play.
type Battle struct {
	Format     string `yaml:"format"`
	Generation int    `yaml:"generation"`
	// Count is how many battles a bot run plays; 0 means one.
	Count int `yaml:"count"`
}

// Dispatch configures the listener dispatcher.
type Dispatch struct {
	Workers       int `yaml:"workers"`
	MaxListeners  int `yaml:"max_listeners"`
	QueueCapacity int `yaml:"queue_capacity"`
}

// Config is the root document.
type Config struct {
	Simulator Simulator `yaml:"simulator"`
	Server    Server    `yaml:"server"`
	Battle    Battle    `yaml:"battle"`
	Dispatch  Dispatch  `yaml:"dispatch"`
	// ReplayDB is the SQLite file battles are recorded to; empty disables
	// recording.
	ReplayDB string `yaml:"replay_db"`
	// LogFile redirects logging; empty keeps stderr.
	LogFile string `yaml:"log_file"`
	// DataDir holds the dex JSON files.
	DataDir string `yaml:"data_dir"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Simulator: Simulator{Command: []string{"./pokemon-showdown", "simulate-battle"}},
		Battle:    Battle{Format: "gen8randombattle", Generation: 8, Count: 1},
		Dispatch:  Dispatch{Workers: 4, MaxListeners: 64, QueueCapacity: 256},
		DataDir:   "data",
	}
}

// Load reads a YAML config file, filling unset fields from Default.
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.Dispatch.Workers < 1 {
		cfg.Dispatch.Workers = 1
	}
	if cfg.Battle.Count < 1 {
		cfg.Battle.Count = 1
	}
	return cfg, nil
}
