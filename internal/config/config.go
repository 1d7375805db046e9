// Package config loads ajsync settings from file, environment and defaults.
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config is the resolved ajsync configuration.
type Config struct {
	// OwnerID is the identity whose records are synchronized.
	OwnerID string `mapstructure:"owner_id"`

	// DBPath is the local cache location.
	DBPath string `mapstructure:"db_path"`

	Remote    RemoteConfig    `mapstructure:"remote"`
	Sync      SyncConfig      `mapstructure:"sync"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	Log       LogConfig       `mapstructure:"log"`
}

// RemoteConfig describes the backend API.
type RemoteConfig struct {
	BaseURL string `mapstructure:"base_url"`
	APIKey  string `mapstructure:"api_key"`
	Token   string `mapstructure:"token"`
}

// SyncConfig tunes the trigger service.
type SyncConfig struct {
	Interval      time.Duration `mapstructure:"interval"`
	ProbeInterval time.Duration `mapstructure:"probe_interval"`
}

// DashboardConfig tunes the optional WebSocket dashboard.
type DashboardConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// LogConfig controls daemon log output. When File is empty, logs go to
// stderr; otherwise they rotate through lumberjack.
type LogConfig struct {
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// loaded keeps the viper instance behind the last Load call so Watch
// can hook file-change events.
var loaded *viper.Viper

// Load reads ajsync.yaml from the working directory or
// ~/.config/ajanda/, applies AJSYNC_* environment overrides, and fills
// in defaults. A missing config file is not an error; env and defaults
// still apply.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("ajsync")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "ajanda"))
	}

	v.SetEnvPrefix("AJSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	loaded = v
	return &cfg, nil
}

// Watch logs config file changes so an operator can confirm a live
// edit was picked up. Changes apply on the next daemon start; the
// running trigger keeps its original interval. No-op when no config
// file was found.
func Watch(logger *log.Logger) {
	if loaded == nil || loaded.ConfigFileUsed() == "" {
		return
	}
	loaded.OnConfigChange(func(e fsnotify.Event) {
		logger.Printf("Config file changed: %s (%s); restart the daemon to apply", e.Name, e.Op)
	})
	loaded.WatchConfig()
}

func setDefaults(v *viper.Viper) {
	// Every key needs a default registered so AutomaticEnv picks up
	// env-only values during Unmarshal.
	v.SetDefault("owner_id", "")
	v.SetDefault("db_path", defaultDBPath())
	v.SetDefault("remote.base_url", "")
	v.SetDefault("remote.api_key", "")
	v.SetDefault("remote.token", "")
	v.SetDefault("sync.interval", 5*time.Minute)
	v.SetDefault("sync.probe_interval", 15*time.Second)
	v.SetDefault("dashboard.enabled", false)
	v.SetDefault("dashboard.port", 8080)
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 3)
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".ajanda", "cache.db")
	}
	return filepath.Join(home, ".ajanda", "cache.db")
}

// Validate checks the fields required to talk to the backend.
func (c *Config) Validate() error {
	if c.Remote.BaseURL == "" {
		return fmt.Errorf("remote.base_url is required")
	}
	if c.OwnerID == "" {
		return fmt.Errorf("owner_id is required")
	}
	return nil
}
