package main

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/ajandahq/ajanda-sync/internal/config"
	"github.com/ajandahq/ajanda-sync/internal/remote"
	"github.com/ajandahq/ajanda-sync/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "ajsync",
	Short: "Offline-first sync engine for Ajanda",
	Long: `ajsync keeps the local Ajanda cache in sync with the backend.

Records mutated locally are marked dirty and pushed on the next pass;
the remote snapshot is then pulled, overwriting only records without
pending local changes. Reference data (task types, subjects, topics)
always mirrors the backend.`,
	SilenceUsage: true,
}

// loadConfig resolves configuration from file, env and defaults.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// openStore opens the local cache and ensures the schema exists.
func openStore(cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening local cache: %w", err)
	}
	if err := st.InitSchema(); err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}
	return st, nil
}

// newRemote builds the backend client from config.
func newRemote(cfg *config.Config) (*remote.Client, error) {
	client, err := remote.New(remote.Config{
		BaseURL: cfg.Remote.BaseURL,
		APIKey:  cfg.Remote.APIKey,
		Token:   cfg.Remote.Token,
	})
	if err != nil {
		return nil, fmt.Errorf("creating backend client: %w", err)
	}
	return client, nil
}

// newLogger builds a prefixed logger. With log.file set, output rotates
// through lumberjack; otherwise it goes to stderr.
func newLogger(cfg *config.Config, prefix string) *log.Logger {
	var out io.Writer = os.Stderr
	if cfg.Log.File != "" {
		out = &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
		}
	}
	return log.New(out, prefix, log.LstdFlags)
}
