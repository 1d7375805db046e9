package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ajandahq/ajanda-sync/internal/config"
	"github.com/ajandahq/ajanda-sync/internal/dashboard"
	"github.com/ajandahq/ajanda-sync/internal/reconciler"
	"github.com/ajandahq/ajanda-sync/internal/trigger"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the sync trigger service (foreground)",
	Long: `Run the trigger service in the foreground.

The service runs an immediate pass on start, then re-syncs:
  - every sync.interval (default 5m)
  - when connectivity returns after an offline period
  - on externally reported online events

With dashboard.enabled, a WebSocket server broadcasts live sync events.

Press Ctrl+C to stop; a pass in flight finishes first.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		st, err := openStore(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer st.Close()

		client, err := newRemote(cfg)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		logger := newLogger(cfg, "[daemon] ")
		config.Watch(logger)

		var sink reconciler.EventSink
		var dash *dashboard.Server
		if cfg.Dashboard.Enabled {
			dash = dashboard.NewServer(&dashboard.Config{
				Port:   cfg.Dashboard.Port,
				Logger: logger,
			})
			if err := dash.Start(); err != nil {
				fmt.Fprintf(os.Stderr, "Error starting dashboard: %v\n", err)
				os.Exit(1)
			}
			defer func() { _ = dash.Stop() }()
			sink = dashboard.NewSink(dash)
		}

		rec := reconciler.New(st, client, sink, logger)

		svc, err := trigger.New(rec, client.Ping, &trigger.Config{
			Interval:      cfg.Sync.Interval,
			ProbeInterval: cfg.Sync.ProbeInterval,
			Logger:        logger,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error creating trigger: %v\n", err)
			os.Exit(1)
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("Starting sync daemon for owner %s\n", cfg.OwnerID)
		fmt.Printf("   Backend: %s\n", cfg.Remote.BaseURL)
		fmt.Printf("   Cache: %s\n", cfg.DBPath)
		fmt.Printf("   Interval: %v\n", cfg.Sync.Interval)
		if dash != nil {
			fmt.Printf("   Dashboard: http://localhost:%d (ws://localhost:%d/ws)\n", cfg.Dashboard.Port, cfg.Dashboard.Port)
		}
		fmt.Printf("\nPress Ctrl+C to stop\n\n")

		if err := svc.Start(ctx, cfg.OwnerID); err != nil {
			fmt.Fprintf(os.Stderr, "Error starting trigger: %v\n", err)
			os.Exit(1)
		}

		<-ctx.Done()
		svc.Stop()
	},
}

func init() {
	rootCmd.AddCommand(daemonCmd)
}
