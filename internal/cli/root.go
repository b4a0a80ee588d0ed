// Package cli provides the command-line interface for oficinas-chat.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/phantodev/oficinas-chat/internal/backend"
	"github.com/phantodev/oficinas-chat/internal/config"
	"github.com/phantodev/oficinas-chat/internal/metrics"
	"github.com/phantodev/oficinas-chat/internal/sync"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Global config, backend client, and view orchestrator
	cfg       config.Config
	client    *backend.Client
	log       *slog.Logger
	closeLog  func() error
	collector *metrics.Collector
	orch      *sync.Orchestrator
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "oficinas-chat",
	Short: "Realtime chat client for the oficinas check-in app",
	Long: `Oficinas-chat is the terminal client for the oficinas check-in/check-out
app's chat. It keeps conversation and message lists synchronized with the
backend over a live change feed: paginated history, read receipts, and
instant delivery of new messages.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip backend connection for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		// Load config and set up logging
		cfg = config.Load()
		if verbose {
			cfg.LogLevel = slog.LevelDebug
		}
		log, closeLog = config.SetupLogger(cfg.LogFile, cfg.LogLevel)

		// Connect to the backend
		ctx := context.Background()
		var err error
		client, err = backend.NewClient(ctx, backend.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
			UserID:    cfg.UserID,
			UserEmail: cfg.UserEmail,
		}, log)
		if err != nil {
			return fmt.Errorf("connect to backend: %w", err)
		}

		if err := client.InitSchema(ctx); err != nil {
			return fmt.Errorf("initialize schema: %w", err)
		}

		collector = metrics.NewCollector()
		orch = sync.New(sync.FromClient(client), sync.NewStores(), log, collector, sync.Options{
			ConversationPageLimit: cfg.ConversationPageLimit,
			MessagePageLimit:      cfg.MessagePageLimit,
		})

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if verbose && collector != nil {
			printMetrics(collector.Snapshot())
		}
		if client != nil {
			if err := client.Close(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close backend: %v\n", err)
			}
		}
		if closeLog != nil {
			_ = closeLog()
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	// Add subcommands
	rootCmd.AddCommand(conversationsCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(initSchemaCmd)
}

// printMetrics dumps the sync-core statistics collected during this run.
func printMetrics(snap metrics.Snapshot) {
	fmt.Fprintf(os.Stderr, "\nSync stats (%.1fs):\n", snap.UptimeSeconds)
	printOp := func(name string, op *metrics.OperationSnapshot) {
		if op == nil {
			return
		}
		fmt.Fprintf(os.Stderr, "  %-12s %4d calls, avg %.1fms, min %dms, max %dms\n",
			name, op.Count, op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
	}
	printOp("fetch_page", snap.FetchPage)
	printOp("send", snap.Send)
	printOp("mark_read", snap.MarkRead)
	printOp("live_event", snap.LiveEvent)
}
