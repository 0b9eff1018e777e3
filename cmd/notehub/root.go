package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/pagenotes/notehub/internal/bridge"
	"github.com/pagenotes/notehub/internal/config"
)

var (
	verbose    bool
	serverURL  string
	configPath string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "notehub",
	Short: "A per-origin note store shared across isolated contexts",
	Long: `Notehub keeps notes grouped by page origin in a durable backend and
keeps every connected context converged on the same state. "serve" runs the
privileged hub; the other commands are bridge clients talking to it.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		opts := &slog.HandlerOptions{
			Level: level,
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, opts))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "ws://127.0.0.1:8791/v1/bridge", "Bridge endpoint of the hub")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file")
}

// dialClient connects to the hub with the configured request timeout.
func dialClient(ctx context.Context) *bridge.Client {
	cfg, err := config.Load(configPath)
	if err != nil {
		fatal("loading config", err)
	}
	client, err := bridge.DialWithOptions(ctx, serverURL,
		bridge.ClientOptions{RequestTimeout: cfg.BridgeTimeout})
	if err != nil {
		fatal("connecting to hub", err)
	}
	return client
}

func fatal(msg string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", msg, err)
	os.Exit(1)
}
