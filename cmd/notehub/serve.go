package main

import (
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/pagenotes/notehub/internal/bridge"
	"github.com/pagenotes/notehub/internal/config"
	"github.com/pagenotes/notehub/internal/httpapi"
	"github.com/pagenotes/notehub/internal/notestore"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the privileged hub: durable backend, bridge, HTTP API",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(configPath)
		if err != nil {
			fatal("loading config", err)
		}
		backend, err := notestore.BuildStateBackendFromDSN(cfg.BackendDSN)
		if err != nil {
			fatal("building state backend", err)
		}
		store := notestore.NewStoreWithOptions(notestore.StoreOptions{
			Backend:             backend,
			MaxMutationAttempts: cfg.MaxMutationAttempts,
			WatchBackend:        cfg.WatchBackend,
		})
		defer store.Close()

		hub := bridge.NewHubWithOptions(store, bridge.HubOptions{Logger: slog.Default()})
		defer hub.Close()

		server := httpapi.NewServer(store, hub)
		slog.Info("notehub listening", "addr", cfg.ListenAddr, "backend", cfg.BackendDSN)
		if err := http.ListenAndServe(cfg.ListenAddr, server); err != nil {
			fatal("server failed", err)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
