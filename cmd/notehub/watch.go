package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/pagenotes/notehub/internal/bridge"
	"github.com/pagenotes/notehub/internal/pagekey"
)

var watchCmd = &cobra.Command{
	Use:   "watch [page-url]",
	Short: "Stream changed events, for one page or for all",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		client := dialClient(context.Background())
		defer client.Close()

		onChange := func(pageKey string) {
			if pageKey == "" {
				pageKey = "(unattributed)"
			}
			fmt.Printf("changed %s\n", pageKey)
		}
		var sub *bridge.ClientSubscription
		if len(args) == 1 {
			key, err := pagekey.Normalize(args[0])
			if err != nil {
				fatal("resolving page key", err)
			}
			sub = client.Subscribe(key, onChange)
		} else {
			sub = client.SubscribeAll(onChange)
		}
		defer sub.Cancel()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		<-ctx.Done()
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
