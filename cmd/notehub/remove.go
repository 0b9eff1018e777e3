package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pagenotes/notehub/internal/pagekey"
)

var removeCmd = &cobra.Command{
	Use:   "remove <page-url> <note-id>",
	Short: "Remove a note from a page",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		key, err := pagekey.Normalize(args[0])
		if err != nil {
			fatal("resolving page key", err)
		}
		client := dialClient(context.Background())
		defer client.Close()

		removed, err := client.Remove(context.Background(), key, args[1])
		if err != nil {
			fatal("removing note", err)
		}
		if removed {
			fmt.Printf("removed %s from %s\n", args[1], key)
		} else {
			fmt.Printf("no note %s on %s\n", args[1], key)
		}
	},
}

func init() {
	rootCmd.AddCommand(removeCmd)
}
