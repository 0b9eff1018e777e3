package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pagenotes/notehub/internal/pagekey"
)

var addCmd = &cobra.Command{
	Use:   "add <page-url> <text>...",
	Short: "Add a note to a page",
	Args:  cobra.MinimumNArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		key, err := pagekey.Normalize(args[0])
		if err != nil {
			fatal("resolving page key", err)
		}
		client := dialClient(context.Background())
		defer client.Close()

		note, err := client.Add(context.Background(), key, strings.Join(args[1:], " "))
		if err != nil {
			fatal("adding note", err)
		}
		fmt.Printf("added %s to %s\n", note.ID, note.PageKey)
	},
}

func init() {
	rootCmd.AddCommand(addCmd)
}
