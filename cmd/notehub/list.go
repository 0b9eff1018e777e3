package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pagenotes/notehub/internal/pagekey"
)

var listJSON bool

var listCmd = &cobra.Command{
	Use:   "list <page-url>",
	Short: "List the notes for a page",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		key, err := pagekey.Normalize(args[0])
		if err != nil {
			fatal("resolving page key", err)
		}
		client := dialClient(context.Background())
		defer client.Close()

		notes, err := client.List(context.Background(), key)
		if err != nil {
			fatal("listing notes", err)
		}
		if listJSON {
			encoder := json.NewEncoder(os.Stdout)
			encoder.SetIndent("", "  ")
			if err := encoder.Encode(notes); err != nil {
				fatal("encoding notes", err)
			}
			return
		}
		if len(notes) == 0 {
			fmt.Printf("no notes for %s\n", key)
			return
		}
		for _, note := range notes {
			fmt.Printf("%s  %s  %s\n", note.ID, note.CreatedAt, note.Text)
		}
	},
}

func init() {
	listCmd.Flags().BoolVar(&listJSON, "json", false, "Print notes as JSON")
	rootCmd.AddCommand(listCmd)
}
