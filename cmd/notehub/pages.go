package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var pagesCmd = &cobra.Command{
	Use:   "pages",
	Short: "List every page that currently has notes",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		client := dialClient(context.Background())
		defer client.Close()

		pages, err := client.Pages(context.Background())
		if err != nil {
			fatal("listing pages", err)
		}
		for _, page := range pages {
			fmt.Println(page)
		}
	},
}

func init() {
	rootCmd.AddCommand(pagesCmd)
}
