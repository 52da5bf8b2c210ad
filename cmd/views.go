/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"fmt"

	"github.com/couchdir/couchdir/config"
	"github.com/couchdir/couchdir/internal/couch"
	"github.com/spf13/cobra"
)

// viewsCmd represents the views command.
var viewsCmd = &cobra.Command{
	Use:   "views",
	Short: "Manage the directory's CouchDB views",
}

var viewsUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Provision the directory database and its view indexes",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		ctx := cmd.Context()

		client, err := couch.Open(ctx, cfg.Couch)
		if err != nil {
			return fmt.Errorf("open couchdb: %w", err)
		}
		defer func() {
			_ = client.Close()
		}()

		if err := client.EnsureDatabase(ctx); err != nil {
			return err
		}
		if err := client.EnsureViews(ctx); err != nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(viewsCmd)
	viewsCmd.AddCommand(viewsUpCmd)
}
