/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/couchdir/couchdir/config"
	"github.com/couchdir/couchdir/internal/archive"
	"github.com/couchdir/couchdir/internal/couch"
	"github.com/couchdir/couchdir/internal/directory"
	"github.com/couchdir/couchdir/internal/events"
	"github.com/couchdir/couchdir/internal/migration"
	"github.com/spf13/cobra"
)

var (
	migrateProfileTable  string
	migrateEventsChannel string
)

// migrateCmd represents the migrate command.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Migrate data into the directory",
}

var migrateUsersCmd = &cobra.Command{
	Use:   "users",
	Short: "Migrate users from the legacy relational database",
	Long: `Migrates every row of the legacy users table into the directory,
upserting by username so reruns never create duplicates. Per-row
failures are reported and do not abort the run.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		ctx := cmd.Context()
		logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))

		legacyDB, err := migration.OpenLegacyDB(ctx, cfg.Legacy)
		if err != nil {
			return fmt.Errorf("open legacy database: %w", err)
		}
		defer func() {
			_ = legacyDB.Close()
		}()

		couchClient, err := couch.Open(ctx, cfg.Couch)
		if err != nil {
			return fmt.Errorf("open couchdb: %w", err)
		}
		defer func() {
			_ = couchClient.Close()
		}()
		if err := couchClient.EnsureDatabase(ctx); err != nil {
			return err
		}
		if err := couchClient.EnsureViews(ctx); err != nil {
			return err
		}

		opts := migration.Options{
			Progress: func(index, total int) {
				fmt.Fprintf(os.Stderr, "\rprocessed %d/%d", index+1, total)
			},
		}

		if migrateProfileTable != "" {
			profiles, err := migration.PostgresProfiles(legacyDB, migrateProfileTable)
			if err != nil {
				return err
			}
			opts.Profile = profiles
		}

		publisher, err := events.FromConfig(ctx, cfg)
		if err != nil {
			return fmt.Errorf("configure events: %w", err)
		}
		if publisher != nil {
			defer func() {
				_ = publisher.Close()
			}()
			opts.OnRow = func(index, total int, result migration.RowResult) {
				publishRowEvent(ctx, logger, publisher, index, total, result)
			}
		}

		dir := directory.New(couchClient.Store())
		migrator := migration.New(dir, logger)
		source := migration.NewPostgresSource(legacyDB)

		report, runErr := migrator.Run(ctx, source, opts)
		fmt.Fprintln(os.Stderr)
		if report != nil {
			fmt.Fprintf(os.Stderr, "migrated %d, duplicates %d, failed %d of %d\n",
				report.Migrated(), report.Duplicates(), report.Failed(), report.Total)
			if err := archiveReport(ctx, cfg, logger, report); err != nil {
				logger.Warn("report not archived", "error", err)
			}
		}
		if runErr != nil {
			return runErr
		}
		if unmigrated := report.Duplicates() + report.Failed(); unmigrated > 0 {
			return fmt.Errorf("%d of %d rows were not migrated", unmigrated, report.Total)
		}
		return nil
	},
}

func publishRowEvent(ctx context.Context, logger *slog.Logger, publisher events.Publisher, index, total int, result migration.RowResult) {
	payload, err := json.Marshal(struct {
		Index int `json:"index"`
		Total int `json:"total"`
		migration.RowResult
	}{Index: index, Total: total, RowResult: result})
	if err != nil {
		return
	}
	attrs := map[string]string{"status": string(result.Status)}
	if _, err := publisher.Publish(ctx, migrateEventsChannel, payload, attrs); err != nil {
		logger.Warn("event not published", "username", result.Username, "error", err)
	}
}

func archiveReport(ctx context.Context, cfg config.Config, logger *slog.Logger, report *migration.Report) error {
	store, err := archive.FromConfig(ctx, cfg)
	if err != nil {
		return err
	}
	if store == nil {
		return nil
	}

	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	if err := store.EnsureBucket(ctx); err != nil {
		return err
	}

	key := fmt.Sprintf("reports/users-%s.json", report.StartedAt.Format("20060102T150405Z"))
	if err := store.Put(ctx, key, bytes.NewReader(body), int64(len(body)), "application/json"); err != nil {
		return err
	}
	logger.Info("report archived", "bucket", store.Bucket(), "key", key)
	return nil
}

func init() {
	rootCmd.AddCommand(migrateCmd)
	migrateCmd.AddCommand(migrateUsersCmd)

	migrateUsersCmd.Flags().StringVar(&migrateProfileTable, "profile-table", "",
		"legacy profile table to merge into each user, joined on user_id")
	migrateUsersCmd.Flags().StringVar(&migrateEventsChannel, "events-channel", "user-migration",
		"channel per-row outcome events are published to")
}
