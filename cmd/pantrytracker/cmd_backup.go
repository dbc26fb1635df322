package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dukerupert/pantrytracker/internal/backup"
	"github.com/dukerupert/pantrytracker/internal/config"
)

func backupConfig(cfg *config.Config) backup.Config {
	b := cfg.Backup
	return backup.Config{
		Endpoint:   b.Endpoint,
		Bucket:     b.Bucket,
		Region:     b.Region,
		AccessKey:  b.AccessKey,
		SecretKey:  b.SecretKey,
		Prefix:     b.Prefix,
		Passphrase: b.Passphrase,
		Keep:       b.Keep,
	}
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Upload a database snapshot to S3 and prune old snapshots",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, db, err := boot()
		if err != nil {
			return err
		}
		defer db.Close()

		mgr, err := backup.NewManager(backupConfig(cfg), db, logger.With("component", "backup"))
		if err != nil {
			return err
		}
		ctx := context.Background()
		key, err := mgr.Run(ctx)
		if err != nil {
			return err
		}
		if _, err := mgr.Prune(ctx); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), key)
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <destination.db>",
	Short: "Download a snapshot to a new database file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := setupLogger(cfg)

		key, _ := cmd.Flags().GetString("key")
		mgr, err := backup.NewManager(backupConfig(cfg), nil, logger.With("component", "backup"))
		if err != nil {
			return err
		}
		restored, err := mgr.Restore(context.Background(), key, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "restored %s to %s\n", restored, args[0])
		return nil
	},
}

func init() {
	restoreCmd.Flags().String("key", "", "object key to restore (default: newest)")
}
