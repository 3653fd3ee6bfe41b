package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"pizzaria-telegram/db"
	"pizzaria-telegram/services"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded schema to the local and (if configured) remote databases",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			printApplied := func(name string) { fmt.Println("Migration", name, "applied.") }

			local, err := db.OpenSQLite(ctx, cfg.DB.SQLitePath)
			if err != nil {
				return fmt.Errorf("sqlite: %w", err)
			}
			defer local.Close()
			if err := local.Migrate(ctx, printApplied); err != nil {
				return fmt.Errorf("sqlite: %w", err)
			}
			if !cfg.RemoteEnabled() {
				fmt.Println("DATABASE_URL not set, remote database skipped.")
				return nil
			}
			if err := db.MigratePostgres(ctx, cfg.DB.RemoteURL, printApplied); err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
			return nil
		},
	}
}

func backupCmd() *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Export all orders and announcements to a JSON file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cfg, log, err := loadConfig()
			if err != nil {
				return err
			}
			gw, err := openGateway(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer gw.Close()

			backup, err := gw.Backup(ctx)
			if err != nil {
				return err
			}
			data, err := services.EncodeBackup(backup)
			if err != nil {
				return err
			}
			path := filepath.Join(outDir, services.BackupFileName(time.Now()))
			if err := os.WriteFile(path, data, 0o600); err != nil {
				return fmt.Errorf("write backup: %w", err)
			}
			fmt.Printf("Backup written to %s (%d orders, %d announcements, primary %s)\n",
				path, backup.Metadata.OrdersCount, backup.Metadata.AnnouncementsCount, backup.Metadata.Primary)
			return nil
		},
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", ".", "Directory for the backup file")
	return cmd
}
