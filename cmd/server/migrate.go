package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/soaringjerry/archetypes/internal/config"
	dbstore "github.com/soaringjerry/archetypes/internal/db"
)

func newMigrateCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending SQLite migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.SQLitePath == "" {
				return errors.New("ARCHETYPES_SQLITE_PATH is required")
			}
			if dir == "" {
				dir = cfg.MigrationsDir
			}
			logger, err := newLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			conn, err := dbstore.Open(cfg.SQLitePath)
			if err != nil {
				return err
			}
			defer conn.Close()
			applied, err := dbstore.RunMigrations(conn, dir, logger)
			if err != nil {
				return fmt.Errorf("run migrations: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s)\n", len(applied))
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "migrations directory (defaults to embedded files)")
	return cmd
}
