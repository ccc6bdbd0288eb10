// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Packet Project Contributors

package main

import (
	"strconv"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/HugoLopez00/Packet-Project/internal/config"
	"github.com/HugoLopez00/Packet-Project/internal/store"
)

// migrator wraps the methods used from store.Migrator.
type migrator interface {
	Up() error
	Down() error
	Force(version int) error
	Status() (*store.MigrationStatus, error)
	Close() error
}

// newMigrator is replaced in tests.
var newMigrator = func(databaseURL string) (migrator, error) {
	return store.NewMigrator(databaseURL)
}

// NewMigrateCmd creates the migrate command group.
func NewMigrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
		Long: `Apply, roll back, or inspect the users schema. The database URL comes
from --database-url, the config file, or DATABASE_URL.`,
	}
	cmd.PersistentFlags().String("database-url", "", "PostgreSQL URL (default: $"+config.DatabaseURLEnv+")")

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, m migrator, _ []string) error {
			cmd.Println("Running migrations...")
			if err := m.Up(); err != nil {
				return err //nolint:wrapcheck // oops error from store
			}
			cmd.Println("Migrations completed successfully")
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back every migration (drops the users table)",
		Args:  cobra.NoArgs,
		RunE: withMigrator(func(cmd *cobra.Command, m migrator, _ []string) error {
			if err := m.Down(); err != nil {
				return err //nolint:wrapcheck // oops error from store
			}
			cmd.Println("All migrations rolled back")
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE:  withMigrator(printStatus),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "force VERSION",
		Short: "Mark VERSION as applied without running it (clears a dirty state)",
		Args:  cobra.ExactArgs(1),
		RunE: withMigrator(func(cmd *cobra.Command, m migrator, args []string) error {
			version, err := strconv.Atoi(args[0])
			if err != nil {
				return oops.Code("INVALID_VERSION").With("version", args[0]).Wrap(err)
			}
			if err := m.Force(version); err != nil {
				return err //nolint:wrapcheck // oops error from store
			}
			cmd.Printf("Forced version %d\n", version)
			return nil
		}),
	})

	return cmd
}

// withMigrator resolves the database URL and opens a migrator for run.
func withMigrator(run func(cmd *cobra.Command, m migrator, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cfg.Database.URL == "" {
			return oops.Code("CONFIG_INVALID").Errorf("database URL is required (--database-url or %s)", config.DatabaseURLEnv)
		}

		m, err := newMigrator(cfg.Database.URL)
		if err != nil {
			return err //nolint:wrapcheck // oops error from store
		}
		defer func() {
			if closeErr := m.Close(); closeErr != nil && err == nil {
				err = closeErr
			}
		}()
		return run(cmd, m, args)
	}
}

func printStatus(cmd *cobra.Command, m migrator, _ []string) error {
	status, err := m.Status()
	if err != nil {
		return err //nolint:wrapcheck // oops error from store
	}

	cmd.Printf("Current version: %d", status.Current)
	if status.Dirty {
		cmd.Print(" (dirty)")
	}
	cmd.Println()

	for _, v := range status.Applied {
		name, _ := store.MigrationName(v)
		cmd.Printf("  [applied] %s\n", name)
	}
	for _, v := range status.Pending {
		name, _ := store.MigrationName(v)
		cmd.Printf("  [pending] %s\n", name)
	}
	if len(status.Pending) == 0 {
		cmd.Println("Schema is up to date")
	}
	return nil
}
