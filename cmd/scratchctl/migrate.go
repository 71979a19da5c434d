package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"scratch2x/internal/config"
	"scratch2x/internal/database"
)

func newMigrateCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage database migrations",
	}
	cmd.PersistentFlags().StringVar(&path, "path", "", "migrations source (default: MIGRATIONS_PATH, empty uses the embedded set)")

	withDB := func(fn func(cmd *cobra.Command, db database.Service, source string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			cfg := config.Load()
			source := cfg.MigrationsPath
			if cmd.Flags().Changed("path") {
				source = path
			}
			db, err := database.New(context.Background(), database.Options{
				Host:     cfg.DBHost,
				Port:     cfg.DBPort,
				Database: cfg.DBDatabase,
				Username: cfg.DBUsername,
				Password: cfg.DBPassword,
				Schema:   cfg.DBSchema,
			})
			if err != nil {
				return err
			}
			defer db.Close()
			return fn(cmd, db, source)
		}
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Run all pending migrations",
			Args:  cobra.NoArgs,
			RunE: withDB(func(cmd *cobra.Command, db database.Service, source string) error {
				if err := database.RunMigrations(db.DB(), source); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Migrations completed successfully")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "down",
			Short: "Rollback the last migration",
			Args:  cobra.NoArgs,
			RunE: withDB(func(cmd *cobra.Command, db database.Service, source string) error {
				if err := database.RollbackMigration(db.DB(), source); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Rollback completed successfully")
				return nil
			}),
		},
		&cobra.Command{
			Use:   "version",
			Short: "Show current migration version",
			Args:  cobra.NoArgs,
			RunE: withDB(func(cmd *cobra.Command, db database.Service, source string) error {
				version, dirty, err := database.GetMigrationVersion(db.DB(), source)
				if err != nil {
					return err
				}
				if dirty {
					fmt.Fprintf(cmd.OutOrStdout(), "Current version: %d (DIRTY - needs manual intervention)\n", version)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "Current version: %d\n", version)
				}
				return nil
			}),
		},
		newCreateMigrationCmd(),
	)
	return cmd
}

func newCreateMigrationCmd() *cobra.Command {
	var dir string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a new migration file pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			up, down, err := database.CreateMigration(dir, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Created migration files:")
			fmt.Fprintf(cmd.OutOrStdout(), "   - %s\n   - %s\n", up, down)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "internal/database/migrations", "directory to write the files into")
	return cmd
}
