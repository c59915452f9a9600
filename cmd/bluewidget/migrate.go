package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bluewidget/bluewidget/internal/infrastructure/database"
	"github.com/bluewidget/bluewidget/migrations"
)

func newMigrateCmd(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the audit database schema",
	}

	// withDB opens database.path for the duration of fn.
	withDB := func(fn func(*database.DB) error) error {
		cfg, log, err := opts.loadConfig(false)
		if err != nil {
			return err
		}
		db, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer func() {
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		return fn(db)
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDB(func(db *database.DB) error {
					if err := db.Migrate(cmd.Context(), migrations.FS); err != nil {
						return fmt.Errorf("running migrations: %w", err)
					}
					_, err := fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
					return err
				})
			},
		},
		&cobra.Command{
			Use:   "status",
			Short: "List migrations that have not been applied",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDB(func(db *database.DB) error {
					pending, err := db.Pending(cmd.Context(), migrations.FS)
					if err != nil {
						return fmt.Errorf("listing migrations: %w", err)
					}
					out := cmd.OutOrStdout()
					if len(pending) == 0 {
						_, err = fmt.Fprintln(out, "up to date")
						return err
					}
					for _, m := range pending {
						if _, err := fmt.Fprintf(out, "pending %s %s\n", m.Version, m.Name); err != nil {
							return err
						}
					}
					return nil
				})
			},
		},
		&cobra.Command{
			Use:   "down",
			Short: "Roll back the most recent migration",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDB(func(db *database.DB) error {
					if err := db.MigrateDown(cmd.Context(), migrations.FS); err != nil {
						return fmt.Errorf("rolling back: %w", err)
					}
					_, err := fmt.Fprintln(cmd.OutOrStdout(), "rolled back latest migration")
					return err
				})
			},
		},
	)
	return cmd
}
