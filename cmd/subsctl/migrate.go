package main

import (
	"errors"
	"fmt"

	"github.com/Dhoini/subscription-commerce/internal/repository/postgres"
	"github.com/spf13/cobra"
)

func migrateCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database schema migrations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigration(cmd, e, func(m migrator) error { return m.up() })
		},
	})

	var (
		steps int
		all   bool
	)
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		Long: `Roll back the last --steps migrations (default 1).
Use --all to roll back the whole schema.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if all {
				steps = 0
			} else if steps <= 0 {
				return errors.New("--steps must be positive, use --all to roll back everything")
			}
			return runMigration(cmd, e, func(m migrator) error { return m.down(steps) })
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	down.Flags().BoolVar(&all, "all", false, "roll back all migrations")
	cmd.AddCommand(down)

	return cmd
}

type migrator struct {
	up   func() error
	down func(steps int) error
}

func runMigration(cmd *cobra.Command, e *env, apply func(migrator) error) error {
	cfg, err := e.cfg()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	db, err := postgres.NewReportingDB(cmd.Context(), cfg.Database.GetDSN(), e.log)
	if err != nil {
		return err
	}
	defer db.Close()

	return apply(migrator{
		up:   func() error { return postgres.MigrateUp(db.DB, e.log) },
		down: func(steps int) error { return postgres.MigrateDown(db.DB, steps, e.log) },
	})
}
