package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
)

func (a *app) dbCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the run record schema",
		Long: `Apply or roll back the PostgreSQL schema that stores migration runs.
migrate applies pending schema changes on its own when database.enabled
is set; these commands are for operators.

Examples:
  university-deployer db up
  university-deployer db down --steps 1`,
	}
	cmd.AddCommand(a.dbUpCommand(), a.dbDownCommand())
	return cmd
}

func (a *app) dbUpCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply all pending schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			schema, err := a.requireSchema(cmd)
			if err != nil {
				return err
			}
			defer schema.Close()

			if err := schema.RunMigrations(a.cfg.Database); err != nil {
				return err
			}
			fmt.Fprintln(a.stdout, "Schema is up to date.")
			return nil
		},
	}
}

func (a *app) dbDownCommand() *cobra.Command {
	var steps int

	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back schema migrations",
		Long: `Roll back the last --steps schema migrations. Rolling back the first
migration drops the run records.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if steps < 1 {
				return fmt.Errorf("--steps must be positive, got %d", steps)
			}
			schema, err := a.requireSchema(cmd)
			if err != nil {
				return err
			}
			defer schema.Close()

			if err := schema.MigrateDown(a.cfg.Database, steps); err != nil {
				return err
			}
			a.logger.Info("rolled back schema migrations", slog.Int("steps", steps))
			fmt.Fprintf(a.stdout, "Rolled back %d migration(s).\n", steps)
			return nil
		},
	}

	cmd.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")
	return cmd
}

func (a *app) requireSchema(cmd *cobra.Command) (schemaMigrator, error) {
	if !a.cfg.Database.Enabled {
		return nil, errDatabaseDisabled
	}
	return a.schemas(cmd.Context(), a.cfg.Database)
}
