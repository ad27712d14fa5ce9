package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/Bidon15/university-deployer/internal/repository"
)

func (a *app) runsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect recorded migration runs",
		Long: `Read the run records written by migrate when database.enabled is set.

Examples:
  university-deployer runs list --limit 5
  university-deployer runs get 1b4e28ba-2fa1-11d2-883f-0016d3cca427`,
	}
	cmd.AddCommand(a.runsListCommand(), a.runsGetCommand())
	return cmd
}

func (a *app) runsListCommand() *cobra.Command {
	var (
		limit   int
		jsonOut bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 1 {
				return fmt.Errorf("--limit must be positive, got %d", limit)
			}
			repo, closeRepo, err := a.requireRepository(cmd.Context())
			if err != nil {
				return err
			}
			defer closeRepo()

			runs, err := repo.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}

			if jsonOut {
				return a.printJSON(map[string]interface{}{
					"runs":  runs,
					"count": len(runs),
				})
			}

			if len(runs) == 0 {
				fmt.Fprintln(a.stdout, "No runs recorded.")
				return nil
			}

			w := a.newTable()
			fmt.Fprintln(w, "ID\tRUN\tNETWORK\tCHAIN ID\tDRY RUN\tSTATUS\tSTARTED")
			for _, run := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%t\t%s\t%s\n",
					run.ID, run.RunID, run.Network, run.ChainID, run.DryRun, run.Status,
					run.StartedAt.UTC().Format(time.RFC3339),
				)
			}
			return w.Flush()
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "maximum number of runs to show")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "output in JSON format")
	return cmd
}

func (a *app) runsGetCommand() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show a run and the contracts it deployed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid run id %q: %w", args[0], err)
			}

			repo, closeRepo, err := a.requireRepository(cmd.Context())
			if err != nil {
				return err
			}
			defer closeRepo()

			run, err := repo.GetRun(cmd.Context(), id)
			if errors.Is(err, repository.ErrNotFound) {
				return fmt.Errorf("run %s: %w", id, err)
			}
			if err != nil {
				return err
			}
			contracts, err := repo.ListContracts(cmd.Context(), id)
			if err != nil {
				return err
			}

			if jsonOut {
				return a.printJSON(map[string]interface{}{
					"run":       run,
					"contracts": contracts,
				})
			}

			a.printRun(run, contracts)
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "output in JSON format")
	return cmd
}

func (a *app) printRun(run *repository.Run, contracts []repository.Contract) {
	fmt.Fprintf(a.stdout, "Run:      %s (%s)\n", run.ID, run.RunID)
	fmt.Fprintf(a.stdout, "Network:  %s (chain %d)\n", run.Network, run.ChainID)
	fmt.Fprintf(a.stdout, "Status:   %s\n", run.Status)
	fmt.Fprintf(a.stdout, "Started:  %s\n", run.StartedAt.UTC().Format(time.RFC3339))
	if run.FinishedAt != nil {
		fmt.Fprintf(a.stdout, "Finished: %s\n", run.FinishedAt.UTC().Format(time.RFC3339))
	}
	if run.ErrorMessage != nil {
		fmt.Fprintf(a.stdout, "Error:    %s\n", *run.ErrorMessage)
	}
	fmt.Fprintln(a.stdout)

	if len(contracts) == 0 {
		fmt.Fprintln(a.stdout, "No contracts recorded.")
		return
	}

	w := a.newTable()
	fmt.Fprintln(w, "STEP\tCONTRACT\tADDRESS\tTX\tGAS\tSTATUS")
	for _, c := range contracts {
		gas := "-"
		if c.GasUsed != nil {
			gas = fmt.Sprintf("%d", *c.GasUsed)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
			c.Step, c.Name, orDash(c.Address), orDash(c.TxHash), gas, c.Status)
	}
	_ = w.Flush()
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}
