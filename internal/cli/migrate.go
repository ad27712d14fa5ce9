package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Bidon15/university-deployer/internal/config"
	"github.com/Bidon15/university-deployer/internal/deployer"
	"github.com/Bidon15/university-deployer/internal/metrics"
	"github.com/Bidon15/university-deployer/internal/migration"
	"github.com/Bidon15/university-deployer/internal/repository"
)

func (a *app) migrateCommand() *cobra.Command {
	var (
		from, to int
		dryRun   bool
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run the deployment migrations",
		Long: `Run the numbered deployment steps in order:

  2  ClassroomFactory
  3  StudentFactory
  4  StudentApplicationFactory
  5  University

Each deployed address is written to the contract's artifact so later
steps, and later runs, can resolve it. Limit the run with --from/--to.

Examples:
  # Deploy only University against previously deployed factories
  university-deployer migrate --network ropsten --from 5

  # Encode everything and print predicted addresses, send nothing
  university-deployer migrate --network ropsten --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runMigrate(cmd.Context(), from, to, dryRun)
		},
	}

	cmd.Flags().IntVar(&from, "from", 0, "first migration number to run")
	cmd.Flags().IntVar(&to, "to", 0, "last migration number to run")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "encode and predict addresses without sending transactions")
	return cmd
}

func (a *app) runMigrate(ctx context.Context, from, to int, dryRun bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if a.cfg.RPC.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.RPC.Timeout)
		defer cancel()
	}

	network, err := a.cfg.SelectedNetwork()
	if err != nil {
		return err
	}
	logger := a.logger.With(slog.String("network", network.Name))

	registry, err := loadRegistry(a.cfg.Artifacts, logger)
	if err != nil {
		return err
	}

	signer, err := newSigner(a.cfg.Signer, network.ChainID)
	if err != nil {
		return err
	}

	client, err := a.clients.Dial(ctx, a.cfg.RPC.URL)
	if err != nil {
		return err
	}
	defer client.Close()

	d, err := a.newDeployer(ctx, client, signer, network, dryRun, logger)
	if err != nil {
		return err
	}

	repo, closeRepo, err := a.repos(ctx, a.cfg.Database, logger)
	if err != nil {
		return err
	}
	defer closeRepo()

	run := &repository.Run{
		RunID:   repository.NewRunID(),
		Network: network.Name,
		ChainID: network.ChainID,
		DryRun:  dryRun,
	}
	if err := repo.CreateRun(ctx, run); err != nil {
		return err
	}
	logger = logger.With(slog.String("run_id", run.RunID))

	collector := metrics.NewCollector()
	runner, err := migration.NewRunner(migration.Default(), migration.RunnerConfig{
		Save:      a.cfg.Artifacts.Save,
		Recorders: []migration.Recorder{repository.NewStepRecorder(repo, run.ID), collector},
		Logger:    logger,
	})
	if err != nil {
		return err
	}

	env := &migration.Env{
		Network:  network,
		Registry: registry,
		Deployer: d,
		Logger:   logger,
	}
	steps, runErr := runner.Run(ctx, env, from, to)

	for _, step := range steps {
		if step.Succeeded() {
			collector.SetLastStep(network.Name, step.Number)
		}
	}
	a.finishRun(repo, run, dryRun, runErr, logger)
	if err := collector.Push(context.Background(), a.cfg.Metrics.PushgatewayURL, a.cfg.Metrics.Job, network.Name); err != nil {
		logger.Warn("failed to push metrics", slog.String("error", err.Error()))
	}

	a.printSteps(steps)
	return runErr
}

func (a *app) newDeployer(
	ctx context.Context,
	client deployer.Client,
	signer deployer.TransactionSigner,
	network config.Network,
	dryRun bool,
	logger *slog.Logger,
) (deployer.Deployer, error) {
	if !dryRun {
		return deployer.NewEthDeployer(ctx, client, signer, network.ChainID, gasOptions(a.cfg.Gas), logger)
	}

	nonce, err := client.PendingNonceAt(ctx, signer.Address())
	if err != nil {
		logger.Warn("could not fetch nonce, predicting addresses from nonce 0",
			slog.String("error", err.Error()),
		)
		nonce = 0
	}
	return deployer.NewDryRunDeployer(signer.Address(), nonce, logger), nil
}

func (a *app) finishRun(repo repository.Repository, run *repository.Run, dryRun bool, runErr error, logger *slog.Logger) {
	status := repository.StatusCompleted
	if dryRun {
		status = repository.StatusSimulated
	}
	var errMsg *string
	if runErr != nil {
		status = repository.StatusFailed
		msg := runErr.Error()
		errMsg = &msg
	}

	// The run context may already be canceled; the audit record still
	// needs to land.
	if err := repo.FinishRun(context.Background(), run.ID, status, errMsg); err != nil {
		logger.Warn("failed to record run result", slog.String("error", err.Error()))
	}
}

func (a *app) printSteps(steps []migration.Step) {
	if len(steps) == 0 {
		fmt.Fprintln(a.stdout, "No migrations run.")
		return
	}

	w := a.newTable()
	fmt.Fprintln(w, "STEP\tCONTRACT\tADDRESS\tTX\tSTATUS")
	for _, step := range steps {
		addr, tx, status := "-", "-", "deployed"
		if res := step.Result; res != nil {
			addr = res.Address.Hex()
			if res.DryRun {
				status = "dry-run"
			} else {
				tx = res.TxHash.Hex()
			}
		}
		if step.Err != nil {
			status = "failed"
		}
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", step.Number, step.Contract, addr, tx, status)
	}
	w.Flush()
}
