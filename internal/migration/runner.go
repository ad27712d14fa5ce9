package migration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/Bidon15/university-deployer/internal/deployer"
)

var (
	// ErrInvalidRange is returned when from is after to.
	ErrInvalidRange = errors.New("invalid migration range")
	// ErrDuplicateStep is returned when two migrations share a number.
	ErrDuplicateStep = errors.New("duplicate migration number")
)

// Step is the outcome of one migration.
type Step struct {
	Number   int
	Contract string
	Result   *deployer.Result
	Duration time.Duration
	Err      error
}

// Succeeded reports whether the step deployed its contract.
func (s Step) Succeeded() bool {
	return s.Err == nil && s.Result != nil
}

// Recorder receives every finished step, failed ones included.
type Recorder interface {
	RecordStep(ctx context.Context, step Step) error
}

// Runner executes migrations in ascending order.
type Runner struct {
	migrations []Migration
	recorders  []Recorder
	save       bool
	logger     *slog.Logger
}

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	// Save writes each deployed artifact back to the registry directory.
	// Dry-run results are never saved.
	Save      bool
	Recorders []Recorder
	Logger    *slog.Logger
}

// NewRunner sorts migrations by number and rejects duplicates.
func NewRunner(migrations []Migration, cfg RunnerConfig) (*Runner, error) {
	sorted := append([]Migration(nil), migrations...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Number() < sorted[j].Number() })
	for i := 1; i < len(sorted); i++ {
		if sorted[i].Number() == sorted[i-1].Number() {
			return nil, fmt.Errorf("%w: %d", ErrDuplicateStep, sorted[i].Number())
		}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		migrations: sorted,
		recorders:  cfg.Recorders,
		save:       cfg.Save,
		logger:     logger,
	}, nil
}

// Select returns the migrations numbered within [from, to]. Zero leaves a
// bound open.
func (r *Runner) Select(from, to int) ([]Migration, error) {
	if from > 0 && to > 0 && from > to {
		return nil, fmt.Errorf("%w: from %d is after to %d", ErrInvalidRange, from, to)
	}
	var selected []Migration
	for _, m := range r.migrations {
		if from > 0 && m.Number() < from {
			continue
		}
		if to > 0 && m.Number() > to {
			continue
		}
		selected = append(selected, m)
	}
	return selected, nil
}

// Run executes the selected migrations against env. Each deployed address
// is recorded in env.Registry before the next step starts, so later steps
// resolve earlier ones. Run stops at the first failure and returns the
// steps executed so far.
func (r *Runner) Run(ctx context.Context, env *Env, from, to int) ([]Step, error) {
	selected, err := r.Select(from, to)
	if err != nil {
		return nil, err
	}

	steps := make([]Step, 0, len(selected))
	for _, m := range selected {
		if err := ctx.Err(); err != nil {
			return steps, err
		}

		r.logger.Info("running migration",
			slog.Int("step", m.Number()),
			slog.String("contract", m.Contract()),
		)

		start := time.Now()
		result, runErr := m.Run(ctx, env)
		step := Step{
			Number:   m.Number(),
			Contract: m.Contract(),
			Result:   result,
			Duration: time.Since(start),
			Err:      runErr,
		}
		if runErr == nil {
			step.Err = r.store(env, result)
		}
		steps = append(steps, step)
		r.record(ctx, step)

		if step.Err != nil {
			r.logger.Error("migration failed",
				slog.Int("step", step.Number),
				slog.String("contract", step.Contract),
				slog.String("error", step.Err.Error()),
			)
			return steps, fmt.Errorf("migration %d (%s): %w", step.Number, step.Contract, step.Err)
		}

		r.logger.Info("migration complete",
			slog.Int("step", step.Number),
			slog.String("contract", step.Contract),
			slog.String("address", result.Address.Hex()),
			slog.Duration("duration", step.Duration),
		)
	}
	return steps, nil
}

func (r *Runner) store(env *Env, result *deployer.Result) error {
	if err := env.Registry.Record(result.Contract, env.Network.ChainID, result.Address, result.TxHash); err != nil {
		return err
	}
	if !r.save || result.DryRun {
		return nil
	}
	return env.Registry.Save(result.Contract)
}

// record forwards step to every recorder. Recorder failures are logged and
// do not abort the run.
func (r *Runner) record(ctx context.Context, step Step) {
	for _, rec := range r.recorders {
		if err := rec.RecordStep(ctx, step); err != nil {
			r.logger.Warn("failed to record migration step",
				slog.Int("step", step.Number),
				slog.String("error", err.Error()),
			)
		}
	}
}
