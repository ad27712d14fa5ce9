package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// CreateRun inserts a new run record.
func (r *PostgresRepository) CreateRun(ctx context.Context, run *Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.Status == "" {
		run.Status = StatusRunning
	}

	query := `
		INSERT INTO migration_runs (id, run_id, network, chain_id, dry_run, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING started_at`

	err := r.pool.QueryRow(ctx, query,
		run.ID, run.RunID, run.Network, run.ChainID, run.DryRun, run.Status,
	).Scan(&run.StartedAt)
	if err != nil {
		return fmt.Errorf("CreateRun: %w", err)
	}
	return nil
}

// GetRun retrieves a run by its UUID.
func (r *PostgresRepository) GetRun(ctx context.Context, id uuid.UUID) (*Run, error) {
	query := `
		SELECT id, run_id, network, chain_id, dry_run, status, error_message, started_at, finished_at
		FROM migration_runs
		WHERE id = $1`

	var run Run
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&run.ID, &run.RunID, &run.Network, &run.ChainID, &run.DryRun,
		&run.Status, &run.ErrorMessage, &run.StartedAt, &run.FinishedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("GetRun: %w", err)
	}
	return &run, nil
}

// FinishRun sets the final status of a run.
func (r *PostgresRepository) FinishRun(ctx context.Context, id uuid.UUID, status Status, errMsg *string) error {
	query := `
		UPDATE migration_runs
		SET status = $2, error_message = $3, finished_at = NOW()
		WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, id, status, errMsg)
	if err != nil {
		return fmt.Errorf("FinishRun: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListRuns returns the most recent runs first.
func (r *PostgresRepository) ListRuns(ctx context.Context, limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	query := `
		SELECT id, run_id, network, chain_id, dry_run, status, error_message, started_at, finished_at
		FROM migration_runs
		ORDER BY started_at DESC
		LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("ListRuns: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(
			&run.ID, &run.RunID, &run.Network, &run.ChainID, &run.DryRun,
			&run.Status, &run.ErrorMessage, &run.StartedAt, &run.FinishedAt,
		); err != nil {
			return nil, fmt.Errorf("ListRuns scan: %w", err)
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

// RecordContract inserts one contract deployment of a run.
func (r *PostgresRepository) RecordContract(ctx context.Context, c *Contract) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}

	query := `
		INSERT INTO migration_contracts
			(id, run_id, step, name, address, tx_hash, block_number, gas_used, status, error_message, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at`

	err := r.pool.QueryRow(ctx, query,
		c.ID, c.RunID, c.Step, c.Name, c.Address, c.TxHash, c.BlockNumber,
		c.GasUsed, c.Status, c.ErrorMessage, c.DurationMS,
	).Scan(&c.CreatedAt)
	if err != nil {
		return fmt.Errorf("RecordContract: %w", err)
	}
	return nil
}

// ListContracts returns the contracts of a run in step order.
func (r *PostgresRepository) ListContracts(ctx context.Context, runID uuid.UUID) ([]Contract, error) {
	query := `
		SELECT id, run_id, step, name, address, tx_hash, block_number, gas_used,
		       status, error_message, duration_ms, created_at
		FROM migration_contracts
		WHERE run_id = $1
		ORDER BY step ASC`

	rows, err := r.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("ListContracts: %w", err)
	}
	defer rows.Close()

	var contracts []Contract
	for rows.Next() {
		var c Contract
		if err := rows.Scan(
			&c.ID, &c.RunID, &c.Step, &c.Name, &c.Address, &c.TxHash, &c.BlockNumber,
			&c.GasUsed, &c.Status, &c.ErrorMessage, &c.DurationMS, &c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("ListContracts scan: %w", err)
		}
		contracts = append(contracts, c)
	}
	return contracts, rows.Err()
}
