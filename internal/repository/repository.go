package repository

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the interface for run audit operations.
type Repository interface {
	CreateRun(ctx context.Context, run *Run) error
	GetRun(ctx context.Context, id uuid.UUID) (*Run, error)
	FinishRun(ctx context.Context, id uuid.UUID, status Status, errMsg *string) error
	ListRuns(ctx context.Context, limit int) ([]*Run, error)

	RecordContract(ctx context.Context, c *Contract) error
	ListContracts(ctx context.Context, runID uuid.UUID) ([]Contract, error)
}

// NopRepository discards everything. It is used when no database is
// configured.
type NopRepository struct{}

func (NopRepository) CreateRun(_ context.Context, run *Run) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	return nil
}

func (NopRepository) GetRun(context.Context, uuid.UUID) (*Run, error) { return nil, ErrNotFound }

func (NopRepository) FinishRun(context.Context, uuid.UUID, Status, *string) error { return nil }

func (NopRepository) ListRuns(context.Context, int) ([]*Run, error) { return nil, nil }

func (NopRepository) RecordContract(_ context.Context, c *Contract) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (NopRepository) ListContracts(context.Context, uuid.UUID) ([]Contract, error) { return nil, nil }

var (
	_ Repository = NopRepository{}
	_ Repository = (*PostgresRepository)(nil)
)
