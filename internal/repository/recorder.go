package repository

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/Bidon15/university-deployer/internal/migration"
)

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

// NewRunID generates the ULID that identifies a run in logs.
func NewRunID() string {
	entropyLock.Lock()
	defer entropyLock.Unlock()

	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// StepRecorder writes migration steps of one run to a Repository.
type StepRecorder struct {
	repo  Repository
	runID uuid.UUID
}

// NewStepRecorder records steps under runID.
func NewStepRecorder(repo Repository, runID uuid.UUID) *StepRecorder {
	return &StepRecorder{repo: repo, runID: runID}
}

// RecordStep implements migration.Recorder.
func (r *StepRecorder) RecordStep(ctx context.Context, step migration.Step) error {
	return r.repo.RecordContract(ctx, ContractFromStep(r.runID, step))
}

// ContractFromStep converts a finished step into a Contract record.
func ContractFromStep(runID uuid.UUID, step migration.Step) *Contract {
	c := &Contract{
		RunID:      runID,
		Step:       step.Number,
		Name:       step.Contract,
		Status:     StatusCompleted,
		DurationMS: step.Duration.Milliseconds(),
	}

	if res := step.Result; res != nil {
		addr := res.Address.Hex()
		c.Address = &addr
		if res.DryRun {
			c.Status = StatusSimulated
		} else {
			txHash := res.TxHash.Hex()
			block := int64(res.BlockNumber)
			gas := int64(res.GasUsed)
			c.TxHash = &txHash
			c.BlockNumber = &block
			c.GasUsed = &gas
		}
	}

	if step.Err != nil {
		msg := step.Err.Error()
		c.Status = StatusFailed
		c.ErrorMessage = &msg
	}
	return c
}

var _ migration.Recorder = (*StepRecorder)(nil)
