// Package repository persists an audit trail of migration runs.
package repository

import (
	"time"

	"github.com/google/uuid"
)

// Status represents the state of a run or of one contract deployment.
type Status string

const (
	// StatusRunning indicates the run is in progress.
	StatusRunning Status = "running"
	// StatusCompleted indicates every selected step deployed on-chain.
	StatusCompleted Status = "completed"
	// StatusSimulated indicates a dry run; nothing was sent.
	StatusSimulated Status = "simulated"
	// StatusFailed indicates a step failed.
	StatusFailed Status = "failed"
)

// Run is one invocation of the migrate command.
type Run struct {
	ID           uuid.UUID  `json:"id"`
	RunID        string     `json:"runId"` // ULID shown in logs
	Network      string     `json:"network"`
	ChainID      int64      `json:"chainId"`
	DryRun       bool       `json:"dryRun"`
	Status       Status     `json:"status"`
	ErrorMessage *string    `json:"error,omitempty"`
	StartedAt    time.Time  `json:"startedAt"`
	FinishedAt   *time.Time `json:"finishedAt,omitempty"`
}

// Contract is one deployed (or attempted) contract within a run.
type Contract struct {
	ID           uuid.UUID `json:"id"`
	RunID        uuid.UUID `json:"runId"`
	Step         int       `json:"step"`
	Name         string    `json:"name"`
	Address      *string   `json:"address,omitempty"`
	TxHash       *string   `json:"txHash,omitempty"`
	BlockNumber  *int64    `json:"blockNumber,omitempty"`
	GasUsed      *int64    `json:"gasUsed,omitempty"`
	Status       Status    `json:"status"`
	ErrorMessage *string   `json:"error,omitempty"`
	DurationMS   int64     `json:"durationMs"`
	CreatedAt    time.Time `json:"createdAt"`
}
