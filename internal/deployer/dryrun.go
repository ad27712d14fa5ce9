package deployer

import (
	"context"
	"log/slog"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/Bidon15/university-deployer/internal/artifacts"
)

// Call is one recorded Deploy invocation.
type Call struct {
	Contract string
	Args     []interface{}
	Data     []byte
}

// DryRunDeployer encodes deployments without sending them. Addresses are
// the ones a real deployment from sender would get starting at nonce.
type DryRunDeployer struct {
	mu     sync.Mutex
	sender common.Address
	nonce  uint64
	calls  []Call
	logger *slog.Logger
}

// NewDryRunDeployer creates a dry-run deployer for sender.
func NewDryRunDeployer(sender common.Address, nonce uint64, logger *slog.Logger) *DryRunDeployer {
	if logger == nil {
		logger = slog.Default()
	}
	return &DryRunDeployer{sender: sender, nonce: nonce, logger: logger}
}

// Deploy packs the creation data to catch arity and type errors, then
// records the call.
func (d *DryRunDeployer) Deploy(ctx context.Context, artifact *artifacts.ContractArtifact, args ...interface{}) (*Result, error) {
	data, err := CreationData(artifact, args...)
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	addr := crypto.CreateAddress(d.sender, d.nonce)
	d.nonce++
	d.calls = append(d.calls, Call{
		Contract: artifact.ContractName,
		Args:     append([]interface{}(nil), args...),
		Data:     data,
	})

	d.logger.Info("dry run: contract not sent",
		slog.String("contract", artifact.ContractName),
		slog.String("predicted_address", addr.Hex()),
		slog.Int("data_len", len(data)),
	)

	return &Result{
		Contract: artifact.ContractName,
		Address:  addr,
		DryRun:   true,
	}, nil
}

// Calls returns the recorded calls in order.
func (d *DryRunDeployer) Calls() []Call {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Call(nil), d.calls...)
}

var _ Deployer = (*DryRunDeployer)(nil)
