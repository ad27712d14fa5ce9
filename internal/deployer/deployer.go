// Package deployer publishes compiled contracts with ordered constructor
// arguments.
package deployer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/Bidon15/university-deployer/internal/artifacts"
)

var (
	// ErrChainMismatch is returned when the RPC endpoint serves a different chain.
	ErrChainMismatch = errors.New("chain ID mismatch")
	// ErrNoBalance is returned when the deployer account holds no ETH.
	ErrNoBalance = errors.New("deployer address has no ETH balance")
	// ErrReverted is returned when the creation transaction reverted.
	ErrReverted = errors.New("deployment transaction reverted")
	// ErrNoCode is returned when no code exists at the created address.
	ErrNoCode = errors.New("no contract code after deployment")
)

// Deployer publishes one contract per call.
type Deployer interface {
	Deploy(ctx context.Context, artifact *artifacts.ContractArtifact, args ...interface{}) (*Result, error)
}

// Result describes a deployed contract.
type Result struct {
	Contract    string         `json:"contract"`
	Address     common.Address `json:"address"`
	TxHash      common.Hash    `json:"transactionHash"`
	BlockNumber uint64         `json:"blockNumber"`
	GasUsed     uint64         `json:"gasUsed"`
	DryRun      bool           `json:"dryRun,omitempty"`
}

// Options tunes gas pricing and limits.
type Options struct {
	// PriceBoostPercent scales the suggested gas price (150 = 1.5x).
	PriceBoostPercent uint64
	// MinGasPrice is the floor for the boosted gas price, in wei.
	MinGasPrice *big.Int
	// LimitBufferPercent scales the estimated gas limit (120 = +20%).
	LimitBufferPercent uint64
	// FallbackGasLimit is used when estimation fails.
	FallbackGasLimit uint64
	// MaxGasLimit caps the buffered limit. Zero means no cap.
	MaxGasLimit uint64
}

// DefaultOptions returns the default gas settings.
func DefaultOptions() Options {
	return Options{
		PriceBoostPercent:  150,
		MinGasPrice:        big.NewInt(2_000_000_000),
		LimitBufferPercent: 120,
		FallbackGasLimit:   6_000_000,
		MaxGasLimit:        15_000_000,
	}
}

// EthDeployer deploys contracts through an Ethereum JSON-RPC client.
type EthDeployer struct {
	client Client
	signer TransactionSigner
	opts   Options
	logger *slog.Logger
}

// NewEthDeployer verifies that client serves expectedChainID and that the
// signer signs for the same chain.
func NewEthDeployer(
	ctx context.Context,
	client Client,
	signer TransactionSigner,
	expectedChainID int64,
	opts Options,
	logger *slog.Logger,
) (*EthDeployer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("get chain ID: %w", err)
	}
	if chainID.Int64() != expectedChainID {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrChainMismatch, expectedChainID, chainID.Int64())
	}
	if signer.ChainID().Cmp(chainID) != 0 {
		return nil, fmt.Errorf("%w: signer uses %s, node serves %s", ErrChainMismatch, signer.ChainID(), chainID)
	}

	return &EthDeployer{
		client: client,
		signer: signer,
		opts:   opts,
		logger: logger,
	}, nil
}

// Address returns the deploying account.
func (d *EthDeployer) Address() common.Address {
	return d.signer.Address()
}

// Deploy sends a contract creation transaction for artifact with args as
// constructor arguments, in order, and waits for it to be mined. There are
// no retries; any failure is returned to the caller.
func (d *EthDeployer) Deploy(ctx context.Context, artifact *artifacts.ContractArtifact, args ...interface{}) (*Result, error) {
	data, err := CreationData(artifact, args...)
	if err != nil {
		return nil, err
	}

	from := d.signer.Address()
	d.logger.Info("deploying contract",
		slog.String("contract", artifact.ContractName),
		slog.String("from", from.Hex()),
		slog.Int("args", len(args)),
	)

	balance, err := d.client.BalanceAt(ctx, from, nil)
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}
	if balance.Sign() == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoBalance, from.Hex())
	}

	nonce, err := d.client.PendingNonceAt(ctx, from)
	if err != nil {
		return nil, fmt.Errorf("get nonce: %w", err)
	}

	gasPrice, err := d.gasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("get gas price: %w", err)
	}

	gasLimit := d.gasLimit(ctx, ethereum.CallMsg{
		From:     from,
		GasPrice: gasPrice,
		Value:    big.NewInt(0),
		Data:     data,
	}, artifact.ContractName)

	tx := types.NewContractCreation(nonce, big.NewInt(0), gasLimit, gasPrice, data)

	signedTx, err := d.signer.SignTransaction(ctx, tx)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}

	if err := d.client.SendTransaction(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("send transaction: %w", err)
	}

	d.logger.Info("transaction submitted, waiting for confirmation",
		slog.String("contract", artifact.ContractName),
		slog.String("tx_hash", signedTx.Hash().Hex()),
		slog.Uint64("nonce", nonce),
		slog.Uint64("gas_limit", gasLimit),
		slog.String("gas_price", gasPrice.String()),
	)

	receipt, err := bind.WaitMined(ctx, d.client, signedTx)
	if err != nil {
		return nil, fmt.Errorf("wait for receipt %s: %w", signedTx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: %s in tx %s", ErrReverted, artifact.ContractName, signedTx.Hash().Hex())
	}

	code, err := d.client.CodeAt(ctx, receipt.ContractAddress, nil)
	if err != nil {
		return nil, fmt.Errorf("get code at %s: %w", receipt.ContractAddress.Hex(), err)
	}
	if len(code) == 0 {
		return nil, fmt.Errorf("%w: %s at %s", ErrNoCode, artifact.ContractName, receipt.ContractAddress.Hex())
	}

	result := &Result{
		Contract:    artifact.ContractName,
		Address:     receipt.ContractAddress,
		TxHash:      signedTx.Hash(),
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
	}

	d.logger.Info("contract deployed",
		slog.String("contract", result.Contract),
		slog.String("address", result.Address.Hex()),
		slog.Uint64("block_number", result.BlockNumber),
		slog.Uint64("gas_used", result.GasUsed),
	)
	return result, nil
}

// CreationData returns the artifact bytecode followed by the packed
// constructor arguments.
func CreationData(artifact *artifacts.ContractArtifact, args ...interface{}) ([]byte, error) {
	parsed, err := artifact.ParsedABI()
	if err != nil {
		return nil, err
	}
	code, err := artifact.Bytecode.Bytes()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", artifact.ContractName, err)
	}
	packed, err := PackConstructor(parsed, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", artifact.ContractName, err)
	}

	data := make([]byte, 0, len(code)+len(packed))
	data = append(data, code...)
	return append(data, packed...), nil
}

// gasPrice returns a boosted gas price for faster inclusion.
func (d *EthDeployer) gasPrice(ctx context.Context) (*big.Int, error) {
	gasPrice, err := d.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, err
	}

	boosted := new(big.Int).Set(gasPrice)
	if d.opts.PriceBoostPercent > 0 {
		boosted.Mul(boosted, new(big.Int).SetUint64(d.opts.PriceBoostPercent))
		boosted.Div(boosted, big.NewInt(100))
	}

	if d.opts.MinGasPrice != nil && boosted.Cmp(d.opts.MinGasPrice) < 0 {
		boosted = new(big.Int).Set(d.opts.MinGasPrice)
	}
	return boosted, nil
}

func (d *EthDeployer) gasLimit(ctx context.Context, call ethereum.CallMsg, contract string) uint64 {
	gasLimit, err := d.client.EstimateGas(ctx, call)
	if err != nil {
		gasLimit = d.opts.FallbackGasLimit
		d.logger.Warn("gas estimation failed, using default",
			slog.String("contract", contract),
			slog.Uint64("gas_limit", gasLimit),
			slog.String("error", err.Error()),
		)
	}
	if d.opts.LimitBufferPercent > 0 {
		gasLimit = gasLimit * d.opts.LimitBufferPercent / 100
	}

	if d.opts.MaxGasLimit > 0 && gasLimit > d.opts.MaxGasLimit {
		d.logger.Warn("gas limit capped to max",
			slog.Uint64("original", gasLimit),
			slog.Uint64("capped", d.opts.MaxGasLimit),
		)
		gasLimit = d.opts.MaxGasLimit
	}
	return gasLimit
}

var _ Deployer = (*EthDeployer)(nil)
