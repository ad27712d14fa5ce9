package deployer

import (
	"context"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDevSigner(t *testing.T) {
	tests := []struct {
		index   int
		address string
	}{
		{0, "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"},
		{1, "0x70997970C51812dc3A010C7d01b50e0d17dc79C8"},
		{4, "0x15d34AAf54267DB7D7c367839AAf71A00a2C6A65"},
	}
	for _, tt := range tests {
		signer, err := NewDevSigner(tt.index, 31337)
		require.NoError(t, err)
		assert.Equal(t, common.HexToAddress(tt.address), signer.Address())
		assert.Equal(t, big.NewInt(31337), signer.ChainID())
	}
}

func TestNewDevSignerRefusesProductionChains(t *testing.T) {
	for _, chainID := range []int64{1, 10, 137, 8453, 42161} {
		_, err := NewDevSigner(0, chainID)
		assert.Error(t, err, "chain %d", chainID)
	}

	_, err := NewDevSigner(len(DevPrivateKeys), 31337)
	assert.Error(t, err)
	_, err = NewDevSigner(-1, 31337)
	assert.Error(t, err)
}

func TestNewLocalSigner(t *testing.T) {
	withPrefix, err := NewLocalSigner("0x"+DevPrivateKeys[0], 3)
	require.NoError(t, err)
	without, err := NewLocalSigner(DevPrivateKeys[0], 3)
	require.NoError(t, err)
	assert.Equal(t, withPrefix.Address(), without.Address())

	_, err = NewLocalSigner("not-a-key", 3)
	assert.Error(t, err)
}

func TestLocalSignerSignTransaction(t *testing.T) {
	signer, err := NewDevSigner(2, 3)
	require.NoError(t, err)

	tx := types.NewContractCreation(0, big.NewInt(0), 21000, big.NewInt(1), []byte{0x60})
	signed, err := signer.SignTransaction(context.Background(), tx)
	require.NoError(t, err)

	from, err := types.Sender(types.LatestSignerForChainID(big.NewInt(3)), signed)
	require.NoError(t, err)
	assert.Equal(t, signer.Address(), from)
	assert.Equal(t, big.NewInt(3), signed.ChainId())
}

func TestNewKeystoreSigner(t *testing.T) {
	privateKey, err := crypto.HexToECDSA(DevPrivateKeys[3])
	require.NoError(t, err)
	key := &keystore.Key{
		Id:         uuid.New(),
		Address:    crypto.PubkeyToAddress(privateKey.PublicKey),
		PrivateKey: privateKey,
	}
	data, err := keystore.EncryptKey(key, "hunter2", keystore.LightScryptN, keystore.LightScryptP)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "deployer.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))

	signer, err := NewKeystoreSigner(path, "hunter2", 3)
	require.NoError(t, err)
	assert.Equal(t, key.Address, signer.Address())

	_, err = NewKeystoreSigner(path, "wrong", 3)
	assert.Error(t, err)

	_, err = NewKeystoreSigner(filepath.Join(t.TempDir(), "missing.json"), "hunter2", 3)
	assert.Error(t, err)
}
