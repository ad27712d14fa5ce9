package migration

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Bidon15/university-deployer/internal/artifacts"
	"github.com/Bidon15/university-deployer/internal/config"
	"github.com/Bidon15/university-deployer/internal/deployer"
	"github.com/Bidon15/university-deployer/internal/encoding"
	"github.com/Bidon15/university-deployer/internal/fixedpoint"
)

const factoryArtifact = `{
  "contractName": %q,
  "abi": [{"inputs": [], "stateMutability": "nonpayable", "type": "constructor"}],
  "bytecode": "0x6080604052348015600f57600080fd5b50603f80601d6000396000f3fe"
}`

const universityArtifact = `{
  "contractName": "University",
  "abi": [{
    "inputs": [
      {"name": "_name", "type": "bytes32"},
      {"name": "_cut", "type": "uint24"},
      {"name": "_daiToken", "type": "address"},
      {"name": "_compoundDai", "type": "address"},
      {"name": "_classroomFactory", "type": "address"},
      {"name": "_studentFactory", "type": "address"},
      {"name": "_studentApplicationFactory", "type": "address"},
      {"name": "_ensContract", "type": "address"},
      {"name": "_ensTestRegistrar", "type": "address"},
      {"name": "_ensPublicResolver", "type": "address"},
      {"name": "_ensReverseResolver", "type": "address"}
    ],
    "stateMutability": "nonpayable",
    "type": "constructor"
  }],
  "bytecode": "0x60806040526000"
}`

var (
	classroomAddr  = common.HexToAddress("0x1111111111111111111111111111111111111111")
	studentAddr    = common.HexToAddress("0x2222222222222222222222222222222222222222")
	applicationAdr = common.HexToAddress("0x3333333333333333333333333333333333333333")
)

func ropsten(t *testing.T) config.Network {
	t.Helper()
	n, ok := config.DefaultNetworks["ropsten"]
	require.True(t, ok)
	return n
}

func newRegistry(t *testing.T, dir string) *artifacts.Registry {
	t.Helper()
	reg := artifacts.NewRegistry(dir, nil)
	for _, name := range []string{ClassroomFactory, StudentFactory, StudentApplicationFactory} {
		a, err := artifacts.ParseArtifact([]byte(fmt.Sprintf(factoryArtifact, name)))
		require.NoError(t, err)
		reg.Add(a)
	}
	u, err := artifacts.ParseArtifact([]byte(universityArtifact))
	require.NoError(t, err)
	reg.Add(u)
	return reg
}

func deployedRegistry(t *testing.T) *artifacts.Registry {
	t.Helper()
	reg := newRegistry(t, "")
	chainID := ropsten(t).ChainID
	require.NoError(t, reg.Record(ClassroomFactory, chainID, classroomAddr, common.Hash{}))
	require.NoError(t, reg.Record(StudentFactory, chainID, studentAddr, common.Hash{}))
	require.NoError(t, reg.Record(StudentApplicationFactory, chainID, applicationAdr, common.Hash{}))
	return reg
}

func TestBuildParametersArgumentOrder(t *testing.T) {
	params, err := BuildParameters(ropsten(t), deployedRegistry(t))
	require.NoError(t, err)

	name, err := encoding.StringToBytes32("University")
	require.NoError(t, err)

	args := params.Args()
	require.Len(t, args, 11)

	assert.Equal(t, name, args[0])
	cut, ok := args[1].(fixedpoint.Cut)
	require.True(t, ok)
	v, ok := cut.Uint64()
	require.True(t, ok)
	assert.Equal(t, uint64(200000), v)

	expected := []common.Address{
		common.HexToAddress("0xf80A32A835F79D7787E8a8ee5721D0fEaFd78108"),
		common.HexToAddress("0x6ce27497a64fffb5517aa4aee908b1e7eb63b9ff"),
		classroomAddr,
		studentAddr,
		applicationAdr,
		common.HexToAddress("0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e"),
		common.HexToAddress("0x09B5bd82f3351A4c8437FC6D7772A9E6cd5D25A1"),
		common.HexToAddress("0x42D63ae25990889E35F215bC95884039Ba354115"),
		common.HexToAddress("0x6F628b68b30Dc3c17f345c9dbBb1E483c2b7aE5c"),
	}
	for i, want := range expected {
		assert.Equal(t, want, args[i+2], "argument %d", i+2)
	}
}

func TestBuildParametersDeterministic(t *testing.T) {
	reg := deployedRegistry(t)
	first, err := BuildParameters(ropsten(t), reg)
	require.NoError(t, err)
	second, err := BuildParameters(ropsten(t), reg)
	require.NoError(t, err)
	assert.Equal(t, first.Named(), second.Named())

	artifact, err := reg.Get(University)
	require.NoError(t, err)
	a, err := deployer.CreationData(artifact, first.Args()...)
	require.NoError(t, err)
	b, err := deployer.CreationData(artifact, second.Args()...)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestUniversityConstructorEncoding(t *testing.T) {
	reg := deployedRegistry(t)
	params, err := BuildParameters(ropsten(t), reg)
	require.NoError(t, err)

	artifact, err := reg.Get(University)
	require.NoError(t, err)
	parsed, err := artifact.ParsedABI()
	require.NoError(t, err)

	packed, err := deployer.PackConstructor(parsed, params.Args()...)
	require.NoError(t, err)
	require.Len(t, packed, 11*32)

	word := func(i int) []byte { return packed[i*32 : (i+1)*32] }
	assert.Equal(t, "0x556e697665727369747900000000000000000000000000000000000000000000", common.BytesToHash(word(0)).Hex())
	assert.Equal(t, big.NewInt(200000), new(big.Int).SetBytes(word(1)))
	assert.Equal(t, classroomAddr, common.BytesToAddress(word(4)))
	assert.Equal(t, applicationAdr, common.BytesToAddress(word(6)))
}

func TestBuildParametersUnresolvedFactory(t *testing.T) {
	reg := newRegistry(t, "")
	chainID := ropsten(t).ChainID
	require.NoError(t, reg.Record(ClassroomFactory, chainID, classroomAddr, common.Hash{}))

	_, err := BuildParameters(ropsten(t), reg)
	assert.ErrorIs(t, err, artifacts.ErrNotDeployed)
	assert.Contains(t, err.Error(), StudentFactory)
}

func TestBuildParametersInvalidInputs(t *testing.T) {
	reg := deployedRegistry(t)

	long := ropsten(t)
	long.UniversityName = "A University Name Longer Than 32 Bytes"
	_, err := BuildParameters(long, reg)
	assert.ErrorIs(t, err, encoding.ErrTooLong)

	precise := ropsten(t)
	precise.UniversityCut = "0.00000001"
	_, err = BuildParameters(precise, reg)
	assert.ErrorIs(t, err, fixedpoint.ErrPrecision)
}

func TestNamedMatchesArgs(t *testing.T) {
	params, err := BuildParameters(ropsten(t), deployedRegistry(t))
	require.NoError(t, err)

	named := params.Named()
	require.Len(t, named, len(params.Args()))
	for i, arg := range named {
		assert.Equal(t, i, arg.Position)
	}
	assert.Equal(t, "200000", named[1].Value)
	assert.Equal(t, classroomAddr.Hex(), named[4].Value)
	assert.Equal(t, "ensReverseResolver", named[10].Name)
}

// MockDeployer implements deployer.Deployer for testing.
type MockDeployer struct {
	mock.Mock
}

func (m *MockDeployer) Deploy(ctx context.Context, artifact *artifacts.ContractArtifact, args ...interface{}) (*deployer.Result, error) {
	ret := m.Called(ctx, artifact.ContractName, args)
	if ret.Get(0) == nil {
		return nil, ret.Error(1)
	}
	return ret.Get(0).(*deployer.Result), ret.Error(1)
}

func TestUniversityMigrationUnresolvedDoesNotDeploy(t *testing.T) {
	d := new(MockDeployer)
	env := &Env{Network: ropsten(t), Registry: newRegistry(t, ""), Deployer: d}

	_, err := NewUniversityMigration(5).Run(context.Background(), env)
	assert.ErrorIs(t, err, artifacts.ErrNotDeployed)
	d.AssertNotCalled(t, "Deploy", mock.Anything, mock.Anything, mock.Anything)
}

func TestUniversityMigrationDeploysOnce(t *testing.T) {
	d := new(MockDeployer)
	env := &Env{Network: ropsten(t), Registry: deployedRegistry(t), Deployer: d}
	want := &deployer.Result{Contract: University, Address: common.HexToAddress("0x4444444444444444444444444444444444444444")}

	d.On("Deploy", mock.Anything, University, mock.MatchedBy(func(args []interface{}) bool {
		return len(args) == 11 && args[4] == classroomAddr
	})).Return(want, nil).Once()

	got, err := NewUniversityMigration(5).Run(context.Background(), env)
	require.NoError(t, err)
	assert.Equal(t, want, got)
	d.AssertNumberOfCalls(t, "Deploy", 1)
}

func TestUniversityMigrationPropagatesDeployError(t *testing.T) {
	d := new(MockDeployer)
	env := &Env{Network: ropsten(t), Registry: deployedRegistry(t), Deployer: d}
	d.On("Deploy", mock.Anything, University, mock.Anything).Return(nil, deployer.ErrReverted)

	_, err := NewUniversityMigration(5).Run(context.Background(), env)
	assert.ErrorIs(t, err, deployer.ErrReverted)
}

type stepRecorder struct {
	steps []Step
	err   error
}

func (r *stepRecorder) RecordStep(_ context.Context, step Step) error {
	r.steps = append(r.steps, step)
	return r.err
}

func TestRunnerDryRunResolvesEarlierSteps(t *testing.T) {
	sender := common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	dry := deployer.NewDryRunDeployer(sender, 0, nil)
	rec := &stepRecorder{err: errors.New("recorder down")}

	runner, err := NewRunner(Default(), RunnerConfig{Save: true, Recorders: []Recorder{rec}})
	require.NoError(t, err)

	env := &Env{Network: ropsten(t), Registry: newRegistry(t, ""), Deployer: dry}
	steps, err := runner.Run(context.Background(), env, 0, 0)
	require.NoError(t, err)
	require.Len(t, steps, 4)
	assert.Len(t, rec.steps, 4)

	calls := dry.Calls()
	require.Len(t, calls, 4)
	assert.Equal(t, []string{ClassroomFactory, StudentFactory, StudentApplicationFactory, University},
		[]string{calls[0].Contract, calls[1].Contract, calls[2].Contract, calls[3].Contract})

	universityArgs := calls[3].Args
	require.Len(t, universityArgs, 11)
	assert.Equal(t, steps[0].Result.Address, universityArgs[4])
	assert.Equal(t, steps[1].Result.Address, universityArgs[5])
	assert.Equal(t, steps[2].Result.Address, universityArgs[6])
}

func TestRunnerStopsAtFirstFailure(t *testing.T) {
	d := new(MockDeployer)
	d.On("Deploy", mock.Anything, ClassroomFactory, mock.Anything).
		Return(&deployer.Result{Contract: ClassroomFactory, Address: classroomAddr}, nil)
	d.On("Deploy", mock.Anything, StudentFactory, mock.Anything).
		Return(nil, deployer.ErrNoBalance)

	rec := &stepRecorder{}
	runner, err := NewRunner(Default(), RunnerConfig{Recorders: []Recorder{rec}})
	require.NoError(t, err)

	env := &Env{Network: ropsten(t), Registry: newRegistry(t, ""), Deployer: d}
	steps, err := runner.Run(context.Background(), env, 0, 0)
	assert.ErrorIs(t, err, deployer.ErrNoBalance)
	require.Len(t, steps, 2)
	assert.True(t, steps[0].Succeeded())
	assert.False(t, steps[1].Succeeded())
	require.Len(t, rec.steps, 2)
	assert.ErrorIs(t, rec.steps[1].Err, deployer.ErrNoBalance)
	d.AssertNotCalled(t, "Deploy", mock.Anything, University, mock.Anything)
}

func TestRunnerRangeAndSave(t *testing.T) {
	dir := t.TempDir()
	reg := newRegistry(t, dir)
	chainID := ropsten(t).ChainID
	require.NoError(t, reg.Record(ClassroomFactory, chainID, classroomAddr, common.Hash{}))
	require.NoError(t, reg.Record(StudentFactory, chainID, studentAddr, common.Hash{}))
	require.NoError(t, reg.Record(StudentApplicationFactory, chainID, applicationAdr, common.Hash{}))

	universityAddr := common.HexToAddress("0x4444444444444444444444444444444444444444")
	d := new(MockDeployer)
	d.On("Deploy", mock.Anything, University, mock.Anything).
		Return(&deployer.Result{Contract: University, Address: universityAddr, TxHash: common.HexToHash("0xbeef")}, nil).Once()

	runner, err := NewRunner(Default(), RunnerConfig{Save: true})
	require.NoError(t, err)

	env := &Env{Network: ropsten(t), Registry: reg, Deployer: d}
	steps, err := runner.Run(context.Background(), env, 5, 5)
	require.NoError(t, err)
	require.Len(t, steps, 1)

	got, err := reg.Resolve(artifacts.Ref(University), chainID)
	require.NoError(t, err)
	assert.Equal(t, universityAddr, got)

	_, err = os.Stat(filepath.Join(dir, "University.json"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, "ClassroomFactory.json"))
	assert.True(t, os.IsNotExist(err), "only executed steps are saved")
}

func TestRunnerSelect(t *testing.T) {
	runner, err := NewRunner(Default(), RunnerConfig{})
	require.NoError(t, err)

	tests := []struct {
		from, to int
		want     []int
	}{
		{0, 0, []int{2, 3, 4, 5}},
		{3, 0, []int{3, 4, 5}},
		{0, 3, []int{2, 3}},
		{4, 4, []int{4}},
		{6, 0, nil},
	}
	for _, tt := range tests {
		selected, err := runner.Select(tt.from, tt.to)
		require.NoError(t, err)
		var got []int
		for _, m := range selected {
			got = append(got, m.Number())
		}
		assert.Equal(t, tt.want, got, "from=%d to=%d", tt.from, tt.to)
	}

	_, err = runner.Select(5, 2)
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestNewRunnerRejectsDuplicates(t *testing.T) {
	_, err := NewRunner([]Migration{
		NewFactoryMigration(2, ClassroomFactory),
		NewFactoryMigration(2, StudentFactory),
	}, RunnerConfig{})
	assert.ErrorIs(t, err, ErrDuplicateStep)
}

func TestRunnerHonorsCanceledContext(t *testing.T) {
	runner, err := NewRunner(Default(), RunnerConfig{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d := new(MockDeployer)
	env := &Env{Network: ropsten(t), Registry: newRegistry(t, ""), Deployer: d}
	steps, err := runner.Run(ctx, env, 0, 0)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, steps)
	d.AssertNotCalled(t, "Deploy", mock.Anything, mock.Anything, mock.Anything)
}
