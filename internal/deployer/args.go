package deployer

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
)

var (
	// ErrArgumentCount is returned when the argument list does not match the
	// constructor's arity.
	ErrArgumentCount = errors.New("constructor argument count mismatch")
	// ErrArgumentType is returned when an argument cannot be represented as
	// the constructor's parameter type.
	ErrArgumentType = errors.New("constructor argument type mismatch")
)

// bigIntValue is implemented by wide integer wrappers such as fixed-point cuts.
type bigIntValue interface {
	Big() *big.Int
}

// PackConstructor ABI-encodes args for the constructor of parsed. Each
// positional argument is coerced to the Go type go-ethereum expects for the
// matching input; there is no name-based binding.
func PackConstructor(parsed abi.ABI, args ...interface{}) ([]byte, error) {
	inputs := parsed.Constructor.Inputs
	if len(args) != len(inputs) {
		return nil, fmt.Errorf("%w: constructor takes %d, got %d", ErrArgumentCount, len(inputs), len(args))
	}

	coerced := make([]interface{}, len(args))
	for i, arg := range args {
		v, err := coerceArgument(inputs[i].Type, arg)
		if err != nil {
			return nil, fmt.Errorf("argument %d (%s %s): %w", i, inputs[i].Type.String(), inputs[i].Name, err)
		}
		coerced[i] = v
	}

	packed, err := parsed.Pack("", coerced...)
	if err != nil {
		return nil, fmt.Errorf("encode constructor args: %w", err)
	}
	return packed, nil
}

func coerceArgument(t abi.Type, arg interface{}) (interface{}, error) {
	switch t.T {
	case abi.UintTy, abi.IntTy:
		n, err := toBigInt(arg)
		if err != nil {
			return nil, err
		}
		return fitInteger(t, n)
	case abi.AddressTy:
		switch v := arg.(type) {
		case common.Address:
			return v, nil
		case string:
			if !common.IsHexAddress(v) {
				return nil, fmt.Errorf("%w: %q is not an address", ErrArgumentType, v)
			}
			return common.HexToAddress(v), nil
		}
		return nil, fmt.Errorf("%w: %T is not an address", ErrArgumentType, arg)
	case abi.FixedBytesTy:
		if t.Size == 32 {
			switch v := arg.(type) {
			case [32]byte:
				return v, nil
			case common.Hash:
				return [32]byte(v), nil
			}
			return nil, fmt.Errorf("%w: %T is not bytes32", ErrArgumentType, arg)
		}
	}
	return arg, nil
}

func toBigInt(arg interface{}) (*big.Int, error) {
	switch v := arg.(type) {
	case *big.Int:
		if v == nil {
			return nil, fmt.Errorf("%w: nil integer", ErrArgumentType)
		}
		return v, nil
	case *uint256.Int:
		if v == nil {
			return nil, fmt.Errorf("%w: nil integer", ErrArgumentType)
		}
		return v.ToBig(), nil
	case bigIntValue:
		return v.Big(), nil
	case uint64:
		return new(big.Int).SetUint64(v), nil
	case uint32:
		return new(big.Int).SetUint64(uint64(v)), nil
	case uint:
		return new(big.Int).SetUint64(uint64(v)), nil
	case int64:
		return big.NewInt(v), nil
	case int:
		return big.NewInt(int64(v)), nil
	}
	return nil, fmt.Errorf("%w: %T is not an integer", ErrArgumentType, arg)
}

// fitInteger range-checks n and converts it to the native Go type
// go-ethereum uses for 8/16/32/64-bit integers; other widths stay *big.Int.
func fitInteger(t abi.Type, n *big.Int) (interface{}, error) {
	if t.T == abi.UintTy {
		if n.Sign() < 0 || n.BitLen() > t.Size {
			return nil, fmt.Errorf("%w: %s overflows uint%d", ErrArgumentType, n, t.Size)
		}
		switch t.Size {
		case 8:
			return uint8(n.Uint64()), nil
		case 16:
			return uint16(n.Uint64()), nil
		case 32:
			return uint32(n.Uint64()), nil
		case 64:
			return n.Uint64(), nil
		}
		return new(big.Int).Set(n), nil
	}

	limit := new(big.Int).Lsh(big.NewInt(1), uint(t.Size-1))
	minimum := new(big.Int).Neg(limit)
	if n.Cmp(limit) >= 0 || n.Cmp(minimum) < 0 {
		return nil, fmt.Errorf("%w: %s overflows int%d", ErrArgumentType, n, t.Size)
	}
	switch t.Size {
	case 8:
		return int8(n.Int64()), nil
	case 16:
		return int16(n.Int64()), nil
	case 32:
		return int32(n.Int64()), nil
	case 64:
		return n.Int64(), nil
	}
	return new(big.Int).Set(n), nil
}
