// Package fixedpoint parses decimal constants into scaled integers without
// going through floating point.
package fixedpoint

import (
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"

	"github.com/holiman/uint256"
)

// CutScale is the factor a fee cut percentage is multiplied by before it
// is handed to a contract (0.2 becomes 200000).
const CutScale uint64 = 1_000_000

var (
	// ErrInvalidDecimal is returned when the input is not a decimal number.
	ErrInvalidDecimal = errors.New("invalid decimal")
	// ErrNegative is returned for values below zero.
	ErrNegative = errors.New("negative value")
	// ErrPrecision is returned when scaling leaves a fractional remainder.
	ErrPrecision = errors.New("value has more precision than the scale allows")
	// ErrOverflow is returned when the scaled value does not fit into 256 bits.
	ErrOverflow = errors.New("scaled value overflows uint256")
)

// decimalPattern accepts plain and exponent decimal notation only. Base
// prefixes and fractions that big.Rat would otherwise take are rejected.
var decimalPattern = regexp.MustCompile(`^[+-]?([0-9]+\.?[0-9]*|\.[0-9]+)([eE][+-]?[0-9]+)?$`)

// ParseScaled parses a decimal string such as "0.2" and multiplies it by
// scale using exact rational arithmetic. The result must be an integer.
func ParseScaled(decimal string, scale uint64) (*uint256.Int, error) {
	s := strings.TrimSpace(decimal)
	if !decimalPattern.MatchString(s) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDecimal, decimal)
	}
	if scale == 0 {
		return nil, fmt.Errorf("%w: zero scale", ErrInvalidDecimal)
	}

	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDecimal, decimal)
	}
	if r.Sign() < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNegative, decimal)
	}

	r.Mul(r, new(big.Rat).SetInt(new(big.Int).SetUint64(scale)))
	if !r.IsInt() {
		return nil, fmt.Errorf("%w: %s x %d = %s", ErrPrecision, decimal, scale, r.FloatString(6))
	}

	v, overflow := uint256.FromBig(r.Num())
	if overflow {
		return nil, fmt.Errorf("%w: %s", ErrOverflow, decimal)
	}
	return v, nil
}

// Cut is a fee percentage stored pre-scaled by CutScale.
type Cut struct {
	scaled *uint256.Int
}

// ParseCut parses a decimal percentage such as "0.2" into a Cut.
func ParseCut(decimal string) (Cut, error) {
	v, err := ParseScaled(decimal, CutScale)
	if err != nil {
		return Cut{}, fmt.Errorf("parse cut: %w", err)
	}
	return Cut{scaled: v}, nil
}

// Scaled returns a copy of the scaled integer value.
func (c Cut) Scaled() *uint256.Int {
	if c.scaled == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(c.scaled)
}

// Big returns the scaled value as a *big.Int, the type go-ethereum packs
// for wide unsigned integers.
func (c Cut) Big() *big.Int {
	return c.Scaled().ToBig()
}

// Uint64 returns the scaled value, which must fit into 64 bits.
func (c Cut) Uint64() (uint64, bool) {
	v := c.Scaled()
	return v.Uint64(), v.IsUint64()
}

// String renders the unscaled decimal, e.g. "0.2".
func (c Cut) String() string {
	r := new(big.Rat).SetFrac(c.Big(), new(big.Int).SetUint64(CutScale))
	s := r.FloatString(6)
	s = strings.TrimRight(s, "0")
	return strings.TrimSuffix(s, ".")
}

// Equal reports whether both cuts hold the same scaled value.
func (c Cut) Equal(other Cut) bool {
	return c.Scaled().Eq(other.Scaled())
}
