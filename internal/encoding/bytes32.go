// Package encoding converts human-readable identifiers into the fixed-width
// values contract constructors expect.
package encoding

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Bytes32Length is the width of a Solidity bytes32 value.
const Bytes32Length = 32

// ErrTooLong is returned when a string does not fit into 32 bytes.
var ErrTooLong = errors.New("string longer than 32 bytes")

// StringToBytes32 copies the bytes of s into a 32-byte array, right-padded
// with zeros, the layout of a Solidity bytes32 string literal.
func StringToBytes32(s string) ([Bytes32Length]byte, error) {
	var out [Bytes32Length]byte
	if len(s) > Bytes32Length {
		return out, fmt.Errorf("%w: %q is %d bytes", ErrTooLong, s, len(s))
	}
	copy(out[:], s)
	return out, nil
}

// Bytes32ToString decodes a zero-padded bytes32 value by trimming trailing
// zero bytes.
func Bytes32ToString(b [Bytes32Length]byte) string {
	return string(bytes.TrimRight(b[:], "\x00"))
}

// Bytes32ToHex returns the 0x-prefixed hex form of b.
func Bytes32ToHex(b [Bytes32Length]byte) string {
	return hexutil.Encode(b[:])
}
