// Package artifacts loads compiled contract artifacts and tracks where they
// have been deployed.
package artifacts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// ContractArtifact is a compiled contract as written by the build toolchain.
type ContractArtifact struct {
	ContractName string          `json:"contractName"`
	ABI          json.RawMessage `json:"abi"`
	Bytecode     Bytecode        `json:"bytecode"`

	// DeployedBytecode is written only when the source artifact had one.
	DeployedBytecode Bytecode                     `json:"deployedBytecode"`
	Networks         map[string]NetworkDeployment `json:"networks,omitempty"`
	UpdatedAt        string                       `json:"updatedAt,omitempty"`

	// Fields the deployer does not use are kept so Save does not drop them.
	extra map[string]json.RawMessage
}

// NetworkDeployment is the record of a deployment on one chain. Other
// fields of the entry, such as events and links, survive a Save.
type NetworkDeployment struct {
	Address         string `json:"address"`
	TransactionHash string `json:"transactionHash,omitempty"`

	extra map[string]json.RawMessage
}

var networkFields = map[string]bool{"address": true, "transactionHash": true}

// UnmarshalJSON decodes the entry and keeps its unknown fields.
func (d *NetworkDeployment) UnmarshalJSON(data []byte) error {
	type plain NetworkDeployment
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := unknownFields(data, networkFields)
	if err != nil {
		return err
	}
	*d = NetworkDeployment(p)
	d.extra = extra
	return nil
}

// MarshalJSON writes the entry including fields it did not interpret.
func (d NetworkDeployment) MarshalJSON() ([]byte, error) {
	type plain NetworkDeployment
	known, err := json.Marshal(plain(d))
	if err != nil {
		return nil, err
	}
	return mergeFields(known, d.extra, nil)
}

// Bytecode contains the contract bytecode.
// It handles both formats:
// - Simple string: "0x608060..."
// - Object with "object" field: {"object": "0x608060..."}
type Bytecode struct {
	hex string
}

// NewBytecode wraps a hex string.
func NewBytecode(hex string) Bytecode {
	return Bytecode{hex: hex}
}

// UnmarshalJSON handles both string and object bytecode formats.
func (b *Bytecode) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		b.hex = s
		return nil
	}

	var obj struct {
		Object string `json:"object"`
	}
	if err := json.Unmarshal(data, &obj); err == nil {
		b.hex = obj.Object
		return nil
	}

	return fmt.Errorf("bytecode must be a string or object with 'object' field")
}

// MarshalJSON marshals the bytecode as a string.
func (b Bytecode) MarshalJSON() ([]byte, error) {
	return json.Marshal(b.hex)
}

// String returns the bytecode hex string.
func (b Bytecode) String() string {
	return b.hex
}

// Bytes decodes the bytecode. Unlinked library placeholders fail here.
func (b Bytecode) Bytes() ([]byte, error) {
	if b.hex == "" || b.hex == "0x" {
		return nil, fmt.Errorf("empty bytecode")
	}
	h := b.hex
	if len(h) < 2 || h[:2] != "0x" {
		h = "0x" + h
	}
	code, err := hexutil.Decode(h)
	if err != nil {
		return nil, fmt.Errorf("decode bytecode: %w", err)
	}
	return code, nil
}

var knownFields = map[string]bool{
	"contractName": true, "abi": true, "bytecode": true,
	"deployedBytecode": true, "networks": true, "updatedAt": true,
}

// ParseArtifact decodes a build artifact JSON document.
func ParseArtifact(data []byte) (*ContractArtifact, error) {
	var a ContractArtifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("unmarshal artifact: %w", err)
	}

	extra, err := unknownFields(data, knownFields)
	if err != nil {
		return nil, fmt.Errorf("unmarshal artifact: %w", err)
	}
	a.extra = extra

	if a.ContractName == "" {
		return nil, fmt.Errorf("artifact has no contractName")
	}
	if a.Networks == nil {
		a.Networks = make(map[string]NetworkDeployment)
	}
	return &a, nil
}

// MarshalJSON writes the artifact including fields it did not interpret.
func (a *ContractArtifact) MarshalJSON() ([]byte, error) {
	type plain ContractArtifact
	known, err := json.Marshal((*plain)(a))
	if err != nil {
		return nil, err
	}
	var drop []string
	if a.DeployedBytecode.hex == "" {
		drop = append(drop, "deployedBytecode")
	}
	return mergeFields(known, a.extra, drop)
}

// unknownFields returns the top-level members of the JSON object data
// whose names are not in known.
func unknownFields(data []byte, known map[string]bool) (map[string]json.RawMessage, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	var extra map[string]json.RawMessage
	for k, v := range all {
		if known[k] {
			continue
		}
		if extra == nil {
			extra = make(map[string]json.RawMessage)
		}
		extra[k] = v
	}
	return extra, nil
}

// mergeFields adds extra to the JSON object known, removes drop, and
// writes the members in sorted key order.
func mergeFields(known []byte, extra map[string]json.RawMessage, drop []string) ([]byte, error) {
	if len(extra) == 0 && len(drop) == 0 {
		return known, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(known, &merged); err != nil {
		return nil, err
	}
	for k, v := range extra {
		merged[k] = v
	}
	for _, k := range drop {
		delete(merged, k)
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, _ := json.Marshal(k)
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(merged[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ParsedABI parses the artifact's ABI.
func (a *ContractArtifact) ParsedABI() (abi.ABI, error) {
	if len(a.ABI) == 0 {
		return abi.ABI{}, fmt.Errorf("artifact %s has no abi", a.ContractName)
	}
	parsed, err := abi.JSON(bytes.NewReader(a.ABI))
	if err != nil {
		return abi.ABI{}, fmt.Errorf("parse %s abi: %w", a.ContractName, err)
	}
	return parsed, nil
}

// DeployedAt returns the recorded address on chainID, if any.
func (a *ContractArtifact) DeployedAt(chainID int64) (common.Address, bool) {
	d, ok := a.Networks[networkKey(chainID)]
	if !ok || !common.IsHexAddress(d.Address) {
		return common.Address{}, false
	}
	addr := common.HexToAddress(d.Address)
	if addr == (common.Address{}) {
		return common.Address{}, false
	}
	return addr, true
}

func networkKey(chainID int64) string {
	return strconv.FormatInt(chainID, 10)
}
