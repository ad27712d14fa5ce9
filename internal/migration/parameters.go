// Package migration assembles constructor arguments and runs the ordered
// deployment steps.
package migration

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Bidon15/university-deployer/internal/artifacts"
	"github.com/Bidon15/university-deployer/internal/config"
	"github.com/Bidon15/university-deployer/internal/encoding"
	"github.com/Bidon15/university-deployer/internal/fixedpoint"
)

// Contract names as they appear in the compiled artifacts.
const (
	ClassroomFactory          = "ClassroomFactory"
	StudentFactory            = "StudentFactory"
	StudentApplicationFactory = "StudentApplicationFactory"
	University                = "University"
)

// AddressResolver returns the address a previously deployed artifact holds
// on a chain. *artifacts.Registry implements it.
type AddressResolver interface {
	Resolve(ref artifacts.Reference, chainID int64) (common.Address, error)
}

// Parameters are the University constructor arguments.
type Parameters struct {
	Name                      [encoding.Bytes32Length]byte
	Cut                       fixedpoint.Cut
	Dai                       common.Address
	Compound                  common.Address
	ClassroomFactory          common.Address
	StudentFactory            common.Address
	StudentApplicationFactory common.Address
	ENSContract               common.Address
	ENSTestRegistrar          common.Address
	ENSPublicResolver         common.Address
	ENSReverseResolver        common.Address
}

// BuildParameters encodes the network's University name and cut and
// resolves the three factory addresses. A factory that is not deployed on
// the network fails the build; no placeholder address is used.
func BuildParameters(network config.Network, resolver AddressResolver) (*Parameters, error) {
	name, err := encoding.StringToBytes32(network.UniversityName)
	if err != nil {
		return nil, fmt.Errorf("encode university name: %w", err)
	}
	cut, err := fixedpoint.ParseCut(network.UniversityCut)
	if err != nil {
		return nil, fmt.Errorf("parse university cut: %w", err)
	}

	factories := make(map[string]common.Address, 3)
	for _, contract := range []string{ClassroomFactory, StudentFactory, StudentApplicationFactory} {
		addr, err := resolver.Resolve(artifacts.Ref(contract), network.ChainID)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", contract, err)
		}
		factories[contract] = addr
	}

	return &Parameters{
		Name:                      name,
		Cut:                       cut,
		Dai:                       network.Dai(),
		Compound:                  network.Compound(),
		ClassroomFactory:          factories[ClassroomFactory],
		StudentFactory:            factories[StudentFactory],
		StudentApplicationFactory: factories[StudentApplicationFactory],
		ENSContract:               network.ENSRegistry(),
		ENSTestRegistrar:          network.ENSTestRegistrar(),
		ENSPublicResolver:         network.ENSPublicResolver(),
		ENSReverseResolver:        network.ENSReverseResolver(),
	}, nil
}

// Args returns the constructor arguments in positional order.
func (p *Parameters) Args() []interface{} {
	return []interface{}{
		p.Name,
		p.Cut,
		p.Dai,
		p.Compound,
		p.ClassroomFactory,
		p.StudentFactory,
		p.StudentApplicationFactory,
		p.ENSContract,
		p.ENSTestRegistrar,
		p.ENSPublicResolver,
		p.ENSReverseResolver,
	}
}

// Argument is a printable constructor argument.
type Argument struct {
	Position int    `json:"position"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Value    string `json:"value"`
}

// Named returns the arguments with their names and ABI types, in the same
// order as Args.
func (p *Parameters) Named() []Argument {
	addr := func(pos int, name string, a common.Address) Argument {
		return Argument{Position: pos, Name: name, Type: "address", Value: a.Hex()}
	}
	return []Argument{
		{Position: 0, Name: "name", Type: "bytes32", Value: encoding.Bytes32ToHex(p.Name)},
		{Position: 1, Name: "cut", Type: "uint256", Value: p.Cut.Scaled().Dec()},
		addr(2, "dai", p.Dai),
		addr(3, "compound", p.Compound),
		addr(4, "classroomFactory", p.ClassroomFactory),
		addr(5, "studentFactory", p.StudentFactory),
		addr(6, "studentApplicationFactory", p.StudentApplicationFactory),
		addr(7, "ensContract", p.ENSContract),
		addr(8, "ensTestRegistrar", p.ENSTestRegistrar),
		addr(9, "ensPublicResolver", p.ENSPublicResolver),
		addr(10, "ensReverseResolver", p.ENSReverseResolver),
	}
}
