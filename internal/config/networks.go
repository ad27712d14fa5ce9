package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"

	"github.com/Bidon15/university-deployer/internal/encoding"
)

// ErrInvalidNetwork is returned when a network entry fails validation.
var ErrInvalidNetwork = errors.New("invalid network config")

// Network holds the per-network constants of a University deployment.
type Network struct {
	Name    string `mapstructure:"-" json:"name"`
	ChainID int64  `mapstructure:"chain_id" json:"chainId" validate:"required,gt=0"`

	DaiAddress      string `mapstructure:"dai_address" json:"daiAddress" validate:"required,eth_addr"`
	CompoundAddress string `mapstructure:"compound_address" json:"compoundAddress" validate:"required,eth_addr"`

	ENSRegistryAddress        string `mapstructure:"ens_registry_address" json:"ensRegistryAddress" validate:"required,eth_addr"`
	ENSTestRegistrarAddress   string `mapstructure:"ens_test_registrar_address" json:"ensTestRegistrarAddress" validate:"required,eth_addr"`
	ENSPublicResolverAddress  string `mapstructure:"ens_public_resolver_address" json:"ensPublicResolverAddress" validate:"required,eth_addr"`
	ENSReverseResolverAddress string `mapstructure:"ens_reverse_resolver_address" json:"ensReverseResolverAddress" validate:"required,eth_addr"`

	UniversityName string `mapstructure:"university_name" json:"universityName" validate:"required,bytes32"`
	// UniversityCut is a decimal string ("0.2"), scaled at build time.
	UniversityCut string `mapstructure:"university_cut" json:"universityCut" validate:"required,numeric"`
}

// ENSRegistryAddress of the ENS registry, deployed at the same address on
// every network that has ENS.
const ENSRegistryAddress = "0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e"

// DefaultNetworks contains the built-in network entries.
var DefaultNetworks = map[string]Network{
	"ropsten": {
		ChainID:                   3,
		DaiAddress:                "0xf80A32A835F79D7787E8a8ee5721D0fEaFd78108",
		CompoundAddress:           "0x6ce27497a64fffb5517aa4aee908b1e7eb63b9ff",
		ENSRegistryAddress:        ENSRegistryAddress,
		ENSTestRegistrarAddress:   "0x09B5bd82f3351A4c8437FC6D7772A9E6cd5D25A1",
		ENSPublicResolverAddress:  "0x42D63ae25990889E35F215bC95884039Ba354115",
		ENSReverseResolverAddress: "0x6F628b68b30Dc3c17f345c9dbBb1E483c2b7aE5c",
		UniversityName:            "University",
		UniversityCut:             "0.2",
	},
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// max counts runes; a bytes32 literal is limited by its UTF-8 length.
	_ = v.RegisterValidation("bytes32", func(fl validator.FieldLevel) bool {
		_, err := encoding.StringToBytes32(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate checks that all addresses are well-formed 20-byte hex values.
func (n Network) Validate() error {
	err := validate.Struct(n)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w %q: %v", ErrInvalidNetwork, n.Name, err)
	}

	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
	}
	return fmt.Errorf("%w %q: %s", ErrInvalidNetwork, n.Name, strings.Join(fields, ", "))
}

// Dai returns the stablecoin contract address.
func (n Network) Dai() common.Address { return common.HexToAddress(n.DaiAddress) }

// Compound returns the lending protocol contract address.
func (n Network) Compound() common.Address { return common.HexToAddress(n.CompoundAddress) }

// ENSRegistry returns the ENS registry address.
func (n Network) ENSRegistry() common.Address { return common.HexToAddress(n.ENSRegistryAddress) }

// ENSTestRegistrar returns the ENS test registrar address.
func (n Network) ENSTestRegistrar() common.Address {
	return common.HexToAddress(n.ENSTestRegistrarAddress)
}

// ENSPublicResolver returns the ENS public resolver address.
func (n Network) ENSPublicResolver() common.Address {
	return common.HexToAddress(n.ENSPublicResolverAddress)
}

// ENSReverseResolver returns the ENS reverse resolver address.
func (n Network) ENSReverseResolver() common.Address {
	return common.HexToAddress(n.ENSReverseResolverAddress)
}
