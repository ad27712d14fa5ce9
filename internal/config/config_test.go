package config

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, "ropsten", cfg.Network)
	assert.Equal(t, "http://localhost:8545", cfg.RPC.URL)
	assert.Equal(t, 10*time.Minute, cfg.RPC.Timeout)
	assert.Equal(t, SignerKey, cfg.Signer.Kind)
	assert.Equal(t, uint64(150), cfg.Gas.PriceBoostPercent)
	assert.False(t, cfg.Database.Enabled)

	n, err := cfg.SelectedNetwork()
	require.NoError(t, err)
	assert.Equal(t, "ropsten", n.Name)
	assert.Equal(t, int64(3), n.ChainID)
	assert.Equal(t, "University", n.UniversityName)
	assert.Equal(t, "0.2", n.UniversityCut)
	assert.Equal(t, common.HexToAddress("0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e"), n.ENSRegistry())
	assert.Equal(t, common.HexToAddress("0x6ce27497a64fffb5517aa4aee908b1e7eb63b9ff"), n.Compound())
}

func TestLoadFileAddsNetwork(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "deployer.yaml")
	content := `
network: local
rpc:
  url: http://127.0.0.1:9545
networks:
  local:
    chain_id: 31337
    dai_address: "0x5FbDB2315678afecb367f032d93F642f64180aa3"
    compound_address: "0xe7f1725E7734CE288F8367e1Bb143E90bb3F0512"
    ens_registry_address: "0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e"
    ens_test_registrar_address: "0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0"
    ens_public_resolver_address: "0xCf7Ed3AccA5a467e9e704C703E8D87F634fB0Fc9"
    ens_reverse_resolver_address: "0xDc64a140Aa3E981100a9becA4E685f962f0cF6C9"
    university_name: Local University
    university_cut: 0.25
`
	require.NoError(t, os.WriteFile(file, []byte(content), 0600))

	cfg, err := Load(New(), file)
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:9545", cfg.RPC.URL)
	assert.Equal(t, []string{"local", "ropsten"}, cfg.NetworkNames())

	n, err := cfg.SelectedNetwork()
	require.NoError(t, err)
	assert.Equal(t, int64(31337), n.ChainID)
	assert.Equal(t, "Local University", n.UniversityName)
	assert.Equal(t, "0.25", n.UniversityCut)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestEnvOverride(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("UNIDEPLOY_RPC_URL", "http://node:8545")
	t.Setenv("UNIDEPLOY_NETWORKS_ROPSTEN_UNIVERSITY_CUT", "0.3")

	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, "http://node:8545", cfg.RPC.URL)
	n, err := cfg.SelectedNetwork()
	require.NoError(t, err)
	assert.Equal(t, "0.3", n.UniversityCut)
}

func TestLookupUnknownNetwork(t *testing.T) {
	cfg := &Config{Networks: DefaultNetworks}

	_, err := cfg.LookupNetwork("mainnet")
	assert.ErrorIs(t, err, ErrUnknownNetwork)
	assert.Contains(t, err.Error(), "ropsten")
}

func TestNetworkValidate(t *testing.T) {
	valid := DefaultNetworks["ropsten"]
	require.NoError(t, valid.Validate())

	tests := []struct {
		name   string
		mutate func(n *Network)
		field  string
	}{
		{name: "short dai", mutate: func(n *Network) { n.DaiAddress = "0x1234" }, field: "DaiAddress"},
		{name: "missing prefix", mutate: func(n *Network) { n.CompoundAddress = "6ce27497a64fffb5517aa4aee908b1e7eb63b9ff" }, field: "CompoundAddress"},
		{name: "empty resolver", mutate: func(n *Network) { n.ENSPublicResolverAddress = "" }, field: "ENSPublicResolverAddress"},
		{name: "non hex registrar", mutate: func(n *Network) { n.ENSTestRegistrarAddress = "0xZZB5bd82f3351A4c8437FC6D7772A9E6cd5D25A1" }, field: "ENSTestRegistrarAddress"},
		{name: "zero chain", mutate: func(n *Network) { n.ChainID = 0 }, field: "ChainID"},
		{name: "long name", mutate: func(n *Network) { n.UniversityName = "A University Name Well Past Thirty Two Bytes" }, field: "UniversityName"},
		{name: "multibyte name", mutate: func(n *Network) { n.UniversityName = strings.Repeat("é", 17) }, field: "UniversityName"},
		{name: "bad cut", mutate: func(n *Network) { n.UniversityCut = "twenty" }, field: "UniversityCut"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := valid
			tt.mutate(&n)
			err := n.Validate()
			assert.ErrorIs(t, err, ErrInvalidNetwork)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestDatabaseDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", Database: "d", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=d sslmode=disable", c.DSN())
	assert.Equal(t, "postgres://u:p@db:5432/d?sslmode=disable", c.URL())
}

func TestDatabaseURLEscapesCredentials(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: 5432, User: "dep@loyer", Password: "p@ss/w#rd:1", Database: "d", SSLMode: "require"}

	u, err := url.Parse(c.URL())
	require.NoError(t, err)

	password, ok := u.User.Password()
	require.True(t, ok)
	assert.Equal(t, "dep@loyer", u.User.Username())
	assert.Equal(t, "p@ss/w#rd:1", password)
	assert.Equal(t, "db:5432", u.Host)
	assert.Equal(t, "/d", u.Path)
	assert.Equal(t, "require", u.Query().Get("sslmode"))
}
