// Package config provides configuration loading for the university deployer.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "UNIDEPLOY"

// ErrUnknownNetwork is returned when the selected network has no entry.
var ErrUnknownNetwork = errors.New("unknown network")

// Config holds all configuration for the deployer.
type Config struct {
	// Network selects an entry of Networks.
	Network   string             `mapstructure:"network"`
	RPC       RPCConfig          `mapstructure:"rpc"`
	Signer    SignerConfig       `mapstructure:"signer"`
	Artifacts ArtifactsConfig    `mapstructure:"artifacts"`
	Gas       GasConfig          `mapstructure:"gas"`
	Database  DatabaseConfig     `mapstructure:"database"`
	Metrics   MetricsConfig      `mapstructure:"metrics"`
	Log       LogConfig          `mapstructure:"log"`
	Networks  map[string]Network `mapstructure:"networks"`
}

// RPCConfig holds the chain endpoint.
type RPCConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// SignerKind selects how deployment transactions are signed.
type SignerKind string

const (
	// SignerKey signs with a hex-encoded private key.
	SignerKey SignerKind = "key"
	// SignerKeystore signs with an encrypted JSON keystore file.
	SignerKeystore SignerKind = "keystore"
	// SignerDev signs with a well-known Anvil development account.
	SignerDev SignerKind = "dev"
)

// SignerConfig holds signer settings.
type SignerConfig struct {
	Kind             SignerKind `mapstructure:"kind"`
	PrivateKey       string     `mapstructure:"private_key"`
	KeystorePath     string     `mapstructure:"keystore_path"`
	KeystorePassword string     `mapstructure:"keystore_password"`
	DevAccount       int        `mapstructure:"dev_account"`
}

// ArtifactsConfig points at compiled contract artifacts.
type ArtifactsConfig struct {
	Dir string `mapstructure:"dir"`
	// Bundle is an optional .tzst archive loaded instead of Dir.
	Bundle string `mapstructure:"bundle"`
	// Save writes deployed addresses back into Dir.
	Save bool `mapstructure:"save"`
}

// GasConfig tunes gas pricing for deployment transactions.
type GasConfig struct {
	PriceBoostPercent  uint64 `mapstructure:"price_boost_percent"`
	MinPriceGwei       uint64 `mapstructure:"min_price_gwei"`
	LimitBufferPercent uint64 `mapstructure:"limit_buffer_percent"`
	FallbackLimit      uint64 `mapstructure:"fallback_limit"`
	MaxLimit           uint64 `mapstructure:"max_limit"`
}

// DatabaseConfig holds PostgreSQL configuration for deployment records.
type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	Database        string        `mapstructure:"database"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// URL returns the postgres:// URL form used by schema migrations.
func (c DatabaseConfig) URL() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}

// MetricsConfig holds Prometheus push settings.
type MetricsConfig struct {
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	Job            string `mapstructure:"job"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text or json
}

// New returns a viper instance with defaults, config search paths and
// environment overrides set up. Callers may bind flags before Load.
func New() *viper.Viper {
	v := viper.New()

	v.SetConfigName("deployer")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/university-deployer")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Secrets are never written to the defaults, bind them explicitly.
	v.BindEnv("signer.private_key", EnvPrefix+"_SIGNER_PRIVATE_KEY")
	v.BindEnv("signer.keystore_password", EnvPrefix+"_SIGNER_KEYSTORE_PASSWORD")
	v.BindEnv("database.password", EnvPrefix+"_DATABASE_PASSWORD")

	return v
}

// Load reads the optional config file and unmarshals the result.
// A non-empty file overrides the search paths.
func Load(v *viper.Viper, file string) (*Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// SelectedNetwork returns the validated entry for cfg.Network.
func (c *Config) SelectedNetwork() (Network, error) {
	return c.LookupNetwork(c.Network)
}

// LookupNetwork returns the validated network entry for name.
func (c *Config) LookupNetwork(name string) (Network, error) {
	n, ok := c.Networks[strings.ToLower(name)]
	if !ok {
		return Network{}, fmt.Errorf("%w: %q (configured: %s)", ErrUnknownNetwork, name, strings.Join(c.NetworkNames(), ", "))
	}
	n.Name = strings.ToLower(name)
	if err := n.Validate(); err != nil {
		return Network{}, err
	}
	return n, nil
}

// NetworkNames returns the configured network names in sorted order.
func (c *Config) NetworkNames() []string {
	names := make([]string, 0, len(c.Networks))
	for name := range c.Networks {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// setDefaults configures default values for all settings.
func setDefaults(v *viper.Viper) {
	v.SetDefault("network", "ropsten")

	v.SetDefault("rpc.url", "http://localhost:8545")
	v.SetDefault("rpc.timeout", "10m")

	v.SetDefault("signer.kind", string(SignerKey))
	v.SetDefault("signer.dev_account", 0)

	v.SetDefault("artifacts.dir", "./build/contracts")
	v.SetDefault("artifacts.bundle", "")
	v.SetDefault("artifacts.save", true)

	v.SetDefault("gas.price_boost_percent", 150)
	v.SetDefault("gas.min_price_gwei", 2)
	v.SetDefault("gas.limit_buffer_percent", 120)
	v.SetDefault("gas.fallback_limit", 6_000_000)
	v.SetDefault("gas.max_limit", 15_000_000)

	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "deployer")
	v.SetDefault("database.database", "deployer")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 4)
	v.SetDefault("database.conn_max_lifetime", "5m")

	v.SetDefault("metrics.pushgateway_url", "")
	v.SetDefault("metrics.job", "university_deployer")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	for name, n := range DefaultNetworks {
		setNetworkDefaults(v, name, n)
	}
}

func setNetworkDefaults(v *viper.Viper, name string, n Network) {
	prefix := "networks." + name + "."
	v.SetDefault(prefix+"chain_id", n.ChainID)
	v.SetDefault(prefix+"dai_address", n.DaiAddress)
	v.SetDefault(prefix+"compound_address", n.CompoundAddress)
	v.SetDefault(prefix+"ens_registry_address", n.ENSRegistryAddress)
	v.SetDefault(prefix+"ens_test_registrar_address", n.ENSTestRegistrarAddress)
	v.SetDefault(prefix+"ens_public_resolver_address", n.ENSPublicResolverAddress)
	v.SetDefault(prefix+"ens_reverse_resolver_address", n.ENSReverseResolverAddress)
	v.SetDefault(prefix+"university_name", n.UniversityName)
	v.SetDefault(prefix+"university_cut", n.UniversityCut)
}
