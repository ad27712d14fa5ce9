// Package cli implements the university-deployer command line.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Bidon15/university-deployer/internal/config"
	"github.com/Bidon15/university-deployer/internal/deployer"
)

// Version is set at build time.
var Version = "dev"

// app carries state shared by all commands of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string

	cfg    *config.Config
	logger *slog.Logger

	clients deployer.ClientFactory
	repos   repositoryOpener
	schemas schemaOpener
	stdout  io.Writer
	stderr  io.Writer
}

// NewRootCommand builds the command tree.
func NewRootCommand() *cobra.Command {
	a := &app{
		v:       config.New(),
		clients: deployer.NewEthClientFactory(),
		repos:   openRepository,
		schemas: openSchema,
		stdout:  os.Stdout,
		stderr:  os.Stderr,
	}
	return a.rootCommand()
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "university-deployer",
		Short: "Deploy the University contract suite",
		Long: `university-deployer publishes the ClassroomFactory, StudentFactory,
StudentApplicationFactory and University contracts to an EVM network.

University takes the three factory addresses, the network's DAI and
Compound tokens and its ENS contracts as constructor arguments. Factory
addresses are read from the compiled artifacts of earlier deployments.

Configuration (in order of priority):
  1. Command-line flags (--network, --rpc-url, --log-level)
  2. Environment variables (UNIDEPLOY_NETWORK, UNIDEPLOY_RPC_URL, ...)
  3. Config file (./deployer.yaml, ./config/deployer.yaml)

Get started:
  $ university-deployer networks
  $ university-deployer params --network ropsten
  $ university-deployer migrate --network ropsten --dry-run
  $ university-deployer runs list`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default is ./deployer.yaml)")
	flags.String("network", "", "network to deploy to (or UNIDEPLOY_NETWORK)")
	flags.String("rpc-url", "", "JSON-RPC endpoint (or UNIDEPLOY_RPC_URL)")
	flags.String("artifacts", "", "compiled artifacts directory (or UNIDEPLOY_ARTIFACTS_DIR)")
	flags.String("log-level", "", "log level: debug, info, warn, error")
	_ = a.v.BindPFlag("network", flags.Lookup("network"))
	_ = a.v.BindPFlag("rpc.url", flags.Lookup("rpc-url"))
	_ = a.v.BindPFlag("artifacts.dir", flags.Lookup("artifacts"))
	_ = a.v.BindPFlag("log.level", flags.Lookup("log-level"))

	root.AddCommand(
		a.migrateCommand(),
		a.paramsCommand(),
		a.networksCommand(),
		a.runsCommand(),
		a.dbCommand(),
		a.versionCommand(),
	)
	return root
}

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "university-deployer version %s\n", Version)
		},
	}
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func (a *app) load() error {
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = newLogger(cfg.Log, a.stderr)
	slog.SetDefault(a.logger)
	return nil
}

// newLogger builds the process logger from cfg.
func newLogger(cfg config.LogConfig, w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// printJSON outputs data as formatted JSON.
func (a *app) printJSON(v interface{}) error {
	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newTable creates a new tabwriter for formatted output.
func (a *app) newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
}
