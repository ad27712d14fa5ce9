package cli

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/Bidon15/university-deployer/internal/artifacts"
	"github.com/Bidon15/university-deployer/internal/config"
	"github.com/Bidon15/university-deployer/internal/database"
	"github.com/Bidon15/university-deployer/internal/deployer"
	"github.com/Bidon15/university-deployer/internal/repository"
)

// loadRegistry reads the compiled artifacts from the bundle if one is
// configured, otherwise from the artifacts directory.
func loadRegistry(cfg config.ArtifactsConfig, logger *slog.Logger) (*artifacts.Registry, error) {
	if cfg.Bundle != "" {
		saveDir := ""
		if cfg.Save {
			saveDir = cfg.Dir
		}
		return artifacts.LoadBundle(cfg.Bundle, saveDir, logger)
	}
	return artifacts.LoadDir(cfg.Dir, logger)
}

func newSigner(cfg config.SignerConfig, chainID int64) (*deployer.LocalSigner, error) {
	switch cfg.Kind {
	case config.SignerKey:
		if cfg.PrivateKey == "" {
			return nil, fmt.Errorf("signer.private_key required (or %s_SIGNER_PRIVATE_KEY)", config.EnvPrefix)
		}
		return deployer.NewLocalSigner(cfg.PrivateKey, chainID)
	case config.SignerKeystore:
		if cfg.KeystorePath == "" {
			return nil, fmt.Errorf("signer.keystore_path required")
		}
		return deployer.NewKeystoreSigner(cfg.KeystorePath, cfg.KeystorePassword, chainID)
	case config.SignerDev:
		return deployer.NewDevSigner(cfg.DevAccount, chainID)
	}
	return nil, fmt.Errorf("unknown signer kind %q", cfg.Kind)
}

func gasOptions(cfg config.GasConfig) deployer.Options {
	opts := deployer.DefaultOptions()
	opts.PriceBoostPercent = cfg.PriceBoostPercent
	opts.LimitBufferPercent = cfg.LimitBufferPercent
	if cfg.FallbackLimit > 0 {
		opts.FallbackGasLimit = cfg.FallbackLimit
	}
	opts.MaxGasLimit = cfg.MaxLimit
	opts.MinGasPrice = new(big.Int).Mul(
		new(big.Int).SetUint64(cfg.MinPriceGwei),
		big.NewInt(1_000_000_000),
	)
	return opts
}

type repositoryOpener func(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (repository.Repository, func(), error)

// schemaMigrator applies and rolls back the run record schema.
type schemaMigrator interface {
	RunMigrations(cfg config.DatabaseConfig) error
	MigrateDown(cfg config.DatabaseConfig, steps int) error
	Close()
}

type schemaOpener func(ctx context.Context, cfg config.DatabaseConfig) (schemaMigrator, error)

// errDatabaseDisabled is returned by commands that only read or change
// the run records.
var errDatabaseDisabled = fmt.Errorf("database.enabled must be set (or %s_DATABASE_ENABLED=true)", config.EnvPrefix)

// openRepository connects to PostgreSQL when enabled. The returned close
// func is always safe to call.
func openRepository(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (repository.Repository, func(), error) {
	if !cfg.Enabled {
		return repository.NopRepository{}, func() {}, nil
	}

	db, err := database.NewPostgres(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	if err := db.RunMigrations(cfg); err != nil {
		db.Close()
		return nil, nil, err
	}
	logger.Info("connected to database",
		slog.String("host", cfg.Host),
		slog.String("database", cfg.Database),
	)
	return repository.NewPostgresRepository(db.Pool()), db.Close, nil
}

// requireRepository opens the run records, failing when no database is
// configured instead of falling back to NopRepository.
func (a *app) requireRepository(ctx context.Context) (repository.Repository, func(), error) {
	if !a.cfg.Database.Enabled {
		return nil, nil, errDatabaseDisabled
	}
	return a.repos(ctx, a.cfg.Database, a.logger)
}

func openSchema(ctx context.Context, cfg config.DatabaseConfig) (schemaMigrator, error) {
	db, err := database.NewPostgres(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return db, nil
}
