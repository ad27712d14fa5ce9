package migration

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/Bidon15/university-deployer/internal/artifacts"
	"github.com/Bidon15/university-deployer/internal/config"
	"github.com/Bidon15/university-deployer/internal/deployer"
)

// Env is what a migration step runs against.
type Env struct {
	Network  config.Network
	Registry *artifacts.Registry
	Deployer deployer.Deployer
	Logger   *slog.Logger
}

func (e *Env) logger() *slog.Logger {
	if e.Logger == nil {
		return slog.Default()
	}
	return e.Logger
}

// Migration is one numbered deployment step.
type Migration interface {
	Number() int
	Contract() string
	Run(ctx context.Context, env *Env) (*deployer.Result, error)
}

// FactoryMigration deploys a contract whose constructor takes no arguments.
type FactoryMigration struct {
	number   int
	contract string
}

// NewFactoryMigration creates a step that deploys contract.
func NewFactoryMigration(number int, contract string) *FactoryMigration {
	return &FactoryMigration{number: number, contract: contract}
}

// Number implements Migration.
func (m *FactoryMigration) Number() int { return m.number }

// Contract implements Migration.
func (m *FactoryMigration) Contract() string { return m.contract }

// Run deploys the factory.
func (m *FactoryMigration) Run(ctx context.Context, env *Env) (*deployer.Result, error) {
	artifact, err := env.Registry.Get(m.contract)
	if err != nil {
		return nil, err
	}
	result, err := env.Deployer.Deploy(ctx, artifact)
	if err != nil {
		return nil, fmt.Errorf("deploy %s: %w", m.contract, err)
	}
	return result, nil
}

// UniversityMigration deploys University wired to the factories, tokens
// and ENS contracts of the network.
type UniversityMigration struct {
	number int
}

// NewUniversityMigration creates the University step.
func NewUniversityMigration(number int) *UniversityMigration {
	return &UniversityMigration{number: number}
}

// Number implements Migration.
func (m *UniversityMigration) Number() int { return m.number }

// Contract implements Migration.
func (m *UniversityMigration) Contract() string { return University }

// Run builds the constructor arguments and issues exactly one deployment.
func (m *UniversityMigration) Run(ctx context.Context, env *Env) (*deployer.Result, error) {
	params, err := BuildParameters(env.Network, env.Registry)
	if err != nil {
		return nil, err
	}
	artifact, err := env.Registry.Get(University)
	if err != nil {
		return nil, err
	}

	env.logger().Info("university parameters",
		slog.String("name", env.Network.UniversityName),
		slog.String("cut", params.Cut.Scaled().Dec()),
		slog.String("classroom_factory", params.ClassroomFactory.Hex()),
		slog.String("student_factory", params.StudentFactory.Hex()),
		slog.String("student_application_factory", params.StudentApplicationFactory.Hex()),
	)

	result, err := env.Deployer.Deploy(ctx, artifact, params.Args()...)
	if err != nil {
		return nil, fmt.Errorf("deploy %s: %w", University, err)
	}
	return result, nil
}

// Default returns the project's migration steps in order. Step 1 belongs
// to the framework's own bookkeeping contract and is not part of this set.
func Default() []Migration {
	return []Migration{
		NewFactoryMigration(2, ClassroomFactory),
		NewFactoryMigration(3, StudentFactory),
		NewFactoryMigration(4, StudentApplicationFactory),
		NewUniversityMigration(5),
	}
}
