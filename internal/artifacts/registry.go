package artifacts

import (
	"archive/tar"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/klauspost/compress/zstd"
)

var (
	// ErrArtifactNotFound is returned when no artifact has the requested name.
	ErrArtifactNotFound = errors.New("artifact not found")
	// ErrNotDeployed is returned when an artifact has no address on the chain.
	ErrNotDeployed = errors.New("artifact not deployed")
)

// Reference is a typed handle to a contract that an earlier migration
// step must have deployed.
type Reference struct {
	Name string
}

// Ref returns a Reference to the named contract.
func Ref(name string) Reference {
	return Reference{Name: name}
}

func (r Reference) String() string {
	return r.Name
}

// Registry holds contract artifacts by name.
// Safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	dir       string
	artifacts map[string]*ContractArtifact
	logger    *slog.Logger
}

// NewRegistry creates an empty registry. dir is where Save writes; it may
// be empty for registries that are never saved.
func NewRegistry(dir string, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		dir:       dir,
		artifacts: make(map[string]*ContractArtifact),
		logger:    logger,
	}
}

// LoadDir reads every *.json artifact in dir into a new registry.
func LoadDir(dir string, logger *slog.Logger) (*Registry, error) {
	r := NewRegistry(dir, logger)

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read artifacts dir: %w", err)
	}

	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read artifact %s: %w", e.Name(), err)
		}
		a, err := ParseArtifact(data)
		if err != nil {
			return nil, fmt.Errorf("artifact %s: %w", e.Name(), err)
		}
		r.Add(a)
	}

	r.logger.Debug("loaded artifacts",
		slog.String("dir", dir),
		slog.Int("count", r.Len()),
	)
	return r, nil
}

// LoadBundle reads artifacts from a zstd-compressed tar archive. Saving is
// disabled unless saveDir is set.
func LoadBundle(path, saveDir string, logger *slog.Logger) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bundle: %w", err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("create zstd reader: %w", err)
	}
	defer zr.Close()

	r := NewRegistry(saveDir, logger)
	tr := tar.NewReader(zr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read tar header: %w", err)
		}
		if header.Typeflag != tar.TypeReg || filepath.Ext(header.Name) != ".json" {
			continue
		}

		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", header.Name, err)
		}
		a, err := ParseArtifact(data)
		if err != nil {
			return nil, fmt.Errorf("artifact %s: %w", header.Name, err)
		}
		r.Add(a)
	}

	r.logger.Debug("loaded artifact bundle",
		slog.String("bundle", path),
		slog.Int("count", r.Len()),
	)
	return r, nil
}

// Add stores a, replacing any artifact with the same name.
func (r *Registry) Add(a *ContractArtifact) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.artifacts[a.ContractName] = a
}

// Len returns the number of artifacts.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.artifacts)
}

// Names returns artifact names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.artifacts))
	for name := range r.artifacts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns the artifact called name.
func (r *Registry) Get(name string) (*ContractArtifact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.artifacts[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrArtifactNotFound, name)
	}
	return a, nil
}

// Resolve returns the address ref was deployed at on chainID. A missing or
// zero address is ErrNotDeployed; no default is substituted.
func (r *Registry) Resolve(ref Reference, chainID int64) (common.Address, error) {
	a, err := r.Get(ref.Name)
	if err != nil {
		return common.Address{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	addr, ok := a.DeployedAt(chainID)
	if !ok {
		return common.Address{}, fmt.Errorf("%w: %s on chain %d", ErrNotDeployed, ref.Name, chainID)
	}
	return addr, nil
}

// Record stores the deployed address of name on chainID.
func (r *Registry) Record(name string, chainID int64, addr common.Address, txHash common.Hash) error {
	a, err := r.Get(name)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if a.Networks == nil {
		a.Networks = make(map[string]NetworkDeployment)
	}
	a.Networks[networkKey(chainID)] = NetworkDeployment{
		Address:         addr.Hex(),
		TransactionHash: txHash.Hex(),
	}
	a.UpdatedAt = time.Now().UTC().Format(time.RFC3339)
	return nil
}

// Save writes the named artifact back to the registry directory.
func (r *Registry) Save(name string) error {
	if r.dir == "" {
		return fmt.Errorf("registry has no artifacts dir")
	}
	a, err := r.Get(name)
	if err != nil {
		return err
	}

	r.mu.RLock()
	data, err := json.MarshalIndent(a, "", "  ")
	r.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("marshal artifact %s: %w", name, err)
	}

	if err := os.MkdirAll(r.dir, 0755); err != nil {
		return fmt.Errorf("create artifacts dir: %w", err)
	}
	path := filepath.Join(r.dir, artifactFileName(name))
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write artifact %s: %w", name, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace artifact %s: %w", name, err)
	}

	r.logger.Debug("saved artifact", slog.String("path", path))
	return nil
}

func artifactFileName(name string) string {
	return strings.ReplaceAll(name, string(os.PathSeparator), "_") + ".json"
}
