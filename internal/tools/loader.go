package tools

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/doITmagic/api-contract-mcp/internal/contract"
)

// ErrNoContract is returned when the artifact has not been generated yet
var ErrNoContract = errors.New("no API contract found")

// ContractLoader reads the artifact and keeps it until the file changes
type ContractLoader struct {
	path string

	mu      sync.Mutex
	cached  *contract.Contract
	modTime time.Time
	size    int64
}

// NewContractLoader creates a loader for the artifact at path
func NewContractLoader(path string) *ContractLoader {
	return &ContractLoader{path: path}
}

// Path returns the artifact location
func (l *ContractLoader) Path() string {
	return l.path
}

// Load returns the current contract, re-reading the file when its size or
// modification time changed since the last call.
func (l *ContractLoader) Load() (*contract.Contract, error) {
	info, err := os.Stat(l.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w at %s; run `contract generate` first", ErrNoContract, l.path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat contract: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.cached != nil && info.ModTime().Equal(l.modTime) && info.Size() == l.size {
		return l.cached, nil
	}
	c, err := contract.Load(l.path)
	if err != nil {
		return nil, err
	}
	l.cached, l.modTime, l.size = c, info.ModTime(), info.Size()
	return c, nil
}
