package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/doITmagic/api-contract-mcp/internal/contract"
)

// CompareContractsTool diffs two contract artifacts
type CompareContractsTool struct {
	loader      *ContractLoader
	root        string
	versionsDir string
}

// NewCompareContractsTool creates a new compare tool. Relative paths are
// resolved against root, then versionsDir.
func NewCompareContractsTool(loader *ContractLoader, root, versionsDir string) *CompareContractsTool {
	return &CompareContractsTool{loader: loader, root: root, versionsDir: versionsDir}
}

// Name returns the tool name
func (t *CompareContractsTool) Name() string {
	return "compare_api_contracts"
}

// Description returns the tool description
func (t *CompareContractsTool) Description() string {
	return "Compare two API contract files and list added, removed and modified routes and methods. " +
		"contract_a is the older version (for example an archived file name); contract_b defaults to the current contract."
}

// CompareSummary counts changes by type
type CompareSummary struct {
	AddedRoutes    int `json:"added_routes"`
	RemovedRoutes  int `json:"removed_routes"`
	AddedMethods   int `json:"added_methods"`
	RemovedMethods int `json:"removed_methods"`
	ModifiedRoutes int `json:"modified_routes"`
	Total          int `json:"total"`
}

// CompareResult is the compare_api_contracts payload
type CompareResult struct {
	ContractA string            `json:"contract_a"`
	ContractB string            `json:"contract_b"`
	Summary   CompareSummary    `json:"summary"`
	Changes   []contract.Change `json:"changes"`
}

// Execute loads both artifacts and diffs them
func (t *CompareContractsTool) Execute(ctx context.Context, params map[string]interface{}) (string, error) {
	a := stringParam(params, "contract_a")
	if a == "" {
		return "", fmt.Errorf("contract_a parameter is required")
	}
	pathA := t.resolve(a)
	prev, err := contract.Load(pathA)
	if err != nil {
		return "", err
	}

	var next *contract.Contract
	pathB := t.loader.Path()
	if b := stringParam(params, "contract_b"); b != "" {
		pathB = t.resolve(b)
		next, err = contract.Load(pathB)
	} else {
		next, err = t.loader.Load()
	}
	if err != nil {
		return "", err
	}

	res := Compare(prev, next)
	res.ContractA, res.ContractB = pathA, pathB
	return toJSON(res)
}

// Compare builds the compare_api_contracts result
func Compare(prev, next *contract.Contract) CompareResult {
	changes := contract.Compare(prev, next)
	res := CompareResult{Changes: changes}
	if res.Changes == nil {
		res.Changes = []contract.Change{}
	}
	for _, c := range changes {
		switch c.Type {
		case contract.AddedRoute:
			res.Summary.AddedRoutes++
		case contract.RemovedRoute:
			res.Summary.RemovedRoutes++
		case contract.AddedMethod:
			res.Summary.AddedMethods++
		case contract.RemovedMethod:
			res.Summary.RemovedMethods++
		case contract.ModifiedRoute:
			res.Summary.ModifiedRoutes++
		}
	}
	res.Summary.Total = len(changes)
	return res
}

func (t *CompareContractsTool) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	candidate := filepath.Join(t.root, p)
	if _, err := os.Stat(candidate); err == nil || t.versionsDir == "" {
		return candidate
	}
	if archived := filepath.Join(t.versionsDir, p); fileExists(archived) {
		return archived
	}
	return candidate
}

func fileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
