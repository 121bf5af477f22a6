package tools

import (
	"context"
	"fmt"

	"github.com/doITmagic/api-contract-mcp/internal/contract"
)

// RouteLister reads the live (path, method) pairs a generation would cover
type RouteLister interface {
	LiveRoutes(ctx context.Context) ([]contract.RouteKey, error)
}

// ValidateContractTool diffs the live route table against the artifact
type ValidateContractTool struct {
	loader *ContractLoader
	routes RouteLister
}

// NewValidateContractTool creates a new validate tool
func NewValidateContractTool(loader *ContractLoader, routes RouteLister) *ValidateContractTool {
	return &ValidateContractTool{loader: loader, routes: routes}
}

// Name returns the tool name
func (t *ValidateContractTool) Name() string {
	return "validate_api_contract"
}

// Description returns the tool description
func (t *ValidateContractTool) Description() string {
	return "Check whether the generated API contract still matches the application's routes. " +
		"Reports routes and methods that are new (undocumented) or were removed since the contract was generated."
}

// ValidateSummary counts issues by type
type ValidateSummary struct {
	NewRoutes      int    `json:"new_routes"`
	RemovedRoutes  int    `json:"removed_routes"`
	NewMethods     int    `json:"new_methods"`
	RemovedMethods int    `json:"removed_methods"`
	Message        string `json:"message"`
}

// ValidateResult is the validate_api_contract payload
type ValidateResult struct {
	Valid   bool             `json:"valid"`
	Issues  []contract.Issue `json:"issues"`
	Summary ValidateSummary  `json:"summary"`
}

// Execute compares the live routes with the contract
func (t *ValidateContractTool) Execute(ctx context.Context, params map[string]interface{}) (string, error) {
	c, err := t.loader.Load()
	if err != nil {
		return "", err
	}
	live, err := t.routes.LiveRoutes(ctx)
	if err != nil {
		return "", err
	}
	return toJSON(Validate(c, live))
}

// Validate builds the validate_api_contract result
func Validate(c *contract.Contract, live []contract.RouteKey) ValidateResult {
	issues := contract.CheckRoutes(c, live)
	res := ValidateResult{Valid: len(issues) == 0, Issues: issues}
	if res.Issues == nil {
		res.Issues = []contract.Issue{}
	}
	for _, i := range issues {
		switch i.Type {
		case contract.IssueNewRoute:
			res.Summary.NewRoutes++
		case contract.IssueRemovedRoute:
			res.Summary.RemovedRoutes++
		case contract.IssueNewMethod:
			res.Summary.NewMethods++
		case contract.IssueRemovedMethod:
			res.Summary.RemovedMethods++
		}
	}
	if res.Valid {
		res.Summary.Message = "Contract matches the current routes"
	} else {
		res.Summary.Message = fmt.Sprintf("Contract is out of date: %d issue(s); run `contract generate`", len(issues))
	}
	return res
}
