package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/doITmagic/api-contract-mcp/internal/contract"
)

// Paging bounds for list_api_contracts
const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// ListContractsTool pages through the documented endpoints
type ListContractsTool struct {
	loader *ContractLoader
}

// NewListContractsTool creates a new list tool
func NewListContractsTool(loader *ContractLoader) *ListContractsTool {
	return &ListContractsTool{loader: loader}
}

// Name returns the tool name
func (t *ListContractsTool) Name() string {
	return "list_api_contracts"
}

// Description returns the tool description
func (t *ListContractsTool) Description() string {
	return "List documented API endpoints with auth type and API version. Filter by HTTP method, API version or a search term " +
		"(matched against paths, parameter names, auth type, rate limit names and request/response field names). " +
		"Paginated: use page or offset with limit (max 200)."
}

// RouteSummary is one row of the list result
type RouteSummary struct {
	Path        string `json:"path"`
	Method      string `json:"method"`
	Auth        string `json:"auth"`
	APIVersion  string `json:"api_version,omitempty"`
	RouteName   string `json:"route_name,omitempty"`
	Description string `json:"description,omitempty"`
	RateLimit   string `json:"rate_limit,omitempty"`
	Deprecated  bool   `json:"deprecated,omitempty"`
	Error       string `json:"error,omitempty"`
}

// ListResult is the list_api_contracts payload
type ListResult struct {
	Total       int                `json:"total"`
	Limit       int                `json:"limit"`
	Offset      int                `json:"offset"`
	Page        int                `json:"page"`
	TotalPages  int                `json:"total_pages"`
	HasNext     bool               `json:"has_next"`
	HasPrevious bool               `json:"has_previous"`
	Routes      []RouteSummary     `json:"routes"`
	Metadata    *contract.Metadata `json:"metadata,omitempty"`
}

// Execute filters and pages the contract
func (t *ListContractsTool) Execute(ctx context.Context, params map[string]interface{}) (string, error) {
	c, err := t.loader.Load()
	if err != nil {
		return "", err
	}
	res, err := List(c, params)
	if err != nil {
		return "", err
	}
	return toJSON(res)
}

// List applies the list_api_contracts filters and paging to c
func List(c *contract.Contract, params map[string]interface{}) (*ListResult, error) {
	limit, ok, err := intParam(params, "limit")
	if err != nil {
		return nil, err
	}
	if !ok || limit < 1 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	offset := 0
	if page, ok, err := intParam(params, "page"); err != nil {
		return nil, err
	} else if ok {
		if page < 1 {
			return nil, fmt.Errorf("page must be 1 or greater")
		}
		offset = (page - 1) * limit
	} else if off, ok, err := intParam(params, "offset"); err != nil {
		return nil, err
	} else if ok {
		if off < 0 {
			return nil, fmt.Errorf("offset must not be negative")
		}
		offset = off
	}

	method := strings.ToUpper(stringParam(params, "method"))
	version := strings.ToLower(stringParam(params, "version"))
	search := strings.ToLower(stringParam(params, "search"))

	var matched []RouteSummary
	c.Each(func(path, m string, e *contract.Entry) {
		if method != "" && m != method {
			return
		}
		if version != "" && (e.APIVersion == nil || strings.ToLower(*e.APIVersion) != version) {
			return
		}
		if search != "" && !matchesSearch(path, e, search) {
			return
		}
		matched = append(matched, summarize(path, m, e))
	})

	res := &ListResult{
		Total:  len(matched),
		Limit:  limit,
		Offset: offset,
		Page:   offset/limit + 1,
		Routes: []RouteSummary{},
	}
	res.TotalPages = (res.Total + limit - 1) / limit
	if offset < len(matched) {
		end := offset + limit
		if end > len(matched) {
			end = len(matched)
		}
		res.Routes = matched[offset:end]
	}
	res.HasNext = offset+limit < res.Total
	res.HasPrevious = offset > 0
	if boolParam(params, "include_metadata") {
		res.Metadata = c.Metadata
	}
	return res, nil
}

func summarize(path, method string, e *contract.Entry) RouteSummary {
	s := RouteSummary{
		Path:        path,
		Method:      method,
		Auth:        e.Auth.Type,
		RouteName:   e.RouteName,
		Description: e.Description,
		Deprecated:  e.Deprecated,
	}
	if s.Auth == "" {
		s.Auth = contract.AuthNone
	}
	if e.APIVersion != nil {
		s.APIVersion = *e.APIVersion
	}
	if e.RateLimit != nil {
		s.RateLimit = e.RateLimit.Description
	}
	if e.Error != nil {
		s.Error = e.Error.Code
	}
	return s
}

// matchesSearch checks term (already lower-cased) against the searchable
// facts of an entry.
func matchesSearch(path string, e *contract.Entry, term string) bool {
	has := func(s string) bool { return s != "" && strings.Contains(strings.ToLower(s), term) }

	if has(path) || has(e.Auth.Type) {
		return true
	}
	if e.APIVersion != nil && has(*e.APIVersion) {
		return true
	}
	if e.RateLimit != nil && has(e.RateLimit.Name) {
		return true
	}
	for _, p := range e.PathParameters {
		if has(p.Name) {
			return true
		}
	}
	for name := range e.RequestSchema {
		if has(name) {
			return true
		}
	}
	for name := range e.QueryParameters {
		if has(name) {
			return true
		}
	}
	return schemaHasField(e.ResponseSchema, has)
}

func schemaHasField(s *contract.Schema, has func(string) bool) bool {
	if s == nil {
		return false
	}
	for name, prop := range s.Properties {
		if has(name) || schemaHasField(prop, has) {
			return true
		}
	}
	return schemaHasField(s.Items, has)
}
