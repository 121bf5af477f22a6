package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/doITmagic/api-contract-mcp/internal/contract"
)

// DescribeContractTool returns the contract entry for one request
type DescribeContractTool struct {
	loader *ContractLoader

	mu      sync.Mutex
	indexed *contract.Contract
	matcher *TemplateMatcher
}

// NewDescribeContractTool creates a new describe tool
func NewDescribeContractTool(loader *ContractLoader) *DescribeContractTool {
	return &DescribeContractTool{loader: loader}
}

// Name returns the tool name
func (t *DescribeContractTool) Name() string {
	return "describe_api_contract"
}

// Description returns the tool description
func (t *DescribeContractTool) Description() string {
	return "Describe one API endpoint: auth, path and query parameters, request and response schemas, rate limit and status codes. " +
		"Accepts either the route template (/api/v1/posts/{post}) or a concrete path (/api/v1/posts/123); " +
		"concrete paths are matched against the documented templates and the result carries matched_route."
}

// Execute resolves path and method to an entry
func (t *DescribeContractTool) Execute(ctx context.Context, params map[string]interface{}) (string, error) {
	rawPath := stringParam(params, "path")
	if rawPath == "" {
		return "", fmt.Errorf("path parameter is required")
	}
	method := strings.ToUpper(stringParam(params, "method"))
	if method == "" {
		method = "GET"
	}

	c, err := t.loader.Load()
	if err != nil {
		return "", err
	}

	path := requestPath(rawPath)
	if e, ok := c.Get(path, method); ok {
		return toJSON(e)
	}

	for _, tpl := range t.matcherFor(c).Match(path) {
		e, ok := c.Get(tpl, method)
		if !ok {
			continue
		}
		return withMatchedRoute(e, tpl)
	}
	return toJSON(map[string]any{"undocumented": true})
}

func (t *DescribeContractTool) matcherFor(c *contract.Contract) *TemplateMatcher {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.indexed != c {
		t.indexed, t.matcher = c, NewTemplateMatcher(c)
	}
	return t.matcher
}

// requestPath strips scheme, host and query string. Templates are kept as
// given since {param?} is not a query.
func requestPath(raw string) string {
	if strings.Contains(raw, "{") {
		return contract.NormalizePath(raw)
	}
	if u, err := url.Parse(raw); err == nil && u.Path != "" {
		raw = u.Path
	} else if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	return contract.NormalizePath(raw)
}

func withMatchedRoute(e *contract.Entry, tpl string) (string, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return "", err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return "", err
	}
	fields["matched_route"], _ = json.Marshal(tpl)
	return toJSON(fields)
}
