package tools

import (
	"context"
	"fmt"

	"github.com/doITmagic/api-contract-mcp/internal/storage"
)

// RouteSearcher runs semantic queries over the indexed contract
type RouteSearcher interface {
	Search(ctx context.Context, query, method string, limit int) ([]storage.RouteHit, error)
}

// SearchRoutesTool finds endpoints by meaning rather than path
type SearchRoutesTool struct {
	index RouteSearcher
}

// NewSearchRoutesTool creates a new search tool
func NewSearchRoutesTool(index RouteSearcher) *SearchRoutesTool {
	return &SearchRoutesTool{index: index}
}

// Name returns the tool name
func (t *SearchRoutesTool) Name() string {
	return "search_contract_routes"
}

// Description returns the tool description
func (t *SearchRoutesTool) Description() string {
	return "Semantic search over the documented endpoints (e.g. 'upload a user avatar', 'cancel subscription'). " +
		"Use when you do not know the path; follow up with describe_api_contract for the full entry. " +
		"Requires the route index built by `contract index`."
}

// Execute embeds the query and returns the closest routes
func (t *SearchRoutesTool) Execute(ctx context.Context, params map[string]interface{}) (string, error) {
	query := stringParam(params, "query")
	if query == "" {
		return "", fmt.Errorf("query parameter is required")
	}
	limit, ok, err := intParam(params, "limit")
	if err != nil {
		return "", err
	}
	if !ok || limit < 1 {
		limit = 10
	}
	if limit > 50 {
		limit = 50
	}

	hits, err := t.index.Search(ctx, query, stringParam(params, "method"), limit)
	if err != nil {
		return "", fmt.Errorf("route search failed: %w", err)
	}
	if hits == nil {
		hits = []storage.RouteHit{}
	}
	return toJSON(map[string]any{"query": query, "results": hits})
}
