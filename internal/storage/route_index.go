package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/doITmagic/api-contract-mcp/internal/config"
	"github.com/doITmagic/api-contract-mcp/internal/contract"
	"github.com/doITmagic/api-contract-mcp/internal/llm"
)

// VectorStore is the part of QdrantClient the route index needs
type VectorStore interface {
	CreateCollection(ctx context.Context, name string, dimension int) error
	Upsert(ctx context.Context, id string, vector []float64, payload map[string]interface{}) error
	Search(ctx context.Context, vector []float64, limit int, match map[string]string) ([]SearchResult, error)
	DeleteByFilter(ctx context.Context, key, value string) error
}

// RouteIndex stores one embedded document per contract entry
type RouteIndex struct {
	store      VectorStore
	embedder   llm.Embedder
	collection string
	project    string
}

// RouteHit is one semantic search result
type RouteHit struct {
	Path        string  `json:"path"`
	Method      string  `json:"method"`
	Score       float64 `json:"score"`
	RouteName   string  `json:"route_name,omitempty"`
	Description string  `json:"description,omitempty"`
	APIVersion  string  `json:"api_version,omitempty"`
	Auth        string  `json:"auth,omitempty"`
}

// NewRouteIndex creates an index scoped to project (the project root)
func NewRouteIndex(store VectorStore, embedder llm.Embedder, collection, project string) *RouteIndex {
	return &RouteIndex{store: store, embedder: embedder, collection: collection, project: project}
}

// OpenRouteIndex connects to Qdrant and Ollama as configured. The returned
// client must be closed by the caller.
func OpenRouteIndex(cfg config.SemanticConfig, project string) (*RouteIndex, *QdrantClient, error) {
	client, err := NewQdrantClient(QdrantConfig{
		URL:        cfg.QdrantURL,
		APIKey:     cfg.QdrantAPIKey,
		Collection: cfg.Collection,
	})
	if err != nil {
		return nil, nil, err
	}
	embedder, err := llm.NewEmbedder(cfg)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return NewRouteIndex(client, embedder, cfg.Collection, project), client, nil
}

// PointID is the stable point id of (path, method) within project
func PointID(project, path, method string) string {
	key := project + "#" + strings.ToUpper(method) + " " + contract.NormalizePath(path)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}

// Index replaces the project's points with the entries of c
func (ix *RouteIndex) Index(ctx context.Context, c *contract.Contract) (int, error) {
	type doc struct {
		path, method string
		e            *contract.Entry
	}
	var docs []doc
	c.Each(func(path, method string, e *contract.Entry) {
		docs = append(docs, doc{path, method, e})
	})

	indexed := 0
	for i, d := range docs {
		if err := ctx.Err(); err != nil {
			return indexed, err
		}
		vector, err := ix.embedder.Embed(ctx, RouteDocument(d.path, d.method, d.e))
		if err != nil {
			return indexed, fmt.Errorf("failed to embed %s %s: %w", d.method, d.path, err)
		}
		if i == 0 {
			if err := ix.store.CreateCollection(ctx, ix.collection, len(vector)); err != nil {
				return 0, err
			}
			if err := ix.store.DeleteByFilter(ctx, "project", ix.project); err != nil {
				return 0, err
			}
		}
		if err := ix.store.Upsert(ctx, PointID(ix.project, d.path, d.method), vector, ix.payload(d.path, d.method, d.e)); err != nil {
			return indexed, err
		}
		indexed++
	}
	return indexed, nil
}

// Search embeds query and returns the closest routes. method may be empty.
func (ix *RouteIndex) Search(ctx context.Context, query, method string, limit int) ([]RouteHit, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("query is required")
	}
	vector, err := ix.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	match := map[string]string{"project": ix.project}
	if method != "" {
		match["method"] = strings.ToUpper(method)
	}
	results, err := ix.store.Search(ctx, vector, limit, match)
	if err != nil {
		return nil, err
	}

	hits := make([]RouteHit, 0, len(results))
	for _, r := range results {
		hits = append(hits, RouteHit{
			Path:        payloadString(r.Payload, "path"),
			Method:      payloadString(r.Payload, "method"),
			Score:       r.Score,
			RouteName:   payloadString(r.Payload, "route_name"),
			Description: payloadString(r.Payload, "description"),
			APIVersion:  payloadString(r.Payload, "api_version"),
			Auth:        payloadString(r.Payload, "auth"),
		})
	}
	return hits, nil
}

func (ix *RouteIndex) payload(path, method string, e *contract.Entry) map[string]interface{} {
	p := map[string]interface{}{
		"project": ix.project,
		"path":    path,
		"method":  method,
		"auth":    authType(e),
	}
	if e.RouteName != "" {
		p["route_name"] = e.RouteName
	}
	if e.Description != "" {
		p["description"] = e.Description
	}
	if e.APIVersion != nil {
		p["api_version"] = *e.APIVersion
	}
	return p
}

// RouteDocument is the text embedded for one entry
func RouteDocument(path, method string, e *contract.Entry) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", method, path)
	if e.Description != "" {
		fmt.Fprintf(&b, "%s\n", e.Description)
	}
	if e.RouteName != "" {
		fmt.Fprintf(&b, "route name: %s\n", e.RouteName)
	}
	fmt.Fprintf(&b, "auth: %s\n", authType(e))
	if fields := sortedKeys(e.RequestSchema); len(fields) > 0 {
		fmt.Fprintf(&b, "request fields: %s\n", strings.Join(fields, ", "))
	}
	if fields := sortedKeys(e.QueryParameters); len(fields) > 0 {
		fmt.Fprintf(&b, "query parameters: %s\n", strings.Join(fields, ", "))
	}
	if s := e.ResponseSchema; !s.IsUndocumented() {
		if s.Type == "array" && s.Items != nil {
			s = s.Items
		}
		var fields []string
		for name := range s.Properties {
			fields = append(fields, name)
		}
		sort.Strings(fields)
		if len(fields) > 0 {
			fmt.Fprintf(&b, "response fields: %s\n", strings.Join(fields, ", "))
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func authType(e *contract.Entry) string {
	if e.Auth.Type == "" {
		return contract.AuthNone
	}
	return e.Auth.Type
}

func sortedKeys(m map[string]contract.FieldSchema) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func payloadString(p map[string]interface{}, key string) string {
	if v, ok := p[key].(string); ok {
		return v
	}
	return ""
}
