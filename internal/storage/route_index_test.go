package storage

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doITmagic/api-contract-mcp/internal/contract"
)

type fakeStore struct {
	created   map[string]int
	deleted   []string
	points    map[string]map[string]interface{}
	lastMatch map[string]string
	results   []SearchResult
}

func newFakeStore() *fakeStore {
	return &fakeStore{created: map[string]int{}, points: map[string]map[string]interface{}{}}
}

func (f *fakeStore) CreateCollection(_ context.Context, name string, dimension int) error {
	f.created[name] = dimension
	return nil
}

func (f *fakeStore) Upsert(_ context.Context, id string, _ []float64, payload map[string]interface{}) error {
	f.points[id] = payload
	return nil
}

func (f *fakeStore) Search(_ context.Context, _ []float64, _ int, match map[string]string) ([]SearchResult, error) {
	f.lastMatch = match
	return f.results, nil
}

func (f *fakeStore) DeleteByFilter(_ context.Context, key, value string) error {
	f.deleted = append(f.deleted, key+"="+value)
	return nil
}

type wordEmbedder struct{ texts []string }

func (w *wordEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	w.texts = append(w.texts, text)
	return []float64{float64(len(strings.Fields(text))), 1, 0}, nil
}

func (w *wordEmbedder) Name() string { return "words" }

func sampleContract() *contract.Contract {
	v1 := "v1"
	c := contract.New()
	c.Set("/api/v1/posts", "GET", &contract.Entry{
		Description:     "List posts.",
		RouteName:       "posts.index",
		Auth:            contract.Auth{Type: contract.AuthBearer},
		APIVersion:      &v1,
		QueryParameters: map[string]contract.FieldSchema{"page": {Type: "integer"}},
		ResponseSchema: &contract.Schema{Type: "array", Items: &contract.Schema{Type: "object", Properties: map[string]*contract.Schema{
			"title": {Type: "string"}, "id": {Type: "integer"},
		}}},
	})
	c.Set("/api/v1/posts", "POST", &contract.Entry{
		RequestSchema:  map[string]contract.FieldSchema{"title": {Type: "string", Required: true}},
		ResponseSchema: contract.Undocumented(),
	})
	return c
}

func TestPointID_Stable(t *testing.T) {
	a := PointID("/srv/app", "/api/v1/posts/", "get")
	assert.Equal(t, a, PointID("/srv/app", "api/v1/posts", "GET"))
	assert.NotEqual(t, a, PointID("/srv/app", "/api/v1/posts", "POST"))
	assert.NotEqual(t, a, PointID("/srv/other", "/api/v1/posts", "GET"))
	assert.Len(t, a, 36)
}

func TestRouteDocument(t *testing.T) {
	c := sampleContract()
	e, _ := c.Get("/api/v1/posts", "GET")
	doc := RouteDocument("/api/v1/posts", "GET", e)

	assert.True(t, strings.HasPrefix(doc, "GET /api/v1/posts\nList posts.\n"))
	assert.Contains(t, doc, "route name: posts.index")
	assert.Contains(t, doc, "auth: bearer")
	assert.Contains(t, doc, "query parameters: page")
	assert.Contains(t, doc, "response fields: id, title")

	e, _ = c.Get("/api/v1/posts", "POST")
	doc = RouteDocument("/api/v1/posts", "POST", e)
	assert.Contains(t, doc, "auth: none")
	assert.Contains(t, doc, "request fields: title")
	assert.NotContains(t, doc, "response fields")
}

func TestRouteIndex_Index(t *testing.T) {
	store := newFakeStore()
	emb := &wordEmbedder{}
	ix := NewRouteIndex(store, emb, "api-contracts", "/srv/app")

	n, err := ix.Index(context.Background(), sampleContract())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, 3, store.created["api-contracts"])
	assert.Equal(t, []string{"project=/srv/app"}, store.deleted)
	require.Len(t, store.points, 2)

	p := store.points[PointID("/srv/app", "/api/v1/posts", "GET")]
	require.NotNil(t, p)
	assert.Equal(t, "posts.index", p["route_name"])
	assert.Equal(t, "v1", p["api_version"])
	assert.Equal(t, "bearer", p["auth"])
	assert.Equal(t, "/srv/app", p["project"])

	n, err = ix.Index(context.Background(), contract.New())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestRouteIndex_Search(t *testing.T) {
	store := newFakeStore()
	store.results = []SearchResult{{ID: "x", Score: 0.8, Payload: map[string]interface{}{
		"path": "/api/v1/posts", "method": "GET", "route_name": "posts.index", "auth": "bearer",
	}}}
	ix := NewRouteIndex(store, &wordEmbedder{}, "api-contracts", "/srv/app")

	hits, err := ix.Search(context.Background(), "list blog posts", "get", 5)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, RouteHit{Path: "/api/v1/posts", Method: "GET", Score: 0.8, RouteName: "posts.index", Auth: "bearer"}, hits[0])
	assert.Equal(t, map[string]string{"project": "/srv/app", "method": "GET"}, store.lastMatch)

	_, err = ix.Search(context.Background(), "  ", "", 5)
	assert.Error(t, err)
}
