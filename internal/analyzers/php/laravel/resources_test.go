package laravel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doITmagic/api-contract-mcp/internal/analysis"
)

func newResourceRuntime(t *testing.T) (*ResourceRuntime, *FixtureProvider) {
	t.Helper()
	ix, _ := buildIndex(t, sampleApp)
	fixtures := NewFixtureProvider(ix, NewEloquentAnalyzer(ix, `App\Models`), "", nil)
	return NewResourceRuntime(ix, fixtures, nil), fixtures
}

func fixture(t *testing.T, p *FixtureProvider, model string) *analysis.Fixture {
	t.Helper()
	fx, err := p.Fixture(context.Background(), model)
	require.NoError(t, err)
	return fx
}

func TestResourceRuntime_Exists(t *testing.T) {
	rt, _ := newResourceRuntime(t)

	assert.True(t, rt.Exists(`App\Http\Resources\UserResource`))
	assert.True(t, rt.Exists(`App\Http\Resources\PostCollection`))
	assert.False(t, rt.Exists(`App\Http\Resources\CommentResource`))
	assert.False(t, rt.Exists(`App\Models\User`))

	assert.True(t, rt.IsCollection(`App\Http\Resources\PostCollection`))
	assert.False(t, rt.IsCollection(`App\Http\Resources\PostResource`))
}

func TestResourceRuntime_Single(t *testing.T) {
	rt, fixtures := newResourceRuntime(t)
	ref := analysis.SerializerRef{Kind: analysis.SerializerSingle, Class: `App\Http\Resources\UserResource`}

	out, err := rt.ToArray(context.Background(), ref, fixture(t, fixtures, "User"))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"id":         1,
		"name":       "Jane Doe",
		"email":      "jane.doe@example.com",
		"is_admin":   false,
		"created_at": ExampleTimestamp,
		"role":       "member",
	}, out, "unloaded relations are omitted and mergeWhen is spliced")
}

func TestResourceRuntime_NestedResources(t *testing.T) {
	rt, fixtures := newResourceRuntime(t)
	ref := analysis.SerializerRef{Kind: analysis.SerializerSingle, Class: `App\Http\Resources\PostResource`}

	out, err := rt.ToArray(context.Background(), ref, fixture(t, fixtures, "Post"))
	require.NoError(t, err)

	post, ok := out.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 1, post["id"])
	assert.Equal(t, 12, post["views"])
	assert.NotContains(t, post, "author", "whenLoaded on a missing relation")
	assert.NotContains(t, post, "published_at", "whenNotNull on null")
	assert.Equal(t, map[string]any{"self": "http://localhost"}, post["links"])

	writer, ok := post["writer"].(map[string]any)
	require.True(t, ok, "nested resource without a loaded relation uses a fixture")
	assert.Equal(t, "Jane Doe", writer["name"])
}

func TestResourceRuntime_Collection(t *testing.T) {
	rt, fixtures := newResourceRuntime(t)
	ctx := context.Background()

	ref := analysis.SerializerRef{Kind: analysis.SerializerCollection, Class: `App\Http\Resources\PostCollection`}
	out, err := rt.ToArray(ctx, ref, fixture(t, fixtures, "Post"))
	require.NoError(t, err)

	payload, ok := out.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, map[string]any{"total": 1}, payload["meta"])
	items, ok := payload["data"].([]any)
	require.True(t, ok)
	require.Len(t, items, 1)
	assert.Equal(t, "Lorem ipsum dolor sit amet.", items[0].(map[string]any)["title"], "items use PostResource")

	// UserResource::collection($users)
	ref = analysis.SerializerRef{Kind: analysis.SerializerCollection, Class: `App\Http\Resources\UserResource`}
	out, err = rt.ToArray(ctx, ref, fixture(t, fixtures, "User"))
	require.NoError(t, err)
	list, ok := out.([]any)
	require.True(t, ok)
	require.Len(t, list, 1)
	assert.Equal(t, "member", list[0].(map[string]any)["role"])
}

func TestResourceRuntime_DefaultToArray(t *testing.T) {
	rt, _ := newResourceRuntime(t)
	fx := &analysis.Fixture{Model: "Order", Attributes: map[string]any{"id": ExampleUUID, "total": 10}}

	ref := analysis.SerializerRef{Kind: analysis.SerializerSingle, Class: `App\Http\Resources\OrderResource`}
	out, err := rt.ToArray(context.Background(), ref, fx)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": ExampleUUID, "total": 10}, out)
}

func TestResourceRuntime_NonArrayResult(t *testing.T) {
	rt, _ := newResourceRuntime(t)
	fx := &analysis.Fixture{Model: "Broken", Attributes: map[string]any{"id": 1}}

	ref := analysis.SerializerRef{Kind: analysis.SerializerSingle, Class: `App\Http\Resources\BrokenResource`}
	_, err := rt.ToArray(context.Background(), ref, fx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BrokenResource::toArray()")
}

// The runtime plugs into the synthesizer through analysis.SerializerRuntime
func TestResourceRuntime_WithSynthesizer(t *testing.T) {
	ix, _ := buildIndex(t, sampleApp)
	fixtures := NewFixtureProvider(ix, NewEloquentAnalyzer(ix, `App\Models`), "", nil)
	rt := NewResourceRuntime(ix, fixtures, nil)
	ns := analysis.NewSchemaSynthesizer(ix, rt, fixtures, nil, defaultNamespaces(), nil)

	schema, err := ns.Resolve(context.Background(), analysis.SerializerRef{}, "/api/users/{user}")
	require.NoError(t, err)
	require.False(t, schema.IsUndocumented())
	assert.Equal(t, "object", schema.Type)
	assert.Equal(t, "string", schema.Properties["email"].Type)

	schema, err = ns.Synthesize(context.Background(), analysis.SerializerRef{Kind: analysis.SerializerSingle, Class: `App\Http\Resources\OrderResource`})
	require.NoError(t, err)
	assert.True(t, schema.IsUndocumented(), "Order has no factory")
}
