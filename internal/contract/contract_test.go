package contract

import (
	"encoding/json"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleEntry() *Entry {
	v1 := "v1"
	return &Entry{
		Auth:           Auth{Type: AuthBearer, Scheme: "bearer"},
		PathParameters: []PathParameter{{Name: "post", Type: "integer", Required: true}},
		RequestSchema:  map[string]FieldSchema{"title": {Type: "string", Required: true, Constraints: []string{"max:255"}}},
		ResponseSchema: &Schema{
			Type: "object",
			Properties: map[string]*Schema{
				"id":  {Type: "integer"},
				"url": {Type: "string"},
			},
			Example: map[string]any{"url": "https://example.com/a?b=1&c=2"},
		},
		APIVersion: &v1,
	}
}

func TestContract_OrderAndRoundTrip(t *testing.T) {
	c := New()
	c.Set("api/v1/posts/{post}", "get", sampleEntry())
	c.Set("/api/v1/posts", "POST", &Entry{})
	c.Set("/api/v1/posts/{post}", "DELETE", &Entry{})
	c.Set("/api/v1/posts", "GET", &Entry{})
	c.Metadata = &Metadata{GeneratedAt: "2024-01-01T00:00:00Z", SchemaVersion: SchemaVersion}

	assert.Equal(t, []string{"/api/v1/posts/{post}", "/api/v1/posts"}, c.Paths())
	assert.Equal(t, []string{"POST", "GET"}, c.Methods("/api/v1/posts"))
	assert.Equal(t, 4, c.Len())

	data, err := Encode(c)
	require.NoError(t, err)
	text := string(data)
	assert.Less(t, strings.Index(text, `"/api/v1/posts/{post}"`), strings.Index(text, `"/api/v1/posts":`))
	assert.Contains(t, text, "https://example.com/a?b=1&c=2", "slashes and ampersands stay unescaped")
	assert.Contains(t, text, `"_metadata"`)

	back := New()
	require.NoError(t, json.Unmarshal(data, back))
	assert.Equal(t, c.Paths(), back.Paths())
	assert.Equal(t, c.Methods("/api/v1/posts"), back.Methods("/api/v1/posts"))
	require.NotNil(t, back.Metadata)
	assert.Equal(t, "2024-01-01T00:00:00Z", back.Metadata.GeneratedAt)

	again, err := Encode(back)
	require.NoError(t, err)
	assert.Equal(t, text, string(again))
}

func TestEntry_AlwaysPresentMembers(t *testing.T) {
	data, err := json.Marshal(&Entry{})
	require.NoError(t, err)

	var m map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &m))
	assert.JSONEq(t, `{"type":"none"}`, string(m["auth"]))
	assert.JSONEq(t, `[]`, string(m["path_parameters"]))
	assert.JSONEq(t, `{}`, string(m["request_schema"]))
	assert.JSONEq(t, `{"undocumented":true}`, string(m["response_schema"]))
	assert.JSONEq(t, `[]`, string(m["custom_headers"]))
	assert.JSONEq(t, `null`, string(m["rate_limit"]))
	assert.JSONEq(t, `null`, string(m["api_version"]))
	assert.NotContains(t, m, "error")
	assert.NotContains(t, m, "middleware")

	field, err := json.Marshal(FieldSchema{Type: "string"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"string","required":false,"constraints":[]}`, string(field))
}

func TestEncode_NoHTMLEscaping(t *testing.T) {
	c := New()
	c.Set("/api/search", "GET", &Entry{
		Description: "Search posts & comments",
		QueryParameters: map[string]FieldSchema{
			"q": {Type: "string", Constraints: []string{"regex:/^<[a-z]+>$/"}},
		},
		ResponseSchema: &Schema{
			Type:    "object",
			Example: map[string]any{"links": []any{map[string]any{"label": "&laquo; Previous"}}},
		},
	})

	data, err := Encode(c)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "Search posts & comments")
	assert.Contains(t, text, "regex:/^<[a-z]+>$/")
	assert.Contains(t, text, "&laquo; Previous")
	assert.NotContains(t, text, `\u00`)
}

func TestWriteLoadArchive(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "api-contracts", "api.json")

	c := New()
	c.Set("/api/ping", "GET", &Entry{})
	require.NoError(t, Write(out, c))

	loaded, err := Load(out)
	require.NoError(t, err)
	assert.Equal(t, 1, loaded.Len())

	versions := filepath.Join(dir, "api-contracts", "versions")
	when := time.Date(2024, 5, 1, 13, 45, 1, 0, time.UTC)
	archived, err := Archive(out, versions, when)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(versions, "api-2024-05-01-134501.json"), archived)
	_, err = os.Stat(archived)
	require.NoError(t, err)

	none, err := Archive(filepath.Join(dir, "missing.json"), versions, when)
	require.NoError(t, err)
	assert.Empty(t, none)

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.ErrorIs(t, err, fs.ErrNotExist)
}

func TestGitRevision(t *testing.T) {
	dir := t.TempDir()
	assert.Empty(t, GitRevision(dir))

	git := filepath.Join(dir, ".git")
	require.NoError(t, os.MkdirAll(filepath.Join(git, "refs", "heads"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(git, "HEAD"), []byte("ref: refs/heads/main\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(git, "packed-refs"),
		[]byte("# pack-refs with: peeled\nabc123 refs/heads/main\n"), 0644))
	assert.Equal(t, "abc123", GitRevision(dir))

	require.NoError(t, os.WriteFile(filepath.Join(git, "refs", "heads", "main"), []byte("def456\n"), 0644))
	assert.Equal(t, "def456", GitRevision(dir))
}

func TestCompare(t *testing.T) {
	prev := New()
	prev.Set("/api/posts", "GET", &Entry{})
	prev.Set("/api/posts", "DELETE", &Entry{})
	prev.Set("/api/old", "GET", &Entry{})
	prev.Set("/api/users/{user}", "GET", &Entry{Auth: Auth{Type: AuthNone}})

	next := New()
	next.Set("/api/posts", "GET", &Entry{})
	next.Set("/api/posts", "POST", &Entry{})
	next.Set("/api/users/{user}", "GET", &Entry{Auth: Auth{Type: AuthBearer}})
	next.Set("/api/new", "GET", &Entry{})

	changes := Compare(prev, next)
	types := map[string]Change{}
	for _, ch := range changes {
		types[ch.Type+" "+ch.Path+" "+ch.Method] = ch
	}
	assert.Len(t, changes, 5)
	assert.Contains(t, types, "added_method /api/posts POST")
	assert.Contains(t, types, "removed_method /api/posts DELETE")
	assert.Contains(t, types, "added_route /api/new ")
	assert.Contains(t, types, "removed_route /api/old ")
	assert.Equal(t, []string{"auth"}, types["modified_route /api/users/{user} GET"].Fields)
}

func TestCheckRoutes(t *testing.T) {
	c := New()
	c.Set("/api/posts", "GET", &Entry{})
	c.Set("/api/posts", "DELETE", &Entry{})
	c.Set("/api/gone", "GET", &Entry{})

	issues := CheckRoutes(c, []RouteKey{
		{Path: "api/posts", Method: "GET"},
		{Path: "api/posts", Method: "POST"},
		{Path: "api/fresh", Method: "GET"},
	})

	var got []string
	for _, is := range issues {
		got = append(got, is.Type+" "+is.Path+" "+is.Method)
	}
	assert.Equal(t, []string{
		"new_method /api/posts POST",
		"removed_method /api/posts DELETE",
		"new_route /api/fresh ",
		"removed_route /api/gone ",
	}, got)
}
