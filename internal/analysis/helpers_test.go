package analysis

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/doITmagic/api-contract-mcp/internal/analyzers/php"
	"github.com/doITmagic/api-contract-mcp/internal/config"
)

// buildIndex writes files (relative path -> PHP source) and indexes them
func buildIndex(t *testing.T, files map[string]string) (*php.Index, string) {
	t.Helper()
	dir := t.TempDir()
	for rel, code := range files {
		path := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(code), 0644))
	}
	ix := php.NewIndex(0)
	warnings, err := ix.LoadPaths(dir)
	require.NoError(t, err)
	require.Empty(t, warnings)
	return ix, dir
}

func defaultNamespaces() config.NamespacesConfig {
	return config.DefaultConfig().Namespaces
}

type fakeFixtures struct {
	fixtures map[string]map[string]any
	failing  map[string]bool
	calls    int
}

func (f *fakeFixtures) Fixture(ctx context.Context, model string) (*Fixture, error) {
	f.calls++
	if f.failing[model] {
		return nil, errors.New("SQLSTATE: factory exploded")
	}
	attrs, ok := f.fixtures[model]
	if !ok {
		return nil, ErrModelNotFound
	}
	return &Fixture{Model: model, Attributes: attrs}, nil
}

// fakeRuntime serializes by copying the listed attributes
type fakeRuntime struct {
	fields      map[string][]string // class -> attributes it outputs
	collections map[string]bool
	calls       int
}

func (r *fakeRuntime) Exists(class string) bool {
	_, ok := r.fields[class]
	return ok
}

func (r *fakeRuntime) IsCollection(class string) bool {
	return r.collections[class] || strings.HasSuffix(class, "Collection")
}

func (r *fakeRuntime) ToArray(ctx context.Context, ref SerializerRef, fx *Fixture) (any, error) {
	r.calls++
	item := map[string]any{}
	for _, f := range r.fields[ref.Class] {
		item[f] = fx.Attributes[f]
	}
	if ref.Kind == SerializerCollection {
		return []any{item}, nil
	}
	return item, nil
}

type fakeModels struct {
	keyTypes map[string]string
}

func (m fakeModels) IsModel(fqcn string) bool {
	_, ok := m.keyTypes[fqcn]
	return ok
}

func (m fakeModels) KeyType(fqcn string) (string, error) {
	if kt := m.keyTypes[fqcn]; kt != "error" {
		return kt, nil
	}
	return "", errors.New("boom")
}
