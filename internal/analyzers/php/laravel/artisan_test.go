package laravel

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doITmagic/api-contract-mcp/internal/analysis"
	"github.com/doITmagic/api-contract-mcp/internal/config"
)

const routeListJSON = `[
  {"domain": null, "method": "GET|HEAD", "uri": "api/users", "name": "users.index",
   "action": "App\\Http\\Controllers\\UserController@index", "middleware": ["api", "auth:sanctum"]},
  {"domain": null, "method": "POST", "uri": "api/invoke", "name": null,
   "action": "App\\Http\\Controllers\\InvokeController", "middleware": "api\nthrottle:10,1"},
  {"domain": null, "method": "GET|HEAD", "uri": "/", "name": null, "action": "Closure", "middleware": []},
  {"domain": null, "method": "GET|HEAD", "uri": "api/bad", "name": null, "action": "Foo@bar@baz"}
]`

func TestParseRouteList(t *testing.T) {
	routes, err := ParseRouteList([]byte(routeListJSON))
	require.NoError(t, err)
	require.Len(t, routes, 4)

	assert.Equal(t, analysis.RouteRecord{
		URI:        "/api/users",
		Methods:    []string{"GET", "HEAD"},
		Middleware: []string{"api", "auth:sanctum"},
		Name:       "users.index",
		Handler:    analysis.Handler{Kind: analysis.HandlerMethod, Class: `App\Http\Controllers\UserController`, Method: "index"},
	}, routes[0])

	assert.Equal(t, "__invoke", routes[1].Handler.Method)
	assert.Equal(t, []string{"api", "throttle:10,1"}, routes[1].Middleware, "newline separated middleware")
	assert.Empty(t, routes[1].Name)

	assert.Equal(t, "/", routes[2].URI)
	assert.Equal(t, analysis.HandlerClosure, routes[2].Handler.Kind)

	assert.Equal(t, "Foo@bar@baz", routes[3].Malformed)
	assert.Nil(t, routes[3].Middleware)
}

func TestParseRouteList_Invalid(t *testing.T) {
	_, err := ParseRouteList([]byte(`Could not open input file: artisan`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid route:list output")
}

func TestArtisanRegistry_JSONSource(t *testing.T) {
	dir := writeFiles(t, map[string]string{"storage/routes.json": routeListJSON})
	cfg := config.DefaultConfig()
	cfg.ProjectRoot = dir
	cfg.Routes.Source = "json"
	cfg.Routes.JSONPath = "storage/routes.json"

	routes, err := NewArtisanRegistry(cfg, nil).Routes(context.Background())
	require.NoError(t, err)
	assert.Len(t, routes, 4)

	require.NoError(t, os.Remove(filepath.Join(dir, "storage/routes.json")))
	_, err = NewArtisanRegistry(cfg, nil).Routes(context.Background())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestArtisanRegistry_MissingBinary(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.ProjectRoot = t.TempDir()
	cfg.Routes.Source = "artisan"
	cfg.Routes.ArtisanCommand = []string{"no-such-php-binary-for-tests", "artisan", "route:list", "--json"}

	_, err := NewArtisanRegistry(cfg, nil).Routes(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no-such-php-binary-for-tests")
}
