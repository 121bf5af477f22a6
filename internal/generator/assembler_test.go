package generator

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doITmagic/api-contract-mcp/internal/analysis"
	"github.com/doITmagic/api-contract-mcp/internal/config"
	"github.com/doITmagic/api-contract-mcp/internal/contract"
)

const routesFile = `<?php

use App\Http\Controllers\UserController;
use App\Http\Controllers\WidgetController;
use Illuminate\Support\Facades\Route;

Route::get('health', fn () => ['ok' => true]);
Route::get('users/{user}', [UserController::class, 'show'])->name('users.show');
Route::post('users', [UserController::class, 'store'])->name('users.store');
Route::get('widgets/{widget}', [WidgetController::class, 'show']);
`

var app = map[string]string{
	"app/Models/User.php": `<?php
namespace App\Models;

use Illuminate\Database\Eloquent\Factories\HasFactory;
use Illuminate\Database\Eloquent\Model;

class User extends Model
{
    use HasFactory;

    protected $fillable = ['name', 'email'];
}
`,
	"app/Models/Widget.php": `<?php
namespace App\Models;

use Illuminate\Database\Eloquent\Factories\HasFactory;
use Illuminate\Database\Eloquent\Model;

class Widget extends Model
{
    use HasFactory;
}
`,
	"database/factories/UserFactory.php": `<?php
namespace Database\Factories;

use Illuminate\Database\Eloquent\Factories\Factory;

class UserFactory extends Factory
{
    public function definition(): array
    {
        return [
            'name' => $this->faker->name(),
            'email' => $this->faker->safeEmail(),
        ];
    }
}
`,
	"database/factories/WidgetFactory.php": `<?php
namespace Database\Factories;

use Illuminate\Database\Eloquent\Factories\Factory;

class WidgetFactory extends Factory
{
    public function definition(): array
    {
        throw new \RuntimeException('database unavailable');
    }
}
`,
	"app/Http/Resources/UserResource.php": `<?php
namespace App\Http\Resources;

use Illuminate\Http\Resources\Json\JsonResource;

class UserResource extends JsonResource
{
    public function toArray($request): array
    {
        return [
            'id' => $this->id,
            'name' => $this->name,
            'email' => $this->email,
            'created_at' => $this->created_at,
        ];
    }
}
`,
	"app/Http/Resources/WidgetResource.php": `<?php
namespace App\Http\Resources;

use Illuminate\Http\Resources\Json\JsonResource;

class WidgetResource extends JsonResource
{
    public function toArray($request): array
    {
        return ['id' => $this->id];
    }
}
`,
	"app/Http/Requests/StoreUserRequest.php": `<?php
namespace App\Http\Requests;

use Illuminate\Foundation\Http\FormRequest;

class StoreUserRequest extends FormRequest
{
    public function rules(): array
    {
        return [
            'name' => 'required|string|max:255',
            'email' => 'required|email',
        ];
    }
}
`,
	"app/Http/Controllers/UserController.php": `<?php
namespace App\Http\Controllers;

use App\Http\Requests\StoreUserRequest;
use App\Http\Resources\UserResource;
use App\Models\User;

class UserController extends Controller
{
    /**
     * Show one user.
     */
    public function show(User $user)
    {
        return new UserResource($user);
    }

    public function store(StoreUserRequest $request)
    {
        return new UserResource(User::create($request->validated()));
    }
}
`,
	"app/Http/Controllers/WidgetController.php": `<?php
namespace App\Http\Controllers;

use App\Http\Resources\WidgetResource;
use App\Models\Widget;

class WidgetController extends Controller
{
    public function show(Widget $widget)
    {
        return new WidgetResource($widget);
    }
}
`,
}

// newProject writes the sample application (plus extra files) and opens it
func newProject(t *testing.T, extra map[string]string) (*Project, *config.Config) {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{"routes/api.php": routesFile}
	for k, v := range app {
		files[k] = v
	}
	for k, v := range extra {
		files[k] = v
	}
	for rel, code := range files {
		path := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(code), 0644))
	}

	cfg := config.DefaultConfig()
	cfg.ProjectRoot = dir
	cfg.Cache.Driver = "memory"

	p, err := Open(cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { p.Close() })
	return p, cfg
}

func errorEntries(c *contract.Contract) map[string]*contract.EntryError {
	out := map[string]*contract.EntryError{}
	c.Each(func(path, method string, e *contract.Entry) {
		if e.Error != nil {
			out[method+" "+path] = e.Error
		}
	})
	return out
}

func TestGenerate_PartialFailureContainment(t *testing.T) {
	p, cfg := newProject(t, nil)

	rc, c, err := p.Assembler.Generate(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, ExitOK, rc.ExitCode(Options{}))

	assert.Equal(t, 4, c.Len())
	assert.Equal(t, []string{"/api/health", "/api/users/{user}", "/api/users", "/api/widgets/{widget}"}, c.Paths())
	assert.Equal(t, 3, rc.Skipped, "HEAD variants of the three GET routes")

	failed := errorEntries(c)
	require.Len(t, failed, 1)
	require.Contains(t, failed, "GET /api/widgets/{widget}")
	assert.Equal(t, string(analysis.KindResource), failed["GET /api/widgets/{widget}"].Kind)
	require.Len(t, rc.Errors, 1)
	assert.Equal(t, analysis.CodeFactoryFailed, rc.Errors[0].Err.Code)

	widget, _ := c.Get("/api/widgets/{widget}", "GET")
	assert.True(t, widget.ResponseSchema.IsUndocumented())
	assert.Equal(t, "widget", widget.PathParameters[0].Name, "the rest of the entry survives")

	loaded, err := contract.Load(cfg.OutputPath())
	require.NoError(t, err)
	assert.Equal(t, 4, loaded.Len())
	require.NotNil(t, loaded.Metadata)
	assert.Equal(t, 4, loaded.Metadata.RouteCount)
	assert.Equal(t, cfg.OutputPath(), rc.Written)
}

func TestGenerate_Entries(t *testing.T) {
	p, _ := newProject(t, nil)

	_, c, err := p.Assembler.Generate(context.Background(), Options{})
	require.NoError(t, err)

	show, ok := c.Get("/api/users/{user}", "GET")
	require.True(t, ok)
	assert.Equal(t, "Show one user.", show.Description)
	assert.Equal(t, "users.show", show.RouteName)
	assert.Equal(t, []contract.PathParameter{{Name: "user", Type: "integer", Required: true}}, show.PathParameters)
	require.Equal(t, "object", show.ResponseSchema.Type)
	assert.Equal(t, "string", show.ResponseSchema.Properties["email"].Type)
	assert.Equal(t, "date-time", show.ResponseSchema.Properties["created_at"].Format, "timestamps transformer")
	assert.Contains(t, show.StatusCodes, "404")
	require.NotNil(t, show.RateLimit, "api group throttle")
	assert.Equal(t, "api", show.RateLimit.Name)

	store, ok := c.Get("/api/users", "POST")
	require.True(t, ok)
	assert.Equal(t, contract.FieldSchema{Type: "string", Required: true, Constraints: []string{"max:255"}}, store.RequestSchema["name"])
	assert.Equal(t, []string{"email"}, store.RequestSchema["email"].Constraints)
	assert.Contains(t, store.StatusCodes, "201")
	assert.Contains(t, store.StatusCodes, "422")

	health, ok := c.Get("/api/health", "GET")
	require.True(t, ok)
	assert.True(t, health.ResponseSchema.IsUndocumented())
	assert.Equal(t, contract.AuthNone, health.Auth.Type)
}

func TestGenerate_RouteErrorPlaceholder(t *testing.T) {
	p, _ := newProject(t, map[string]string{
		"routes/api.php": routesFile + "Route::get('ghosts/{ghost}', [\\App\\Http\\Controllers\\GhostController::class, 'index']);\n",
	})

	rc, c, err := p.Assembler.Generate(context.Background(), Options{})
	require.NoError(t, err)
	assert.Equal(t, ExitOK, rc.ExitCode(Options{}))
	assert.Equal(t, 5, c.Len())

	ghost, ok := c.Get("/api/ghosts/{ghost}", "GET")
	require.True(t, ok)
	require.NotNil(t, ghost.Error)
	assert.Equal(t, string(analysis.KindRoute), ghost.Error.Kind)
	assert.Equal(t, analysis.CodeHandlerNotFound, ghost.Error.Code)
	assert.NotEmpty(t, ghost.Error.Suggestion)
	assert.Equal(t, contract.AuthNone, ghost.Auth.Type)
	assert.Empty(t, ghost.RequestSchema)
	assert.True(t, ghost.ResponseSchema.IsUndocumented())
	assert.Equal(t, "ghost", ghost.PathParameters[0].Name)

	assert.Equal(t, ExitIssues, rc.ExitCode(Options{Strict: true}))
}

var generatedAtRe = regexp.MustCompile(`"generated_at": "[^"]*"`)

func TestGenerate_Idempotent(t *testing.T) {
	p, cfg := newProject(t, nil)
	ctx := context.Background()

	first := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	p.Assembler.now = func() time.Time { return first }
	_, _, err := p.Assembler.Generate(ctx, Options{})
	require.NoError(t, err)
	a, err := os.ReadFile(cfg.OutputPath())
	require.NoError(t, err)

	second := first.Add(time.Hour)
	p.Assembler.now = func() time.Time { return second }
	rc, _, err := p.Assembler.Generate(ctx, Options{})
	require.NoError(t, err)
	b, err := os.ReadFile(cfg.OutputPath())
	require.NoError(t, err)

	assert.NotEqual(t, string(a), string(b))
	assert.Equal(t, generatedAtRe.ReplaceAllString(string(a), ""), generatedAtRe.ReplaceAllString(string(b), ""))

	want := filepath.Join(cfg.VersionsPath(), contract.ArchiveName(cfg.OutputPath(), second))
	assert.Equal(t, want, rc.Archived)
	archived, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, string(a), string(archived), "the previous artifact is archived before overwrite")
}

func TestGenerate_Incremental(t *testing.T) {
	p, cfg := newProject(t, nil)
	ctx := context.Background()
	opts := Options{Incremental: true}

	// Previous artifact with a single, recognizable entry
	prev := contract.New()
	prev.Set("/api/users/{user}", "GET", &contract.Entry{Description: "from previous run"})
	require.NoError(t, contract.Write(cfg.OutputPath(), prev))
	future := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(cfg.OutputPath(), future, future))

	rc, c, err := p.Assembler.Generate(ctx, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, rc.Reused)
	assert.Equal(t, 3, rc.Analyzed, "absent entries are analyzed")
	assert.Empty(t, rc.Archived, "incremental runs do not archive")
	show, _ := c.Get("/api/users/{user}", "GET")
	assert.Equal(t, "from previous run", show.Description)

	// Nothing changed since: everything is reused and the file is left alone
	require.NoError(t, os.Chtimes(cfg.OutputPath(), future, future))
	rc, _, err = p.Assembler.Generate(ctx, opts)
	require.NoError(t, err)
	assert.True(t, rc.Unchanged)
	assert.Equal(t, 4, rc.Reused)
	assert.Empty(t, rc.Written)

	// A watched source newer than the artifact forces full analysis
	later := future.Add(time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(cfg.ProjectRoot, "app/Http/Controllers/UserController.php"), later, later))
	rc, c, err = p.Assembler.Generate(ctx, opts)
	require.NoError(t, err)
	assert.Equal(t, 0, rc.Reused)
	assert.Equal(t, 4, rc.Analyzed)
	show, _ = c.Get("/api/users/{user}", "GET")
	assert.Equal(t, "Show one user.", show.Description)
}

func TestGenerate_DryRun(t *testing.T) {
	p, cfg := newProject(t, nil)

	opts := Options{DryRun: true, ValidateSchemas: true}
	rc, c, err := p.Assembler.Generate(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 4, c.Len())
	assert.Empty(t, rc.Written)
	assert.Empty(t, rc.Invalid)
	require.Len(t, rc.Errors, 1)
	assert.Equal(t, ExitIssues, rc.ExitCode(opts), "a dry run reports analysis errors")
	assert.Equal(t, ExitOK, rc.ExitCode(Options{}), "a normal run still succeeds")

	_, err = os.Stat(cfg.OutputPath())
	assert.True(t, os.IsNotExist(err), "dry runs write nothing")

	require.NotEmpty(t, rc.Warnings, "the closure route has no documented response")
	assert.Equal(t, WarnUndocumentedResponse, rc.Warnings[0].Err.Code)
	assert.Equal(t, ExitIssues, rc.ExitCode(Options{DryRun: true, Strict: true}))
}

func TestGenerate_Cancelled(t *testing.T) {
	p, _ := newProject(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := p.Assembler.Generate(ctx, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewAssembler_UnknownTransformer(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Transformers = []string{"timestamps", "camelcase"}

	_, err := NewAssembler(cfg, Deps{}, nil)
	assert.ErrorContains(t, err, `unknown transformer "camelcase"`)
}

func TestExitCode(t *testing.T) {
	problem := Problem{Path: "/api/x", Method: "GET", Err: &analysis.Error{Code: "E"}}
	invalid := ValidationProblem{Path: "/api/x", Method: "GET", Part: "response", Message: "bad"}

	tests := []struct {
		name string
		rc   RunContext
		opts Options
		want int
	}{
		{"clean", RunContext{}, Options{}, ExitOK},
		{"errors without strict", RunContext{Errors: []Problem{problem}}, Options{}, ExitOK},
		{"errors with strict", RunContext{Errors: []Problem{problem}}, Options{Strict: true}, ExitIssues},
		{"warnings with strict", RunContext{Warnings: []Problem{problem}}, Options{Strict: true}, ExitIssues},
		{"invalid schemas", RunContext{Invalid: []ValidationProblem{invalid}}, Options{}, ExitOK},
		{"invalid schemas in dry run", RunContext{Invalid: []ValidationProblem{invalid}}, Options{DryRun: true}, ExitIssues},
		{"errors in dry run", RunContext{Errors: []Problem{problem}}, Options{DryRun: true}, ExitIssues},
		{"warnings in dry run", RunContext{Warnings: []Problem{problem}}, Options{DryRun: true}, ExitOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rc.ExitCode(tt.opts))
		})
	}
}
