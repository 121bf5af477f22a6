package laravel

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/VKCOM/php-parser/pkg/ast"
	"github.com/stretchr/testify/require"

	"github.com/doITmagic/api-contract-mcp/internal/analyzers/php"
	"github.com/doITmagic/api-contract-mcp/internal/config"
)

// writeFiles writes relative path -> content below a temp dir
func writeFiles(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for rel, code := range files {
		path := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(code), 0644))
	}
	return dir
}

// buildIndex writes files and indexes the whole tree
func buildIndex(t *testing.T, files map[string]string) (*php.Index, string) {
	t.Helper()
	dir := writeFiles(t, files)
	ix := php.NewIndex(0)
	warnings, err := ix.LoadPaths(dir)
	require.NoError(t, err)
	require.Empty(t, warnings)
	return ix, dir
}

func defaultNamespaces() config.NamespacesConfig {
	return config.DefaultConfig().Namespaces
}

// evalPHP runs a statement list in an empty scope
func evalPHP(t *testing.T, code string) any {
	t.Helper()
	root, parseErrors, err := php.Parse([]byte("<?php\n" + code))
	require.NoError(t, err)
	require.Empty(t, parseErrors)
	v, ok := NewScope(nil, nil).Exec(root.(*ast.Root).Stmts)
	require.True(t, ok, "no return statement")
	return v
}

// sampleApp is a small Laravel application
var sampleApp = map[string]string{
	"app/Models/User.php": `<?php
namespace App\Models;

use Illuminate\Database\Eloquent\Factories\HasFactory;
use Illuminate\Foundation\Auth\User as Authenticatable;

class User extends Authenticatable
{
    use HasFactory;

    protected $fillable = ['name', 'email', 'password'];
    protected $hidden = ['password', 'remember_token'];
    protected $casts = [
        'email_verified_at' => 'datetime',
        'is_admin' => 'boolean',
    ];
}
`,
	"app/Models/Post.php": `<?php
namespace App\Models;

use Illuminate\Database\Eloquent\Factories\HasFactory;
use Illuminate\Database\Eloquent\Model;
use Illuminate\Database\Eloquent\SoftDeletes;

class Post extends Model
{
    use HasFactory, SoftDeletes;

    protected $fillable = ['title', 'body', 'user_id', 'views', 'summary'];
    protected $appends = ['excerpt'];

    protected function casts(): array
    {
        return [
            'published' => 'boolean',
            'views' => 'integer',
            'meta' => 'array',
        ];
    }

    public function getExcerptAttribute()
    {
        return 'short';
    }
}
`,
	"app/Models/Order.php": `<?php
namespace App\Models;

use Illuminate\Database\Eloquent\Concerns\HasUuids;
use Illuminate\Database\Eloquent\Model;

class Order extends Model
{
    use HasUuids;
}
`,
	"app/Models/Widget.php": `<?php
namespace App\Models;

use Illuminate\Database\Eloquent\Model;

class Widget extends Model
{
    protected $keyType = 'string';
}
`,
	"app/Support/Money.php": `<?php
namespace App\Support;

class Money
{
    const CURRENCY = 'EUR';
}
`,
	"database/factories/UserFactory.php": `<?php
namespace Database\Factories;

use App\Models\User;
use Illuminate\Database\Eloquent\Factories\Factory;
use Illuminate\Support\Str;

class UserFactory extends Factory
{
    protected $model = User::class;

    public function definition(): array
    {
        return [
            'name' => $this->faker->name(),
            'email' => fake()->unique()->safeEmail(),
            'email_verified_at' => now(),
            'password' => bcrypt('secret'),
            'remember_token' => Str::random(10),
            'is_admin' => 0,
        ];
    }
}
`,
	"database/factories/PostFactory.php": `<?php
namespace Database\Factories;

use App\Models\User;
use Illuminate\Database\Eloquent\Factories\Factory;
use Illuminate\Support\Str;

class PostFactory extends Factory
{
    public function definition(): array
    {
        $title = $this->faker->sentence();

        return [
            'title' => $title,
            'slug' => Str::slug($title),
            'body' => $this->faker->paragraph(),
            'user_id' => User::factory(),
            'views' => '12',
            'published' => $this->faker->boolean(),
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
            'is_admin' => (bool) $this->is_admin,
            'posts' => PostResource::collection($this->whenLoaded('posts')),
            'created_at' => $this->created_at->toIso8601String(),
            $this->mergeWhen(true, ['role' => 'member']),
        ];
    }
}
`,
	"app/Http/Resources/PostResource.php": `<?php
namespace App\Http\Resources;

use Illuminate\Http\Resources\Json\JsonResource;

class PostResource extends JsonResource
{
    public function toArray($request)
    {
        return [
            'id' => $this->id,
            'title' => $this->title,
            'views' => $this->views,
            'author' => new UserResource($this->whenLoaded('author')),
            'writer' => UserResource::make($this->user),
            'published_at' => $this->whenNotNull($this->published_at),
            'links' => ['self' => route('posts.show', $this->id)],
        ];
    }
}
`,
	"app/Http/Resources/PostCollection.php": `<?php
namespace App\Http\Resources;

use Illuminate\Http\Resources\Json\ResourceCollection;

class PostCollection extends ResourceCollection
{
    public function toArray($request)
    {
        return [
            'data' => $this->collection,
            'meta' => ['total' => $this->collection->count()],
        ];
    }
}
`,
	"app/Http/Resources/OrderResource.php": `<?php
namespace App\Http\Resources;

use Illuminate\Http\Resources\Json\JsonResource;

class OrderResource extends JsonResource
{
}
`,
	"app/Http/Resources/BrokenResource.php": `<?php
namespace App\Http\Resources;

use Illuminate\Http\Resources\Json\JsonResource;

class BrokenResource extends JsonResource
{
    public function toArray($request)
    {
        return 'not an array';
    }
}
`,
	"app/Http/Requests/StorePostRequest.php": `<?php
namespace App\Http\Requests;

use Illuminate\Foundation\Http\FormRequest;
use Illuminate\Validation\Rule;

class StorePostRequest extends FormRequest
{
    public function rules(): array
    {
        return [
            'title' => 'required|string|max:255',
            'status' => ['required', Rule::in(['draft', 'published'])],
            'user_id' => ['required', Rule::exists('users', 'id')],
            'tags.*' => 'string',
        ];
    }
}
`,
	"app/Http/Controllers/PostController.php": `<?php
namespace App\Http\Controllers;

use App\Http\Requests\StorePostRequest;
use App\Models\Post;
use Illuminate\Http\Request;

class PostController extends Controller
{
    public function __construct()
    {
        $this->middleware('auth:sanctum')->except(['index', 'show']);
        $this->middleware('log');
    }

    public function index(Request $request)
    {
        $request->validate(['page' => 'integer|min:1']);
    }

    public function store(StorePostRequest $request)
    {
    }

    public function show(Post $post)
    {
    }

    public function update(Request $request, Post $post)
    {
        $rules = ['title' => 'sometimes|string'];
        $validated = $this->validate($request, $rules);
    }
}
`,
	"app/Http/Controllers/Admin/ReportController.php": `<?php
namespace App\Http\Controllers\Admin;

use App\Http\Controllers\Controller;
use Illuminate\Routing\Controllers\HasMiddleware;
use Illuminate\Routing\Controllers\Middleware;

class ReportController extends Controller implements HasMiddleware
{
    public static function middleware(): array
    {
        return [
            'auth',
            new Middleware('can:view-reports', only: ['index']),
            new Middleware('throttle:10,1', except: ['index']),
        ];
    }

    public function index()
    {
    }

    public function export()
    {
    }
}
`,
}
