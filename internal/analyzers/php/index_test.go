package php

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePHP(t *testing.T, dir, rel, code string) string {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(code), 0644))
	return path
}

func TestIndex_ClassesAndInheritance(t *testing.T) {
	dir := t.TempDir()
	writePHP(t, dir, "app/Http/Controllers/Controller.php", `<?php
namespace App\Http\Controllers;

abstract class Controller
{
    public function respond($data) { return $data; }
}
`)
	writePHP(t, dir, "app/Http/Controllers/PostController.php", `<?php
namespace App\Http\Controllers;

use App\Http\Requests\StorePostRequest;
use App\Http\Resources\PostResource as Res;
use App\Models\Post;

class PostController extends Controller
{
    /**
     * Show a single post.
     *
     * @deprecated use v2
     */
    public function show(Post $post, ?int $page = null): Res
    {
        return new Res($post);
    }

    public function store(StorePostRequest $request) {}
}
`)
	writePHP(t, dir, "vendor/laravel/Skip.php", `<?php class Skipped {}`)

	ix := NewIndex(0)
	warnings, err := ix.LoadPaths(filepath.Join(dir, "app"), filepath.Join(dir, "missing"))
	require.NoError(t, err)
	assert.Empty(t, warnings)

	class := ix.Class(`\App\Http\Controllers\PostController`)
	require.NotNil(t, class)
	assert.Equal(t, `App\Http\Controllers\Controller`, class.Extends)
	assert.Equal(t, `App\Http\Resources\PostResource`, class.Imports["Res"])

	show := ix.Method(class.FullName, "SHOW")
	require.NotNil(t, show)
	assert.Equal(t, "Show a single post.", show.Description)
	assert.True(t, show.Deprecated)
	assert.Equal(t, `App\Http\Resources\PostResource`, show.ReturnType)
	require.Len(t, show.Params, 2)
	assert.Equal(t, "post", show.Params[0].Name)
	assert.Equal(t, `App\Models\Post`, show.Params[0].Type)
	assert.Equal(t, "int", show.Params[1].Type)
	assert.True(t, show.Params[1].Nullable)
	assert.True(t, show.Params[1].HasDefault)

	// inherited from the abstract base
	respond := ix.Method(class.FullName, "respond")
	require.NotNil(t, respond)
	assert.Equal(t, `App\Http\Controllers\Controller`, respond.ClassName)

	assert.True(t, ix.IsSubclassOf(class.FullName, "Controller"))
	assert.False(t, ix.IsSubclassOf(class.FullName, "Model"))
	assert.Len(t, ix.FindByShortName("postcontroller"), 1)
	assert.Nil(t, ix.Class("Skipped"))
}

func TestIndex_ReparsesChangedFile(t *testing.T) {
	dir := t.TempDir()
	path := writePHP(t, dir, "Models/User.php", `<?php
namespace App\Models;
class User { use HasFactory; }
`)

	ix := NewIndex(time.Hour)
	_, err := ix.LoadPaths(dir)
	require.NoError(t, err)
	require.NotNil(t, ix.Class(`App\Models\User`))
	assert.True(t, ix.UsesTrait(`App\Models\User`, "HasFactory"))

	require.NoError(t, os.WriteFile(path, []byte(`<?php
namespace App\Models;
class Member {}
`), 0644))
	later := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, later, later))

	_, err = ix.File(path)
	require.NoError(t, err)
	assert.Nil(t, ix.Class(`App\Models\User`))
	assert.NotNil(t, ix.Class(`App\Models\Member`))
}

func TestIndex_TTLExpiry(t *testing.T) {
	dir := t.TempDir()
	path := writePHP(t, dir, "A.php", `<?php class A {}`)

	now := time.Now()
	ix := NewIndex(time.Minute)
	ix.now = func() time.Time { return now }

	first, err := ix.File(path)
	require.NoError(t, err)
	again, err := ix.File(path)
	require.NoError(t, err)
	assert.Same(t, first, again)

	now = now.Add(2 * time.Minute)
	reparsed, err := ix.File(path)
	require.NoError(t, err)
	assert.NotSame(t, first, reparsed)
}

func TestResolveName(t *testing.T) {
	imports := map[string]string{"Res": `App\Http\Resources\PostResource`, "Models": `App\Models`}

	assert.Equal(t, `App\Http\Resources\PostResource`, ResolveName("Res", `App\X`, imports))
	assert.Equal(t, `App\Models\Post`, ResolveName(`Models\Post`, `App\X`, imports))
	assert.Equal(t, `Foo\Bar`, ResolveName(`\Foo\Bar`, `App\X`, imports))
	assert.Equal(t, `App\X\Local`, ResolveName("Local", `App\X`, imports))
	assert.Equal(t, "string", ResolveName("string", `App\X`, imports))
	assert.Equal(t, "Local", ResolveName("Local", "", nil))
}

func TestParsePHPDoc_HTMLDescription(t *testing.T) {
	doc := ParsePHPDoc(`/**
 * Returns the <b>current</b> user.
 *
 * @param int $id The id
 * @return array
 * @throws \RuntimeException
 */`)
	assert.Equal(t, "Returns the current user.", doc.Description)
	require.Len(t, doc.Params, 1)
	assert.Equal(t, "id", doc.Params[0].Name)
	require.Len(t, doc.Returns, 1)
	assert.Equal(t, "array", doc.Returns[0].Type)
	assert.Equal(t, []string{`\RuntimeException`}, doc.Throws)
}
