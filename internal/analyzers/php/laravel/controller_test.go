package laravel

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestControllerAnalyzer_ConstructorMiddleware(t *testing.T) {
	ix, _ := buildIndex(t, sampleApp)
	a := NewControllerAnalyzer(ix)
	class := `App\Http\Controllers\PostController`

	assert.Equal(t, []string{"log"}, a.Middleware(class, "index"))
	assert.Equal(t, []string{"log"}, a.Middleware(class, "show"))
	assert.Equal(t, []string{"auth:sanctum", "log"}, a.Middleware(class, "store"))
	assert.Equal(t, []string{"auth:sanctum", "log"}, a.Middleware(class, "Update"), "action names compare case-insensitively")
}

func TestControllerAnalyzer_StaticMiddleware(t *testing.T) {
	ix, _ := buildIndex(t, sampleApp)
	a := NewControllerAnalyzer(ix)
	class := `App\Http\Controllers\Admin\ReportController`

	assert.Equal(t, []string{"auth", "can:view-reports"}, a.Middleware(class, "index"))
	assert.Equal(t, []string{"auth", "throttle:10,1"}, a.Middleware(class, "export"))
}

func TestControllerAnalyzer_UnknownClass(t *testing.T) {
	ix, _ := buildIndex(t, sampleApp)
	assert.Nil(t, NewControllerAnalyzer(ix).Middleware(`App\Http\Controllers\GhostController`, "index"))
}
