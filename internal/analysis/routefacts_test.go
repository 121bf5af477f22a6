package analysis

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doITmagic/api-contract-mcp/internal/cache"
	"github.com/doITmagic/api-contract-mcp/internal/config"
	"github.com/doITmagic/api-contract-mcp/internal/contract"
)

const userControllerPHP = `<?php
namespace App\Http\Controllers;

use App\Models\User;
use App\Models\Order;

class UserController extends Controller
{
    public function posts(User $id, ?int $postId = null)
    {
    }

    public function order(Order $order, string $slug)
    {
    }
}

class StripeWebhookController
{
    public function __invoke()
    {
    }
}
`

func newFactExtractor(t *testing.T) *RouteFactExtractor {
	t.Helper()
	ix, _ := buildIndex(t, map[string]string{
		"app/Http/Controllers/UserController.php": userControllerPHP,
	})
	models := fakeModels{keyTypes: map[string]string{
		`App\Models\User`:  "integer",
		`App\Models\Order`: "string",
	}}
	c := cache.New(cache.NewMemoryStore(), time.Hour, nil)
	return NewRouteFactExtractor(ix, models, &MiddlewareClassifier{}, c, nil)
}

func userRoute(uri, method string, middleware ...string) RouteRecord {
	return RouteRecord{
		URI:        uri,
		Methods:    []string{"GET"},
		Middleware: middleware,
		Handler:    Handler{Kind: HandlerMethod, Class: `App\Http\Controllers\UserController`, Method: method},
	}
}

func TestRouteFactExtractor_PathParameters(t *testing.T) {
	x := newFactExtractor(t)

	facts, err := x.Extract(userRoute("/api/v1/users/{id}/posts/{postId?}", "posts"), "GET")
	require.NoError(t, err)

	require.Len(t, facts.PathParameters, 2)
	assert.Equal(t, contract.PathParameter{Name: "id", Type: "integer", Required: true}, facts.PathParameters[0])
	assert.Equal(t, contract.PathParameter{Name: "postId", Type: "integer", Required: false}, facts.PathParameters[1])
}

func TestRouteFactExtractor_ParameterTyping(t *testing.T) {
	x := newFactExtractor(t)

	facts, err := x.Extract(userRoute("/api/orders/{order}/items/{slug}", "order"), "GET")
	require.NoError(t, err)
	require.Len(t, facts.PathParameters, 2)
	// model bound with a string key
	assert.Equal(t, "string", facts.PathParameters[0].Type)
	assert.Equal(t, "string", facts.PathParameters[1].Type)

	params := x.PathParameters("/teams/{team_id}/posts/{post:slug}/{post:id}/{token}/{ownerId}", nil)
	got := make([]string, 0, len(params))
	for _, p := range params {
		got = append(got, p.Name+"="+p.Type)
	}
	assert.Equal(t, []string{"team_id=integer", "post=string", "post=integer", "token=string", "ownerId=integer"}, got)
}

func TestRouteFactExtractor_KeyTypeErrorFallsBackToInteger(t *testing.T) {
	ix, _ := buildIndex(t, map[string]string{
		"app/Http/Controllers/UserController.php": userControllerPHP,
	})
	models := fakeModels{keyTypes: map[string]string{`App\Models\Order`: "error"}}
	x := NewRouteFactExtractor(ix, models, &MiddlewareClassifier{}, nil, nil)

	m := ix.Method(`App\Http\Controllers\UserController`, "order")
	require.NotNil(t, m)
	params := x.PathParameters("/orders/{order}", m)
	require.Len(t, params, 1)
	assert.Equal(t, "integer", params[0].Type)
}

func TestRouteFactExtractor_MiddlewareFacts(t *testing.T) {
	x := newFactExtractor(t)

	facts, err := x.Extract(userRoute("/api/v2/users/{id}/posts", "posts", "auth:sanctum", "throttle:30,2", "cors"), "GET")
	require.NoError(t, err)

	assert.Equal(t, contract.AuthBearer, facts.Auth.Type)
	require.NotNil(t, facts.RateLimit)
	assert.Equal(t, 30, facts.RateLimit.MaxAttempts)
	assert.Equal(t, 2, facts.RateLimit.DecayMinutes)
	require.NotNil(t, facts.APIVersion)
	assert.Equal(t, "v2", *facts.APIVersion)
	assert.Len(t, facts.Middleware, 3)

	names := []string{}
	for _, h := range facts.CustomHeaders {
		names = append(names, h.Name)
	}
	assert.Contains(t, names, "Origin")
}

func TestRouteFactExtractor_Webhook(t *testing.T) {
	x := newFactExtractor(t)
	route := RouteRecord{
		URI:     "/api/webhooks/stripe",
		Methods: []string{"POST"},
		Handler: Handler{Kind: HandlerMethod, Class: `App\Http\Controllers\StripeWebhookController`, Method: "__invoke"},
	}

	facts, err := x.Extract(route, "POST")
	require.NoError(t, err)
	require.Len(t, facts.CustomHeaders, 1)
	assert.Equal(t, "X-Webhook-Signature", facts.CustomHeaders[0].Name)
	assert.True(t, facts.CustomHeaders[0].Required)
	assert.Equal(t, contract.AuthNone, facts.Auth.Type)
	assert.Nil(t, facts.APIVersion)
}

func TestRouteFactExtractor_Closure(t *testing.T) {
	x := newFactExtractor(t)
	route := RouteRecord{URI: "/api/status/{code}", Methods: []string{"GET"}, Handler: Handler{Kind: HandlerClosure}}

	facts, err := x.Extract(route, "GET")
	require.NoError(t, err)
	require.Len(t, facts.PathParameters, 1)
	assert.Equal(t, "string", facts.PathParameters[0].Type)
}

func TestRouteFactExtractor_Errors(t *testing.T) {
	x := newFactExtractor(t)

	tests := []struct {
		name  string
		route RouteRecord
		code  string
	}{
		{"malformed", RouteRecord{URI: "/api/x", Malformed: "Foo@bar@baz"}, CodeMalformedAction},
		{"missing controller", RouteRecord{URI: "/api/x", Handler: Handler{Kind: HandlerMethod, Class: `App\Http\Controllers\GhostController`, Method: "index"}}, CodeHandlerNotFound},
		{"missing method", userRoute("/api/x", "destroy"), CodeMethodNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			facts, err := x.Extract(tt.route, "GET")
			assert.Nil(t, facts)
			var ae *Error
			require.ErrorAs(t, err, &ae)
			assert.Equal(t, KindRoute, ae.Kind)
			assert.Equal(t, tt.code, ae.Code)
			assert.NotEmpty(t, ae.Suggestion)
		})
	}
}

func TestRouteFactExtractor_CachedFactsMatch(t *testing.T) {
	x := newFactExtractor(t)
	route := userRoute("/api/v1/users/{id}/posts/{postId?}", "posts", "auth:sanctum")

	first, err := x.Extract(route, "GET")
	require.NoError(t, err)
	second, err := x.Extract(route, "GET")
	require.NoError(t, err)
	assert.Equal(t, first.PathParameters, second.PathParameters)
	assert.Equal(t, first.Auth, second.Auth)
}

func TestRouteFactExtractor_CacheFollowsClassifierAndModels(t *testing.T) {
	ix, _ := buildIndex(t, map[string]string{
		"app/Http/Controllers/UserController.php": userControllerPHP,
	})
	keyTypes := map[string]string{`App\Models\Order`: "integer"}
	mc := &MiddlewareClassifier{}
	c := cache.New(cache.NewMemoryStore(), time.Hour, nil)
	x := NewRouteFactExtractor(ix, fakeModels{keyTypes: keyTypes}, mc, c, nil)
	route := userRoute("/api/orders/{order}/items/{slug}", "order", "throttle:uploads")

	facts, err := x.Extract(route, "GET")
	require.NoError(t, err)
	assert.Equal(t, "10 uploads per minute per user", facts.RateLimit.Description)
	assert.Equal(t, "integer", facts.PathParameters[0].Type)

	mc.RateLimiters = map[string]config.RateLimiterConfig{"uploads": {MaxAttempts: 3, DecayMinutes: 1, Description: "3 uploads per minute"}}
	facts, err = x.Extract(route, "GET")
	require.NoError(t, err)
	assert.Equal(t, "3 uploads per minute", facts.RateLimit.Description)

	keyTypes[`App\Models\Order`] = "string"
	facts, err = x.Extract(route, "GET")
	require.NoError(t, err)
	assert.Equal(t, "string", facts.PathParameters[0].Type)

	mc.Passport = true
	assert.NotEqual(t, (&MiddlewareClassifier{}).Fingerprint(), mc.Fingerprint())
}

func TestAPIVersion(t *testing.T) {
	tests := []struct {
		uri  string
		want string
	}{
		{"/api/v1/users", "v1"},
		{"api/admin/V2/reports", "v2"},
		{"/api/users", ""},
		{"/v1/users", ""},
		{"/api", ""},
	}
	for _, tt := range tests {
		got := APIVersion(tt.uri)
		if tt.want == "" {
			assert.Nil(t, got, tt.uri)
			continue
		}
		require.NotNil(t, got, tt.uri)
		assert.Equal(t, tt.want, *got)
	}
}

func TestNameHeuristicType(t *testing.T) {
	assert.Equal(t, "integer", NameHeuristicType("id"))
	assert.Equal(t, "integer", NameHeuristicType("user_id"))
	assert.Equal(t, "integer", NameHeuristicType("userId"))
	assert.Equal(t, "string", NameHeuristicType("slug"))
	assert.Equal(t, "string", NameHeuristicType("name"))
}
