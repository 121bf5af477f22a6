package analysis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doITmagic/api-contract-mcp/internal/config"
	"github.com/doITmagic/api-contract-mcp/internal/contract"
)

func TestClassify(t *testing.T) {
	mc := &MiddlewareClassifier{}
	got := mc.Classify([]string{
		"auth:sanctum",
		"throttle:60,1",
		"validate.signature",
		"cors",
		"guest",
		"cache.headers:public;max_age=60",
		"encrypt.cookies",
		"bindings",
	})

	require.Len(t, got, 8)
	assert.Equal(t, contract.Middleware{Name: "auth", Category: CategoryAuthentication,
		Parameters: &contract.MiddlewareParams{Value: "sanctum"}}, got[0])
	assert.Equal(t, CategoryRateLimiting, got[1].Category)
	assert.Equal(t, []string{"60", "1"}, got[1].Parameters.Values)
	assert.Equal(t, CategoryValidation, got[2].Category)
	assert.Equal(t, CategoryCORS, got[3].Category)
	assert.Equal(t, CategoryGuest, got[4].Category)
	assert.Equal(t, CategoryCaching, got[5].Category)
	assert.Equal(t, CategoryEncryption, got[6].Category)
	assert.Equal(t, CategoryOther, got[7].Category)
	assert.Nil(t, got[7].Parameters)
}

func TestDetectAuth(t *testing.T) {
	tests := []struct {
		name       string
		middleware []string
		passport   bool
		expected   contract.Auth
	}{
		{"sanctum after throttle", []string{"throttle:60,1", "auth:sanctum"}, false,
			contract.Auth{Type: "bearer", Scheme: "bearer", Provider: "sanctum"}},
		{"api guard", []string{"auth:api"}, true,
			contract.Auth{Type: "bearer", Scheme: "bearer", Provider: "api"}},
		{"passport scopes", []string{"scopes:read"}, true,
			contract.Auth{Type: "oauth2", Provider: "passport"}},
		{"passport absent", []string{"scopes:read"}, false,
			contract.Auth{Type: "none"}},
		{"jwt", []string{"jwt.auth"}, false,
			contract.Auth{Type: "bearer", Scheme: "bearer", Provider: "jwt"}},
		{"api key", []string{"apikey"}, false,
			contract.Auth{Type: "apiKey", In: "header", Name: "X-API-Key"}},
		{"oauth", []string{"oauth.client"}, false,
			contract.Auth{Type: "oauth2"}},
		{"basic", []string{"auth.basic"}, false,
			contract.Auth{Type: "basic", Scheme: "basic"}},
		{"guest short-circuits", []string{"guest", "auth:sanctum"}, false,
			contract.Auth{Type: "none"}},
		{"other guard", []string{"auth:admin"}, false,
			contract.Auth{Type: "bearer", Scheme: "bearer", Provider: "admin"}},
		{"nothing", []string{"bindings"}, false,
			contract.Auth{Type: "none"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mc := &MiddlewareClassifier{Passport: tt.passport}
			assert.Equal(t, tt.expected, mc.DetectAuth(tt.middleware))
		})
	}
}

func TestDetectRateLimit(t *testing.T) {
	mc := &MiddlewareClassifier{RateLimiters: map[string]config.RateLimiterConfig{
		"uploads": {MaxAttempts: 10, DecayMinutes: 5},
		"reports": {Description: "Reports are limited per team"},
	}}

	assert.Equal(t, &contract.RateLimit{MaxAttempts: 60, DecayMinutes: 1, Description: "60 requests per 1 minute(s)"},
		mc.DetectRateLimit([]string{"auth:sanctum", "throttle:60,1"}))
	assert.Equal(t, &contract.RateLimit{MaxAttempts: 30, DecayMinutes: 1, Description: "30 requests per 1 minute(s)"},
		mc.DetectRateLimit([]string{"throttle:30"}))
	assert.Equal(t, &contract.RateLimit{Name: "uploads", Description: "10 requests per 5 minute(s)"},
		mc.DetectRateLimit([]string{"throttle:uploads"}))
	assert.Equal(t, "Reports are limited per team", mc.DetectRateLimit([]string{"throttle:reports"}).Description)
	assert.Equal(t, knownLimiters["api"], mc.DetectRateLimit([]string{"throttle:api"}).Description)
	assert.Equal(t, &contract.RateLimit{Name: "exports", Description: "Rate limit: exports"},
		mc.DetectRateLimit([]string{"throttle:exports"}))
	assert.Nil(t, mc.DetectRateLimit([]string{"auth"}))
}

func TestRequiredHeaders(t *testing.T) {
	mc := &MiddlewareClassifier{}
	headers := mc.RequiredHeaders([]string{"cors", "throttle:api", "verify-api-key", "throttle:60,1"})

	names := make([]string, 0, len(headers))
	for _, h := range headers {
		names = append(names, h.Name)
	}
	assert.Equal(t, []string{"Origin", "Access-Control-Request-Method", "X-RateLimit-Limit", "X-API-Key"}, names)
	assert.True(t, headers[3].Required)
	assert.False(t, headers[0].Required)
}

func TestDetectContentNegotiation(t *testing.T) {
	mc := &MiddlewareClassifier{}
	assert.Nil(t, mc.DetectContentNegotiation([]string{"auth"}))
	cn := mc.DetectContentNegotiation([]string{"force.json"})
	require.NotNil(t, cn)
	assert.Equal(t, []string{"application/json"}, cn.Response)
}
