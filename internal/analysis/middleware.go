package analysis

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/doITmagic/api-contract-mcp/internal/config"
	"github.com/doITmagic/api-contract-mcp/internal/contract"
)

// Middleware categories
const (
	CategoryAuthentication = "authentication"
	CategoryRateLimiting   = "rate_limiting"
	CategoryValidation     = "validation"
	CategoryCORS           = "cors"
	CategoryGuest          = "guest"
	CategoryCaching        = "caching"
	CategoryEncryption     = "encryption"
	CategoryOther          = "other"
)

// categoryBuckets are tested in order; the first bucket with a keyword
// contained in the lower-cased middleware name wins.
var categoryBuckets = []struct {
	category string
	keywords []string
}{
	{CategoryAuthentication, []string{"auth", "sanctum", "passport"}},
	{CategoryRateLimiting, []string{"throttle", "rate"}},
	{CategoryValidation, []string{"validate", "verify"}},
	{CategoryCORS, []string{"cors", "cross"}},
	{CategoryGuest, []string{"guest"}},
	{CategoryCaching, []string{"cache"}},
	{CategoryEncryption, []string{"encrypt", "decrypt"}},
}

// knownLimiters describes the rate limiters a stock application defines
var knownLimiters = map[string]string{
	"api":     "60 requests per minute per user or IP (default API limiter)",
	"login":   "5 attempts per minute per email and IP",
	"uploads": "10 uploads per minute per user",
	"global":  "1000 requests per minute across the application",
}

// MiddlewareClassifier interprets a route's middleware stack
type MiddlewareClassifier struct {
	// RateLimiters holds named limiters defined by the application
	RateLimiters map[string]config.RateLimiterConfig
	// Passport enables the oauth2 rule for passport middleware
	Passport bool
}

// Fingerprint summarizes the application state the classifier reads, so
// cached facts can be tied to it
func (mc *MiddlewareClassifier) Fingerprint() string {
	names := make([]string, 0, len(mc.RateLimiters))
	for name := range mc.RateLimiters {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	fmt.Fprintf(&b, "passport=%t", mc.Passport)
	for _, name := range names {
		l := mc.RateLimiters[name]
		fmt.Fprintf(&b, ";%s=%d/%d/%s", name, l.MaxAttempts, l.DecayMinutes, l.Description)
	}
	return b.String()
}

// SplitMiddleware splits "name:args" on the first colon
func SplitMiddleware(entry string) (name, args string) {
	name, args, _ = strings.Cut(strings.TrimSpace(entry), ":")
	return name, args
}

// Classify assigns each middleware entry a category and its parameters
func (mc *MiddlewareClassifier) Classify(middleware []string) []contract.Middleware {
	out := make([]contract.Middleware, 0, len(middleware))
	for _, entry := range middleware {
		name, args := SplitMiddleware(entry)
		m := contract.Middleware{Name: name, Category: Category(name)}
		if args != "" {
			if strings.Contains(args, ",") {
				values := strings.Split(args, ",")
				for i := range values {
					values[i] = strings.TrimSpace(values[i])
				}
				m.Parameters = &contract.MiddlewareParams{Values: values}
			} else {
				m.Parameters = &contract.MiddlewareParams{Value: args}
			}
		}
		out = append(out, m)
	}
	return out
}

// Category returns the bucket of a middleware name
func Category(name string) string {
	lower := strings.ToLower(name)
	for _, bucket := range categoryBuckets {
		for _, kw := range bucket.keywords {
			if strings.Contains(lower, kw) {
				return bucket.category
			}
		}
	}
	return CategoryOther
}

// RequiredHeaders lists request headers implied by the middleware stack
func (mc *MiddlewareClassifier) RequiredHeaders(middleware []string) []contract.Header {
	var headers []contract.Header
	for _, m := range mc.Classify(middleware) {
		switch m.Category {
		case CategoryCORS:
			headers = append(headers,
				contract.Header{Name: "Origin", Required: false, Description: "Origin of the cross-origin request"},
				contract.Header{Name: "Access-Control-Request-Method", Required: false, Description: "Method of the preflighted request"},
			)
		case CategoryRateLimiting:
			headers = append(headers, contract.Header{Name: "X-RateLimit-Limit", Required: false, Description: "Requests allowed in the current window"})
		}
		if lower := strings.ToLower(m.Name); strings.Contains(lower, "apikey") || strings.Contains(lower, "api-key") {
			headers = append(headers, contract.Header{Name: "X-API-Key", Required: true, Description: "API key"})
		}
	}
	return MergeHeaders(headers)
}

// MergeHeaders unions header lists by name, keeping the first occurrence but
// marking it required when any occurrence is.
func MergeHeaders(lists ...[]contract.Header) []contract.Header {
	out := []contract.Header{}
	index := map[string]int{}
	for _, list := range lists {
		for _, h := range list {
			key := strings.ToLower(h.Name)
			if i, ok := index[key]; ok {
				out[i].Required = out[i].Required || h.Required
				continue
			}
			index[key] = len(out)
			out = append(out, h)
		}
	}
	return out
}

// DetectContentNegotiation reports forced JSON negotiation, or nil
func (mc *MiddlewareClassifier) DetectContentNegotiation(middleware []string) *contract.ContentNegotiation {
	for _, entry := range middleware {
		name, _ := SplitMiddleware(entry)
		lower := strings.ToLower(name)
		if strings.Contains(lower, "json") || strings.Contains(lower, "accept") {
			return &contract.ContentNegotiation{
				Request:  []string{"application/json"},
				Response: []string{"application/json"},
			}
		}
	}
	return nil
}

type authRule struct {
	match func(lower, name, args string) bool
	auth  func(name, args string) contract.Auth
}

func (mc *MiddlewareClassifier) authRules() []authRule {
	return []authRule{
		{ // sanctum or the api guard
			match: func(lower, name, args string) bool {
				return strings.Contains(lower, "sanctum") || (name == "auth" && args == "api")
			},
			auth: func(name, args string) contract.Auth {
				provider := "sanctum"
				if args == "api" {
					provider = "api"
				}
				return contract.Auth{Type: contract.AuthBearer, Scheme: "bearer", Provider: provider}
			},
		},
		{ // passport, only when installed
			match: func(lower, name, args string) bool {
				return mc.Passport && (strings.Contains(lower, "passport") ||
					name == "client" || name == "scope" || name == "scopes")
			},
			auth: func(name, args string) contract.Auth {
				return contract.Auth{Type: contract.AuthOAuth2, Provider: "passport"}
			},
		},
		{
			match: func(lower, name, args string) bool { return strings.Contains(lower, "jwt") },
			auth: func(name, args string) contract.Auth {
				return contract.Auth{Type: contract.AuthBearer, Scheme: "bearer", Provider: "jwt"}
			},
		},
		{
			match: func(lower, name, args string) bool {
				return strings.Contains(lower, "apikey") || strings.Contains(lower, "api-key") || strings.Contains(lower, "api_key")
			},
			auth: func(name, args string) contract.Auth {
				return contract.Auth{Type: contract.AuthAPIKey, In: "header", Name: "X-API-Key"}
			},
		},
		{
			match: func(lower, name, args string) bool { return strings.Contains(lower, "oauth") },
			auth: func(name, args string) contract.Auth {
				return contract.Auth{Type: contract.AuthOAuth2}
			},
		},
		{
			match: func(lower, name, args string) bool { return strings.Contains(lower, "basic") },
			auth: func(name, args string) contract.Auth {
				return contract.Auth{Type: contract.AuthBasic, Scheme: "basic"}
			},
		},
		{
			match: func(lower, name, args string) bool { return name == "guest" },
			auth: func(name, args string) contract.Auth {
				return contract.Auth{Type: contract.AuthNone}
			},
		},
		{ // any other guard: auth, auth:web, auth:admin
			match: func(lower, name, args string) bool { return name == "auth" },
			auth: func(name, args string) contract.Auth {
				a := contract.Auth{Type: contract.AuthBearer, Scheme: "bearer"}
				if args != "" {
					a.Provider = args
				}
				return a
			},
		},
	}
}

// DetectAuth returns the authentication of the first middleware entry that
// matches any rule; rules are tried in a fixed order per entry.
func (mc *MiddlewareClassifier) DetectAuth(middleware []string) contract.Auth {
	rules := mc.authRules()
	for _, entry := range middleware {
		name, args := SplitMiddleware(entry)
		lowerName := strings.ToLower(name)
		lowerArgs := strings.ToLower(args)
		lower := strings.ToLower(strings.TrimSpace(entry))
		for _, rule := range rules {
			if rule.match(lower, lowerName, lowerArgs) {
				return rule.auth(lowerName, lowerArgs)
			}
		}
	}
	return contract.Auth{Type: contract.AuthNone}
}

// DetectRateLimit returns the throttle facts of the first throttle entry, or nil
func (mc *MiddlewareClassifier) DetectRateLimit(middleware []string) *contract.RateLimit {
	for _, entry := range middleware {
		name, args := SplitMiddleware(entry)
		if !strings.Contains(strings.ToLower(name), "throttle") {
			continue
		}
		return mc.rateLimit(args)
	}
	return nil
}

func (mc *MiddlewareClassifier) rateLimit(args string) *contract.RateLimit {
	if args == "" {
		// ThrottleRequests defaults
		return explicitLimit(60, 1)
	}

	parts := strings.Split(args, ",")
	if maxAttempts, err := strconv.Atoi(strings.TrimSpace(parts[0])); err == nil {
		decay := 1
		if len(parts) > 1 {
			if d, err := strconv.Atoi(strings.TrimSpace(parts[1])); err == nil {
				decay = d
			}
		}
		return explicitLimit(maxAttempts, decay)
	}

	name := strings.TrimSpace(parts[0])
	if cfg, ok := mc.RateLimiters[name]; ok {
		desc := cfg.Description
		if desc == "" {
			desc = describeLimit(cfg.MaxAttempts, cfg.DecayMinutes)
		}
		return &contract.RateLimit{Name: name, Description: desc}
	}
	if desc, ok := knownLimiters[name]; ok {
		return &contract.RateLimit{Name: name, Description: desc}
	}
	return &contract.RateLimit{Name: name, Description: "Rate limit: " + name}
}

func explicitLimit(maxAttempts, decay int) *contract.RateLimit {
	return &contract.RateLimit{MaxAttempts: maxAttempts, DecayMinutes: decay, Description: describeLimit(maxAttempts, decay)}
}

func describeLimit(maxAttempts, decay int) string {
	return fmt.Sprintf("%d requests per %d minute(s)", maxAttempts, decay)
}
