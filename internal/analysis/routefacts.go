package analysis

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"

	"github.com/doITmagic/api-contract-mcp/internal/analyzers/php"
	"github.com/doITmagic/api-contract-mcp/internal/cache"
	"github.com/doITmagic/api-contract-mcp/internal/contract"
	"github.com/doITmagic/api-contract-mcp/internal/logging"
)

// TypeRouteFacts is the cache type of per-route facts
const TypeRouteFacts = "route_facts"

// RouteFacts are the per (route, method) facts that need no schema work
type RouteFacts struct {
	PathParameters     []contract.PathParameter     `json:"path_parameters"`
	Auth               contract.Auth                `json:"auth"`
	CustomHeaders      []contract.Header            `json:"custom_headers"`
	RateLimit          *contract.RateLimit          `json:"rate_limit"`
	APIVersion         *string                      `json:"api_version"`
	Middleware         []contract.Middleware        `json:"middleware"`
	ContentNegotiation *contract.ContentNegotiation `json:"content_negotiation"`
}

var (
	placeholderRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)(?::([A-Za-z0-9_]+))?(\?)?\}`)
	versionRe     = regexp.MustCompile(`^v\d+$`)
)

// webhookSignature is required on webhook receivers
var webhookSignature = contract.Header{
	Name:        "X-Webhook-Signature",
	Required:    true,
	Description: "Signature used to verify the webhook payload",
}

// RouteFactExtractor derives path parameters, auth, throttling, headers and
// API version for a route.
type RouteFactExtractor struct {
	reflector  Reflector
	models     ModelInspector
	classifier *MiddlewareClassifier
	cache      *cache.AnalysisCache
	log        *logging.Logger
}

// NewRouteFactExtractor creates an extractor. c may be nil.
func NewRouteFactExtractor(r Reflector, models ModelInspector, mc *MiddlewareClassifier, c *cache.AnalysisCache, log *logging.Logger) *RouteFactExtractor {
	if log == nil {
		log = logging.Discard()
	}
	return &RouteFactExtractor{reflector: r, models: models, classifier: mc, cache: c, log: log}
}

// Extract returns the facts of route for one HTTP method. It fails with a
// RouteAnalysisError when the handler cannot be reached.
func (x *RouteFactExtractor) Extract(route RouteRecord, method string) (*RouteFacts, error) {
	var m *php.MethodInfo
	if route.Malformed != "" {
		return nil, RouteError(CodeMalformedAction,
			"Malformed route action: "+route.Malformed,
			"Use [Controller::class, 'method'], 'Controller@method' or a closure as the route action", nil)
	}
	if route.Handler.Kind == HandlerMethod {
		if x.reflector.Class(route.Handler.Class) == nil {
			return nil, RouteError(CodeHandlerNotFound,
				"Controller "+route.Handler.Class+" not found",
				"Check the controller's namespace and that its file is under the configured app path", nil)
		}
		m = x.reflector.Method(route.Handler.Class, route.Handler.Method)
		if m == nil {
			return nil, RouteError(CodeMethodNotFound,
				"Method "+route.Handler.String()+" not found",
				"Add the action to the controller or fix the route definition", nil)
		}
	}

	params := x.PathParameters(route.URI, m)
	id, file := x.cacheID(route, method, m, params)
	if facts, ok := x.cached(id, file); ok {
		return facts, nil
	}

	facts := &RouteFacts{
		PathParameters:     params,
		Auth:               x.classifier.DetectAuth(route.Middleware),
		RateLimit:          x.classifier.DetectRateLimit(route.Middleware),
		APIVersion:         APIVersion(route.URI),
		Middleware:         x.classifier.Classify(route.Middleware),
		ContentNegotiation: x.classifier.DetectContentNegotiation(route.Middleware),
	}
	facts.CustomHeaders = MergeHeaders(handlerHeaders(route.Handler), x.classifier.RequiredHeaders(route.Middleware))

	if x.cache != nil {
		if err := x.cache.Put(TypeRouteFacts, id, facts); err != nil {
			x.log.Warn("failed to cache route facts %s: %v", id, err)
		}
	}
	return facts, nil
}

// cacheID keys facts by route identity and method. The hash covers what the
// facts are derived from: action, middleware, classifier state and the
// parameter types, which follow the bound models' key types.
func (x *RouteFactExtractor) cacheID(route RouteRecord, method string, m *php.MethodInfo, params []contract.PathParameter) (string, string) {
	ident := route.Name
	if ident == "" {
		ident = route.URI
	}
	h := sha256.New()
	fmt.Fprintf(h, "%s|%s|%s|%s", route.Handler.String(), route.URI, strings.Join(route.Middleware, ","), x.classifier.Fingerprint())
	for _, p := range params {
		fmt.Fprintf(h, "|%s:%s", p.Name, p.Type)
	}
	sum := h.Sum(nil)
	id := ident + "|" + strings.ToUpper(method) + "|" + hex.EncodeToString(sum[:8])

	file := route.Source
	if m != nil {
		file = m.FilePath
	}
	return id, file
}

func (x *RouteFactExtractor) cached(id, file string) (*RouteFacts, bool) {
	if x.cache == nil || file == "" {
		return nil, false
	}
	if !x.cache.IsValidForFile(TypeRouteFacts, id, file) {
		return nil, false
	}
	var facts RouteFacts
	if !x.cache.Get(TypeRouteFacts, id, &facts) {
		return nil, false
	}
	return &facts, true
}

func handlerHeaders(h Handler) []contract.Header {
	if strings.Contains(strings.ToLower(h.String()), "webhook") {
		return []contract.Header{webhookSignature}
	}
	return nil
}

// PathParameters extracts {name} and {name?} placeholders in order and types
// them from the handler's signature (m may be nil).
func (x *RouteFactExtractor) PathParameters(uri string, m *php.MethodInfo) []contract.PathParameter {
	params := []contract.PathParameter{}
	for _, match := range placeholderRe.FindAllStringSubmatch(uri, -1) {
		name, field, optional := match[1], match[2], match[3] == "?"
		params = append(params, contract.PathParameter{
			Name:     name,
			Type:     x.parameterType(name, field, m),
			Required: !optional,
		})
	}
	return params
}

func (x *RouteFactExtractor) parameterType(name, bindingField string, m *php.MethodInfo) string {
	if bindingField != "" {
		// {post:slug} binds by a custom column
		if bindingField == "id" {
			return "integer"
		}
		return "string"
	}

	if p := handlerParam(m, name); p != nil && p.Type != "" {
		if t, ok := builtinParamType(p.Type); ok {
			return t
		}
		if !php.IsBuiltinType(p.Type) && x.models != nil && x.models.IsModel(p.Type) {
			keyType, err := x.models.KeyType(p.Type)
			if err != nil || keyType == "" {
				return "integer"
			}
			return keyType
		}
	}
	return NameHeuristicType(name)
}

func handlerParam(m *php.MethodInfo, name string) *php.ParamInfo {
	if m == nil {
		return nil
	}
	camel := Camel(name)
	for i := range m.Params {
		if m.Params[i].Name == name || m.Params[i].Name == camel {
			return &m.Params[i]
		}
	}
	return nil
}

func builtinParamType(t string) (string, bool) {
	switch strings.ToLower(t) {
	case "int", "integer":
		return "integer", true
	case "float", "double":
		return "number", true
	case "bool", "boolean":
		return "boolean", true
	case "string":
		return "string", true
	}
	return "", false
}

// NameHeuristicType types a parameter from its name alone
func NameHeuristicType(name string) string {
	lower := strings.ToLower(name)
	switch {
	case lower == "id" || lower == "uuid" || strings.HasSuffix(lower, "_id") || strings.HasSuffix(name, "Id"):
		return "integer"
	case strings.Contains(lower, "slug") || strings.Contains(lower, "hash") || strings.Contains(lower, "token"):
		return "string"
	}
	return "string"
}

// APIVersion returns the first v<digits> segment after /api/, or nil
func APIVersion(uri string) *string {
	segments := strings.Split(strings.Trim(uri, "/"), "/")
	if len(segments) < 2 || !strings.EqualFold(segments[0], "api") {
		return nil
	}
	for _, seg := range segments[1:] {
		if versionRe.MatchString(strings.ToLower(seg)) {
			v := strings.ToLower(seg)
			return &v
		}
	}
	return nil
}
