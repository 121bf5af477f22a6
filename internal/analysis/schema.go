package analysis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/doITmagic/api-contract-mcp/internal/analyzers/php"
	"github.com/doITmagic/api-contract-mcp/internal/cache"
	"github.com/doITmagic/api-contract-mcp/internal/config"
	"github.com/doITmagic/api-contract-mcp/internal/contract"
	"github.com/doITmagic/api-contract-mcp/internal/logging"
)

const (
	// TypeResourceSchema is the cache type of synthesized response schemas
	TypeResourceSchema = "resource_schema"
	// DefaultPerPage is the page size of synthesized paginated collections
	DefaultPerPage = 15

	paginatorURL = "http://localhost"
)

// FixtureTimestamp is written into unset temporal attributes
const FixtureTimestamp = "2024-01-01T00:00:00.000000Z"

var temporalAttributes = []string{"created_at", "updated_at", "published_at", "deleted_at"}

// SchemaSynthesizer produces response schemas by running a serializer over
// a fixture and describing the shape of what comes out.
type SchemaSynthesizer struct {
	reflector  Reflector
	runtime    SerializerRuntime
	fixtures   FixtureProvider
	cache      *cache.AnalysisCache
	namespaces config.NamespacesConfig
	log        *logging.Logger
	known      []string
}

// NewSchemaSynthesizer wires the synthesizer to its collaborators. c may be nil.
func NewSchemaSynthesizer(r Reflector, rt SerializerRuntime, fp FixtureProvider, c *cache.AnalysisCache, ns config.NamespacesConfig, log *logging.Logger) *SchemaSynthesizer {
	if log == nil {
		log = logging.Discard()
	}
	return &SchemaSynthesizer{reflector: r, runtime: rt, fixtures: fp, cache: c, namespaces: ns, log: log}
}

// SetKnownSerializers records the serializer classes found by a pre-scan;
// the fallback search tries those whose name overlaps the route's resource.
func (s *SchemaSynthesizer) SetKnownSerializers(classes []string) {
	s.known = append([]string(nil), classes...)
	sort.Strings(s.known)
}

// Resolve returns the response schema for a route. With an unresolved ref
// it falls back to naming conventions derived from routePath. The returned
// error, if any, is an *Error describing why the schema is degraded; the
// schema is still usable.
func (s *SchemaSynthesizer) Resolve(ctx context.Context, ref SerializerRef, routePath string) (*contract.Schema, error) {
	if ref.Resolved() {
		return s.Synthesize(ctx, ref)
	}

	var failed *contract.Schema
	var firstErr error
	for _, candidate := range s.FallbackCandidates(routePath) {
		if !s.runtime.Exists(candidate) {
			continue
		}
		schema, err := s.Synthesize(ctx, SerializerRef{Kind: kindFor(candidate, ""), Class: candidate})
		if err != nil {
			s.log.Debug("fallback candidate %s failed: %v", candidate, err)
			if firstErr == nil {
				failed, firstErr = schema, err
			}
			continue
		}
		if !schema.IsUndocumented() {
			s.log.Debug("response schema for %s from convention: %s", routePath, candidate)
			return schema, nil
		}
	}
	if firstErr != nil {
		return failed, firstErr
	}
	return contract.Undocumented(), nil
}

// Synthesize builds the schema for a known serializer class
func (s *SchemaSynthesizer) Synthesize(ctx context.Context, ref SerializerRef) (*contract.Schema, error) {
	if !s.runtime.Exists(ref.Class) {
		return contract.Undocumented(), nil
	}
	if ref.Kind == SerializerSingle && s.runtime.IsCollection(ref.Class) {
		ref.Kind = SerializerCollection
	}

	id := ref.Class + "#" + ref.Kind.String()
	file := ""
	if class := s.reflector.Class(ref.Class); class != nil {
		file = class.FilePath
	}

	if cached, ok := s.cached(id, file); ok {
		if cached.Error != "" {
			return cached, failureError(ref.Class, cached.Error, nil)
		}
		return cached, nil
	}

	model := ModelName(ref.Class)
	fx, err := s.fixtures.Fixture(ctx, model)
	switch {
	case errors.Is(err, ErrModelNotFound), errors.Is(err, ErrNoFactory):
		s.log.Debug("no fixture for %s (%s): %v", model, ref.Class, err)
		return contract.Undocumented(), nil
	case err != nil:
		return s.fail(id, ref.Class, factoryFailed, err)
	}

	fx = fx.Clone()
	for _, attr := range temporalAttributes {
		if v, ok := fx.Attributes[attr]; !ok || v == nil {
			fx.Attributes[attr] = FixtureTimestamp
		}
	}

	payload, err := s.runtime.ToArray(ctx, ref, fx)
	if err != nil {
		return s.fail(id, ref.Class, serializerFailed, err)
	}
	if ref.Kind == SerializerCollection {
		payload = Paginate(payload, DefaultPerPage, paginatorURL)
	}

	schema := DataToSchema(payload)
	schema.Example = payload
	s.store(id, schema)
	return schema, nil
}

const (
	factoryFailed    = "Factory failed"
	serializerFailed = "Serializer failed"
)

func (s *SchemaSynthesizer) fail(id, class, reason string, cause error) (*contract.Schema, error) {
	schema := &contract.Schema{Undocumented: true, Error: reason}
	s.store(id, schema)
	return schema, failureError(class, reason, cause)
}

func failureError(class, reason string, cause error) *Error {
	model := ModelName(class)
	if reason == serializerFailed {
		return ResourceError(CodeSerializerFailed,
			fmt.Sprintf("Serializer %s failed on a %s fixture", php.ShortName(class), model),
			fmt.Sprintf("Check %s::toArray() for attributes or relations the fixture does not provide", php.ShortName(class)),
			cause)
	}
	return ResourceError(CodeFactoryFailed,
		fmt.Sprintf("Could not build a %s fixture for %s", model, php.ShortName(class)),
		fmt.Sprintf("Fix %sFactory::definition() or add a fixture file for %s", model, model),
		cause)
}

func (s *SchemaSynthesizer) cached(id, file string) (*contract.Schema, bool) {
	if s.cache == nil {
		return nil, false
	}
	if file != "" && !s.cache.IsValidForFile(TypeResourceSchema, id, file) {
		return nil, false
	}
	var schema contract.Schema
	if !s.cache.Get(TypeResourceSchema, id, &schema) {
		return nil, false
	}
	return &schema, true
}

func (s *SchemaSynthesizer) store(id string, schema *contract.Schema) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Put(TypeResourceSchema, id, schema); err != nil {
		s.log.Warn("failed to cache schema %s: %v", id, err)
	}
}

// ModelName strips serializer suffixes: PostResourceCollection -> Post
func ModelName(class string) string {
	name := php.ShortName(class)
	for {
		stripped := name
		for _, suffix := range SerializerSuffixes {
			if strings.HasSuffix(stripped, suffix) && len(stripped) > len(suffix) {
				stripped = strings.TrimSuffix(stripped, suffix)
			}
		}
		if stripped == name {
			return name
		}
		name = stripped
	}
}

// FallbackCandidates lists serializer classes that may back routePath, from
// its last static segment: Name+suffix in the serializer namespace, then in
// each conventional sub-namespace, then pre-scanned serializers whose names
// overlap.
func (s *SchemaSynthesizer) FallbackCandidates(routePath string) []string {
	segment := LastStaticSegment(routePath)
	if segment == "" {
		return nil
	}
	name := Studly(Singular(segment))
	if name == "" {
		return nil
	}

	var out []string
	seen := map[string]bool{}
	add := func(c string) {
		key := strings.ToLower(c)
		if !seen[key] {
			seen[key] = true
			out = append(out, c)
		}
	}

	root := strings.Trim(s.namespaces.Resources, `\`)
	for _, suffix := range SerializerSuffixes {
		add(root + `\` + name + suffix)
	}
	for _, sub := range s.namespaces.ResourceSubnamespaces {
		for _, suffix := range SerializerSuffixes {
			add(root + `\` + strings.Trim(sub, `\`) + `\` + name + suffix)
		}
	}

	lowerName := strings.ToLower(name)
	for _, known := range s.known {
		short := strings.ToLower(php.ShortName(known))
		base := strings.ToLower(ModelName(known))
		if strings.Contains(short, lowerName) || (base != "" && strings.Contains(lowerName, base)) {
			add(known)
		}
	}
	return out
}

// LastStaticSegment returns the last URI segment that is not a {parameter}
func LastStaticSegment(uri string) string {
	parts := strings.Split(strings.Trim(uri, "/"), "/")
	for i := len(parts) - 1; i >= 0; i-- {
		p := parts[i]
		if p == "" || strings.HasPrefix(p, "{") {
			continue
		}
		return p
	}
	return ""
}

// DataToSchema describes the structure of a serializer's output
func DataToSchema(value any) *contract.Schema {
	switch v := value.(type) {
	case map[string]any:
		props := make(map[string]*contract.Schema, len(v))
		for k, child := range v {
			props[k] = DataToSchema(child)
		}
		return &contract.Schema{Type: "object", Properties: props}
	case []any:
		if len(v) == 0 {
			return &contract.Schema{Type: "array", Items: &contract.Schema{}}
		}
		return &contract.Schema{Type: "array", Items: DataToSchema(v[0])}
	}
	return &contract.Schema{Type: TypeName(value)}
}

// TypeName returns the JSON type name of a scalar value
func TypeName(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return "integer"
	case float32, float64:
		return "number"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	}
	return "string"
}

// Paginate wraps a collection payload the way a paginated resource response
// does: data plus links and meta for a single page.
func Paginate(payload any, perPage int, url string) map[string]any {
	count := 0
	switch p := payload.(type) {
	case []any:
		count = len(p)
	case map[string]any:
		if data, ok := p["data"].([]any); ok {
			count = len(data)
		}
	}

	from, to := any(1), any(count)
	if count == 0 {
		from, to = nil, nil
	}
	first := url + "?page=1"

	out := map[string]any{}
	if m, ok := payload.(map[string]any); ok && m["data"] != nil {
		for k, v := range m {
			out[k] = v
		}
	} else {
		out["data"] = payload
	}
	out["links"] = map[string]any{
		"first": first,
		"last":  first,
		"prev":  nil,
		"next":  nil,
	}
	out["meta"] = map[string]any{
		"current_page": 1,
		"from":         from,
		"last_page":    1,
		"links": []any{
			map[string]any{"url": nil, "label": "&laquo; Previous", "active": false},
			map[string]any{"url": first, "label": "1", "active": true},
			map[string]any{"url": nil, "label": "Next &raquo;", "active": false},
		},
		"path":     url,
		"per_page": perPage,
		"to":       to,
		"total":    count,
	}
	return out
}
