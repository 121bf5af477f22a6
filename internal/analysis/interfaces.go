package analysis

import (
	"context"
	"strings"

	"github.com/VKCOM/php-parser/pkg/ast"

	"github.com/doITmagic/api-contract-mcp/internal/analyzers/php"
)

// HandlerKind tells closures from controller actions
type HandlerKind int

const (
	HandlerClosure HandlerKind = iota
	HandlerMethod
)

// Handler is the resolved action of a route
type Handler struct {
	Kind   HandlerKind
	Class  string // FQCN, controller actions only
	Method string

	// Closure handlers parsed from route files carry their syntax tree and
	// the name context of the declaring file.
	Closure   ast.Vertex
	File      string
	Namespace string
	Imports   map[string]string
}

// String renders the action as Laravel prints it
func (h Handler) String() string {
	if h.Kind == HandlerClosure {
		return "Closure"
	}
	return h.Class + "@" + h.Method
}

// ParseAction parses "Class@method", an invokable "Class" or "Closure"
func ParseAction(action string) (Handler, bool) {
	action = strings.TrimPrefix(strings.TrimSpace(action), `\`)
	if action == "" || strings.EqualFold(action, "Closure") {
		return Handler{Kind: HandlerClosure}, true
	}
	class, method, found := strings.Cut(action, "@")
	if !found {
		method = "__invoke"
	}
	if class == "" || method == "" || strings.Contains(method, "@") {
		return Handler{}, false
	}
	return Handler{Kind: HandlerMethod, Class: class, Method: method}, true
}

// RouteRecord is one entry of the host framework's route table
type RouteRecord struct {
	URI        string
	Methods    []string
	Middleware []string
	Handler    Handler
	Name       string
	Source     string // route file, when known
	// Malformed is set when the action reference could not be parsed
	Malformed string
}

// RouteRegistry provides the route table
type RouteRegistry interface {
	Routes(ctx context.Context) ([]RouteRecord, error)
}

// Reflector is the read-only view of the application's classes
type Reflector interface {
	Class(fqcn string) *php.ClassInfo
	Method(fqcn, name string) *php.MethodInfo
	FindByShortName(name string) []*php.ClassInfo
	IsSubclassOf(fqcn, base string) bool
}

// Fixture is a lightweight, never persisted model instance
type Fixture struct {
	Model      string
	Attributes map[string]any
}

// Clone returns a copy safe to mutate
func (f *Fixture) Clone() *Fixture {
	attrs := make(map[string]any, len(f.Attributes))
	for k, v := range f.Attributes {
		attrs[k] = v
	}
	return &Fixture{Model: f.Model, Attributes: attrs}
}

// FixtureProvider builds example model instances. It returns ErrModelNotFound
// or ErrNoFactory when the model cannot be built at all, and any other error
// when construction itself failed.
type FixtureProvider interface {
	Fixture(ctx context.Context, model string) (*Fixture, error)
}

// SerializerRuntime evaluates serializer classes against fixtures
type SerializerRuntime interface {
	Exists(class string) bool
	IsCollection(class string) bool
	// ToArray returns the serializer's output for fx. For SerializerCollection
	// the result is the collection payload (usually a list of items).
	ToArray(ctx context.Context, ref SerializerRef, fx *Fixture) (any, error)
}

// ModelInspector answers questions about domain models
type ModelInspector interface {
	IsModel(fqcn string) bool
	// KeyType is "integer" or "string"
	KeyType(fqcn string) (string, error)
}

// RuleSource returns the validation rules a handler applies, keyed by field
type RuleSource interface {
	Rules(ctx context.Context, h Handler) (map[string]any, error)
}

// SerializerKind tags what a handler responds with
type SerializerKind int

const (
	SerializerUnresolved SerializerKind = iota
	SerializerSingle
	SerializerCollection
)

func (k SerializerKind) String() string {
	switch k {
	case SerializerSingle:
		return "single"
	case SerializerCollection:
		return "collection"
	}
	return "unresolved"
}

// SerializerRef names the serializer backing a response
type SerializerRef struct {
	Kind  SerializerKind
	Class string
}

// Resolved reports whether a serializer class was found
func (r SerializerRef) Resolved() bool {
	return r.Kind != SerializerUnresolved && r.Class != ""
}
