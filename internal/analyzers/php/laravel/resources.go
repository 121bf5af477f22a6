package laravel

import (
	"context"
	"fmt"
	"strings"

	"github.com/VKCOM/php-parser/pkg/ast"

	"github.com/doITmagic/api-contract-mcp/internal/analysis"
	"github.com/doITmagic/api-contract-mcp/internal/analyzers/php"
	"github.com/doITmagic/api-contract-mcp/internal/logging"
)

// ResourceRuntime evaluates API resource classes (JsonResource and
// ResourceCollection subclasses) statically against fixture attributes.
type ResourceRuntime struct {
	index    *php.Index
	props    *PropertyExtractor
	fixtures analysis.FixtureProvider
	log      *logging.Logger
}

// NewResourceRuntime creates a runtime. fixtures, when set, supplies the
// attributes of nested resources whose relation the outer fixture lacks.
func NewResourceRuntime(index *php.Index, fixtures analysis.FixtureProvider, log *logging.Logger) *ResourceRuntime {
	if log == nil {
		log = logging.Discard()
	}
	return &ResourceRuntime{index: index, props: NewPropertyExtractor(index), fixtures: fixtures, log: log}
}

// Exists reports whether class is an indexed, concrete resource class
func (r *ResourceRuntime) Exists(class string) bool {
	c := r.index.Class(class)
	if c == nil || c.IsAbstract {
		return false
	}
	if r.index.IsSubclassOf(c.FullName, "JsonResource") || r.index.IsSubclassOf(c.FullName, "ResourceCollection") {
		return true
	}
	return analysis.HasSerializerSuffix(c.Name)
}

// IsCollection reports whether class serializes a list
func (r *ResourceRuntime) IsCollection(class string) bool {
	if r.index.IsSubclassOf(class, "ResourceCollection") {
		return true
	}
	return strings.HasSuffix(php.ShortName(class), "Collection")
}

// ToArray implements analysis.SerializerRuntime
func (r *ResourceRuntime) ToArray(ctx context.Context, ref analysis.SerializerRef, fx *analysis.Fixture) (any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ref.Kind != analysis.SerializerCollection {
		return r.single(ctx, ref.Class, fx.Attributes, 0)
	}

	if !r.IsCollection(ref.Class) {
		// Resource::collection($items)
		item, err := r.single(ctx, ref.Class, fx.Attributes, 0)
		if err != nil {
			return nil, err
		}
		return []any{item}, nil
	}
	return r.collection(ctx, ref.Class, fx.Attributes, 0)
}

// collection evaluates a ResourceCollection over a one-item list
func (r *ResourceRuntime) collection(ctx context.Context, class string, attrs map[string]any, depth int) (any, error) {
	var item any = visible(attrs)
	if collects := r.collects(class); collects != "" {
		v, err := r.single(ctx, collects, attrs, depth+1)
		if err != nil {
			return nil, err
		}
		item = v
	}
	items := []any{item}

	m := r.index.Method(class, "toArray")
	if m == nil || m.Node == nil {
		return items, nil
	}
	scope := r.scope(ctx, m, attrs, depth)
	scope.This["collection"] = items
	v, ok := scope.Exec(php.Body(m.Node))
	if !ok {
		return nil, fmt.Errorf("%s::toArray() has no return statement", php.ShortName(class))
	}
	return finalize(scope, v), nil
}

// collects returns the item resource of a collection: the $collects
// property, else PostCollection -> Post, PostResource
func (r *ResourceRuntime) collects(class string) string {
	c := r.index.Class(class)
	if c == nil {
		return ""
	}
	if v := r.props.String(c, "collects"); v != "" && r.Exists(v) {
		return v
	}
	base := strings.TrimSuffix(c.Name, "Collection")
	if base == "" {
		return ""
	}
	prefix := ""
	if c.Namespace != "" {
		prefix = c.Namespace + `\`
	}
	for _, candidate := range []string{prefix + base + "Resource", prefix + base} {
		if r.Exists(candidate) && !r.IsCollection(candidate) {
			return candidate
		}
	}
	return ""
}

// single evaluates a JsonResource's toArray(); without one the resource
// returns the model's visible attributes
func (r *ResourceRuntime) single(ctx context.Context, class string, attrs map[string]any, depth int) (any, error) {
	if depth > maxDepth {
		return nil, nil
	}
	m := r.index.Method(class, "toArray")
	if m == nil || m.Node == nil {
		return visible(attrs), nil
	}
	scope := r.scope(ctx, m, attrs, depth)
	v, ok := scope.Exec(php.Body(m.Node))
	if !ok {
		return nil, fmt.Errorf("%s::toArray() has no return statement", php.ShortName(class))
	}
	switch out := finalize(scope, v).(type) {
	case map[string]any:
		return out, nil
	case []any:
		if len(out) == 0 {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("%s::toArray() returned a list", php.ShortName(class))
	case nil:
		return nil, fmt.Errorf("%s::toArray() returned null", php.ShortName(class))
	default:
		return nil, fmt.Errorf("%s::toArray() returned %T, not an array", php.ShortName(class), out)
	}
}

func (r *ResourceRuntime) scope(ctx context.Context, m *php.MethodInfo, attrs map[string]any, depth int) *Scope {
	owner := r.index.Class(m.ClassName)
	scope := NewScope(r.index, owner)
	scope.depth = depth
	scope.This = make(map[string]any, len(attrs)+1)
	for k, v := range attrs {
		scope.This[k] = v
	}
	scope.This["resource"] = attrs
	scope.Hook = r.hook(ctx, attrs, depth)
	return scope
}

// hook answers the JsonResource API and nested resource construction
func (r *ResourceRuntime) hook(ctx context.Context, attrs map[string]any, depth int) CallHook {
	return func(s *Scope, call ast.Vertex) (any, bool) {
		args := php.CallArgs(call)
		name := strings.ToLower(php.CallName(call))

		switch n := call.(type) {
		case *ast.ExprMethodCall:
			if !php.IsThis(n.Var) {
				return nil, false
			}
			return r.resourceMethod(s, attrs, name, args)

		case *ast.ExprStaticCall:
			written := php.NameOf(n.Class)
			if strings.EqualFold(written, "parent") && name == "toarray" {
				return r.parentToArray(ctx, s, attrs, depth), true
			}
			class := s.Resolve(written)
			if !r.Exists(class) {
				return nil, false
			}
			switch name {
			case "make":
				return r.nested(ctx, class, s.arg(args, 0), depth), true
			case "collection":
				return r.nestedList(ctx, class, s.arg(args, 0), depth), true
			}

		case *ast.ExprNew:
			class := s.Resolve(php.NameOf(n.Class))
			if !r.Exists(class) {
				return nil, false
			}
			if r.IsCollection(class) {
				return r.nestedList(ctx, class, s.arg(args, 0), depth), true
			}
			return r.nested(ctx, class, s.arg(args, 0), depth), true
		}
		return nil, false
	}
}

func (r *ResourceRuntime) resourceMethod(s *Scope, attrs map[string]any, name string, args []ast.Vertex) (any, bool) {
	switch name {
	case "whenloaded", "whencounted", "whenaggregated", "whenpivotloaded", "whenpivotloadedas":
		relation := ToString(s.arg(args, 0))
		if name == "whencounted" {
			relation = strings.TrimSuffix(relation, "_count") + "_count"
		}
		if v, ok := attrs[relation]; ok {
			if len(args) > 1 {
				return s.Value(s.arg(args, 1)), true
			}
			return v, true
		}
		if len(args) > 2 {
			return s.Value(s.arg(args, 2)), true
		}
		return Missing, true
	case "when", "unless":
		if len(args) < 2 {
			return Missing, true
		}
		return s.Value(s.arg(args, 1)), true
	case "whennotnull":
		v := s.Value(s.arg(args, 0))
		if v == nil {
			return Missing, true
		}
		if len(args) > 1 {
			return s.Value(s.arg(args, 1)), true
		}
		return v, true
	case "whenhas":
		attr := ToString(s.arg(args, 0))
		v, ok := attrs[attr]
		if !ok {
			return Missing, true
		}
		if len(args) > 1 {
			return s.Value(s.arg(args, 1)), true
		}
		return v, true
	case "merge":
		return asMerged(s.Value(s.arg(args, 0))), true
	case "mergewhen", "mergeunless":
		return asMerged(s.Value(s.arg(args, 1))), true
	case "attributes":
		out := merged{}
		for _, attr := range stringsOf(s.arg(args, 0)) {
			if v, ok := attrs[attr]; ok {
				out[attr] = v
			}
		}
		return out, true
	case "getkey", "getroutekey":
		return attrs["id"], true
	}
	return nil, false
}

func asMerged(v any) any {
	if m, ok := v.(map[string]any); ok {
		return merged(m)
	}
	return Missing
}

// parentToArray evaluates parent::toArray(): an application base resource
// when indexed, else the framework's attribute dump
func (r *ResourceRuntime) parentToArray(ctx context.Context, s *Scope, attrs map[string]any, depth int) any {
	if s.Class != nil && s.Class.Extends != "" && r.index.Method(s.Class.Extends, "toArray") != nil {
		if v, err := r.single(ctx, s.Class.Extends, attrs, depth+1); err == nil {
			return v
		}
	}
	if items, ok := s.This["collection"]; ok {
		return items
	}
	return visible(attrs)
}

// nested evaluates new UserResource($this->author) and UserResource::make()
func (r *ResourceRuntime) nested(ctx context.Context, class string, arg any, depth int) any {
	if arg == Missing {
		return Missing
	}
	attrs := r.nestedAttributes(ctx, class, arg)
	if attrs == nil {
		return nil
	}
	if r.IsCollection(class) {
		v, err := r.collection(ctx, class, attrs, depth+1)
		if err != nil {
			r.log.Debug("nested collection %s: %v", class, err)
			return nil
		}
		return v
	}
	v, err := r.single(ctx, class, attrs, depth+1)
	if err != nil {
		r.log.Debug("nested resource %s: %v", class, err)
		return nil
	}
	return v
}

// nestedList evaluates CommentResource::collection($this->comments)
func (r *ResourceRuntime) nestedList(ctx context.Context, class string, arg any, depth int) any {
	if arg == Missing {
		return Missing
	}
	if list, ok := arg.([]any); ok && len(list) > 0 {
		if m, ok := list[0].(map[string]any); ok {
			arg = m
		}
	}
	item := r.nested(ctx, class, arg, depth)
	if item == nil {
		return []any{}
	}
	if list, ok := item.([]any); ok {
		return list
	}
	return []any{item}
}

// nestedAttributes uses the argument when it is a loaded relation, else a
// fixture of the resource's model
func (r *ResourceRuntime) nestedAttributes(ctx context.Context, class string, arg any) map[string]any {
	if m, ok := arg.(map[string]any); ok {
		return m
	}
	if r.fixtures == nil {
		return nil
	}
	fx, err := r.fixtures.Fixture(ctx, analysis.ModelName(class))
	if err != nil {
		r.log.Debug("no fixture for nested %s: %v", class, err)
		return nil
	}
	return fx.Clone().Attributes
}

// finalize resolves closures and merges left in a result
func finalize(s *Scope, v any) any {
	switch t := v.(type) {
	case closure:
		return finalize(s, s.Value(t))
	case merged:
		return finalize(s, map[string]any(t))
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			val = finalize(s, val)
			if val == Missing {
				continue
			}
			out[k] = val
		}
		return out
	case []any:
		out := make([]any, 0, len(t))
		for _, val := range t {
			val = finalize(s, val)
			if val == Missing {
				continue
			}
			out = append(out, val)
		}
		return out
	}
	return v
}

// visible copies attributes for the framework's default toArray()
func visible(attrs map[string]any) map[string]any {
	out := make(map[string]any, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
