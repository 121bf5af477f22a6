package analysis

import (
	"regexp"
	"strings"

	"github.com/VKCOM/php-parser/pkg/ast"

	"github.com/doITmagic/api-contract-mcp/internal/analyzers/php"
	"github.com/doITmagic/api-contract-mcp/internal/config"
	"github.com/doITmagic/api-contract-mcp/internal/logging"
)

// SerializerSuffixes are the class-name suffixes of serializer classes
var SerializerSuffixes = []string{"Resource", "Collection"}

// framework base classes never count as an application's serializer
var serializerBases = map[string]bool{
	"jsonresource":                true,
	"resourcecollection":          true,
	"anonymousresourcecollection": true,
	"resource":                    true,
	"collection":                  true,
}

// SerializerResolver finds the serializer a handler responds with. It only
// inspects the handler's declared body (syntax tree, or source text when the
// file could not be parsed) and never runs it. Matching is best effort.
type SerializerResolver struct {
	reflector  Reflector
	namespaces config.NamespacesConfig
	log        *logging.Logger
	memo       map[string]SerializerRef
}

// NewSerializerResolver creates a resolver over the class index
func NewSerializerResolver(r Reflector, ns config.NamespacesConfig, log *logging.Logger) *SerializerResolver {
	if log == nil {
		log = logging.Discard()
	}
	return &SerializerResolver{reflector: r, namespaces: ns, log: log, memo: map[string]SerializerRef{}}
}

// Resolve returns the serializer backing h, or an unresolved ref
func (sr *SerializerResolver) Resolve(h Handler) SerializerRef {
	if h.Kind == HandlerClosure {
		if h.Closure == nil {
			return SerializerRef{}
		}
		return sr.matchAST(h.Closure, h.Namespace, h.Imports)
	}

	key := h.String()
	if ref, ok := sr.memo[key]; ok {
		return ref
	}
	ref := sr.resolveMethod(h)
	sr.memo[key] = ref
	if ref.Resolved() {
		sr.log.Debug("serializer for %s: %s (%s)", key, ref.Class, ref.Kind)
	}
	return ref
}

func (sr *SerializerResolver) resolveMethod(h Handler) SerializerRef {
	m := sr.reflector.Method(h.Class, h.Method)
	if m == nil {
		return SerializerRef{}
	}
	var namespace string
	var imports map[string]string
	if decl := sr.reflector.Class(m.ClassName); decl != nil {
		namespace, imports = decl.Namespace, decl.Imports
	}

	if ref := sr.fromReturnType(m.ReturnType); ref.Resolved() {
		return ref
	}
	if m.Node != nil && m.Node.Stmt != nil {
		return sr.matchAST(m.Node.Stmt, namespace, imports)
	}
	return sr.MatchText(m.Code, namespace, imports)
}

// fromReturnType uses a declared serializer return type
func (sr *SerializerResolver) fromReturnType(rt string) SerializerRef {
	if rt == "" || php.IsBuiltinType(rt) || serializerBases[strings.ToLower(php.ShortName(rt))] {
		return SerializerRef{}
	}
	if !HasSerializerSuffix(php.ShortName(rt)) && !sr.reflector.IsSubclassOf(rt, "JsonResource") {
		return SerializerRef{}
	}
	if sr.reflector.Class(rt) == nil {
		return SerializerRef{}
	}
	return SerializerRef{Kind: kindFor(rt, ""), Class: rt}
}

// HasSerializerSuffix reports whether a short class name reads like a
// serializer (PostResource, PostCollection)
func HasSerializerSuffix(short string) bool {
	if serializerBases[strings.ToLower(short)] {
		return false
	}
	for _, s := range SerializerSuffixes {
		if strings.HasSuffix(short, s) && len(short) > len(s) {
			return true
		}
	}
	return false
}

// kindFor decides single vs collection from the factory method and name
func kindFor(class, factory string) SerializerKind {
	if strings.EqualFold(factory, "collection") || strings.HasSuffix(php.ShortName(class), "Collection") {
		return SerializerCollection
	}
	return SerializerSingle
}

// matchAST runs the patterns in order over every call in body
func (sr *SerializerResolver) matchAST(body ast.Vertex, namespace string, imports map[string]string) SerializerRef {
	calls := php.Calls(body)
	isSerializer := func(name string) bool {
		if HasSerializerSuffix(php.ShortName(name)) {
			return true
		}
		// aliased import: use Foo\PostResource as Posts;
		for alias, full := range imports {
			if strings.EqualFold(alias, name) {
				return HasSerializerSuffix(php.ShortName(full))
			}
		}
		return false
	}

	// calls includes nested calls, so payloads wrapped in helpers such as
	// $this->success(...) or response()->json(...) are caught by the
	// factory and construction patterns
	passes := []matcher{
		staticFactory,
		construction,
		resourceConversion,
	}

	for _, match := range passes {
		for _, call := range calls {
			name, factory, ok := match(call, isSerializer)
			if !ok {
				continue
			}
			if fqcn := sr.ResolveClass(name, namespace, imports); fqcn != "" {
				return SerializerRef{Kind: kindFor(fqcn, factory), Class: fqcn}
			}
			sr.log.Debug("serializer %s matched but could not be resolved", name)
		}
	}
	return SerializerRef{}
}

// matcher inspects one call node; isSerializer decides whether a written
// class name refers to a serializer
type matcher func(call ast.Vertex, isSerializer func(string) bool) (name, factory string, ok bool)

// staticFactory matches XResource::make( and XResource::collection(
func staticFactory(call ast.Vertex, isSerializer func(string) bool) (string, string, bool) {
	n, ok := php.Unwrap(call).(*ast.ExprStaticCall)
	if !ok {
		return "", "", false
	}
	factory := strings.ToLower(php.CallName(n))
	if factory != "make" && factory != "collection" {
		return "", "", false
	}
	name := php.NameOf(n.Class)
	if !isSerializer(name) {
		return "", "", false
	}
	return name, factory, true
}

// construction matches new XResource(
func construction(call ast.Vertex, isSerializer func(string) bool) (string, string, bool) {
	n, ok := php.Unwrap(call).(*ast.ExprNew)
	if !ok {
		return "", "", false
	}
	name := php.NameOf(n.Class)
	if !isSerializer(name) {
		return "", "", false
	}
	return name, "new", true
}

// resourceConversion matches ->toResourceCollection(X::class) and ->toResource(X::class)
func resourceConversion(call ast.Vertex, _ func(string) bool) (string, string, bool) {
	method := strings.ToLower(php.CallName(call))
	if method != "toresourcecollection" && method != "toresource" {
		return "", "", false
	}
	args := php.CallArgs(call)
	if len(args) == 0 {
		return "", "", false
	}
	name := php.ClassRef(args[0])
	if name == "" {
		return "", "", false
	}
	factory := "make"
	if method == "toresourcecollection" {
		factory = "collection"
	}
	return name, factory, true
}

var (
	classToken      = `(\\?(?:[A-Za-z_][A-Za-z0-9_]*\\)*[A-Za-z_][A-Za-z0-9_]*(?:Resource|Collection))`
	staticFactoryRe = regexp.MustCompile(classToken + `::(make|collection)\s*\(`)
	constructionRe  = regexp.MustCompile(`new\s+` + classToken + `\s*\(`)
	conversionRe    = regexp.MustCompile(`->\s*toResource(Collection)?\s*\(\s*(\\?[A-Za-z_][A-Za-z0-9_\\]*)::class`)
)

// MatchText applies the same patterns to raw method source
func (sr *SerializerResolver) MatchText(code, namespace string, imports map[string]string) SerializerRef {
	if code == "" {
		return SerializerRef{}
	}

	try := func(name, factory string) (SerializerRef, bool) {
		if HasSerializerSuffix(php.ShortName(name)) || factory != "" {
			if fqcn := sr.ResolveClass(name, namespace, imports); fqcn != "" {
				return SerializerRef{Kind: kindFor(fqcn, factory), Class: fqcn}, true
			}
		}
		return SerializerRef{}, false
	}

	for _, m := range staticFactoryRe.FindAllStringSubmatch(code, -1) {
		if ref, ok := try(m[1], m[2]); ok {
			return ref
		}
	}
	for _, m := range constructionRe.FindAllStringSubmatch(code, -1) {
		if ref, ok := try(m[1], "new"); ok {
			return ref
		}
	}
	for _, m := range conversionRe.FindAllStringSubmatch(code, -1) {
		factory := "make"
		if m[1] != "" {
			factory = "collection"
		}
		if ref, ok := try(m[2], factory); ok {
			return ref
		}
	}
	return SerializerRef{}
}

// ResolveClass turns a class name written in a handler's file into a known
// fully qualified class: explicit imports (aliases, then import suffixes),
// the file's own namespace, the configured serializer namespace and its
// conventional sub-namespaces, then a unique short-name match. It returns ""
// when none of these name an indexed class.
func (sr *SerializerResolver) ResolveClass(name, namespace string, imports map[string]string) string {
	if name == "" {
		return ""
	}
	exists := func(fqcn string) bool { return sr.reflector.Class(fqcn) != nil }

	if strings.HasPrefix(name, `\`) || strings.Contains(name, `\`) {
		fqcn := php.ResolveName(name, namespace, imports)
		if exists(fqcn) {
			return fqcn
		}
		name = php.ShortName(name)
	}

	for alias, full := range imports {
		if strings.EqualFold(alias, name) {
			return strings.TrimPrefix(full, `\`)
		}
	}
	for _, full := range imports {
		if strings.HasSuffix(strings.ToLower(full), `\`+strings.ToLower(name)) {
			return strings.TrimPrefix(full, `\`)
		}
	}

	if namespace != "" {
		if fqcn := namespace + `\` + name; exists(fqcn) {
			return fqcn
		}
	}

	for _, candidate := range sr.namespaceCandidates(name) {
		if exists(candidate) {
			return candidate
		}
	}

	matches := sr.reflector.FindByShortName(name)
	if len(matches) == 1 {
		return matches[0].FullName
	}
	base := strings.ToLower(sr.namespaces.Resources) + `\`
	for _, m := range matches {
		if strings.HasPrefix(strings.ToLower(m.FullName), base) {
			return m.FullName
		}
	}
	return ""
}

// namespaceCandidates lists name under the serializer namespace and its
// conventional sub-namespaces
func (sr *SerializerResolver) namespaceCandidates(name string) []string {
	root := strings.Trim(sr.namespaces.Resources, `\`)
	if root == "" {
		return nil
	}
	out := []string{root + `\` + name}
	for _, sub := range sr.namespaces.ResourceSubnamespaces {
		out = append(out, root+`\`+strings.Trim(sub, `\`)+`\`+name)
	}
	return out
}
