package laravel

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/VKCOM/php-parser/pkg/ast"

	"github.com/doITmagic/api-contract-mcp/internal/analysis"
	"github.com/doITmagic/api-contract-mcp/internal/analyzers/php"
	"github.com/doITmagic/api-contract-mcp/internal/config"
	"github.com/doITmagic/api-contract-mcp/internal/logging"
)

// maxIncludeDepth bounds ->group('routes/other.php') nesting
const maxIncludeDepth = 4

var verbMethods = map[string][]string{
	"get":     {"GET", "HEAD"},
	"post":    {"POST"},
	"put":     {"PUT"},
	"patch":   {"PATCH"},
	"delete":  {"DELETE"},
	"options": {"OPTIONS"},
	"any":     {"GET", "HEAD", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
}

// resourceActions in registration order
var resourceActions = []struct {
	action  string
	methods []string
	member  bool
	suffix  string
	web     bool
}{
	{"index", []string{"GET", "HEAD"}, false, "", false},
	{"create", []string{"GET", "HEAD"}, false, "/create", true},
	{"store", []string{"POST"}, false, "", false},
	{"show", []string{"GET", "HEAD"}, true, "", false},
	{"edit", []string{"GET", "HEAD"}, true, "/edit", true},
	{"update", []string{"PUT", "PATCH"}, true, "", false},
	{"destroy", []string{"DELETE"}, true, "", false},
}

// FileRegistry builds the route table by statically reading the route files
// the application mounts. It follows groups, prefixes, names, middleware,
// controller groups and resource registrations; it does not execute PHP.
type FileRegistry struct {
	cfg         *config.Config
	index       *php.Index
	controllers *ControllerAnalyzer
	log         *logging.Logger
}

// NewFileRegistry creates a registry. index may be nil, in which case
// controller middleware is not collected.
func NewFileRegistry(cfg *config.Config, index *php.Index, log *logging.Logger) *FileRegistry {
	if log == nil {
		log = logging.Discard()
	}
	r := &FileRegistry{cfg: cfg, index: index, log: log}
	if index != nil {
		r.controllers = NewControllerAnalyzer(index)
	}
	return r
}

// Routes implements analysis.RouteRegistry
func (r *FileRegistry) Routes(ctx context.Context) ([]analysis.RouteRecord, error) {
	var out []analysis.RouteRecord
	for _, mount := range r.cfg.Routes.Files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := r.cfg.Abs(mount.Path)
		content, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) {
			r.log.Debug("route file %s not found, skipping", path)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read route file %s: %w", path, err)
		}
		routes, err := r.ParseFile(path, content, mount)
		if err != nil {
			return nil, err
		}
		r.log.Debug("%d routes from %s", len(routes), mount.Path)
		out = append(out, routes...)
	}
	return out, nil
}

// ParseFile reads the routes of one file mounted with the given prefix and
// middleware
func (r *FileRegistry) ParseFile(path string, content []byte, mount config.RouteFileConfig) ([]analysis.RouteRecord, error) {
	c := &routeCollector{registry: r, visited: map[string]bool{}}
	root := group{
		prefix:     mount.Prefix,
		middleware: append([]string(nil), mount.Middleware...),
		namespace:  strings.Trim(r.cfg.Namespaces.Controllers, `\`),
	}
	if err := c.readFile(path, content, root, 0); err != nil {
		return nil, err
	}

	out := make([]analysis.RouteRecord, 0, len(c.routes))
	for _, p := range c.routes {
		out = append(out, r.record(p))
	}
	return out, nil
}

func (r *FileRegistry) record(p *pendingRoute) analysis.RouteRecord {
	middleware := append([]string(nil), p.middleware...)
	if r.controllers != nil && p.handler.Kind == analysis.HandlerMethod && p.malformed == "" {
		middleware = append(middleware, r.controllers.Middleware(p.handler.Class, p.handler.Method)...)
	}
	middleware = removeMiddleware(r.expand(middleware), p.without)

	name := ""
	if p.name != "" {
		name = p.namePrefix + p.name
	}
	return analysis.RouteRecord{
		URI:        "/" + strings.Trim(p.uri, "/"),
		Methods:    p.methods,
		Middleware: middleware,
		Handler:    p.handler,
		Name:       name,
		Source:     p.source,
		Malformed:  p.malformed,
	}
}

// expand replaces middleware group names with their members
func (r *FileRegistry) expand(middleware []string) []string {
	var out []string
	seen := map[string]bool{}
	var add func(entries []string, depth int)
	add = func(entries []string, depth int) {
		for _, m := range entries {
			if members, ok := r.cfg.MiddlewareGroups[m]; ok && depth < maxIncludeDepth {
				add(members, depth+1)
				continue
			}
			if !seen[m] {
				seen[m] = true
				out = append(out, m)
			}
		}
	}
	add(middleware, 0)
	return out
}

func removeMiddleware(middleware, without []string) []string {
	if len(without) == 0 {
		return middleware
	}
	out := middleware[:0]
	for _, m := range middleware {
		name, _ := analysis.SplitMiddleware(m)
		drop := false
		for _, w := range without {
			if m == w || name == w || php.ShortName(name) == php.ShortName(w) {
				drop = true
				break
			}
		}
		if !drop {
			out = append(out, m)
		}
	}
	return out
}

// group holds the attributes inherited by routes declared inside a group
type group struct {
	prefix     string
	middleware []string
	without    []string
	name       string
	controller string
	namespace  string
}

func (g group) merge(attrs group) group {
	out := group{
		prefix:     joinURI(g.prefix, attrs.prefix),
		middleware: append(append([]string(nil), g.middleware...), attrs.middleware...),
		without:    append(append([]string(nil), g.without...), attrs.without...),
		name:       g.name + attrs.name,
		controller: g.controller,
		namespace:  g.namespace,
	}
	if attrs.controller != "" {
		out.controller = attrs.controller
	}
	switch {
	case strings.HasPrefix(attrs.namespace, `\`):
		out.namespace = strings.Trim(attrs.namespace, `\`)
	case attrs.namespace != "" && g.namespace != "":
		out.namespace = g.namespace + `\` + strings.Trim(attrs.namespace, `\`)
	case attrs.namespace != "":
		out.namespace = strings.Trim(attrs.namespace, `\`)
	}
	return out
}

func joinURI(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.Trim(p, "/"); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "/")
}

type pendingRoute struct {
	uri        string
	methods    []string
	middleware []string
	without    []string
	namePrefix string
	name       string
	handler    analysis.Handler
	malformed  string
	source     string
}

// link is one call of a Route:: chain
type link struct {
	name string
	args []ast.Vertex
}

// routeCollector walks route file statements
type routeCollector struct {
	registry *FileRegistry
	visited  map[string]bool
	routes   []*pendingRoute

	// name context of the file being read
	file  *php.File
	scope *Scope
	rel   string
}

func (c *routeCollector) readFile(path string, content []byte, g group, depth int) error {
	f, err := php.ParseFile(path, content)
	if err != nil {
		return err
	}
	if len(f.ParseErrors) > 0 {
		c.registry.log.Warn("route file %s has syntax errors: %s", path, strings.Join(f.ParseErrors, "; "))
	}
	root, ok := f.Root.(*ast.Root)
	if !ok {
		return nil
	}

	prevFile, prevScope, prevRel := c.file, c.scope, c.rel
	defer func() { c.file, c.scope, c.rel = prevFile, prevScope, prevRel }()

	c.visited[path] = true
	c.file = f
	c.scope = NewScope(c.registry.index, nil)
	c.scope.Namespace, c.scope.Imports = f.Namespace, f.Imports
	c.scope.Dir = filepath.Dir(path)
	c.scope.Hook = pathHook(c.registry.cfg)
	c.rel = path
	if rel, err := filepath.Rel(c.registry.cfg.ProjectRoot, path); err == nil && !strings.HasPrefix(rel, "..") {
		c.rel = filepath.ToSlash(rel)
	}
	c.statements(root.Stmts, g, depth)
	return nil
}

func (c *routeCollector) statements(stmts []ast.Vertex, g group, depth int) {
	for _, stmt := range stmts {
		switch n := stmt.(type) {
		case *ast.StmtNamespace:
			c.statements(n.Stmts, g, depth)
		case *ast.StmtStmtList:
			c.statements(n.Stmts, g, depth)
		case *ast.StmtExpression:
			if links, ok := flattenChain(n.Expr); ok {
				c.chain(links, g, depth)
			}
		}
	}
}

// flattenChain turns Route::prefix('v1')->middleware('auth')->group(...)
// into its links, root first. $router->get() chains are accepted too.
func flattenChain(expr ast.Vertex) ([]link, bool) {
	var links []link
	for {
		switch n := php.Unwrap(expr).(type) {
		case *ast.ExprMethodCall:
			links = append(links, link{strings.ToLower(php.CallName(n)), php.CallArgs(n)})
			expr = n.Var
		case *ast.ExprStaticCall:
			if php.ShortName(php.NameOf(n.Class)) != "Route" {
				return nil, false
			}
			links = append(links, link{strings.ToLower(php.CallName(n)), php.CallArgs(n)})
			reverse(links)
			return links, true
		case *ast.ExprVariable:
			switch php.VariableName(n) {
			case "router", "route":
				reverse(links)
				return links, len(links) > 0
			}
			return nil, false
		default:
			return nil, false
		}
	}
}

func reverse(links []link) {
	for i, j := 0, len(links)-1; i < j; i, j = i+1, j-1 {
		links[i], links[j] = links[j], links[i]
	}
}

// chain applies one statement. Attribute links before a route verb become
// group attributes; links after it modify the created routes.
func (c *routeCollector) chain(links []link, g group, depth int) {
	var attrs group
	var created []*pendingRoute
	var res *resourceSpec

	afterRoute := func() bool { return created != nil || res != nil }

	for _, l := range links {
		switch l.name {
		case "prefix":
			attrs.prefix = joinURI(attrs.prefix, c.str(l.args, 0))
		case "middleware":
			mw := c.strs(l.args)
			switch {
			case res != nil:
				res.middleware = append(res.middleware, mw...)
			case created != nil:
				for _, p := range created {
					p.middleware = append(p.middleware, mw...)
				}
			default:
				attrs.middleware = append(attrs.middleware, mw...)
			}
		case "withoutmiddleware":
			mw := c.strs(l.args)
			switch {
			case res != nil:
				res.without = append(res.without, mw...)
			case created != nil:
				for _, p := range created {
					p.without = append(p.without, mw...)
				}
			default:
				attrs.without = append(attrs.without, mw...)
			}
		case "can":
			mw := "can:" + strings.Join(c.strs(l.args), ",")
			if created != nil {
				for _, p := range created {
					p.middleware = append(p.middleware, mw)
				}
			} else if !afterRoute() {
				attrs.middleware = append(attrs.middleware, mw)
			}
		case "name", "as":
			switch {
			case res != nil && len(l.args) > 1:
				res.names[c.str(l.args, 0)] = c.str(l.args, 1)
			case created != nil:
				for _, p := range created {
					p.name += c.str(l.args, 0)
				}
			case !afterRoute():
				attrs.name += c.str(l.args, 0)
			}
		case "controller":
			attrs.controller = c.classArg(l.args, 0, g.merge(attrs))
		case "namespace":
			attrs.namespace = c.str(l.args, 0)
		case "group":
			c.group(l.args, g.merge(attrs), depth)
		case "get", "post", "put", "patch", "delete", "options", "any":
			created = c.verb(verbMethods[l.name], l.args, g.merge(attrs))
		case "match":
			var methods []string
			for _, m := range c.strs(l.args[:min(1, len(l.args))]) {
				methods = append(methods, strings.ToUpper(m))
			}
			if containsFold(methods, "GET") && !containsFold(methods, "HEAD") {
				methods = append(methods, "HEAD")
			}
			if len(l.args) > 0 {
				created = c.verb(methods, l.args[1:], g.merge(attrs))
			}
		case "resource", "apiresource":
			res = c.resource(l.args, g.merge(attrs), l.name == "apiresource")
		case "resources", "apiresources":
			if m, ok := c.scope.Eval(arg(l.args, 0)).(map[string]any); ok {
				for _, name := range sortedKeys(m) {
					spec := c.newResource(name, ToString(m[name]), g.merge(attrs), l.name == "apiresources")
					c.routes = append(c.routes, spec.expand()...)
				}
			}
		case "only":
			if res != nil {
				res.only = c.strs(l.args)
			}
		case "except":
			if res != nil {
				res.except = c.strs(l.args)
			}
		case "names":
			if res != nil {
				res.applyNames(c.scope.Eval(arg(l.args, 0)))
			}
		case "parameters":
			if res != nil {
				for k, v := range stringMapOf(c.scope.Eval(arg(l.args, 0))) {
					res.params[k] = v
				}
			}
		case "parameter":
			if res != nil {
				res.params[c.str(l.args, 0)] = c.str(l.args, 1)
			}
		}
	}

	if res != nil {
		created = append(created, res.expand()...)
	}
	c.routes = append(c.routes, created...)
}

// group handles ->group(fn), Route::group([attrs], fn) and
// ->group(base_path('routes/other.php'))
func (c *routeCollector) group(args []ast.Vertex, g group, depth int) {
	body := arg(args, 0)
	if len(args) > 1 {
		g = g.merge(c.groupAttributes(args[0], g))
		body = args[1]
	}

	switch n := php.Unwrap(body).(type) {
	case *ast.ExprClosure, *ast.ExprArrowFunction:
		c.statements(php.Body(n), g, depth)
		return
	}

	path := ToString(c.scope.Eval(body))
	if path == "" {
		return
	}
	if !filepath.IsAbs(path) {
		path = c.registry.cfg.Abs(path)
	}
	if c.visited[path] || depth >= maxIncludeDepth {
		return
	}
	content, err := os.ReadFile(path)
	if err != nil {
		c.registry.log.Warn("route group file %s: %v", path, err)
		return
	}
	if err := c.readFile(path, content, g, depth+1); err != nil {
		c.registry.log.Warn("route group file %s: %v", path, err)
	}
}

// groupAttributes reads ['prefix' => ..., 'middleware' => ..., 'as' => ...]
func (c *routeCollector) groupAttributes(node ast.Vertex, g group) group {
	m, ok := c.scope.Eval(node).(map[string]any)
	if !ok {
		return group{}
	}
	attrs := group{
		prefix:    ToString(m["prefix"]),
		name:      ToString(m["as"]),
		namespace: ToString(m["namespace"]),
	}
	attrs.middleware = anyStrings(m["middleware"])
	attrs.without = anyStrings(m["excluded_middleware"])
	if controller := ToString(m["controller"]); controller != "" {
		attrs.controller = c.qualify(controller, g)
	}
	return attrs
}

// verb registers Route::get($uri, $action) and friends
func (c *routeCollector) verb(methods []string, args []ast.Vertex, g group) []*pendingRoute {
	p := &pendingRoute{
		uri:        joinURI(g.prefix, c.str(args, 0)),
		methods:    append([]string(nil), methods...),
		middleware: append([]string(nil), g.middleware...),
		without:    append([]string(nil), g.without...),
		namePrefix: g.name,
		source:     c.rel,
	}
	if len(args) < 2 {
		if g.controller == "" {
			p.malformed = "route " + p.uri + " has no action"
		} else {
			p.handler = analysis.Handler{Kind: analysis.HandlerMethod, Class: g.controller, Method: "__invoke"}
		}
		return []*pendingRoute{p}
	}
	c.action(p, args[1], g)
	return []*pendingRoute{p}
}

// action resolves the handler of a route
func (c *routeCollector) action(p *pendingRoute, node ast.Vertex, g group) {
	node = php.Unwrap(node)
	switch n := node.(type) {
	case *ast.ExprClosure, *ast.ExprArrowFunction:
		p.handler = analysis.Handler{
			Kind:      analysis.HandlerClosure,
			Closure:   n,
			File:      c.file.Path,
			Namespace: c.file.Namespace,
			Imports:   c.file.Imports,
		}
		return
	case *ast.ExprClassConstFetch:
		if class := c.classArg([]ast.Vertex{n}, 0, g); class != "" {
			p.handler = analysis.Handler{Kind: analysis.HandlerMethod, Class: class, Method: "__invoke"}
			return
		}
	case *ast.ExprArray:
		if c.arrayAction(p, n, g) {
			return
		}
	default:
		if s, ok := c.scope.Eval(n).(string); ok && s != "" {
			if h, ok := c.stringAction(s, g); ok {
				p.handler = h
				return
			}
		}
	}
	p.malformed = c.snippet(node)
}

// arrayAction handles [Controller::class, 'method'] and the legacy
// ['uses' => 'Controller@method', 'as' => 'name', 'middleware' => ...] form
func (c *routeCollector) arrayAction(p *pendingRoute, n *ast.ExprArray, g group) bool {
	var values []ast.Vertex
	keyed := map[string]ast.Vertex{}
	for _, item := range n.Items {
		it, ok := item.(*ast.ExprArrayItem)
		if !ok || it.Val == nil {
			continue
		}
		if it.Key != nil {
			keyed[ToString(c.scope.Eval(it.Key))] = it.Val
			continue
		}
		values = append(values, it.Val)
	}

	if uses, ok := keyed["uses"]; ok {
		if as, ok := keyed["as"]; ok {
			p.name = ToString(c.scope.Eval(as))
		}
		if mw, ok := keyed["middleware"]; ok {
			p.middleware = append(p.middleware, anyStrings(c.scope.Eval(mw))...)
		}
		c.action(p, uses, g)
		return true
	}

	switch len(values) {
	case 1:
		if class := c.classArg(values, 0, g); class != "" {
			p.handler = analysis.Handler{Kind: analysis.HandlerMethod, Class: class, Method: "__invoke"}
			return true
		}
	case 2:
		class := c.classArg(values, 0, g)
		method, _ := c.scope.Eval(values[1]).(string)
		if class != "" && method != "" {
			p.handler = analysis.Handler{Kind: analysis.HandlerMethod, Class: class, Method: method}
			return true
		}
	}
	return false
}

// stringAction handles "Controller@method", an invokable class name and a
// bare method name inside a controller group
func (c *routeCollector) stringAction(s string, g group) (analysis.Handler, bool) {
	if class, method, found := strings.Cut(s, "@"); found {
		if class == "" || method == "" || strings.Contains(method, "@") {
			return analysis.Handler{}, false
		}
		return analysis.Handler{Kind: analysis.HandlerMethod, Class: c.qualify(class, g), Method: method}, true
	}
	if g.controller != "" && !strings.Contains(s, `\`) {
		return analysis.Handler{Kind: analysis.HandlerMethod, Class: g.controller, Method: s}, true
	}
	return analysis.Handler{Kind: analysis.HandlerMethod, Class: c.qualify(s, g), Method: "__invoke"}, true
}

// qualify resolves a controller written as a string: fully qualified,
// imported by the route file, or relative to the group namespace (the
// controllers namespace at the top level)
func (c *routeCollector) qualify(class string, g group) string {
	class = strings.TrimSpace(class)
	if strings.HasPrefix(class, `\`) {
		return strings.TrimPrefix(class, `\`)
	}
	if fqcn, ok := c.file.Imports[class]; ok {
		return fqcn
	}
	if strings.HasPrefix(strings.ToLower(class), strings.ToLower(g.namespace)+`\`) {
		return class
	}
	if ix := c.registry.index; ix != nil && strings.Contains(class, `\`) && ix.Exists(class) {
		return class
	}
	if g.namespace != "" {
		return g.namespace + `\` + class
	}
	return class
}

// classArg resolves Controller::class or a controller string argument
func (c *routeCollector) classArg(args []ast.Vertex, i int, g group) string {
	node := php.Unwrap(arg(args, i))
	if node == nil {
		return ""
	}
	if fetch, ok := node.(*ast.ExprClassConstFetch); ok {
		if !strings.EqualFold(php.IdentifierOf(fetch.Const), "class") {
			return ""
		}
		return c.scope.Resolve(php.NameOf(fetch.Class))
	}
	if s, ok := c.scope.Eval(node).(string); ok && s != "" {
		return c.qualify(s, g)
	}
	return ""
}

// snippet returns the source text of a node for error messages
func (c *routeCollector) snippet(node ast.Vertex) string {
	if node != nil {
		if pos := node.GetPosition(); pos != nil && pos.StartPos >= 0 && pos.EndPos <= len(c.file.Content) && pos.StartPos < pos.EndPos {
			return strings.TrimSpace(string(c.file.Content[pos.StartPos:pos.EndPos]))
		}
	}
	return "unrecognized action"
}

func (c *routeCollector) str(args []ast.Vertex, i int) string {
	return ToString(c.scope.Eval(arg(args, i)))
}

func (c *routeCollector) strs(args []ast.Vertex) []string {
	var out []string
	for _, a := range args {
		out = append(out, anyStrings(c.scope.Eval(a))...)
	}
	return out
}

func arg(args []ast.Vertex, i int) ast.Vertex {
	if i < len(args) {
		return args[i]
	}
	return nil
}

func anyStrings(v any) []string {
	switch t := v.(type) {
	case string:
		if t != "" {
			return []string{t}
		}
	case []any:
		var out []string
		for _, item := range t {
			if s := ToString(item); s != "" {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// pathHook evaluates base_path() and app_path() in ->group() includes
func pathHook(cfg *config.Config) CallHook {
	return func(s *Scope, call ast.Vertex) (any, bool) {
		fn, ok := call.(*ast.ExprFunctionCall)
		if !ok {
			return nil, false
		}
		sub := ToString(s.arg(php.CallArgs(fn), 0))
		switch strings.ToLower(php.CallName(fn)) {
		case "base_path":
			return filepath.Join(cfg.ProjectRoot, sub), true
		case "app_path":
			return filepath.Join(cfg.ProjectRoot, "app", sub), true
		}
		return nil, false
	}
}

// resourceSpec is a pending Route::resource() registration
type resourceSpec struct {
	c          *routeCollector
	name       string
	controller string
	api        bool
	g          group
	only       []string
	except     []string
	names      map[string]string
	params     map[string]string
	middleware []string
	without    []string
}

func (c *routeCollector) resource(args []ast.Vertex, g group, api bool) *resourceSpec {
	res := c.newResource(c.str(args, 0), c.classArg(args, 1, g), g, api)
	if opts, ok := c.scope.Eval(arg(args, 2)).(map[string]any); ok {
		res.only = anyStrings(opts["only"])
		res.except = anyStrings(opts["except"])
		res.applyNames(opts["names"])
		for k, v := range stringMapOf(opts["parameters"]) {
			res.params[k] = v
		}
		res.middleware = append(res.middleware, anyStrings(opts["middleware"])...)
		res.without = append(res.without, anyStrings(opts["excluded_middleware"])...)
	}
	return res
}

func (c *routeCollector) newResource(name, controller string, g group, api bool) *resourceSpec {
	if controller != "" && !strings.Contains(controller, `\`) {
		controller = c.qualify(controller, g)
	}
	return &resourceSpec{
		c:          c,
		name:       strings.Trim(name, "/"),
		controller: controller,
		api:        api,
		g:          g,
		names:      map[string]string{},
		params:     map[string]string{},
	}
}

// applyNames handles ->names('photo') (prefix) and ->names(['index' => ...])
func (r *resourceSpec) applyNames(v any) {
	switch t := v.(type) {
	case string:
		for _, a := range resourceActions {
			r.names[a.action] = t + "." + a.action
		}
	case map[string]any:
		for k, val := range t {
			r.names[k] = ToString(val)
		}
	}
}

func (r *resourceSpec) param(segment string) string {
	if p, ok := r.params[segment]; ok {
		return p
	}
	return strings.ReplaceAll(analysis.Singular(segment), "-", "_")
}

// expand produces the resource routes: users.posts nests under
// users/{user}/posts
func (r *resourceSpec) expand() []*pendingRoute {
	segments := strings.Split(r.name, ".")
	base := ""
	for _, seg := range segments[:len(segments)-1] {
		base = joinURI(base, seg, "{"+r.param(seg)+"}")
	}
	last := segments[len(segments)-1]
	collectionURI := joinURI(r.g.prefix, base, last)
	memberURI := joinURI(collectionURI, "{"+r.param(last)+"}")

	var out []*pendingRoute
	for _, a := range resourceActions {
		if r.api && a.web {
			continue
		}
		if len(r.only) > 0 && !containsFold(r.only, a.action) {
			continue
		}
		if containsFold(r.except, a.action) {
			continue
		}
		uri := collectionURI
		if a.member {
			uri = memberURI
		}
		name := r.name + "." + a.action
		if n, ok := r.names[a.action]; ok {
			name = n
		}
		p := &pendingRoute{
			uri:        uri + a.suffix,
			methods:    append([]string(nil), a.methods...),
			middleware: append(append([]string(nil), r.g.middleware...), r.middleware...),
			without:    append(append([]string(nil), r.g.without...), r.without...),
			namePrefix: r.g.name,
			name:       name,
			source:     r.c.rel,
		}
		if r.controller == "" {
			p.malformed = "resource " + r.name + " has no controller"
		} else {
			p.handler = analysis.Handler{Kind: analysis.HandlerMethod, Class: r.controller, Method: a.action}
		}
		out = append(out, p)
	}
	return out
}
