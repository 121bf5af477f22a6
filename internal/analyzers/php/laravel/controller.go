package laravel

import (
	"strings"

	"github.com/VKCOM/php-parser/pkg/ast"

	"github.com/doITmagic/api-contract-mcp/internal/analyzers/php"
)

// ControllerAnalyzer reads middleware that controllers attach to their own
// actions
type ControllerAnalyzer struct {
	index *php.Index
}

// NewControllerAnalyzer creates a controller analyzer
func NewControllerAnalyzer(index *php.Index) *ControllerAnalyzer {
	return &ControllerAnalyzer{index: index}
}

// controllerMiddleware is one middleware registration with its action filter
type controllerMiddleware struct {
	names  []string
	only   []string
	except []string
}

func (m controllerMiddleware) applies(method string) bool {
	if len(m.only) > 0 && !containsFold(m.only, method) {
		return false
	}
	return !containsFold(m.except, method)
}

// Middleware returns the controller middleware that applies to method, from
// $this->middleware() calls in the constructor and the static middleware()
// method of HasMiddleware controllers
func (a *ControllerAnalyzer) Middleware(class, method string) []string {
	c := a.index.Class(class)
	if c == nil {
		return nil
	}

	var regs []controllerMiddleware
	if ctor := a.index.Method(class, "__construct"); ctor != nil && ctor.Node != nil {
		regs = append(regs, a.constructorMiddleware(ctor)...)
	}
	if m := a.index.Method(class, "middleware"); m != nil && m.IsStatic && m.Node != nil {
		regs = append(regs, a.staticMiddleware(m)...)
	}

	var out []string
	for _, reg := range regs {
		if reg.applies(method) {
			out = append(out, reg.names...)
		}
	}
	return out
}

// constructorMiddleware handles $this->middleware('auth')->only(['store'])
func (a *ControllerAnalyzer) constructorMiddleware(ctor *php.MethodInfo) []controllerMiddleware {
	scope := NewScope(a.index, a.index.Class(ctor.ClassName))
	var out []controllerMiddleware
	for _, stmt := range php.Body(ctor.Node) {
		expr, ok := stmt.(*ast.StmtExpression)
		if !ok {
			continue
		}
		reg, ok := middlewareChain(scope, expr.Expr)
		if ok {
			out = append(out, reg)
		}
	}
	return out
}

func middlewareChain(scope *Scope, expr ast.Vertex) (controllerMiddleware, bool) {
	var reg controllerMiddleware
	for {
		call, ok := expr.(*ast.ExprMethodCall)
		if !ok {
			return reg, false
		}
		args := php.CallArgs(call)
		switch strings.ToLower(php.CallName(call)) {
		case "only":
			reg.only = append(reg.only, flatStrings(scope, args)...)
		case "except":
			reg.except = append(reg.except, flatStrings(scope, args)...)
		case "middleware":
			if php.IsThis(call.Var) {
				reg.names = flatStrings(scope, args)
				return reg, len(reg.names) > 0
			}
		}
		expr = call.Var
	}
}

// staticMiddleware handles
//
//	public static function middleware(): array {
//	    return ['auth', new Middleware('log', only: ['index'])];
//	}
func (a *ControllerAnalyzer) staticMiddleware(m *php.MethodInfo) []controllerMiddleware {
	scope := NewScope(a.index, a.index.Class(m.ClassName))
	var out []controllerMiddleware
	for _, ret := range php.Returns(m.Node) {
		arr, ok := php.Unwrap(ret.Expr).(*ast.ExprArray)
		if !ok {
			continue
		}
		for _, item := range arr.Items {
			it, ok := item.(*ast.ExprArrayItem)
			if !ok || it.Val == nil {
				continue
			}
			if n, ok := php.Unwrap(it.Val).(*ast.ExprNew); ok {
				out = append(out, middlewareObject(scope, n))
				continue
			}
			if names := flatStrings(scope, []ast.Vertex{it.Val}); len(names) > 0 {
				out = append(out, controllerMiddleware{names: names})
			}
		}
		break
	}
	return out
}

// middlewareObject reads new Middleware($names, only: [...], except: [...])
func middlewareObject(scope *Scope, n *ast.ExprNew) controllerMiddleware {
	var reg controllerMiddleware
	position := 0
	for _, raw := range n.Args {
		arg, ok := raw.(*ast.Argument)
		if !ok {
			continue
		}
		key := ""
		if arg.Name != nil {
			key = strings.ToLower(php.IdentifierOf(arg.Name))
		} else {
			key = []string{"middleware", "only", "except"}[min(position, 2)]
			position++
		}
		values := flatStrings(scope, []ast.Vertex{arg.Expr})
		switch key {
		case "middleware":
			reg.names = values
		case "only":
			reg.only = values
		case "except":
			reg.except = values
		}
	}
	return reg
}

// flatStrings evaluates arguments that are strings or string arrays
func flatStrings(scope *Scope, args []ast.Vertex) []string {
	var out []string
	for _, arg := range args {
		switch v := scope.Eval(arg).(type) {
		case string:
			if v != "" {
				out = append(out, v)
			}
		case []any:
			for _, item := range v {
				if s := ToString(item); s != "" {
					out = append(out, s)
				}
			}
		}
	}
	return out
}

func containsFold(list []string, s string) bool {
	for _, item := range list {
		if strings.EqualFold(item, s) {
			return true
		}
	}
	return false
}
