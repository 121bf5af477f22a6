package laravel

import (
	"context"
	"fmt"
	"strings"

	"github.com/VKCOM/php-parser/pkg/ast"

	"github.com/doITmagic/api-contract-mcp/internal/analysis"
	"github.com/doITmagic/api-contract-mcp/internal/analyzers/php"
)

// RuleExtractor finds the validation rules a handler applies: rules() of
// FormRequest parameters plus inline validate() and Validator::make() calls.
type RuleExtractor struct {
	index *php.Index
}

// NewRuleExtractor creates an extractor over the class index
func NewRuleExtractor(index *php.Index) *RuleExtractor {
	return &RuleExtractor{index: index}
}

// Rules implements analysis.RuleSource
func (e *RuleExtractor) Rules(ctx context.Context, h analysis.Handler) (map[string]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	rules := map[string]any{}

	var node ast.Vertex
	var scope *Scope
	var requests []string

	switch h.Kind {
	case analysis.HandlerMethod:
		m := e.index.Method(h.Class, h.Method)
		if m == nil || m.Node == nil {
			return rules, nil
		}
		for _, p := range m.Params {
			requests = append(requests, p.Type)
		}
		node = m.Node
		scope = NewScope(e.index, e.index.Class(m.ClassName))
	case analysis.HandlerClosure:
		if h.Closure == nil {
			return rules, nil
		}
		node = h.Closure
		scope = NewScope(e.index, nil)
		scope.Namespace, scope.Imports = h.Namespace, h.Imports
		for _, p := range closureParams(h.Closure) {
			if t := paramType(p); t != "" && !php.IsBuiltinType(t) {
				requests = append(requests, scope.Resolve(t))
			}
		}
	}

	for _, class := range requests {
		if class == "" {
			continue
		}
		if e.index.Class(class) == nil && isRequestClass(class) {
			return nil, analysis.ValidationError(analysis.CodeValidatorMissing,
				fmt.Sprintf("Validation class %s not found", class),
				fmt.Sprintf("Check the import of %s or add its directory to paths.app", php.ShortName(class)),
				nil)
		}
		if !e.index.IsSubclassOf(class, "FormRequest") {
			continue
		}
		fr, err := e.formRequestRules(class)
		if err != nil {
			return nil, err
		}
		for k, v := range fr {
			rules[k] = v
		}
	}

	scope.Hook = ruleHook
	scope.Exec(php.Body(node))
	for _, call := range php.Calls(node) {
		arg := inlineRulesArg(call)
		if arg == nil {
			continue
		}
		if m, ok := scope.Eval(arg).(map[string]any); ok {
			for k, v := range m {
				rules[k] = v
			}
		}
	}
	return rules, nil
}

// formRequestRules evaluates FormRequest::rules(). The return value must be
// an array literal, or a variable built from one.
func (e *RuleExtractor) formRequestRules(class string) (map[string]any, error) {
	m := e.index.Method(class, "rules")
	if m == nil || m.Node == nil {
		return nil, nil
	}
	short := php.ShortName(class)
	notList := func(detail string) error {
		return analysis.ValidationError(analysis.CodeRulesNotList,
			fmt.Sprintf("%s::rules() %s", short, detail),
			fmt.Sprintf("Return a literal array from %s::rules() so the fields can be read statically", short),
			nil)
	}

	body := php.Body(m.Node)
	if call := dynamicReturn(body); call != "" {
		return nil, notList("returns the result of " + call + "()")
	}

	scope := NewScope(e.index, e.index.Class(m.ClassName))
	scope.This = map[string]any{}
	scope.Hook = ruleHook
	v, ok := scope.Exec(body)
	if !ok {
		return nil, notList("has no return statement")
	}
	switch out := v.(type) {
	case map[string]any:
		return out, nil
	case []any:
		if len(out) == 0 {
			return nil, nil
		}
	}
	return nil, notList("does not return an array literal")
}

// dynamicReturn names the method called by a top-level `return
// $this->x()` or `return static::x()`; such values depend on code the
// evaluator does not run.
func dynamicReturn(stmts []ast.Vertex) string {
	for _, stmt := range stmts {
		ret, ok := stmt.(*ast.StmtReturn)
		if !ok {
			continue
		}
		switch n := php.Unwrap(ret.Expr).(type) {
		case *ast.ExprMethodCall:
			if php.IsThis(n.Var) {
				return "$this->" + php.CallName(n)
			}
		case *ast.ExprNullsafeMethodCall:
			if php.IsThis(n.Var) {
				return "$this?->" + php.CallName(n)
			}
		case *ast.ExprStaticCall:
			switch cls := strings.ToLower(php.NameOf(n.Class)); cls {
			case "self", "static":
				return cls + "::" + php.CallName(n)
			}
		}
		return ""
	}
	return ""
}

// isRequestClass reports a type hint naming an application request class,
// as opposed to the framework's Illuminate\Http\Request
func isRequestClass(class string) bool {
	class = strings.TrimPrefix(class, `\`)
	short := php.ShortName(class)
	return strings.HasSuffix(short, "Request") && short != "Request" &&
		!strings.HasPrefix(class, `Illuminate\`) && !strings.HasPrefix(class, `Laravel\`)
}

// inlineRulesArg returns the rules argument of $request->validate($rules),
// $this->validate($request, $rules), validateWithBag() and
// Validator::make($data, $rules)
func inlineRulesArg(call ast.Vertex) ast.Vertex {
	args := php.CallArgs(call)
	name := strings.ToLower(php.CallName(call))
	at := func(i int) ast.Vertex {
		if i < len(args) {
			return args[i]
		}
		return nil
	}

	switch n := call.(type) {
	case *ast.ExprMethodCall:
		switch name {
		case "validate":
			if php.IsThis(n.Var) {
				return at(1)
			}
			return at(0)
		case "validatewithbag":
			if php.IsThis(n.Var) {
				return at(2)
			}
			return at(1)
		}
	case *ast.ExprStaticCall:
		if name == "make" && php.ShortName(php.NameOf(n.Class)) == "Validator" {
			return at(1)
		}
	case *ast.ExprFunctionCall:
		if name == "validator" {
			return at(1)
		}
	}
	return nil
}

// ruleHook renders rule objects as the string rules they stand for
func ruleHook(s *Scope, call ast.Vertex) (any, bool) {
	args := php.CallArgs(call)
	name := strings.ToLower(php.CallName(call))

	switch n := call.(type) {
	case *ast.ExprStaticCall:
		switch php.ShortName(s.Resolve(php.NameOf(n.Class))) {
		case "Rule":
			return ruleObject(s, name, args), true
		case "Password":
			if name == "min" {
				return "min:" + ToString(s.arg(args, 0)), true
			}
			return "string", true
		case "File":
			if name == "image" {
				return "image", true
			}
			return "file", true
		}
	case *ast.ExprNew:
		switch php.ShortName(s.Resolve(php.NameOf(n.Class))) {
		case "In":
			return ruleObject(s, "in", args), true
		case "NotIn":
			return ruleObject(s, "notin", args), true
		case "Unique":
			return ruleObject(s, "unique", args), true
		case "Exists":
			return ruleObject(s, "exists", args), true
		case "Password":
			return "min:" + ToString(s.arg(args, 0)), true
		}
	}
	return nil, false
}

func ruleObject(s *Scope, name string, args []ast.Vertex) any {
	switch name {
	case "in", "notin":
		var values []string
		for i := range args {
			switch v := s.arg(args, i).(type) {
			case []any:
				for _, item := range v {
					values = append(values, ToString(item))
				}
			default:
				values = append(values, ToString(v))
			}
		}
		prefix := "in:"
		if name == "notin" {
			prefix = "not_in:"
		}
		return prefix + strings.Join(values, ",")
	case "unique", "exists":
		table := ToString(s.arg(args, 0))
		if column := ToString(s.arg(args, 1)); column != "" && column != "NULL" {
			return name + ":" + table + "," + column
		}
		return name + ":" + table
	case "dimensions":
		return "dimensions"
	case "date":
		return "date"
	}
	// conditional and enum rules carry no static type
	return nil
}

func closureParams(node ast.Vertex) []ast.Vertex {
	switch n := node.(type) {
	case *ast.ExprClosure:
		return n.Params
	case *ast.ExprArrowFunction:
		return n.Params
	}
	return nil
}

func paramType(node ast.Vertex) string {
	p, ok := node.(*ast.Parameter)
	if !ok || p.Type == nil {
		return ""
	}
	t := p.Type
	if nullable, ok := t.(*ast.Nullable); ok {
		t = nullable.Expr
	}
	if id, ok := t.(*ast.Identifier); ok {
		return string(id.Value)
	}
	return php.NameOf(t)
}
