package laravel

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/VKCOM/php-parser/pkg/ast"

	"github.com/doITmagic/api-contract-mcp/internal/analyzers/php"
)

// maxDepth bounds nested evaluation (constants referring to constants,
// resources embedding resources)
const maxDepth = 8

// missingValue is what a serializer leaves out of its output, for example
// whenLoaded() on a relation the fixture never loaded
type missingValue struct{}

// Missing is dropped from arrays and merged maps
var Missing any = missingValue{}

// merged is an array spliced into the array that contains it
type merged map[string]any

// closure is an unevaluated closure or arrow function
type closure struct {
	node ast.Vertex
}

// receiver is implemented by evaluated values that answer property fetches
// and method calls themselves (the faker generator)
type receiver interface {
	property(name string) any
	call(s *Scope, name string, args []ast.Vertex) any
}

// CallHook evaluates calls a caller knows about. ok=false falls through to
// the builtin helpers.
type CallHook func(s *Scope, call ast.Vertex) (value any, ok bool)

// Scope evaluates PHP expressions statically. Nothing is executed: calls
// are answered by hooks and a table of well-known framework helpers.
type Scope struct {
	Namespace string
	Imports   map[string]string
	// Class is the declaring class, for self::, static:: and parent::
	Class *php.ClassInfo
	Vars  map[string]any
	// This answers $this->name property fetches
	This map[string]any
	Hook CallHook
	// Dir answers __DIR__
	Dir string

	index *php.Index
	depth int
}

// NewScope creates a scope in the name context of class (may be nil)
func NewScope(index *php.Index, class *php.ClassInfo) *Scope {
	s := &Scope{index: index, Class: class, Vars: map[string]any{}}
	if class != nil {
		s.Namespace = class.Namespace
		s.Imports = class.Imports
	}
	return s
}

// child returns a scope one level deeper sharing the name context
func (s *Scope) child(class *php.ClassInfo) *Scope {
	c := NewScope(s.index, class)
	if class == nil {
		c.Namespace, c.Imports = s.Namespace, s.Imports
	}
	c.Hook = s.Hook
	c.Dir = s.Dir
	c.depth = s.depth + 1
	return c
}

// Resolve turns a class name written in this scope into a FQCN
func (s *Scope) Resolve(name string) string {
	switch strings.ToLower(name) {
	case "self", "static":
		if s.Class != nil {
			return s.Class.FullName
		}
	case "parent":
		if s.Class != nil {
			return s.Class.Extends
		}
	}
	return php.ResolveName(name, s.Namespace, s.Imports)
}

// Exec runs a statement list the way a method body would for literal data:
// assignments to variables and array offsets are tracked, the first
// top-level return ends execution. Control flow is not followed.
func (s *Scope) Exec(stmts []ast.Vertex) (any, bool) {
	for _, stmt := range stmts {
		switch n := stmt.(type) {
		case *ast.StmtReturn:
			return s.Eval(n.Expr), true
		case *ast.StmtExpression:
			s.assign(n.Expr)
		}
	}
	return nil, false
}

func (s *Scope) assign(expr ast.Vertex) {
	a, ok := expr.(*ast.ExprAssign)
	if !ok {
		return
	}
	switch target := a.Var.(type) {
	case *ast.ExprVariable:
		if name := php.VariableName(target); name != "" {
			s.Vars[name] = s.Eval(a.Expr)
		}
	case *ast.ExprArrayDimFetch:
		name := php.VariableName(target.Var)
		m, ok := s.Vars[name].(map[string]any)
		if !ok || target.Dim == nil {
			return
		}
		m[keyString(s.Eval(target.Dim))] = s.Eval(a.Expr)
	}
}

// Eval evaluates an expression to a Go value: string, int, float64, bool,
// nil, []any or map[string]any. Unknown constructs evaluate to nil.
func (s *Scope) Eval(node ast.Vertex) any {
	if s.depth > maxDepth {
		return nil
	}

	switch n := php.Unwrap(node).(type) {
	case nil:
		return nil
	case *ast.ScalarString:
		v, _ := php.StringValue(n)
		return v
	case *ast.ScalarEncapsedStringPart:
		return string(n.Value)
	case *ast.ScalarEncapsed:
		return s.interpolate(n.Parts)
	case *ast.ScalarHeredoc:
		return s.interpolate(n.Parts)
	case *ast.ScalarLnumber:
		return parseInt(string(n.Value))
	case *ast.ScalarDnumber:
		f, _ := strconv.ParseFloat(strings.ReplaceAll(string(n.Value), "_", ""), 64)
		return f
	case *ast.ScalarMagicConstant:
		if strings.EqualFold(string(n.Value), "__DIR__") {
			return s.Dir
		}
		return nil
	case *ast.ExprConstFetch:
		switch strings.ToLower(php.NameOf(n.Const)) {
		case "true":
			return true
		case "false":
			return false
		}
		return nil
	case *ast.ExprArray:
		return s.array(n.Items)
	case *ast.ExprList:
		return s.array(n.Items)
	case *ast.ExprBinaryConcat:
		return ToString(s.Eval(n.Left)) + ToString(s.Eval(n.Right))
	case *ast.ExprBinaryPlus:
		return arith(s.Eval(n.Left), s.Eval(n.Right), '+')
	case *ast.ExprBinaryMinus:
		return arith(s.Eval(n.Left), s.Eval(n.Right), '-')
	case *ast.ExprBinaryMul:
		return arith(s.Eval(n.Left), s.Eval(n.Right), '*')
	case *ast.ExprBinaryDiv:
		return arith(s.Eval(n.Left), s.Eval(n.Right), '/')
	case *ast.ExprUnaryMinus:
		return arith(0, s.Eval(n.Expr), '-')
	case *ast.ExprBinaryCoalesce:
		if left := s.Eval(n.Left); left != nil && left != Missing {
			return left
		}
		return s.Eval(n.Right)
	case *ast.ExprAssignCoalesce:
		return s.Eval(n.Expr)
	case *ast.ExprAssign:
		s.assign(n)
		return s.Eval(n.Expr)
	case *ast.ExprTernary:
		cond := s.Eval(n.Cond)
		if n.IfTrue == nil {
			if Truthy(cond) {
				return cond
			}
			return s.Eval(n.IfFalse)
		}
		// both branches describe the same field; prefer the one that has a value
		if v := s.Eval(n.IfTrue); v != nil {
			return v
		}
		return s.Eval(n.IfFalse)
	case *ast.ExprMatch:
		for _, arm := range n.Arms {
			if a, ok := arm.(*ast.MatchArm); ok {
				return s.Eval(a.ReturnExpr)
			}
		}
		return nil
	case *ast.ExprBooleanNot:
		return !Truthy(s.Eval(n.Expr))
	case *ast.ExprBinaryBooleanAnd:
		return Truthy(s.Eval(n.Left)) && Truthy(s.Eval(n.Right))
	case *ast.ExprBinaryBooleanOr:
		return Truthy(s.Eval(n.Left)) || Truthy(s.Eval(n.Right))
	case *ast.ExprBinaryIdentical, *ast.ExprBinaryEqual, *ast.ExprBinaryNotIdentical,
		*ast.ExprBinaryNotEqual, *ast.ExprBinarySmaller, *ast.ExprBinaryGreater,
		*ast.ExprBinarySmallerOrEqual, *ast.ExprBinaryGreaterOrEqual, *ast.ExprIsset, *ast.ExprEmpty,
		*ast.ExprInstanceOf:
		return true
	case *ast.ExprCastString:
		return ToString(s.Eval(n.Expr))
	case *ast.ExprCastInt:
		return toInt(s.Eval(n.Expr))
	case *ast.ExprCastDouble:
		return toFloat(s.Eval(n.Expr))
	case *ast.ExprCastBool:
		return Truthy(s.Eval(n.Expr))
	case *ast.ExprCastArray:
		v := s.Eval(n.Expr)
		switch v.(type) {
		case map[string]any, []any:
			return v
		case nil:
			return []any{}
		}
		return []any{v}
	case *ast.ExprVariable:
		name := php.VariableName(n)
		if name == "this" {
			return s.This
		}
		return s.Vars[name]
	case *ast.ExprPropertyFetch:
		return s.property(n.Var, php.IdentifierOf(n.Prop))
	case *ast.ExprNullsafePropertyFetch:
		return s.property(n.Var, php.IdentifierOf(n.Prop))
	case *ast.ExprArrayDimFetch:
		base := s.Eval(n.Var)
		if n.Dim == nil {
			return nil
		}
		switch b := base.(type) {
		case map[string]any:
			return b[keyString(s.Eval(n.Dim))]
		case []any:
			if i, ok := s.Eval(n.Dim).(int); ok && i >= 0 && i < len(b) {
				return b[i]
			}
		}
		return nil
	case *ast.ExprClassConstFetch:
		return s.classConstant(n)
	case *ast.ExprClosure:
		return closure{node: n}
	case *ast.ExprArrowFunction:
		return closure{node: n}
	case *ast.ExprFunctionCall, *ast.ExprMethodCall, *ast.ExprNullsafeMethodCall,
		*ast.ExprStaticCall, *ast.ExprNew:
		if s.Hook != nil {
			if v, ok := s.Hook(s, n); ok {
				return v
			}
		}
		return s.builtin(n)
	}
	return nil
}

// Value resolves closures the way value() does in the framework
func (s *Scope) Value(v any) any {
	c, ok := v.(closure)
	if !ok {
		return v
	}
	switch n := c.node.(type) {
	case *ast.ExprArrowFunction:
		return s.child(s.Class).inherit(s).Eval(n.Expr)
	case *ast.ExprClosure:
		out, _ := s.child(s.Class).inherit(s).Exec(n.Stmts)
		return out
	}
	return nil
}

func (s *Scope) inherit(parent *Scope) *Scope {
	s.This = parent.This
	for k, v := range parent.Vars {
		s.Vars[k] = v
	}
	return s
}

func (s *Scope) interpolate(parts []ast.Vertex) string {
	var sb strings.Builder
	for _, part := range parts {
		if p, ok := part.(*ast.ScalarEncapsedStringPart); ok {
			sb.Write(p.Value)
			continue
		}
		if v, ok := part.(*ast.ScalarEncapsedStringVar); ok {
			sb.WriteString(ToString(s.Vars[strings.TrimPrefix(php.IdentifierOf(v.Name), "$")]))
			continue
		}
		sb.WriteString(ToString(s.Eval(part)))
	}
	return sb.String()
}

type arrayEntry struct {
	key    string
	hasKey bool
	value  any
}

func (s *Scope) array(items []ast.Vertex) any {
	var entries []arrayEntry
	keyed := false
	for _, item := range items {
		it, ok := item.(*ast.ExprArrayItem)
		if !ok || it == nil || it.Val == nil {
			continue
		}
		val := s.Eval(it.Val)
		if it.EllipsisTkn != nil {
			switch spread := val.(type) {
			case []any:
				for _, v := range spread {
					entries = append(entries, arrayEntry{value: v})
				}
			case map[string]any:
				for k, v := range spread {
					entries = append(entries, arrayEntry{key: k, hasKey: true, value: v})
					keyed = true
				}
			}
			continue
		}
		if m, ok := val.(merged); ok {
			for k, v := range m {
				if v != Missing {
					entries = append(entries, arrayEntry{key: k, hasKey: true, value: v})
				}
			}
			keyed = true
			continue
		}
		if val == Missing {
			continue
		}
		if it.Key != nil {
			entries = append(entries, arrayEntry{key: keyString(s.Eval(it.Key)), hasKey: true, value: val})
			keyed = true
			continue
		}
		entries = append(entries, arrayEntry{value: val})
	}

	if !keyed {
		list := make([]any, 0, len(entries))
		for _, e := range entries {
			list = append(list, e.value)
		}
		return list
	}
	obj := make(map[string]any, len(entries))
	next := 0
	for _, e := range entries {
		if !e.hasKey {
			e.key = strconv.Itoa(next)
			next++
		}
		obj[e.key] = e.value
	}
	return obj
}

func (s *Scope) property(base ast.Vertex, name string) any {
	if php.IsThis(base) {
		if v, ok := s.This[name]; ok {
			return v
		}
		return nil
	}
	switch b := s.Eval(base).(type) {
	case map[string]any:
		return b[name]
	case receiver:
		return b.property(name)
	}
	return nil
}

func (s *Scope) classConstant(n *ast.ExprClassConstFetch) any {
	class := s.Resolve(php.NameOf(n.Class))
	name := php.IdentifierOf(n.Const)
	if strings.EqualFold(name, "class") {
		return class
	}
	if s.index == nil {
		return nil
	}
	for c := s.index.Class(class); c != nil; c = s.index.Class(c.Extends) {
		for _, constant := range c.Constants {
			if constant.Name == name {
				return s.child(c).Eval(constant.Expr)
			}
		}
		if c.Extends == "" {
			break
		}
	}
	return nil
}

// ToString converts a value the way string interpolation does
func ToString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "1"
		}
		return ""
	case int:
		return strconv.Itoa(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case missingValue:
		return ""
	}
	return fmt.Sprint(v)
}

// Truthy follows PHP's boolean conversion
func Truthy(v any) bool {
	switch t := v.(type) {
	case nil, missingValue:
		return false
	case bool:
		return t
	case int:
		return t != 0
	case float64:
		return t != 0
	case string:
		return t != "" && t != "0"
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	}
	return true
}

func keyString(v any) string {
	if b, ok := v.(bool); ok {
		if b {
			return "1"
		}
		return "0"
	}
	return ToString(v)
}

func parseInt(lit string) int {
	lit = strings.ReplaceAll(lit, "_", "")
	if len(lit) > 1 && lit[0] == '0' && lit[1] >= '0' && lit[1] <= '9' {
		lit = "0o" + lit[1:]
	}
	n, err := strconv.ParseInt(lit, 0, 64)
	if err != nil {
		return 0
	}
	return int(n)
}

func toInt(v any) int {
	switch t := v.(type) {
	case int:
		return t
	case float64:
		return int(t)
	case bool:
		if t {
			return 1
		}
	case string:
		n, _ := strconv.Atoi(strings.TrimSpace(t))
		return n
	}
	return 0
}

func toFloat(v any) float64 {
	switch t := v.(type) {
	case int:
		return float64(t)
	case float64:
		return t
	case string:
		f, _ := strconv.ParseFloat(strings.TrimSpace(t), 64)
		return f
	case bool:
		if t {
			return 1
		}
	}
	return 0
}

func arith(a, b any, op byte) any {
	ai, aInt := a.(int)
	bi, bInt := b.(int)
	if aInt && bInt && op != '/' {
		switch op {
		case '+':
			return ai + bi
		case '-':
			return ai - bi
		case '*':
			return ai * bi
		}
	}
	af, bf := toFloat(a), toFloat(b)
	switch op {
	case '+':
		return af + bf
	case '-':
		return af - bf
	case '*':
		return af * bf
	case '/':
		if bf == 0 {
			return nil
		}
		return af / bf
	}
	return nil
}
