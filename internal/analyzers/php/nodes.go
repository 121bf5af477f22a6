package php

import (
	"strings"

	"github.com/VKCOM/php-parser/pkg/ast"
)

var builtinTypes = map[string]bool{
	"int": true, "integer": true, "float": true, "double": true, "string": true,
	"bool": true, "boolean": true, "array": true, "iterable": true, "callable": true,
	"object": true, "mixed": true, "void": true, "null": true, "never": true,
	"false": true, "true": true, "self": true, "static": true, "parent": true,
}

// IsBuiltinType reports whether t names a PHP builtin type rather than a class
func IsBuiltinType(t string) bool {
	return builtinTypes[strings.ToLower(strings.TrimPrefix(t, "?"))]
}

// ResolveName resolves a class reference against a namespace and its import
// table, following PHP's name resolution rules. The result carries no
// leading backslash.
func ResolveName(name, namespace string, imports map[string]string) string {
	if name == "" {
		return ""
	}
	if strings.HasPrefix(name, `\`) {
		return strings.TrimPrefix(name, `\`)
	}
	if IsBuiltinType(name) {
		return name
	}

	first, rest := name, ""
	if idx := strings.Index(name, `\`); idx >= 0 {
		first, rest = name[:idx], name[idx:]
	}
	for alias, full := range imports {
		if strings.EqualFold(alias, first) {
			return strings.TrimPrefix(full, `\`) + rest
		}
	}

	if namespace == "" || namespace == "global" {
		return name
	}
	return namespace + `\` + name
}

// ShortName returns the last segment of a class name
func ShortName(fqcn string) string {
	fqcn = strings.TrimPrefix(fqcn, `\`)
	if idx := strings.LastIndex(fqcn, `\`); idx >= 0 {
		return fqcn[idx+1:]
	}
	return fqcn
}

// NameOf returns the textual name of a Name, NameFullyQualified or Identifier node
func NameOf(node ast.Vertex) string {
	if node == nil {
		return ""
	}

	switch n := node.(type) {
	case *ast.Name:
		return joinParts(n.Parts)
	case *ast.NameFullyQualified:
		return `\` + joinParts(n.Parts)
	case *ast.NameRelative:
		return joinParts(n.Parts)
	case *ast.Identifier:
		return string(n.Value)
	}
	return ""
}

func joinParts(parts []ast.Vertex) string {
	names := make([]string, 0, len(parts))
	for _, part := range parts {
		if namePart, ok := part.(*ast.NamePart); ok {
			names = append(names, string(namePart.Value))
		}
	}
	return strings.Join(names, `\`)
}

// IdentifierOf returns the value of an Identifier node
func IdentifierOf(node ast.Vertex) string {
	if ident, ok := node.(*ast.Identifier); ok {
		return string(ident.Value)
	}
	return ""
}

// VariableName returns a variable's name without "$", or "" for dynamic variables
func VariableName(node ast.Vertex) string {
	if v, ok := node.(*ast.ExprVariable); ok {
		return strings.TrimPrefix(IdentifierOf(v.Name), "$")
	}
	return ""
}

// IsThis reports whether node is the $this variable
func IsThis(node ast.Vertex) bool {
	return VariableName(node) == "this"
}

// ArgExprs unwraps Argument nodes into their expressions
func ArgExprs(args []ast.Vertex) []ast.Vertex {
	out := make([]ast.Vertex, 0, len(args))
	for _, a := range args {
		if arg, ok := a.(*ast.Argument); ok {
			out = append(out, arg.Expr)
			continue
		}
		out = append(out, a)
	}
	return out
}

// StringValue returns the literal value of a string scalar (quotes removed)
func StringValue(node ast.Vertex) (string, bool) {
	switch n := node.(type) {
	case *ast.Argument:
		return StringValue(n.Expr)
	case *ast.ScalarString:
		val := string(n.Value)
		if len(val) >= 2 {
			val = val[1 : len(val)-1]
		}
		return unescape(val), true
	case *ast.ScalarEncapsed:
		var sb strings.Builder
		for _, part := range n.Parts {
			if strPart, ok := part.(*ast.ScalarEncapsedStringPart); ok {
				sb.WriteString(string(strPart.Value))
			}
		}
		return sb.String(), true
	}
	return "", false
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	r := strings.NewReplacer(`\'`, `'`, `\"`, `"`, `\\`, `\`)
	return r.Replace(s)
}

// ClassRef returns the class named by Foo::class, a class-name string, or a
// bare name node.
func ClassRef(node ast.Vertex) string {
	switch n := node.(type) {
	case *ast.Argument:
		return ClassRef(n.Expr)
	case *ast.ExprClassConstFetch:
		if strings.EqualFold(IdentifierOf(n.Const), "class") {
			return NameOf(n.Class)
		}
	case *ast.ScalarString:
		s, _ := StringValue(n)
		return s
	case *ast.Name, *ast.NameFullyQualified:
		return NameOf(n)
	}
	return ""
}

// StringList returns the string items of an array literal
func StringList(node ast.Vertex) []string {
	if arg, ok := node.(*ast.Argument); ok {
		node = arg.Expr
	}
	arr, ok := node.(*ast.ExprArray)
	if !ok {
		if s, ok := StringValue(node); ok {
			return []string{s}
		}
		return nil
	}

	var result []string
	for _, item := range arr.Items {
		if arrayItem, ok := item.(*ast.ExprArrayItem); ok {
			if s, ok := StringValue(arrayItem.Val); ok {
				result = append(result, s)
			}
		}
	}
	return result
}

// CallName returns the called method or function name for call nodes
func CallName(node ast.Vertex) string {
	switch n := node.(type) {
	case *ast.ExprMethodCall:
		return IdentifierOf(n.Method)
	case *ast.ExprNullsafeMethodCall:
		return IdentifierOf(n.Method)
	case *ast.ExprStaticCall:
		return IdentifierOf(n.Call)
	case *ast.ExprFunctionCall:
		return strings.TrimPrefix(NameOf(n.Function), `\`)
	}
	return ""
}

func equalFold(a, b string) bool {
	return strings.EqualFold(a, b)
}
