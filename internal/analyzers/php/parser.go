package php

import (
	"fmt"
	"strings"

	"github.com/VKCOM/php-parser/pkg/ast"
	"github.com/VKCOM/php-parser/pkg/conf"
	"github.com/VKCOM/php-parser/pkg/errors"
	"github.com/VKCOM/php-parser/pkg/parser"
	"github.com/VKCOM/php-parser/pkg/version"
	"github.com/VKCOM/php-parser/pkg/visitor"
	"github.com/VKCOM/php-parser/pkg/visitor/traverser"
)

// Parse parses PHP source. Syntax errors are collected rather than returned,
// so a partially broken file still yields whatever could be recovered.
func Parse(content []byte) (ast.Vertex, []string, error) {
	var parserErrors []string

	rootNode, err := parser.Parse(content, conf.Config{
		Version: &version.Version{Major: 8, Minor: 0},
		ErrorHandlerFunc: func(e *errors.Error) {
			parserErrors = append(parserErrors, e.String())
		},
	})
	if err != nil {
		return nil, parserErrors, err
	}
	return rootNode, parserErrors, nil
}

// ParseFile parses content and collects namespace, imports and classes
func ParseFile(path string, content []byte) (*File, error) {
	rootNode, parseErrors, err := Parse(content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	f := &File{
		Path:        path,
		Imports:     map[string]string{},
		Root:        rootNode,
		Content:     content,
		ParseErrors: parseErrors,
	}
	if rootNode == nil {
		return f, nil
	}

	collector := &symbolCollector{file: f}
	traverser.NewTraverser(collector).Traverse(rootNode)
	return f, nil
}

// symbolCollector is a visitor that collects PHP symbols of one file
type symbolCollector struct {
	visitor.Null
	file *File
}

// StmtNamespace handles namespace declarations
func (v *symbolCollector) StmtNamespace(n *ast.StmtNamespace) {
	v.file.Namespace = NameOf(n.Name)
	v.file.Imports = map[string]string{}
}

// StmtUse handles use statements (imports)
func (v *symbolCollector) StmtUse(n *ast.StmtUseList) {
	if n.Type != nil {
		// use function / use const
		return
	}
	for _, use := range n.Uses {
		v.addUse("", use)
	}
}

// StmtGroupUse handles "use Prefix\{A, B as C};"
func (v *symbolCollector) StmtGroupUse(n *ast.StmtGroupUseList) {
	prefix := strings.TrimPrefix(NameOf(n.Prefix), `\`)
	for _, use := range n.Uses {
		v.addUse(prefix, use)
	}
}

func (v *symbolCollector) addUse(prefix string, node ast.Vertex) {
	useNode, ok := node.(*ast.StmtUse)
	if !ok {
		return
	}
	name := strings.TrimPrefix(NameOf(useNode.Use), `\`)
	if prefix != "" {
		name = prefix + `\` + name
	}
	alias := IdentifierOf(useNode.Alias)
	if alias == "" {
		alias = ShortName(name)
	}
	if alias != "" {
		v.file.Imports[alias] = name
	}
}

// StmtClass handles class declarations
func (v *symbolCollector) StmtClass(n *ast.StmtClass) {
	className := IdentifierOf(n.Name)
	if className == "" {
		// anonymous class
		return
	}

	f := v.file
	class := &ClassInfo{
		Name:      className,
		Namespace: f.Namespace,
		FullName:  ResolveName(className, f.Namespace, nil),
		FilePath:  f.Path,
		Imports:   copyImports(f.Imports),
		Node:      n,
	}
	if n.Position != nil {
		class.StartLine = n.Position.StartLine
		class.EndLine = n.Position.EndLine
	}
	if f.Namespace == "" {
		class.FullName = className
	}

	doc := extractPHPDocFromToken(n.ClassTkn)
	for _, mod := range n.Modifiers {
		if ident, ok := mod.(*ast.Identifier); ok {
			if strings.EqualFold(string(ident.Value), "abstract") {
				class.IsAbstract = true
			}
			if d := extractPHPDocFromToken(ident.IdentifierTkn); d.Description != "" {
				doc = d
			}
		}
	}
	class.Description = doc.Description

	if n.Extends != nil {
		class.Extends = class.Resolve(NameOf(n.Extends))
	}
	for _, iface := range n.Implements {
		class.Implements = append(class.Implements, class.Resolve(NameOf(iface)))
	}

	for _, stmt := range n.Stmts {
		switch s := stmt.(type) {
		case *ast.StmtClassMethod:
			class.Methods = append(class.Methods, v.method(class, s))
		case *ast.StmtTraitUse:
			for _, trait := range s.Traits {
				class.Uses = append(class.Uses, class.Resolve(NameOf(trait)))
			}
		case *ast.StmtPropertyList:
			class.Properties = append(class.Properties, v.properties(class, s)...)
		case *ast.StmtClassConstList:
			for _, c := range s.Consts {
				if constant, ok := c.(*ast.StmtConstant); ok {
					value, _ := StringValue(constant.Expr)
					class.Constants = append(class.Constants, ConstantInfo{
						Name:  IdentifierOf(constant.Name),
						Value: value,
						Expr:  constant.Expr,
					})
				}
			}
		}
	}

	f.Classes = append(f.Classes, class)
}

func (v *symbolCollector) method(class *ClassInfo, n *ast.StmtClassMethod) *MethodInfo {
	m := &MethodInfo{
		Name:       IdentifierOf(n.Name),
		Visibility: visibility(n.Modifiers),
		IsStatic:   hasModifier(n.Modifiers, "static"),
		ClassName:  class.FullName,
		FilePath:   v.file.Path,
		Node:       n,
	}
	if n.Position != nil {
		m.StartLine = n.Position.StartLine
		m.EndLine = n.Position.EndLine
		m.Code = extractCodeFromContent(v.file.Content, m.StartLine, m.EndLine)
	}

	for _, param := range n.Params {
		if p, ok := param.(*ast.Parameter); ok {
			m.Params = append(m.Params, paramInfo(class, p))
		}
	}
	if n.ReturnType != nil {
		m.ReturnType, _ = typeName(class, n.ReturnType)
	}

	doc := phpDocFromModifiers(n.Modifiers)
	if doc == nil {
		doc = extractPHPDocFromToken(n.FunctionTkn)
	}
	m.Doc = doc
	m.Description = doc.Description
	m.Deprecated = doc.Deprecated
	return m
}

func (v *symbolCollector) properties(class *ClassInfo, n *ast.StmtPropertyList) []PropertyInfo {
	var typ string
	if n.Type != nil {
		typ, _ = typeName(class, n.Type)
	}
	var out []PropertyInfo
	for _, prop := range n.Props {
		if p, ok := prop.(*ast.StmtProperty); ok {
			out = append(out, PropertyInfo{
				Name:       VariableName(p.Var),
				Type:       typ,
				Visibility: visibility(n.Modifiers),
				IsStatic:   hasModifier(n.Modifiers, "static"),
				Default:    p.Expr,
			})
		}
	}
	return out
}

func paramInfo(class *ClassInfo, p *ast.Parameter) ParamInfo {
	info := ParamInfo{
		Name:       VariableName(p.Var),
		HasDefault: p.DefaultValue != nil,
	}
	if p.Type != nil {
		info.Type, info.Nullable = typeName(class, p.Type)
	}
	return info
}

// typeName renders a type node. Union types keep their first non-null member.
func typeName(class *ClassInfo, node ast.Vertex) (string, bool) {
	switch n := node.(type) {
	case *ast.Nullable:
		t, _ := typeName(class, n.Expr)
		return t, true
	case *ast.Union:
		nullable := false
		first := ""
		for _, t := range n.Types {
			name, _ := typeName(class, t)
			if strings.EqualFold(name, "null") {
				nullable = true
				continue
			}
			if first == "" {
				first = name
			}
		}
		return first, nullable
	case *ast.Identifier:
		return string(n.Value), false
	case *ast.Name, *ast.NameFullyQualified, *ast.NameRelative:
		name := NameOf(n)
		if IsBuiltinType(name) {
			return strings.ToLower(name), false
		}
		return class.Resolve(name), false
	}
	return "", false
}

func phpDocFromModifiers(modifiers []ast.Vertex) *PHPDocInfo {
	for _, mod := range modifiers {
		if ident, ok := mod.(*ast.Identifier); ok && ident.IdentifierTkn != nil {
			doc := extractPHPDocFromToken(ident.IdentifierTkn)
			if doc.Description != "" || doc.Deprecated || len(doc.Params) > 0 || len(doc.Returns) > 0 {
				return doc
			}
		}
	}
	return nil
}

func visibility(modifiers []ast.Vertex) string {
	for _, mod := range modifiers {
		switch v := strings.ToLower(IdentifierOf(mod)); v {
		case "public", "protected", "private":
			return v
		}
	}
	return "public"
}

func hasModifier(modifiers []ast.Vertex, target string) bool {
	for _, mod := range modifiers {
		if strings.EqualFold(IdentifierOf(mod), target) {
			return true
		}
	}
	return false
}

func copyImports(src map[string]string) map[string]string {
	dst := make(map[string]string, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// extractCodeFromContent extracts code from file content based on line numbers (1-indexed)
func extractCodeFromContent(content []byte, startLine, endLine int) string {
	if content == nil || startLine < 1 || endLine < startLine {
		return ""
	}

	lines := strings.Split(string(content), "\n")
	if startLine > len(lines) {
		return ""
	}
	if endLine > len(lines) {
		endLine = len(lines)
	}
	return strings.Join(lines[startLine-1:endLine], "\n")
}
