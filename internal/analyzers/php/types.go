package php

import (
	"time"

	"github.com/VKCOM/php-parser/pkg/ast"
)

// File is one parsed PHP source file
type File struct {
	Path        string
	Namespace   string
	Imports     map[string]string // alias -> fully qualified name
	Classes     []*ClassInfo
	Root        ast.Vertex
	Content     []byte
	ModTime     time.Time
	ParseErrors []string
	parsedAt    time.Time
}

// ClassInfo describes a PHP class. Extends, Implements, Uses and parameter
// types are resolved to fully qualified names (without leading backslash).
type ClassInfo struct {
	Name        string            `json:"name"`
	Namespace   string            `json:"namespace"`
	FullName    string            `json:"full_name"`
	Description string            `json:"description"`
	Extends     string            `json:"extends,omitempty"`
	Implements  []string          `json:"implements,omitempty"`
	Uses        []string          `json:"uses,omitempty"` // Trait usage
	Methods     []*MethodInfo     `json:"methods"`
	Properties  []PropertyInfo    `json:"properties"`
	Constants   []ConstantInfo    `json:"constants"`
	IsAbstract  bool              `json:"is_abstract"`
	FilePath    string            `json:"file_path,omitempty"`
	StartLine   int               `json:"start_line,omitempty"`
	EndLine     int               `json:"end_line,omitempty"`
	Imports     map[string]string `json:"imports,omitempty"`

	Node *ast.StmtClass `json:"-"`
}

// MethodInfo describes a class method
type MethodInfo struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Deprecated  bool        `json:"deprecated,omitempty"`
	Params      []ParamInfo `json:"params"`
	ReturnType  string      `json:"return_type,omitempty"`
	Visibility  string      `json:"visibility"`
	IsStatic    bool        `json:"is_static"`
	ClassName   string      `json:"class_name"` // FQCN of the declaring class
	FilePath    string      `json:"file_path,omitempty"`
	StartLine   int         `json:"start_line,omitempty"`
	EndLine     int         `json:"end_line,omitempty"`
	Code        string      `json:"code,omitempty"`

	Doc  *PHPDocInfo          `json:"-"`
	Node *ast.StmtClassMethod `json:"-"`
}

// ParamInfo is a declared method parameter
type ParamInfo struct {
	Name       string `json:"name"`           // without "$"
	Type       string `json:"type,omitempty"` // builtin name or FQCN, nullability stripped
	Nullable   bool   `json:"nullable,omitempty"`
	HasDefault bool   `json:"has_default,omitempty"`
}

// IsBuiltin reports whether the parameter type is a scalar/builtin type
func (p ParamInfo) IsBuiltin() bool {
	return IsBuiltinType(p.Type)
}

// PropertyInfo describes a class property
type PropertyInfo struct {
	Name       string     `json:"name"`
	Type       string     `json:"type,omitempty"`
	Visibility string     `json:"visibility"`
	IsStatic   bool       `json:"is_static"`
	Default    ast.Vertex `json:"-"`
}

// ConstantInfo describes a class constant
type ConstantInfo struct {
	Name  string     `json:"name"`
	Value string     `json:"value"`
	Expr  ast.Vertex `json:"-"`
}

// Method returns the method declared directly on the class
func (c *ClassInfo) Method(name string) *MethodInfo {
	for _, m := range c.Methods {
		if equalFold(m.Name, name) {
			return m
		}
	}
	return nil
}

// Property returns the declared property (name without "$")
func (c *ClassInfo) Property(name string) *PropertyInfo {
	for i := range c.Properties {
		if c.Properties[i].Name == name {
			return &c.Properties[i]
		}
	}
	return nil
}

// Resolve turns a name written inside this class's file into a fully
// qualified class name.
func (c *ClassInfo) Resolve(name string) string {
	return ResolveName(name, c.Namespace, c.Imports)
}
