package laravel

import (
	"sort"

	"github.com/doITmagic/api-contract-mcp/internal/analyzers/php"
)

// PropertyExtractor reads literal property defaults and literal-returning
// methods from indexed classes
type PropertyExtractor struct {
	index *php.Index
}

// NewPropertyExtractor creates an extractor over the class index
func NewPropertyExtractor(index *php.Index) *PropertyExtractor {
	return &PropertyExtractor{index: index}
}

// Value evaluates the default of a declared property, walking up the
// indexed parents. ok is false when no class declares it.
// Example: protected $fillable = ['name', 'email'];
func (e *PropertyExtractor) Value(class *php.ClassInfo, property string) (any, bool) {
	seen := map[string]bool{}
	for c := class; c != nil && !seen[c.FullName]; c = e.index.Class(c.Extends) {
		seen[c.FullName] = true
		if p := c.Property(property); p != nil {
			if p.Default == nil {
				return nil, true
			}
			return NewScope(e.index, c).Eval(p.Default), true
		}
		if c.Extends == "" {
			break
		}
	}
	return nil, false
}

// StringArray extracts a string array property
func (e *PropertyExtractor) StringArray(class *php.ClassInfo, property string) []string {
	v, _ := e.Value(class, property)
	return stringsOf(v)
}

// StringMap extracts an associative array property
// Example: protected $casts = ['is_admin' => 'boolean'];
func (e *PropertyExtractor) StringMap(class *php.ClassInfo, property string) map[string]string {
	v, _ := e.Value(class, property)
	return stringMapOf(v)
}

// String extracts a scalar string property
// Example: protected $table = 'users';
func (e *PropertyExtractor) String(class *php.ClassInfo, property string) string {
	v, _ := e.Value(class, property)
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

// Bool extracts a boolean property; def is returned when it is not declared
func (e *PropertyExtractor) Bool(class *php.ClassInfo, property string, def bool) bool {
	v, ok := e.Value(class, property)
	if !ok {
		return def
	}
	if b, isBool := v.(bool); isBool {
		return b
	}
	return def
}

// MethodReturn evaluates the literal returned by a method with no arguments
// Example: protected function casts(): array { return [...]; }
func (e *PropertyExtractor) MethodReturn(class *php.ClassInfo, method string) (any, bool) {
	if class == nil {
		return nil, false
	}
	m := e.index.Method(class.FullName, method)
	if m == nil || m.Node == nil {
		return nil, false
	}
	owner := e.index.Class(m.ClassName)
	if owner == nil {
		owner = class
	}
	return NewScope(e.index, owner).Exec(php.Body(m.Node))
}

func stringsOf(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok && s != "" {
			out = append(out, s)
		}
	}
	return out
}

func stringMapOf(v any) map[string]string {
	m, ok := v.(map[string]any)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, val := range m {
		if s := ToString(val); s != "" {
			out[k] = s
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
