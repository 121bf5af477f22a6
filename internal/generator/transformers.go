package generator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/doITmagic/api-contract-mcp/internal/analysis"
	"github.com/doITmagic/api-contract-mcp/internal/contract"
)

// EntryContext is what a transformer knows about the entry it rewrites
type EntryContext struct {
	Path   string
	Method string
	Route  analysis.RouteRecord
}

// Transformer rewrites a finished entry in place
type Transformer interface {
	Name() string
	Transform(e *contract.Entry, ec EntryContext)
}

// TransformerFunc adapts a function to Transformer
type TransformerFunc struct {
	ID string
	Fn func(e *contract.Entry, ec EntryContext)
}

func (t TransformerFunc) Name() string { return t.ID }

func (t TransformerFunc) Transform(e *contract.Entry, ec EntryContext) { t.Fn(e, ec) }

// TransformerRegistry holds transformers by name
type TransformerRegistry struct {
	byName map[string]Transformer
}

// NewTransformerRegistry returns a registry with the built-in transformers
func NewTransformerRegistry() *TransformerRegistry {
	r := &TransformerRegistry{byName: map[string]Transformer{}}
	r.Register(TransformerFunc{ID: "pagination", Fn: paginationParams})
	r.Register(TransformerFunc{ID: "timestamps", Fn: timestampFormats})
	r.Register(TransformerFunc{ID: "strip_examples", Fn: stripExamples})
	return r
}

// Register adds or replaces a transformer
func (r *TransformerRegistry) Register(t Transformer) {
	r.byName[t.Name()] = t
}

// Names lists the registered transformers
func (r *TransformerRegistry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Pipeline returns the named transformers in the given order
func (r *TransformerRegistry) Pipeline(names []string) ([]Transformer, error) {
	out := make([]Transformer, 0, len(names))
	for _, n := range names {
		t, ok := r.byName[strings.TrimSpace(n)]
		if !ok {
			return nil, fmt.Errorf("unknown transformer %q (available: %s)", n, strings.Join(r.Names(), ", "))
		}
		out = append(out, t)
	}
	return out, nil
}

// isPaginated recognizes the data/links/meta envelope of paginated collections
func isPaginated(s *contract.Schema) bool {
	if s.IsUndocumented() || s.Type != "object" {
		return false
	}
	data, ok := s.Properties["data"]
	if !ok || data.Type != "array" {
		return false
	}
	_, links := s.Properties["links"]
	_, meta := s.Properties["meta"]
	return links && meta
}

func paginationParams(e *contract.Entry, ec EntryContext) {
	if !analysis.IsQueryMethod(ec.Method) || !isPaginated(e.ResponseSchema) {
		return
	}
	if e.QueryParameters == nil {
		e.QueryParameters = map[string]contract.FieldSchema{}
	}
	if _, ok := e.QueryParameters["page"]; !ok {
		e.QueryParameters["page"] = contract.FieldSchema{Type: "integer", Constraints: []string{"min:1"}}
	}
	if _, ok := e.QueryParameters["per_page"]; !ok {
		e.QueryParameters["per_page"] = contract.FieldSchema{Type: "integer", Constraints: []string{"min:1", "max:100"}}
	}
}

func timestampFormats(e *contract.Entry, _ EntryContext) {
	walkSchema(e.ResponseSchema, func(name string, s *contract.Schema) {
		if strings.HasSuffix(name, "_at") && s.Type == "string" && s.Format == "" {
			s.Format = "date-time"
		}
	})
}

func stripExamples(e *contract.Entry, _ EntryContext) {
	walkSchema(e.ResponseSchema, func(_ string, s *contract.Schema) {
		s.Example = nil
	})
}

// walkSchema visits s and every nested schema with its property name
// ("" for the root and array items)
func walkSchema(s *contract.Schema, fn func(name string, s *contract.Schema)) {
	var walk func(name string, s *contract.Schema)
	walk = func(name string, s *contract.Schema) {
		if s == nil {
			return
		}
		fn(name, s)
		for k, child := range s.Properties {
			walk(k, child)
		}
		walk("", s.Items)
	}
	walk("", s)
}
