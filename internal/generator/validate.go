package generator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/doITmagic/api-contract-mcp/internal/contract"
	"github.com/doITmagic/api-contract-mcp/internal/export"
)

// SchemaValidator checks request, query and response schemas against the
// OpenAPI schema subset, and synthesized examples against their schema.
type SchemaValidator struct{}

// Validate returns one problem per failing schema part
func (SchemaValidator) Validate(ctx context.Context, c *contract.Contract) []ValidationProblem {
	var out []ValidationProblem
	c.Each(func(path, method string, e *contract.Entry) {
		report := func(part string, err error) {
			if err != nil {
				out = append(out, ValidationProblem{Path: path, Method: method, Part: part, Message: err.Error()})
			}
		}
		if len(e.RequestSchema) > 0 {
			report("request", export.FieldsSchema(e.RequestSchema).Validate(ctx))
		}
		if len(e.QueryParameters) > 0 {
			report("query", export.FieldsSchema(e.QueryParameters).Validate(ctx))
		}
		if e.ResponseSchema.IsUndocumented() {
			return
		}
		if err := export.SchemaOf(e.ResponseSchema).Validate(ctx); err != nil {
			report("response", err)
			return
		}
		walkSchema(e.ResponseSchema, func(name string, s *contract.Schema) {
			if s.Example != nil {
				report("response example", checkExample(export.SchemaOf(s), s.Example, name))
			}
		})
	})
	return out
}

// checkExample visits a JSON-normalized copy of value. VisitJSON only knows
// the types encoding/json produces.
func checkExample(schema *openapi3.Schema, value any, name string) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("example is not JSON: %w", err)
	}
	var normalized any
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return err
	}
	if err := schema.VisitJSON(normalized); err != nil {
		if name != "" {
			return fmt.Errorf("%s: %w", name, err)
		}
		return err
	}
	return nil
}
