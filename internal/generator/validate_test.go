package generator

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doITmagic/api-contract-mcp/internal/analysis"
	"github.com/doITmagic/api-contract-mcp/internal/contract"
)

func TestSchemaValidator(t *testing.T) {
	c := contract.New()
	c.Set("/api/ok", "GET", &contract.Entry{
		QueryParameters: map[string]contract.FieldSchema{"page": {Type: "integer", Constraints: []string{"min:1"}}},
		ResponseSchema: &contract.Schema{
			Type:       "object",
			Properties: map[string]*contract.Schema{"id": {Type: "integer"}, "tags": {Type: "array", Items: &contract.Schema{}}},
			Example:    map[string]any{"id": 1, "tags": []any{}},
		},
	})
	c.Set("/api/bad-type", "POST", &contract.Entry{
		RequestSchema:  map[string]contract.FieldSchema{"when": {Type: "datetime"}},
		ResponseSchema: &contract.Schema{Type: "object", Properties: map[string]*contract.Schema{"x": {Type: "mystery"}}},
	})
	c.Set("/api/bad-example", "GET", &contract.Entry{
		ResponseSchema: &contract.Schema{
			Type:       "object",
			Properties: map[string]*contract.Schema{"id": {Type: "integer"}},
			Example:    map[string]any{"id": "one"},
		},
	})
	c.Set("/api/bad-pattern", "POST", &contract.Entry{
		RequestSchema:  map[string]contract.FieldSchema{"code": {Type: "string", Constraints: []string{"regex:/([a-z/"}}},
		ResponseSchema: contract.Undocumented(),
	})

	problems := SchemaValidator{}.Validate(context.Background(), c)

	byKey := map[string]ValidationProblem{}
	for _, p := range problems {
		byKey[p.Method+" "+p.Path+" "+p.Part] = p
	}
	assert.Len(t, problems, 4)
	assert.Contains(t, byKey, "POST /api/bad-type request")
	assert.Contains(t, byKey, "POST /api/bad-type response")
	assert.Contains(t, byKey, "GET /api/bad-example response example")
	assert.Contains(t, byKey, "POST /api/bad-pattern request")
	assert.Contains(t, byKey["POST /api/bad-type response"].Message, "mystery")
	assert.Contains(t, byKey["POST /api/bad-type response"].String(), "POST /api/bad-type (response schema)")
}

func TestPrintSummary(t *testing.T) {
	rc := &RunContext{Routes: 3, Entries: 2, Analyzed: 2, Skipped: 1, Written: "/tmp/api.json"}
	rc.addError("/api/widgets/{widget}", "GET", analysis.ResourceError(analysis.CodeFactoryFailed,
		"Factory failed for Widget", "Make the factory's definition() build without a database", assert.AnError))
	rc.addWarning("/api/health", "GET", WarnUndocumentedResponse, "Response schema undocumented", "Return an API resource")

	var short bytes.Buffer
	rc.PrintSummary(&short, Options{})
	out := short.String()
	assert.Contains(t, out, "✅ Contract written to /tmp/api.json")
	assert.Contains(t, out, "Errors: 1")
	assert.Contains(t, out, "GET /api/widgets/{widget}: Factory failed for Widget")
	assert.NotContains(t, out, "suggestion:")
	assert.NotContains(t, out, "/api/health", "warnings are listed in detailed or strict mode")
	assert.Contains(t, out, "--detailed")

	var detailed bytes.Buffer
	rc.PrintSummary(&detailed, Options{Detailed: true, ValidateSchemas: true})
	out = detailed.String()
	assert.Contains(t, out, "[E_RESOURCE_FACTORY_FAILED]")
	assert.Contains(t, out, "cause: "+assert.AnError.Error())
	assert.Contains(t, out, "suggestion: Make the factory's definition() build without a database")
	assert.Contains(t, out, "GET /api/health: [W_RESPONSE_UNDOCUMENTED]")
	assert.Contains(t, out, "Schema validation errors: 0")

	var dry bytes.Buffer
	(&RunContext{DryRun: true}).PrintSummary(&dry, Options{DryRun: true})
	assert.Contains(t, dry.String(), "Dry run")
	require.NotContains(t, dry.String(), "--detailed")
}
