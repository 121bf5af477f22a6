package analysis

import (
	"context"
	"errors"
	"strings"

	"github.com/doITmagic/api-contract-mcp/internal/contract"
)

// RequestSchemaExtractor turns a handler's validation rules into field schemas
type RequestSchemaExtractor struct {
	rules RuleSource
}

// NewRequestSchemaExtractor creates an extractor over a rule source
func NewRequestSchemaExtractor(rules RuleSource) *RequestSchemaExtractor {
	return &RequestSchemaExtractor{rules: rules}
}

// Extract returns the parsed rules of h. Failures are ValidationSchemaErrors.
func (r *RequestSchemaExtractor) Extract(ctx context.Context, h Handler) (map[string]contract.FieldSchema, error) {
	if r.rules == nil {
		return map[string]contract.FieldSchema{}, nil
	}
	rules, err := r.rules.Rules(ctx, h)
	if err != nil {
		var ae *Error
		if errors.As(err, &ae) {
			return map[string]contract.FieldSchema{}, ae
		}
		return map[string]contract.FieldSchema{}, ValidationError(CodeRulesUnreadable,
			"Could not read validation rules for "+h.String(),
			"Make sure rules() returns a literal array", err)
	}
	return ParseRules(rules), nil
}

// IsQueryMethod reports methods whose validated input comes from the query string
func IsQueryMethod(method string) bool {
	switch strings.ToUpper(method) {
	case "GET", "HEAD":
		return true
	}
	return false
}
