package analysis

import (
	"fmt"
	"strings"

	"github.com/doITmagic/api-contract-mcp/internal/contract"
)

// ParseRules turns validation rules (field -> "a|b" string or token list)
// into field schemas. It never fails: tokens it does not understand are
// dropped.
func ParseRules(rules map[string]any) map[string]contract.FieldSchema {
	out := make(map[string]contract.FieldSchema, len(rules))
	for field, rule := range rules {
		out[BracketPath(field)] = parseFieldRules(RuleTokens(rule))
	}
	return out
}

// BracketPath rewrites "user.address.city" as "user[address][city]"
func BracketPath(field string) string {
	parts := strings.Split(field, ".")
	if len(parts) == 1 {
		return field
	}
	var sb strings.Builder
	sb.WriteString(parts[0])
	for _, p := range parts[1:] {
		sb.WriteString("[" + p + "]")
	}
	return sb.String()
}

// RuleTokens normalizes a rule value to its ordered token list
func RuleTokens(rule any) []string {
	var tokens []string
	switch r := rule.(type) {
	case string:
		tokens = strings.Split(r, "|")
	case []string:
		for _, item := range r {
			tokens = append(tokens, strings.Split(item, "|")...)
		}
	case []any:
		for _, item := range r {
			switch v := item.(type) {
			case string:
				tokens = append(tokens, strings.Split(v, "|")...)
			case fmt.Stringer:
				tokens = append(tokens, v.String())
			}
		}
	case fmt.Stringer:
		tokens = []string{r.String()}
	}

	out := tokens[:0]
	for _, t := range tokens {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

var verbatimPrefixes = []string{"min:", "max:", "regex:", "exists:", "unique:"}

func parseFieldRules(tokens []string) contract.FieldSchema {
	schema := contract.FieldSchema{Type: "string", Constraints: []string{}}

	for _, token := range tokens {
		switch lower := strings.ToLower(token); {
		case lower == "required":
			schema.Required = true
		case lower == "integer" || lower == "int":
			schema.Type = "integer"
		case lower == "numeric" || lower == "float" || lower == "double":
			schema.Type = "number"
		case lower == "boolean" || lower == "bool":
			schema.Type = "boolean"
		case lower == "array":
			schema.Type = "array"
		case lower == "string":
			schema.Type = "string"
		case lower == "email" || lower == "url" || lower == "uuid" || lower == "date":
			schema.Constraints = append(schema.Constraints, lower)
		case hasAnyPrefix(lower, verbatimPrefixes):
			schema.Constraints = append(schema.Constraints, token)
		case strings.HasPrefix(lower, "in:"):
			schema.Constraints = append(schema.Constraints, "enum: "+token[len("in:"):])
		}
	}
	return schema
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
