// Package export converts a contract into an OpenAPI 3 document. The same
// schema conversion backs --validate-schemas.
package export

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/doITmagic/api-contract-mcp/internal/contract"
)

// OpenAPIVersion is the version written into exported documents
const OpenAPIVersion = "3.0.3"

var (
	templateParamRe = regexp.MustCompile(`\{([A-Za-z_][A-Za-z0-9_]*)(?::[A-Za-z0-9_]+)?\??\}`)
	versionSegRe    = regexp.MustCompile(`^v\d+$`)
)

// SchemaOf converts a response schema. Undocumented schemas become an empty
// (any) schema; a "null" leaf becomes a nullable empty schema. Unknown type
// names are carried over so that Validate reports them.
func SchemaOf(s *contract.Schema) *openapi3.Schema {
	if s.IsUndocumented() {
		return openapi3.NewSchema()
	}
	var out *openapi3.Schema
	switch s.Type {
	case "":
		out = openapi3.NewSchema()
	case "null":
		out = openapi3.NewSchema().WithNullable()
	case "object":
		out = openapi3.NewObjectSchema()
		for _, name := range sortedKeys(s.Properties) {
			out.WithProperty(name, SchemaOf(s.Properties[name]))
		}
	case "array":
		items := openapi3.NewSchema()
		if s.Items != nil {
			items = SchemaOf(s.Items)
		}
		out = openapi3.NewArraySchema().WithItems(items)
	default:
		out = &openapi3.Schema{Type: &openapi3.Types{s.Type}}
	}
	if s.Format != "" {
		out.Format = s.Format
	}
	return out
}

// FieldSchema converts one request/query field with its constraints
func FieldSchema(f contract.FieldSchema) *openapi3.Schema {
	var out *openapi3.Schema
	switch f.Type {
	case "array":
		out = openapi3.NewArraySchema().WithItems(openapi3.NewSchema())
	case "string", "":
		out = openapi3.NewStringSchema()
	default:
		out = &openapi3.Schema{Type: &openapi3.Types{f.Type}}
	}

	for _, c := range f.Constraints {
		name, arg, _ := strings.Cut(c, ":")
		arg = strings.TrimSpace(arg)
		switch name {
		case "min", "max":
			n, err := strconv.ParseFloat(arg, 64)
			if err != nil {
				continue
			}
			applyBound(out, f.Type, name == "min", n)
		case "enum":
			for _, v := range strings.Split(arg, ",") {
				out.Enum = append(out.Enum, enumValue(strings.TrimSpace(v), f.Type))
			}
		case "regex":
			out.Pattern = phpPattern(arg)
		case "email", "uuid", "date":
			out.Format = name
		case "url":
			out.Format = "uri"
		}
	}
	return out
}

func applyBound(s *openapi3.Schema, typ string, lower bool, n float64) {
	switch typ {
	case "integer", "number":
		if lower {
			s.WithMin(n)
		} else {
			s.WithMax(n)
		}
	case "array":
		if lower {
			s.WithMinItems(int64(n))
		} else {
			s.WithMaxItems(int64(n))
		}
	case "boolean":
	default:
		if lower {
			s.WithMinLength(int64(n))
		} else {
			s.WithMaxLength(int64(n))
		}
	}
}

func enumValue(v, typ string) any {
	switch typ {
	case "integer":
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	case "number":
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return n
		}
	}
	return v
}

// phpPattern strips PCRE delimiters and trailing flags: /^[a-z]+$/i
func phpPattern(p string) string {
	if len(p) < 2 {
		return p
	}
	delim := p[0]
	if end := strings.LastIndexByte(p, delim); end > 0 && !isAlnum(delim) {
		flags := p[end+1:]
		p = p[1:end]
		if strings.Contains(flags, "i") {
			p = "(?i)" + p
		}
	}
	return p
}

func isAlnum(b byte) bool {
	return b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b == '\\'
}

// FieldsSchema builds the object schema of a request body or query string.
// Bracketed field paths stay flat property names.
func FieldsSchema(fields map[string]contract.FieldSchema) *openapi3.Schema {
	out := openapi3.NewObjectSchema()
	var required []string
	for _, name := range sortedKeys(fields) {
		f := fields[name]
		out.WithProperty(name, FieldSchema(f))
		if f.Required {
			required = append(required, name)
		}
	}
	if len(required) > 0 {
		out.WithRequired(required)
	}
	return out
}

// TemplatePath rewrites Laravel placeholders ({post?}, {post:slug}) to
// OpenAPI ones ({post})
func TemplatePath(path string) string {
	return templateParamRe.ReplaceAllString(path, "{$1}")
}

// Tag groups an operation by its first meaningful static segment
func Tag(path string) string {
	caser := cases.Title(language.English)
	for _, seg := range strings.Split(strings.Trim(path, "/"), "/") {
		if seg == "" || seg == "api" || versionSegRe.MatchString(seg) || strings.HasPrefix(seg, "{") {
			continue
		}
		return caser.String(strings.NewReplacer("-", " ", "_", " ").Replace(seg))
	}
	return "Default"
}

// Document converts the whole contract
func Document(c *contract.Contract, title, version string) *openapi3.T {
	components := openapi3.NewComponents()
	components.SecuritySchemes = openapi3.SecuritySchemes{}
	doc := &openapi3.T{
		OpenAPI:    OpenAPIVersion,
		Info:       &openapi3.Info{Title: title, Version: version},
		Paths:      openapi3.NewPaths(),
		Components: &components,
	}
	if c.Metadata != nil {
		doc.Info.Description = "Generated " + c.Metadata.GeneratedAt
		if c.Metadata.GitRevision != "" {
			doc.Info.Description += " from " + c.Metadata.GitRevision
		}
	}

	tags := map[string]bool{}
	c.Each(func(path, method string, e *contract.Entry) {
		if _, hasGet := c.Get(path, "GET"); method == "HEAD" && hasGet {
			return
		}
		p := TemplatePath(path)
		item := doc.Paths.Value(p)
		if item == nil {
			item = &openapi3.PathItem{}
			doc.Paths.Set(p, item)
		}
		op := Operation(path, method, e)
		if scheme, name := securityScheme(e.Auth); scheme != nil {
			doc.Components.SecuritySchemes[name] = &openapi3.SecuritySchemeRef{Value: scheme}
			op.Security = openapi3.NewSecurityRequirements().With(openapi3.NewSecurityRequirement().Authenticate(name))
		}
		item.SetOperation(method, op)
		for _, t := range op.Tags {
			tags[t] = true
		}
	})

	names := make([]string, 0, len(tags))
	for t := range tags {
		names = append(names, t)
	}
	sort.Strings(names)
	for _, t := range names {
		doc.Tags = append(doc.Tags, &openapi3.Tag{Name: t})
	}
	return doc
}

// Operation converts one entry
func Operation(path, method string, e *contract.Entry) *openapi3.Operation {
	op := openapi3.NewOperation()
	op.Summary = e.Description
	op.Deprecated = e.Deprecated
	// resource routes share a name across PUT and PATCH
	op.OperationID = operationID(path, method)
	if e.RouteName != "" {
		op.Extensions = map[string]any{"x-route-name": e.RouteName}
	}
	op.Tags = []string{Tag(path)}

	for _, pp := range e.PathParameters {
		op.AddParameter(openapi3.NewPathParameter(pp.Name).
			WithRequired(true).
			WithSchema(&openapi3.Schema{Type: &openapi3.Types{pp.Type}}))
	}
	for _, name := range sortedKeys(e.QueryParameters) {
		f := e.QueryParameters[name]
		op.AddParameter(openapi3.NewQueryParameter(name).WithRequired(f.Required).WithSchema(FieldSchema(f)))
	}
	for _, h := range e.CustomHeaders {
		op.AddParameter(openapi3.NewHeaderParameter(h.Name).
			WithRequired(h.Required).
			WithDescription(h.Description).
			WithSchema(openapi3.NewStringSchema()))
	}

	if len(e.RequestSchema) > 0 {
		body := openapi3.NewRequestBody().WithJSONSchema(FieldsSchema(e.RequestSchema)).WithRequired(true)
		op.RequestBody = &openapi3.RequestBodyRef{Value: body}
	}

	op.Responses = openapi3.NewResponsesWithCapacity(len(e.StatusCodes) + 1)
	success := successStatus(e.StatusCodes)
	codes := sortedKeys(e.StatusCodes)
	if len(codes) == 0 {
		codes = []string{strconv.Itoa(success)}
	}
	for _, code := range codes {
		status, err := strconv.Atoi(code)
		if err != nil {
			continue
		}
		desc := e.StatusCodes[code]
		if desc == "" {
			desc = "Success"
		}
		resp := openapi3.NewResponse().WithDescription(desc)
		if status == success && status != 204 {
			resp.WithJSONSchema(SchemaOf(e.ResponseSchema))
		}
		op.AddResponse(status, resp)
	}
	return op
}

// successStatus is the lowest documented 2xx code, 200 by default
func successStatus(codes map[string]string) int {
	best := 0
	for code := range codes {
		n, err := strconv.Atoi(code)
		if err == nil && n >= 200 && n < 300 && (best == 0 || n < best) {
			best = n
		}
	}
	if best == 0 {
		return 200
	}
	return best
}

func operationID(path, method string) string {
	var b strings.Builder
	b.WriteString(strings.ToLower(method))
	for _, seg := range strings.Split(strings.Trim(TemplatePath(path), "/"), "/") {
		seg = strings.Trim(seg, "{}")
		if seg == "" {
			continue
		}
		b.WriteByte('_')
		b.WriteString(strings.NewReplacer("-", "_", ".", "_").Replace(seg))
	}
	return b.String()
}

// securityScheme maps an auth fact to a named security scheme
func securityScheme(a contract.Auth) (*openapi3.SecurityScheme, string) {
	switch a.Type {
	case contract.AuthBearer:
		return openapi3.NewJWTSecurityScheme(), "bearerAuth"
	case contract.AuthBasic:
		return openapi3.NewSecurityScheme().WithType("http").WithScheme("basic"), "basicAuth"
	case contract.AuthAPIKey:
		in, name := a.In, a.Name
		if in == "" {
			in = "header"
		}
		if name == "" {
			name = "X-API-Key"
		}
		return openapi3.NewSecurityScheme().WithType("apiKey").WithIn(in).WithName(name), "apiKeyAuth"
	case contract.AuthOAuth2:
		scheme := openapi3.NewSecurityScheme().WithType("oauth2")
		scheme.Flows = &openapi3.OAuthFlows{
			ClientCredentials: &openapi3.OAuthFlow{TokenURL: "/oauth/token", Scopes: openapi3.StringMap{}},
		}
		return scheme, "oauth2"
	}
	return nil, ""
}

// Formats
const (
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Marshal encodes doc as indented JSON or as block-style YAML
func Marshal(doc *openapi3.T, format string) ([]byte, error) {
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode openapi document: %w", err)
	}
	switch format {
	case FormatJSON, "":
		var buf bytes.Buffer
		if err := json.Indent(&buf, raw, "", "    "); err != nil {
			return nil, err
		}
		buf.WriteByte('\n')
		return buf.Bytes(), nil
	case FormatYAML:
		// JSON is YAML; decoding into a node keeps key order
		var node yaml.Node
		if err := yaml.Unmarshal(raw, &node); err != nil {
			return nil, fmt.Errorf("convert openapi document: %w", err)
		}
		blockStyle(&node)
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(&node); err != nil {
			return nil, err
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}
	return nil, fmt.Errorf("unsupported export format %q (use %s or %s)", format, FormatJSON, FormatYAML)
}

func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
