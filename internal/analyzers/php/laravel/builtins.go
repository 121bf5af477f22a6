package laravel

import (
	"strings"

	"github.com/VKCOM/php-parser/pkg/ast"

	"github.com/doITmagic/api-contract-mcp/internal/analyzers/php"
)

// ExampleTimestamp is the value of every date helper
const ExampleTimestamp = "2024-01-01T00:00:00.000000Z"

// ExampleUUID is the value of every uuid helper
const ExampleUUID = "9b1deb4d-3b7d-4bad-9bdd-2b0d7b3dcb6d"

const exampleURL = "http://localhost"

// dateMethods render a date object as text
var dateMethods = map[string]bool{
	"format": true, "toisostring": true, "toiso8601string": true, "todatestring": true,
	"todatetimestring": true, "totimestring": true, "tojson": true, "diffforhumans": true,
	"toatomstring": true, "torfc3339string": true, "tostring": true, "__tostring": true,
	"translatedformat": true, "isoformat": true,
}

// builtin answers calls to framework helpers that commonly appear in
// serializers, factories and rule arrays
func (s *Scope) builtin(call ast.Vertex) any {
	args := php.CallArgs(call)
	name := strings.ToLower(php.CallName(call))

	switch n := call.(type) {
	case *ast.ExprFunctionCall:
		return s.function(name, args)
	case *ast.ExprStaticCall:
		return s.static(s.Resolve(php.NameOf(n.Class)), name, args)
	case *ast.ExprMethodCall:
		return s.method(n.Var, name, args)
	case *ast.ExprNullsafeMethodCall:
		return s.method(n.Var, name, args)
	case *ast.ExprNew:
		class := php.ShortName(s.Resolve(php.NameOf(n.Class)))
		if class == "Carbon" || class == "CarbonImmutable" || class == "DateTime" || class == "DateTimeImmutable" {
			return ExampleTimestamp
		}
	}
	return nil
}

func (s *Scope) arg(args []ast.Vertex, i int) any {
	if i < len(args) {
		return s.Eval(args[i])
	}
	return nil
}

func (s *Scope) function(name string, args []ast.Vertex) any {
	switch name {
	case "now", "today", "date":
		return ExampleTimestamp
	case "fake":
		return fakerGen{}
	case "__", "trans", "trans_choice", "e", "strval", "str", "trim", "ltrim", "rtrim", "htmlspecialchars", "strip_tags":
		return ToString(s.arg(args, 0))
	case "strtoupper", "mb_strtoupper":
		return strings.ToUpper(ToString(s.arg(args, 0)))
	case "strtolower", "mb_strtolower":
		return strings.ToLower(ToString(s.arg(args, 0)))
	case "ucfirst":
		v := ToString(s.arg(args, 0))
		if v == "" {
			return v
		}
		return strings.ToUpper(v[:1]) + v[1:]
	case "intval":
		return toInt(s.arg(args, 0))
	case "floatval", "round", "floor", "ceil":
		return toFloat(s.arg(args, 0))
	case "boolval":
		return Truthy(s.arg(args, 0))
	case "count", "strlen", "mb_strlen":
		switch v := s.arg(args, 0).(type) {
		case []any:
			return len(v)
		case map[string]any:
			return len(v)
		case string:
			return len(v)
		}
		return 0
	case "url", "asset", "secure_url", "secure_asset":
		return exampleURL + "/" + strings.TrimPrefix(ToString(s.arg(args, 0)), "/")
	case "route", "action":
		return exampleURL
	case "bcrypt":
		return "$2y$10$" + strings.Repeat("x", 53)
	case "json_encode":
		return "{}"
	case "array_merge":
		out := map[string]any{}
		var list []any
		for i := range args {
			switch v := s.arg(args, i).(type) {
			case map[string]any:
				for k, val := range v {
					out[k] = val
				}
			case []any:
				list = append(list, v...)
			}
		}
		if len(out) == 0 {
			return append([]any{}, list...)
		}
		return out
	case "collect", "value", "optional", "tap", "with":
		return s.Value(s.arg(args, 0))
	case "implode", "join":
		if list, ok := s.arg(args, 1).([]any); ok {
			parts := make([]string, 0, len(list))
			for _, v := range list {
				parts = append(parts, ToString(v))
			}
			return strings.Join(parts, ToString(s.arg(args, 0)))
		}
		return ""
	case "explode":
		return []any{ToString(s.arg(args, 1))}
	case "config", "env":
		return s.arg(args, 1)
	}
	return nil
}

func (s *Scope) static(class, name string, args []ast.Vertex) any {
	switch php.ShortName(class) {
	case "Str":
		return strHelper(name, ToString(s.arg(args, 0)))
	case "Carbon", "CarbonImmutable", "Date":
		return ExampleTimestamp
	case "Hash":
		return "$2y$10$" + strings.Repeat("x", 53)
	case "Crypt":
		return "eyJpdiI6IiJ9"
	case "Arr":
		if name == "get" {
			if m, ok := s.arg(args, 0).(map[string]any); ok {
				if v, ok := m[ToString(s.arg(args, 1))]; ok {
					return v
				}
			}
			return s.arg(args, 2)
		}
		return s.arg(args, 0)
	case "Storage":
		if name == "url" {
			return exampleURL + "/storage/" + ToString(s.arg(args, 0))
		}
	case "URL":
		return exampleURL
	}

	// Model::factory() inside factories is a foreign key to a related row
	if name == "factory" {
		return 1
	}
	return nil
}

func strHelper(name, subject string) any {
	switch name {
	case "random":
		n := toInt(subject)
		if n <= 0 {
			n = 16
		}
		return strings.Repeat("a", n)
	case "uuid", "ordereduuid":
		return ExampleUUID
	case "ulid":
		return "01ARZ3NDEKTSV4RRFFQ69G5FAV"
	case "slug", "kebab":
		return strings.ToLower(strings.Join(strings.Fields(subject), "-"))
	case "snake":
		return strings.ToLower(strings.Join(strings.Fields(subject), "_"))
	case "upper":
		return strings.ToUpper(subject)
	case "lower":
		return strings.ToLower(subject)
	case "length":
		return len(subject)
	case "contains", "startswith", "endswith", "is", "isuuid", "isjson":
		return true
	}
	return subject
}

// method evaluates a method call on an evaluated value
func (s *Scope) method(base ast.Vertex, name string, args []ast.Vertex) any {
	v := s.Eval(base)
	if r, ok := v.(receiver); ok {
		return r.call(s, name, args)
	}

	switch {
	case dateMethods[name]:
		if v == nil {
			return nil
		}
		return ExampleTimestamp
	case name == "count":
		switch t := v.(type) {
		case []any:
			return len(t)
		case map[string]any:
			return len(t)
		}
		return 0
	case name == "pluck":
		key := ToString(s.arg(args, 0))
		if list, ok := v.([]any); ok {
			out := make([]any, 0, len(list))
			for _, item := range list {
				if m, ok := item.(map[string]any); ok {
					out = append(out, m[key])
				}
			}
			return out
		}
		return []any{}
	case name == "first":
		if list, ok := v.([]any); ok && len(list) > 0 {
			return list[0]
		}
		return nil
	case name == "isempty":
		return !Truthy(v)
	case name == "isnotempty" || name == "exists":
		return Truthy(v)
	case name == "getkey":
		return 1
	}
	// chained builders (->toArray(), ->values(), ->ignore($id)) keep their subject
	return v
}
