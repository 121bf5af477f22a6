package analysis

import (
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/VKCOM/php-parser/pkg/ast"

	"github.com/doITmagic/api-contract-mcp/internal/analyzers/php"
)

var httpConstants = map[string]int{
	"HTTP_OK":                    200,
	"HTTP_CREATED":               201,
	"HTTP_ACCEPTED":              202,
	"HTTP_NO_CONTENT":            204,
	"HTTP_MOVED_PERMANENTLY":     301,
	"HTTP_FOUND":                 302,
	"HTTP_NOT_MODIFIED":          304,
	"HTTP_BAD_REQUEST":           400,
	"HTTP_UNAUTHORIZED":          401,
	"HTTP_PAYMENT_REQUIRED":      402,
	"HTTP_FORBIDDEN":             403,
	"HTTP_NOT_FOUND":             404,
	"HTTP_METHOD_NOT_ALLOWED":    405,
	"HTTP_CONFLICT":              409,
	"HTTP_GONE":                  410,
	"HTTP_UNPROCESSABLE_ENTITY":  422,
	"HTTP_TOO_MANY_REQUESTS":     429,
	"HTTP_INTERNAL_SERVER_ERROR": 500,
	"HTTP_SERVICE_UNAVAILABLE":   503,
}

// ResponseCodeAnalyzer collects the status codes a handler can answer with
type ResponseCodeAnalyzer struct {
	reflector Reflector
}

// NewResponseCodeAnalyzer creates an analyzer over the class index
func NewResponseCodeAnalyzer(r Reflector) *ResponseCodeAnalyzer {
	return &ResponseCodeAnalyzer{reflector: r}
}

// ResponseContext carries route facts that imply error responses
type ResponseContext struct {
	Method        string
	Authenticated bool
	Validated     bool
	Throttled     bool
	HasParameters bool
}

// Analyze returns status code -> reason phrase
func (a *ResponseCodeAnalyzer) Analyze(h Handler, rc ResponseContext) map[string]string {
	codes := map[int]bool{}
	for _, code := range a.explicitCodes(h) {
		codes[code] = true
	}

	hasSuccess := false
	for code := range codes {
		if code >= 200 && code < 300 {
			hasSuccess = true
		}
	}
	if !hasSuccess {
		if strings.EqualFold(rc.Method, "POST") && strings.EqualFold(h.Method, "store") {
			codes[201] = true
		} else {
			codes[200] = true
		}
	}

	if rc.Authenticated {
		codes[401] = true
	}
	if rc.Validated {
		codes[422] = true
	}
	if rc.Throttled {
		codes[429] = true
	}
	if rc.HasParameters {
		codes[404] = true
	}

	out := make(map[string]string, len(codes))
	for code := range codes {
		out[strconv.Itoa(code)] = http.StatusText(code)
	}
	return out
}

func (a *ResponseCodeAnalyzer) body(h Handler) ast.Vertex {
	if h.Kind == HandlerClosure {
		return h.Closure
	}
	if m := a.reflector.Method(h.Class, h.Method); m != nil && m.Node != nil {
		return m.Node.Stmt
	}
	return nil
}

func (a *ResponseCodeAnalyzer) explicitCodes(h Handler) []int {
	body := a.body(h)
	if body == nil {
		return nil
	}

	var codes []int
	add := func(node ast.Vertex) {
		if code, ok := statusCode(node); ok {
			codes = append(codes, code)
		}
	}

	for _, call := range php.Calls(body) {
		args := php.CallArgs(call)
		switch strings.ToLower(php.CallName(call)) {
		case "json", "response":
			if len(args) > 1 {
				add(args[1])
			}
		case "setstatuscode", "abort":
			if len(args) > 0 {
				add(args[0])
			}
		case "abort_if", "abort_unless":
			if len(args) > 1 {
				add(args[1])
			}
		case "nocontent":
			codes = append(codes, 204)
		case "authorize":
			codes = append(codes, 403)
		case "findorfail", "firstorfail":
			codes = append(codes, 404)
		}
	}
	sort.Ints(codes)
	return codes
}

// statusCode reads 201 or Response::HTTP_CREATED
func statusCode(node ast.Vertex) (int, bool) {
	switch n := php.Unwrap(node).(type) {
	case *ast.ScalarLnumber:
		code, err := strconv.Atoi(string(n.Value))
		if err != nil || code < 100 || code > 599 {
			return 0, false
		}
		return code, true
	case *ast.ExprClassConstFetch:
		code, ok := httpConstants[php.IdentifierOf(n.Const)]
		return code, ok
	}
	return 0, false
}
