package generator

import (
	"fmt"
	"strings"

	"github.com/doITmagic/api-contract-mcp/internal/analysis"
)

// Problem is one warning or error recorded for a (path, method)
type Problem struct {
	Path   string
	Method string
	Err    *analysis.Error
}

// Short renders the one-line form shown without --detailed
func (p Problem) Short() string {
	return fmt.Sprintf("%s %s: %s", p.Method, p.Path, p.Err.Message)
}

// Detailed adds the code, the underlying cause and the suggestion
func (p Problem) Detailed() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: [%s] %s", p.Method, p.Path, p.Err.Code, p.Err.Message)
	if p.Err.Cause != nil {
		fmt.Fprintf(&b, "\n      cause: %v", p.Err.Cause)
	}
	if p.Err.Suggestion != "" {
		fmt.Fprintf(&b, "\n      suggestion: %s", p.Err.Suggestion)
	}
	return b.String()
}

// ValidationProblem is a schema that failed OpenAPI validation
type ValidationProblem struct {
	Path    string
	Method  string
	Part    string // "request", "query" or "response"
	Message string
}

func (v ValidationProblem) String() string {
	return fmt.Sprintf("%s %s (%s schema): %s", v.Method, v.Path, v.Part, v.Message)
}

// RunContext accumulates what happened during one generation run. It is
// threaded through the pipeline instead of living in package state.
type RunContext struct {
	Routes    int // route records read from the registry
	Entries   int // (path, method) entries written
	Analyzed  int
	Reused    int // copied from the previous contract in incremental mode
	Skipped   int // filtered out by prefix or method
	Errors    []Problem
	Warnings  []Problem
	Invalid   []ValidationProblem
	Archived  string
	Written   string
	DryRun    bool
	Unchanged bool // incremental run found nothing to re-analyze
}

func (rc *RunContext) addError(path, method string, err error) *analysis.Error {
	ae := analysis.AsAnalysisError(err)
	rc.Errors = append(rc.Errors, Problem{Path: path, Method: method, Err: ae})
	return ae
}

func (rc *RunContext) addWarning(path, method, code, message, suggestion string) {
	rc.Warnings = append(rc.Warnings, Problem{Path: path, Method: method, Err: &analysis.Error{
		Kind:       analysis.KindUnexpected,
		Code:       code,
		Message:    message,
		Suggestion: suggestion,
	}})
}

// Warning codes
const (
	WarnUndocumentedResponse = "W_RESPONSE_UNDOCUMENTED"
)

// Exit codes
const (
	ExitOK      = 0
	ExitFailure = 1 // fatal I/O failure
	ExitIssues  = 2 // strict mode saw problems, or a dry run found errors or invalid schemas
)

// ExitCode maps the run outcome to a process exit status. Outside dry runs
// and strict mode analysis errors never fail a run: they degrade single
// entries.
func (rc *RunContext) ExitCode(opts Options) int {
	if opts.Strict && (len(rc.Errors) > 0 || len(rc.Warnings) > 0 || len(rc.Invalid) > 0) {
		return ExitIssues
	}
	if opts.DryRun && (len(rc.Errors) > 0 || len(rc.Invalid) > 0) {
		return ExitIssues
	}
	return ExitOK
}
