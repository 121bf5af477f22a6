package analysis

import (
	"errors"
	"fmt"

	"github.com/doITmagic/api-contract-mcp/internal/contract"
)

// Kind classifies analysis failures
type Kind string

const (
	KindRoute      Kind = "RouteAnalysisError"
	KindValidation Kind = "ValidationSchemaError"
	KindResource   Kind = "ResourceAnalysisError"
	KindUnexpected Kind = "UnexpectedError"
)

// Error codes
const (
	CodeHandlerNotFound  = "E_ROUTE_HANDLER_NOT_FOUND"
	CodeMethodNotFound   = "E_ROUTE_METHOD_NOT_FOUND"
	CodeMalformedAction  = "E_ROUTE_MALFORMED_ACTION"
	CodeValidatorMissing = "E_VALIDATION_CLASS_MISSING"
	CodeRulesUnreadable  = "E_VALIDATION_RULES_UNREADABLE"
	CodeRulesNotList     = "E_VALIDATION_RULES_NOT_ARRAY"
	CodeFactoryFailed    = "E_RESOURCE_FACTORY_FAILED"
	CodeSerializerFailed = "E_RESOURCE_SERIALIZER_FAILED"
	CodeUnexpected       = "E_UNEXPECTED"
)

// Sentinel errors for expected, non-reportable outcomes
var (
	ErrModelNotFound = errors.New("model not found")
	ErrNoFactory     = errors.New("model has no factory")
)

// Error is a structured analysis failure. It is caught per route and method
// and never aborts a generation run.
type Error struct {
	Kind       Kind
	Code       string
	Message    string
	Suggestion string
	Cause      error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// EntryError renders e for the contract entry
func (e *Error) EntryError() *contract.EntryError {
	return &contract.EntryError{
		Kind:       string(e.Kind),
		Code:       e.Code,
		Message:    e.Message,
		Suggestion: e.Suggestion,
	}
}

// RouteError reports an unreachable or malformed handler
func RouteError(code, message, suggestion string, cause error) *Error {
	return &Error{Kind: KindRoute, Code: code, Message: message, Suggestion: suggestion, Cause: cause}
}

// ValidationError reports a validator that could not be read
func ValidationError(code, message, suggestion string, cause error) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message, Suggestion: suggestion, Cause: cause}
}

// ResourceError reports a model, factory or serializer failure
func ResourceError(code, message, suggestion string, cause error) *Error {
	return &Error{Kind: KindResource, Code: code, Message: message, Suggestion: suggestion, Cause: cause}
}

// AsAnalysisError returns err as *Error, classifying foreign errors as
// UnexpectedError.
func AsAnalysisError(err error) *Error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}
	return &Error{
		Kind:       KindUnexpected,
		Code:       CodeUnexpected,
		Message:    err.Error(),
		Suggestion: "Run with --detailed and check the route's handler source",
		Cause:      err,
	}
}
