// # internal/core/errors/errors.go
package errors

import (
	"errors"
	"fmt"
	"strings"
)

type ErrorCode string

const (
	CodeNotFound        ErrorCode = "NOT_FOUND"
	CodeValidationError ErrorCode = "VALIDATION_ERROR"
	CodeConflict        ErrorCode = "CONFLICT"
	CodeInternal        ErrorCode = "INTERNAL_ERROR"
	CodeNotSupported    ErrorCode = "NOT_SUPPORTED"

	CodeSourceParse     ErrorCode = "SOURCE_PARSE"
	CodeDependencyCycle ErrorCode = "DEPENDENCY_CYCLE"
	CodeAmbiguousModule ErrorCode = "AMBIGUOUS_MODULE"
	CodeTraceFormat     ErrorCode = "TRACE_FORMAT"
	CodeIncompleteRun   ErrorCode = "INCOMPLETE_RUN"
	CodeReentrant       ErrorCode = "REENTRANT"
	CodeInvalidLog      ErrorCode = "INVALID_LOG"
)

type DomainError struct {
	Code    ErrorCode
	Message string
	Err     error
	Context map[string]interface{}
}

const (
	CtxPath      = "path"
	CtxOperation = "operation"
	CtxModule    = "module"
	CtxLine      = "line"
	CtxColumn    = "column"
	CtxCycle     = "cycle"
	CtxPaths     = "paths"
)

func (e *DomainError) WithContext(key string, value interface{}) *DomainError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

func (e *DomainError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if len(e.Context) > 0 {
		msg += fmt.Sprintf(" %v", e.Context)
	}
	return msg
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

func New(code ErrorCode, msg string) error {
	return &DomainError{Code: code, Message: msg}
}

func Wrap(err error, code ErrorCode, msg string) error {
	return &DomainError{Code: code, Message: msg, Err: err}
}

// AddContext attaches a context value, wrapping foreign errors as internal.
func AddContext(err error, key string, value interface{}) error {
	var de *DomainError
	if errors.As(err, &de) {
		de.WithContext(key, value)
		return de
	}
	return &DomainError{
		Code:    CodeInternal,
		Message: "wrapped error",
		Err:     err,
		Context: map[string]interface{}{key: value},
	}
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code ErrorCode) bool {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code == code
	}
	return false
}

// CodeOf returns the code of the first DomainError in the chain, or "".
func CodeOf(err error) ErrorCode {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

func SourceParse(path string, line, column int, msg string) error {
	return (&DomainError{
		Code:    CodeSourceParse,
		Message: fmt.Sprintf("%s:%d:%d: %s", path, line, column, msg),
	}).WithContext(CtxPath, path).WithContext(CtxLine, line).WithContext(CtxColumn, column)
}

func DependencyCycle(cycles [][]string) error {
	rendered := make([]string, 0, len(cycles))
	for _, cycle := range cycles {
		if len(cycle) == 0 {
			continue
		}
		rendered = append(rendered, strings.Join(append(append([]string{}, cycle...), cycle[0]), " -> "))
	}
	return (&DomainError{
		Code:    CodeDependencyCycle,
		Message: "import cycle among batch scripts: " + strings.Join(rendered, "; "),
	}).WithContext(CtxCycle, cycles)
}

func AmbiguousModule(module string, first, second string) error {
	return (&DomainError{
		Code:    CodeAmbiguousModule,
		Message: fmt.Sprintf("module name %q is produced by both %s and %s", module, first, second),
	}).WithContext(CtxModule, module).WithContext(CtxPaths, []string{first, second})
}

func TraceFormat(line int, msg string, err error) error {
	return (&DomainError{
		Code:    CodeTraceFormat,
		Message: fmt.Sprintf("line %d: %s", line, msg),
		Err:     err,
	}).WithContext(CtxLine, line)
}

func IncompleteRun(open int) error {
	return New(CodeIncompleteRun, fmt.Sprintf("%d call(s) never exited", open))
}

func Reentrant(path, reason string) error {
	return (&DomainError{
		Code:    CodeReentrant,
		Message: fmt.Sprintf("%s: %s; instrument the original script instead", path, reason),
	}).WithContext(CtxPath, path)
}
