package errors

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
)

type ErrorCode string

const (
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeValidationError  ErrorCode = "VALIDATION_ERROR"
	CodeInternal         ErrorCode = "INTERNAL_ERROR"
	CodePermissionDenied ErrorCode = "PERMISSION_DENIED"
	CodeInvalidManifest  ErrorCode = "INVALID_MANIFEST"
	CodeTimeout          ErrorCode = "TIMEOUT"
)

// Context keys describing where in a run an error happened.
const (
	CtxPath     = "path"
	CtxPackage  = "package"
	CtxArtifact = "artifact"
	CtxHash     = "sha256"
)

// DomainError classifies a failure for the dispatcher. Context carries the package, artifact,
// hash or path the failure belongs to.
type DomainError struct {
	Code    ErrorCode
	Message string
	Err     error
	Context map[string]string
}

func (e *DomainError) WithContext(key, value string) *DomainError {
	if e.Context == nil {
		e.Context = make(map[string]string)
	}
	e.Context[key] = value
	return e
}

// Error renders code, message, cause and context. Context keys are sorted so messages are
// stable across runs.
func (e *DomainError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Code, e.Message)
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	for _, k := range e.contextKeys() {
		fmt.Fprintf(&b, " %s=%s", k, e.Context[k])
	}
	return b.String()
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// LogValue lets slog render the error as a group instead of a flat string.
func (e *DomainError) LogValue() slog.Value {
	attrs := []slog.Attr{
		slog.String("code", string(e.Code)),
		slog.String("msg", e.Message),
	}
	if e.Err != nil {
		attrs = append(attrs, slog.String("cause", e.Err.Error()))
	}
	for _, k := range e.contextKeys() {
		attrs = append(attrs, slog.String(k, e.Context[k]))
	}
	return slog.GroupValue(attrs...)
}

func (e *DomainError) contextKeys() []string {
	keys := make([]string, 0, len(e.Context))
	for k := range e.Context {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func New(code ErrorCode, msg string) error {
	return &DomainError{Code: code, Message: msg}
}

func Wrap(err error, code ErrorCode, msg string) error {
	return &DomainError{Code: code, Message: msg, Err: err}
}

// AddContext attaches a key/value to err, wrapping plain errors as internal. A key that is
// already set keeps its innermost value.
func AddContext(err error, key, value string) error {
	var de *DomainError
	if errors.As(err, &de) {
		if _, ok := de.Context[key]; !ok {
			de.WithContext(key, value)
		}
		return err
	}
	return &DomainError{
		Code:    CodeInternal,
		Message: "wrapped error",
		Err:     err,
		Context: map[string]string{key: value},
	}
}

// IsCode checks if an error has a specific error code.
func IsCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

// CodeOf returns the code of the outermost DomainError in err's chain, or "" when there is none.
func CodeOf(err error) ErrorCode {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ContextValue returns the value recorded under key anywhere in err's chain.
func ContextValue(err error, key string) (string, bool) {
	for err != nil {
		var de *DomainError
		if !errors.As(err, &de) {
			return "", false
		}
		if v, ok := de.Context[key]; ok {
			return v, true
		}
		err = de.Err
	}
	return "", false
}
