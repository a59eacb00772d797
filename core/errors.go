package core

import "github.com/pkg/errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		return ""
	}
	return err.Err.Error()
}

// NotFoundError reports a missing resource.
type NotFoundError struct {
	Resource string
}

func NewNotFoundError(resource string) error {
	return &NotFoundError{Resource: resource}
}

func (err NotFoundError) Error() string {
	return err.Resource + " not found"
}

// IsNotFound reports whether the cause of err is ErrNotFound or a *NotFoundError.
func IsNotFound(err error) bool {
	cause := errors.Cause(err)
	if cause == ErrNotFound {
		return true
	}
	_, ok := cause.(*NotFoundError)
	return ok
}

// RuleError reports a business rule rejecting an otherwise valid request.
// Its message is meant to be shown to the user as-is.
type RuleError struct {
	Message string
}

func NewRuleError(msg string) error {
	return &RuleError{Message: msg}
}

func (err RuleError) Error() string {
	return err.Message
}

// IsRuleError reports whether the cause of err is a *RuleError.
func IsRuleError(err error) bool {
	_, ok := errors.Cause(err).(*RuleError)
	return ok
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
