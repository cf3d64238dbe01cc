package serrors

import (
	"errors"
	"fmt"
)

// BaseError is a coded error. Code is stable and machine-readable; Message
// is the developer-facing text; LocaleKey points at the translation entry
// used by presentation layers (empty for internal-only errors).
type BaseError struct {
	Code         string
	Message      string
	LocaleKey    string
	TemplateData map[string]string
}

func NewError(code, message, localeKey string) *BaseError {
	return &BaseError{
		Code:      code,
		Message:   message,
		LocaleKey: localeKey,
	}
}

func (e *BaseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// WithTemplateData returns a copy carrying data for message templating.
func (e *BaseError) WithTemplateData(data map[string]string) *BaseError {
	clone := *e
	clone.TemplateData = data
	return &clone
}

// Is matches by code so wrapped and templated copies still compare equal to
// the sentinel value.
func (e *BaseError) Is(target error) bool {
	var be *BaseError
	if !errors.As(target, &be) {
		return false
	}
	return e.Code == be.Code
}

// Code extracts the error code from err, or "" when err carries none.
func Code(err error) string {
	var be *BaseError
	if errors.As(err, &be) {
		return be.Code
	}
	return ""
}

func NewFieldRequiredError(field, localeKey string) *BaseError {
	return NewError("FIELD_REQUIRED", fmt.Sprintf("%s is required", field), localeKey).
		WithTemplateData(map[string]string{"field": field})
}
