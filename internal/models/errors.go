package models

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration matches any ConfigurationError via errors.Is
	ErrConfiguration = errors.New("configuration error")
	// ErrInput matches any InputError via errors.Is
	ErrInput = errors.New("input error")
)

// ConfigurationError is fatal at load time. A snapshot that produced one must
// never reach a pipeline.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// Is ErrConfiguration
func (e *ConfigurationError) Is(target error) bool {
	return target == ErrConfiguration
}

// Configf helper
func Configf(field, format string, args ...any) error {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// InputError is reported per request; the request yields no Decision.
type InputError struct {
	RequestID string
	Field     string
	Reason    string
}

func (e *InputError) Error() string {
	id := e.RequestID
	if id == "" {
		id = "<unnamed>"
	}
	return fmt.Sprintf("input error: request %s: %s: %s", id, e.Field, e.Reason)
}

// Is ErrInput
func (e *InputError) Is(target error) bool {
	return target == ErrInput
}

// Inputf helper
func Inputf(requestID, field, format string, args ...any) error {
	return &InputError{RequestID: requestID, Field: field, Reason: fmt.Sprintf(format, args...)}
}
