package services

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("resource not found")

// ValidationError is a single-field business rule violation.
type ValidationError struct {
	Field   string
	Message string
	Value   interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s %s", e.Field, e.Message)
}

func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: message, Value: value}
}

// CompulsoryIncompleteError rejects a PASS submission whose compulsory
// items are not all completed. Missing holds "section: item text" labels
// for user-visible messaging.
type CompulsoryIncompleteError struct {
	Missing []string
}

func (e *CompulsoryIncompleteError) Error() string {
	return fmt.Sprintf("compulsory items incomplete: %s", strings.Join(e.Missing, "; "))
}

// IsValidationError reports whether err is a request or business rule
// validation failure.
func IsValidationError(err error) bool {
	var ve *ValidationError
	var ce *CompulsoryIncompleteError
	return errors.As(err, &ve) || errors.As(err, &ce)
}
