package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Callers wrap them with fmt.Errorf("...: %w", kind) and the
// transport layer maps them to status codes with errors.Is.
var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrNotFound            = errors.New("not found")
	ErrConflict            = errors.New("conflict")
	ErrUpstreamUnavailable = errors.New("upstream unavailable")

	// ErrAdviceUnavailable is an upstream failure of the advice step that
	// happened after the owner's message was already persisted.
	ErrAdviceUnavailable = fmt.Errorf("advice unavailable: %w", ErrUpstreamUnavailable)
)

// Invalid returns an ErrInvalidRequest carrying a reason.
func Invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrInvalidRequest)
}

// NotFound returns an ErrNotFound naming the missing entity.
func NotFound(entity string) error {
	return fmt.Errorf("%s: %w", entity, ErrNotFound)
}
