package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/docuscan/extraction-pipeline/constants"
	"github.com/docuscan/extraction-pipeline/internal/entity"
)

// TextResult is the outcome of Stage 1: document bytes -> text.
type TextResult struct {
	Text     string
	Method   string // "tesseract" | "plaintext" | ...
	Duration time.Duration
	Warnings []string
}

// OCRProvider is a Stage 1 capability. Implementations may perform network
// or cgo calls internally but are synchronous to the caller and must not
// touch shared pipeline state.
type OCRProvider interface {
	Name() string
	Extract(ctx context.Context, doc entity.Document) (TextResult, error)
}

// FieldProvider is a Stage 2 capability: text -> structured field mapping.
type FieldProvider interface {
	Name() string
	ExtractFields(ctx context.Context, text string, hint map[string]constants.FieldType) (map[string]string, error)
}

// Error is a classified provider failure. Kind decides retryability.
type Error struct {
	Provider  string
	Transient bool
	Err       error
}

func (e *Error) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("%s provider (%s): %v", e.Provider, kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Transientf builds a retryable provider failure.
func Transientf(name, format string, args ...any) error {
	return &Error{Provider: name, Transient: true, Err: fmt.Errorf(format, args...)}
}

// Permanentf builds a non-retryable provider failure.
func Permanentf(name, format string, args ...any) error {
	return &Error{Provider: name, Transient: false, Err: fmt.Errorf(format, args...)}
}

// IsTransient reports whether err should be retried. Classified provider
// errors carry their own verdict; timeouts are always transient.
func IsTransient(err error) bool {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Transient
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return false
}
