package client

import (
	"fmt"
	"strings"
)

// FetchError wraps transport failures and opaque non-2xx responses. Callers
// never see raw transport errors.
type FetchError struct {
	Op  string
	Err error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s failed", e.Op)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ValidationError carries the server's field->messages payload verbatim
// from a 400 response.
type ValidationError struct {
	Fields map[string][]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "validation failed"
	}
	parts := make([]string, 0, len(e.Fields))
	for field, messages := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, strings.Join(messages, " ")))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// NotFoundError identifies the missing ticket.
type NotFoundError struct {
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("ticket %d not found", e.ID)
}
