package model

import (
	"errors"
	"fmt"
)

// Run-fatal sentinels. Everything else is caught at the single-document
// boundary and converted into a stats entry.
var (
	ErrAbortThreshold = errors.New("consecutive failure threshold reached")
)

// ExtractionError marks a document FAILED: LLM timeout, rate limit, or a
// malformed model response.
type ExtractionError struct {
	DocID string
	Err   error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction failed for %s: %v", e.DocID, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// StoreError marks a document FAILED: graph connectivity or constraint
// violation.
type StoreError struct {
	DocID string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store failed for %s: %v", e.DocID, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }

// HookError is recorded as a warning against the current document or batch.
// It never changes a document's outcome.
type HookError struct {
	Hook string
	Err  error
}

func (e *HookError) Error() string {
	return fmt.Sprintf("hook %q: %v", e.Hook, e.Err)
}

func (e *HookError) Unwrap() error { return e.Err }

// ConfigurationError is raised before any document is processed.
type ConfigurationError struct {
	Field string
	Msg   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Msg)
}
