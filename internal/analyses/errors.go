package analyses

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound covers both missing rows and rows owned by someone else.
	ErrNotFound       = errors.New("analysis not found")
	ErrInvalidRequest = errors.New("invalid provider request")
	// ErrAlreadyFinal is returned when a completed or failed row would be rewritten.
	ErrAlreadyFinal = errors.New("analysis already final")
)

// Error codes stored on the row and surfaced to clients.
const (
	ErrorCodeLLMTimeout        = "LLM_TIMEOUT"
	ErrorCodeLLMSchemaMismatch = "LLM_SCHEMA_MISMATCH"
	ErrorCodeLLMUnavailable    = "LLM_UNAVAILABLE"
	ErrorCodeStorage           = "STORAGE_ERROR"
	ErrorCodeInternal          = "INTERNAL_ERROR"
)

// ProviderError reports that the provider call failed. The analysis row is
// still written, as failed with a placeholder overview.
type ProviderError struct {
	AnalysisID string
	Code       string
	Err        error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("analysis %s provider failure (%s): %v", e.AnalysisID, e.Code, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }
