package reconcile

import (
	"errors"
	"fmt"
)

// Kind classifies a terminal resolution failure.
type Kind string

const (
	KindUnauthenticated Kind = "unauthenticated"
	KindNoAnalyses      Kind = "no_analyses"
	KindNotFound        Kind = "not_found"
)

var (
	ErrUnauthenticated = errors.New("authentication required")
	ErrNoAnalyses      = errors.New("no analyses for user")
	ErrNotFound        = errors.New("analysis not found")
)

// TerminalError ends a resolution. Retryable failures are worth offering a retry for.
type TerminalError struct {
	Kind      Kind
	Target    string
	Attempts  int
	Retryable bool
	Err       error
}

func (e *TerminalError) Error() string {
	msg := fmt.Sprintf("resolve %s", e.Kind)
	if e.Target != "" {
		msg += " target=" + e.Target
	}
	if e.Attempts > 0 {
		msg += fmt.Sprintf(" after %d attempts", e.Attempts)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *TerminalError) Unwrap() error { return e.Err }

// Is matches the Kind sentinels so callers can use errors.Is.
func (e *TerminalError) Is(target error) bool {
	switch target {
	case ErrUnauthenticated:
		return e.Kind == KindUnauthenticated
	case ErrNoAnalyses:
		return e.Kind == KindNoAnalyses
	case ErrNotFound:
		return e.Kind == KindNotFound
	}
	return false
}
