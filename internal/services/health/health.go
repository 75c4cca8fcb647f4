package health

import (
	"context"
	"time"
)

// Pinger is anything that can report its own liveness, such as *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Service encapsulates health-related checks.
type Service struct {
	checks  map[string]Pinger
	timeout time.Duration
}

// Status is the health payload. Checks maps each dependency to "ok" or its error.
type Status struct {
	OK     bool              `json:"ok"`
	Checks map[string]string `json:"checks,omitempty"`
}

// NewService constructs a health service. Nil pingers are skipped so callers
// can pass optional dependencies directly.
func NewService(checks map[string]Pinger) *Service {
	filtered := make(map[string]Pinger, len(checks))
	for name, p := range checks {
		if p != nil {
			filtered[name] = p
		}
	}
	return &Service{checks: filtered, timeout: 2 * time.Second}
}

// Status runs every check with a short deadline.
func (s *Service) Status(ctx context.Context) Status {
	out := Status{OK: true}
	if s == nil || len(s.checks) == 0 {
		return out
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	out.Checks = make(map[string]string, len(s.checks))
	for name, p := range s.checks {
		if err := p.PingContext(ctx); err != nil {
			out.OK = false
			out.Checks[name] = err.Error()
			continue
		}
		out.Checks[name] = "ok"
	}
	return out
}
