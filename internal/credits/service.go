package credits

import (
	"context"
	"errors"

	"persona-backend/internal/shared/metrics"
	"persona-backend/internal/shared/telemetry"
)

// Service manages credit balances via an underlying store.
type Service struct {
	store Store
}

// NewService constructs a Service with an in-memory store.
func NewService() *Service {
	return &Service{store: NewMemoryStore()}
}

// NewServiceWithStore constructs a Service over store.
func NewServiceWithStore(store Store) *Service {
	return &Service{store: store}
}

// Balance returns the user's balance; unknown users have zero credits.
func (s *Service) Balance(ctx context.Context, userID string) (Balance, error) {
	return s.store.Get(ctx, userID)
}

// Consume spends one credit or returns ErrInsufficientCredits.
func (s *Service) Consume(ctx context.Context, userID string) (Balance, error) {
	b, err := s.store.Consume(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrInsufficientCredits) {
			telemetry.Error("credits.consume_failed", map[string]any{"user_id": userID, "error": err.Error()})
		}
		return b, err
	}
	metrics.AddCreditsConsumed(1)
	return b, nil
}

// Refund returns one credit after a consumed submission could not be persisted.
func (s *Service) Refund(ctx context.Context, userID string) (Balance, error) {
	b, err := s.store.Add(ctx, userID, 1)
	if err != nil {
		return b, err
	}
	telemetry.Info("credits.refunded", map[string]any{"user_id": userID, "remaining": b.Remaining})
	return b, nil
}

// Grant applies a purchase exactly once per session.
func (s *Service) Grant(ctx context.Context, p Purchase) (Balance, bool, error) {
	b, granted, err := s.store.Grant(ctx, p)
	if err != nil {
		return b, false, err
	}
	if granted {
		metrics.AddCreditsGranted(p.Credits)
		telemetry.Info("credits.granted", map[string]any{
			"user_id":    p.UserID,
			"session_id": p.SessionID,
			"credits":    p.Credits,
			"remaining":  b.Remaining,
		})
	}
	return b, granted, nil
}
