package credits

import "context"

// Store persists credit balances. Consume must be a single atomic
// check-and-decrement.
type Store interface {
	Get(ctx context.Context, userID string) (Balance, error)
	Consume(ctx context.Context, userID string) (Balance, error)
	Add(ctx context.Context, userID string, n int) (Balance, error)
	// Grant applies a purchase once. granted is false when the session was
	// already applied.
	Grant(ctx context.Context, p Purchase) (b Balance, granted bool, err error)
}
