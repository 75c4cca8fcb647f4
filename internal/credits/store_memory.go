package credits

import (
	"context"
	"sync"
	"time"
)

type memoryStore struct {
	mu        sync.Mutex
	balances  map[string]Balance
	purchases map[string]Purchase
}

// NewMemoryStore constructs an in-memory Store.
func NewMemoryStore() Store {
	return &memoryStore{
		balances:  make(map[string]Balance),
		purchases: make(map[string]Purchase),
	}
}

func (s *memoryStore) Get(ctx context.Context, userID string) (Balance, error) {
	if err := ctx.Err(); err != nil {
		return Balance{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.balanceLocked(userID), nil
}

func (s *memoryStore) Consume(ctx context.Context, userID string) (Balance, error) {
	if err := ctx.Err(); err != nil {
		return Balance{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	b := s.balanceLocked(userID)
	if b.Remaining <= 0 {
		return b, ErrInsufficientCredits
	}
	b.Remaining--
	b.UpdatedAt = time.Now().UTC()
	s.balances[userID] = b
	return b, nil
}

func (s *memoryStore) Add(ctx context.Context, userID string, n int) (Balance, error) {
	if err := ctx.Err(); err != nil {
		return Balance{}, err
	}
	if n <= 0 {
		return Balance{}, ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addLocked(userID, n), nil
}

func (s *memoryStore) Grant(ctx context.Context, p Purchase) (Balance, bool, error) {
	if err := ctx.Err(); err != nil {
		return Balance{}, false, err
	}
	if p.Credits <= 0 {
		return Balance{}, false, ErrInvalidAmount
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.purchases[p.SessionID]; ok {
		return s.balanceLocked(p.UserID), false, nil
	}
	s.purchases[p.SessionID] = p
	return s.addLocked(p.UserID, p.Credits), true, nil
}

func (s *memoryStore) addLocked(userID string, n int) Balance {
	b := s.balanceLocked(userID)
	b.Remaining += n
	b.UpdatedAt = time.Now().UTC()
	s.balances[userID] = b
	return b
}

func (s *memoryStore) balanceLocked(userID string) Balance {
	if b, ok := s.balances[userID]; ok {
		return b
	}
	return Balance{UserID: userID}
}
