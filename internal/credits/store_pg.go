package credits

import (
	"context"
	"database/sql"
	"errors"
)

type pgStore struct {
	DB *sql.DB
}

// NewPGStore constructs a Postgres-backed credits store.
func NewPGStore(db *sql.DB) Store {
	return &pgStore{DB: db}
}

func (s *pgStore) Get(ctx context.Context, userID string) (Balance, error) {
	b := Balance{UserID: userID}
	err := s.DB.QueryRowContext(ctx, `
SELECT credits_remaining, updated_at FROM credits WHERE user_id = $1`, userID).Scan(&b.Remaining, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Balance{UserID: userID}, nil
	}
	if err != nil {
		return Balance{}, err
	}
	return b, nil
}

// Consume decrements in one statement so concurrent submissions cannot both
// pass a stale balance check.
func (s *pgStore) Consume(ctx context.Context, userID string) (Balance, error) {
	b := Balance{UserID: userID}
	err := s.DB.QueryRowContext(ctx, `
UPDATE credits
SET credits_remaining = credits_remaining - 1, updated_at = now()
WHERE user_id = $1 AND credits_remaining > 0
RETURNING credits_remaining, updated_at`, userID).Scan(&b.Remaining, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Balance{UserID: userID}, ErrInsufficientCredits
	}
	if err != nil {
		return Balance{}, err
	}
	return b, nil
}

func (s *pgStore) Add(ctx context.Context, userID string, n int) (Balance, error) {
	if n <= 0 {
		return Balance{}, ErrInvalidAmount
	}
	return addCredits(ctx, s.DB, userID, n)
}

func (s *pgStore) Grant(ctx context.Context, p Purchase) (b Balance, granted bool, err error) {
	if p.Credits <= 0 {
		return Balance{}, false, ErrInvalidAmount
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return Balance{}, false, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
INSERT INTO purchases (session_id, user_id, credits, amount_total, currency, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (session_id) DO NOTHING`,
		p.SessionID, p.UserID, p.Credits, p.AmountTotal, p.Currency, p.CreatedAt)
	if err != nil {
		return Balance{}, false, err
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return Balance{}, false, err
	}
	if inserted == 0 {
		if err = tx.Commit(); err != nil {
			return Balance{}, false, err
		}
		b, err = s.Get(ctx, p.UserID)
		return b, false, err
	}

	b, err = addCredits(ctx, tx, p.UserID, p.Credits)
	if err != nil {
		return Balance{}, false, err
	}
	if err = tx.Commit(); err != nil {
		return Balance{}, false, err
	}
	return b, true, nil
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func addCredits(ctx context.Context, q queryRower, userID string, n int) (Balance, error) {
	b := Balance{UserID: userID}
	err := q.QueryRowContext(ctx, `
INSERT INTO credits (user_id, credits_remaining, updated_at)
VALUES ($1, $2, now())
ON CONFLICT (user_id) DO UPDATE
SET credits_remaining = credits.credits_remaining + EXCLUDED.credits_remaining, updated_at = now()
RETURNING credits_remaining, updated_at`, userID, n).Scan(&b.Remaining, &b.UpdatedAt)
	if err != nil {
		return Balance{}, err
	}
	return b, nil
}
