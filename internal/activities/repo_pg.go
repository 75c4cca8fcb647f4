package activities

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

const selectColumns = `id, user_id, title, description, category, points, status, created_at, completed_at`

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) Create(ctx context.Context, a Activity) error {
	_, err := r.DB.ExecContext(ctx, `
INSERT INTO activities (id, user_id, title, description, category, points, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		a.ID, a.UserID, a.Title, a.Description, a.Category, a.Points, a.Status, a.CreatedAt)
	return err
}

func (r *PGRepo) GetByID(ctx context.Context, userID, id string) (Activity, error) {
	return scanActivity(r.DB.QueryRowContext(ctx,
		`SELECT `+selectColumns+` FROM activities WHERE id = $1 AND user_id = $2`, id, userID))
}

func (r *PGRepo) ListByUser(ctx context.Context, userID string) ([]Activity, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+selectColumns+` FROM activities WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Activity, 0)
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Complete only transitions pending rows, so points are never counted twice.
func (r *PGRepo) Complete(ctx context.Context, userID, id string, at time.Time) (Activity, bool, error) {
	a, err := scanActivity(r.DB.QueryRowContext(ctx, `
UPDATE activities SET status = 'completed', completed_at = $3
WHERE id = $1 AND user_id = $2 AND status = 'pending'
RETURNING `+selectColumns, id, userID, at))
	if err == nil {
		return a, true, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Activity{}, false, err
	}
	existing, err := r.GetByID(ctx, userID, id)
	if err != nil {
		return Activity{}, false, err
	}
	return existing, false, nil
}

func (r *PGRepo) CompletedTotals(ctx context.Context, userID string) (int, int, error) {
	var points, count int
	err := r.DB.QueryRowContext(ctx, `
SELECT COALESCE(SUM(points), 0), COUNT(*) FROM activities
WHERE user_id = $1 AND status = 'completed'`, userID).Scan(&points, &count)
	return points, count, err
}

func (r *PGRepo) ReassignUser(ctx context.Context, fromUserID, toUserID string) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `UPDATE activities SET user_id = $2 WHERE user_id = $1`, fromUserID, toUserID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanActivity(row rowScanner) (Activity, error) {
	var a Activity
	var description, category sql.NullString
	var completedAt sql.NullTime
	err := row.Scan(&a.ID, &a.UserID, &a.Title, &description, &category, &a.Points, &a.Status, &a.CreatedAt, &completedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Activity{}, ErrNotFound
	}
	if err != nil {
		return Activity{}, err
	}
	a.Description = description.String
	a.Category = category.String
	if completedAt.Valid {
		t := completedAt.Time
		a.CompletedAt = &t
	}
	return a, nil
}

var _ Repo = (*PGRepo)(nil)
