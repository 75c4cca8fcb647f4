package assessments

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

// PGRepo implements Repo and DraftStore using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// Create inserts an assessment; a reused id yields ErrExists.
func (r *PGRepo) Create(ctx context.Context, a Assessment) error {
	const query = `
INSERT INTO assessments (id, user_id, variant, responses, created_at)
VALUES ($1, $2, $3, $4, $5)`
	payload, err := json.Marshal(a.Responses)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query, a.ID, a.UserID, a.Variant, payload, a.CreatedAt)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrExists
	}
	return err
}

// GetByID returns an assessment owned by userID.
func (r *PGRepo) GetByID(ctx context.Context, userID, assessmentID string) (Assessment, error) {
	const query = `
SELECT id, user_id, variant, responses, created_at
FROM assessments
WHERE id = $1 AND user_id = $2`
	return scanAssessment(r.DB.QueryRowContext(ctx, query, assessmentID, userID))
}

// ListByUser returns assessments newest first.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Assessment, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	const query = `
SELECT id, user_id, variant, responses, created_at
FROM assessments
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`
	rows, err := r.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]Assessment, 0)
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ReassignUser moves assessments and drafts from one user to another.
func (r *PGRepo) ReassignUser(ctx context.Context, fromUserID, toUserID string) (int64, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE assessments SET user_id = $2 WHERE user_id = $1`, fromUserID, toUserID)
	if err != nil {
		return 0, err
	}
	moved, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `
UPDATE assessment_drafts SET user_id = $2
WHERE user_id = $1
  AND draft_key NOT IN (SELECT draft_key FROM assessment_drafts WHERE user_id = $2)`, fromUserID, toUserID); err != nil {
		return 0, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM assessment_drafts WHERE user_id = $1`, fromUserID); err != nil {
		return 0, err
	}
	return moved, tx.Commit()
}

// Save upserts the draft under key.
func (r *PGRepo) Save(ctx context.Context, userID, key string, d Draft) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return err
	}
	const query = `
INSERT INTO assessment_drafts (user_id, draft_key, payload, updated_at)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id, draft_key) DO UPDATE SET payload = EXCLUDED.payload, updated_at = EXCLUDED.updated_at`
	_, err = r.DB.ExecContext(ctx, query, userID, key, payload, time.Now().UTC())
	return err
}

// Get returns the draft under key.
func (r *PGRepo) Get(ctx context.Context, userID, key string) (Draft, error) {
	var payload []byte
	err := r.DB.QueryRowContext(ctx, `SELECT payload FROM assessment_drafts WHERE user_id = $1 AND draft_key = $2`, userID, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return Draft{}, ErrNotFound
	}
	if err != nil {
		return Draft{}, err
	}
	var d Draft
	if err := json.Unmarshal(payload, &d); err != nil {
		return Draft{}, err
	}
	return d, nil
}

// Clear removes the draft under key.
func (r *PGRepo) Clear(ctx context.Context, userID, key string) error {
	_, err := r.DB.ExecContext(ctx, `DELETE FROM assessment_drafts WHERE user_id = $1 AND draft_key = $2`, userID, key)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAssessment(row rowScanner) (Assessment, error) {
	var a Assessment
	var payload []byte
	err := row.Scan(&a.ID, &a.UserID, &a.Variant, &payload, &a.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Assessment{}, ErrNotFound
	}
	if err != nil {
		return Assessment{}, err
	}
	if len(payload) > 0 {
		if err := json.Unmarshal(payload, &a.Responses); err != nil {
			return Assessment{}, err
		}
	}
	return a, nil
}

var (
	_ Repo       = (*PGRepo)(nil)
	_ DraftStore = (*PGRepo)(nil)
)
