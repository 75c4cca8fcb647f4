package analyses

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const selectColumns = `
SELECT id, user_id, assessment_id, status, result, report, raw_key, provider, model,
       error_code, error_message, started_at, completed_at, created_at, updated_at
FROM analyses`

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// Create inserts a new analysis.
func (r *PGRepo) Create(ctx context.Context, analysis Analysis) error {
	const query = `
INSERT INTO analyses (
	id, user_id, assessment_id, status, result, provider, model, created_at, updated_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`
	resultPayload, err := marshalJSONB(analysis.Result)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query,
		analysis.ID,
		nullIfEmpty(analysis.UserID),
		nullIfEmpty(analysis.AssessmentID),
		analysis.Status,
		resultPayload,
		nullIfEmpty(analysis.Provider),
		nullIfEmpty(analysis.Model),
		analysis.CreatedAt,
	)
	return err
}

// GetByID returns an analysis by ID.
func (r *PGRepo) GetByID(ctx context.Context, analysisID string) (Analysis, error) {
	query := selectColumns + `
WHERE id = $1
LIMIT 1`
	return scanAnalysis(r.DB.QueryRowContext(ctx, query, analysisID))
}

// GetByAssessmentID returns the newest analysis for an assessment visible to userID.
func (r *PGRepo) GetByAssessmentID(ctx context.Context, userID, assessmentID string) (Analysis, error) {
	query := selectColumns + `
WHERE assessment_id = $1 AND (user_id = $2 OR user_id IS NULL OR user_id = '')
ORDER BY created_at DESC
LIMIT 1`
	return scanAnalysis(r.DB.QueryRowContext(ctx, query, assessmentID, userID))
}

// SearchBySuffix returns the newest analysis of userID whose id contains suffix.
func (r *PGRepo) SearchBySuffix(ctx context.Context, userID, suffix string) (Analysis, error) {
	if strings.TrimSpace(suffix) == "" {
		return Analysis{}, ErrNotFound
	}
	query := selectColumns + `
WHERE user_id = $1 AND id ILIKE '%' || $2 || '%'
ORDER BY created_at DESC
LIMIT 1`
	return scanAnalysis(r.DB.QueryRowContext(ctx, query, userID, likeEscaper.Replace(suffix)))
}

// MostRecentForUser returns the newest analysis owned by userID.
func (r *PGRepo) MostRecentForUser(ctx context.Context, userID string) (Analysis, error) {
	query := selectColumns + `
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT 1`
	return scanAnalysis(r.DB.QueryRowContext(ctx, query, userID))
}

// MostRecentReportForUser returns the newest completed, non-placeholder analysis of userID.
func (r *PGRepo) MostRecentReportForUser(ctx context.Context, userID string) (Analysis, error) {
	query := selectColumns + `
WHERE user_id = $1 AND status = 'completed'
  AND COALESCE((report->>'placeholder')::boolean, false) = false
ORDER BY created_at DESC
LIMIT 1`
	return scanAnalysis(r.DB.QueryRowContext(ctx, query, userID))
}

// ListByUser returns analyses for a user, newest first, with limit/offset.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]Analysis, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	query := selectColumns + `
WHERE user_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`
	rows, err := r.DB.QueryContext(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Analysis, 0)
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// MarkProcessing moves a queued analysis to processing.
func (r *PGRepo) MarkProcessing(ctx context.Context, analysisID string, startedAt time.Time) error {
	const query = `
UPDATE analyses
SET status = $2, started_at = $3, updated_at = now()
WHERE id = $1 AND status IN ('queued', 'processing')`
	res, err := r.DB.ExecContext(ctx, query, analysisID, StatusProcessing, startedAt)
	if err != nil {
		return err
	}
	return r.checkUpdated(ctx, res, analysisID)
}

// Finish writes the terminal outcome. Terminal rows are never rewritten.
func (r *PGRepo) Finish(ctx context.Context, analysisID string, outcome Outcome) error {
	const query = `
UPDATE analyses
SET status = $2, result = $3, report = $4, raw_key = $5, error_code = $6, error_message = $7,
    completed_at = $8, updated_at = now()
WHERE id = $1 AND status IN ('queued', 'processing')`
	resultPayload, err := marshalJSONB(outcome.Result)
	if err != nil {
		return err
	}
	reportPayload, err := json.Marshal(outcome.Report)
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, query,
		analysisID,
		outcome.Status,
		resultPayload,
		reportPayload,
		nullIfEmpty(outcome.RawKey),
		nullIfEmpty(outcome.ErrorCode),
		nullIfEmpty(outcome.ErrorMessage),
		outcome.CompletedAt,
	)
	if err != nil {
		return err
	}
	return r.checkUpdated(ctx, res, analysisID)
}

// ReassignUser moves every analysis of fromUserID to toUserID.
func (r *PGRepo) ReassignUser(ctx context.Context, fromUserID, toUserID string) (int64, error) {
	res, err := r.DB.ExecContext(ctx, `UPDATE analyses SET user_id = $2, updated_at = now() WHERE user_id = $1`, fromUserID, toUserID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// checkUpdated distinguishes a missing row from one that is already final.
func (r *PGRepo) checkUpdated(ctx context.Context, res sql.Result, analysisID string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	var status string
	err = r.DB.QueryRowContext(ctx, `SELECT status FROM analyses WHERE id = $1`, analysisID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrAlreadyFinal
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (Analysis, error) {
	var a Analysis
	var userID, assessmentID, rawKey, provider, model sql.NullString
	var errorCode, errorMessage sql.NullString
	var result, report []byte
	var startedAt, completedAt sql.NullTime
	err := row.Scan(
		&a.ID,
		&userID,
		&assessmentID,
		&a.Status,
		&result,
		&report,
		&rawKey,
		&provider,
		&model,
		&errorCode,
		&errorMessage,
		&startedAt,
		&completedAt,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Analysis{}, ErrNotFound
	}
	if err != nil {
		return Analysis{}, err
	}
	a.UserID = userID.String
	a.AssessmentID = assessmentID.String
	a.RawKey = rawKey.String
	a.Provider = provider.String
	a.Model = model.String
	a.ErrorCode = errorCode.String
	a.ErrorMessage = errorMessage.String
	if startedAt.Valid {
		t := startedAt.Time
		a.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		a.CompletedAt = &t
	}
	if len(result) > 0 {
		if err := json.Unmarshal(result, &a.Result); err != nil {
			return Analysis{}, err
		}
	}
	if len(report) > 0 {
		if err := json.Unmarshal(report, &a.Report); err != nil {
			return Analysis{}, err
		}
	}
	return a, nil
}

func marshalJSONB(value map[string]any) ([]byte, error) {
	if value == nil {
		return nil, nil
	}
	return json.Marshal(value)
}

func nullIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

var _ Repo = (*PGRepo)(nil)
