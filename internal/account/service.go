package account

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"persona-backend/internal/activities"
	"persona-backend/internal/analyses"
	"persona-backend/internal/assessments"
	"persona-backend/internal/shared/telemetry"
)

// Service moves guest data onto a signed-in account.
type Service struct {
	Assessments  assessments.Repo
	AnalysisRepo analyses.Repo
	Activities   activities.Repo
}

// ClaimResult counts the rows moved by a claim.
type ClaimResult struct {
	MigratedAssessments int `json:"migratedAssessments"`
	MigratedAnalyses    int `json:"migratedAnalyses"`
	MigratedActivities  int `json:"migratedActivities"`
}

func NewService(assessmentRepo assessments.Repo, analysisRepo analyses.Repo, activityRepo activities.Repo) *Service {
	return &Service{Assessments: assessmentRepo, AnalysisRepo: analysisRepo, Activities: activityRepo}
}

// ClaimGuest reassigns everything owned by guestUserID. Claiming twice moves
// nothing the second time.
func (s *Service) ClaimGuest(ctx context.Context, guestUserID, authedUserID string) (ClaimResult, error) {
	if strings.TrimSpace(guestUserID) == "" || strings.TrimSpace(authedUserID) == "" {
		return ClaimResult{}, errors.New("guestUserID and authedUserID are required")
	}

	if analysisPG, ok := s.AnalysisRepo.(*analyses.PGRepo); ok && analysisPG != nil && analysisPG.DB != nil {
		if _, ok := s.Assessments.(*assessments.PGRepo); ok {
			return claimWithTx(ctx, analysisPG.DB, guestUserID, authedUserID)
		}
	}

	var res ClaimResult
	n, err := s.Assessments.ReassignUser(ctx, guestUserID, authedUserID)
	if err != nil {
		return ClaimResult{}, err
	}
	res.MigratedAssessments = int(n)
	if n, err = s.AnalysisRepo.ReassignUser(ctx, guestUserID, authedUserID); err != nil {
		return ClaimResult{}, err
	}
	res.MigratedAnalyses = int(n)
	if s.Activities != nil {
		if n, err = s.Activities.ReassignUser(ctx, guestUserID, authedUserID); err != nil {
			return ClaimResult{}, err
		}
		res.MigratedActivities = int(n)
	}
	logClaim(guestUserID, authedUserID, res)
	return res, nil
}

func claimWithTx(ctx context.Context, db *sql.DB, guestUserID, authedUserID string) (ClaimResult, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return ClaimResult{}, err
	}
	defer tx.Rollback()

	assessmentRes, err := tx.ExecContext(ctx, `UPDATE assessments SET user_id = $1 WHERE user_id = $2`, authedUserID, guestUserID)
	if err != nil {
		return ClaimResult{}, err
	}
	assessmentCount, _ := assessmentRes.RowsAffected()

	// An existing draft on the account wins over the guest's.
	if _, err := tx.ExecContext(ctx, `
UPDATE assessment_drafts SET user_id = $1
WHERE user_id = $2
  AND draft_key NOT IN (SELECT draft_key FROM assessment_drafts WHERE user_id = $1)`, authedUserID, guestUserID); err != nil {
		return ClaimResult{}, err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM assessment_drafts WHERE user_id = $1`, guestUserID); err != nil {
		return ClaimResult{}, err
	}

	analysisRes, err := tx.ExecContext(ctx, `UPDATE analyses SET user_id = $1, updated_at = now() WHERE user_id = $2`, authedUserID, guestUserID)
	if err != nil {
		return ClaimResult{}, err
	}
	analysisCount, _ := analysisRes.RowsAffected()

	activityRes, err := tx.ExecContext(ctx, `UPDATE activities SET user_id = $1 WHERE user_id = $2`, authedUserID, guestUserID)
	if err != nil {
		return ClaimResult{}, err
	}
	activityCount, _ := activityRes.RowsAffected()

	if err := tx.Commit(); err != nil {
		return ClaimResult{}, err
	}
	res := ClaimResult{
		MigratedAssessments: int(assessmentCount),
		MigratedAnalyses:    int(analysisCount),
		MigratedActivities:  int(activityCount),
	}
	logClaim(guestUserID, authedUserID, res)
	return res, nil
}

func logClaim(guestUserID, authedUserID string, res ClaimResult) {
	telemetry.Info("account.guest_claimed", map[string]any{
		"guest_user_id": guestUserID,
		"user_id":       authedUserID,
		"assessments":   res.MigratedAssessments,
		"analyses":      res.MigratedAnalyses,
		"activities":    res.MigratedActivities,
	})
}
