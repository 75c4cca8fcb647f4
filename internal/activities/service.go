package activities

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"persona-backend/internal/analyses"
	"persona-backend/internal/normalize"
	"persona-backend/internal/shared/telemetry"
)

const maxSuggestions = 3

// ReportSource loads an analysis the user may read.
type ReportSource interface {
	Get(ctx context.Context, userID, analysisID string) (analyses.Analysis, error)
}

// NewActivity is the input for Create.
type NewActivity struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Category    string `json:"category"`
	Points      int    `json:"points"`
}

// Service manages activities and progress.
type Service struct {
	Repo    Repo
	Reports ReportSource
	now     func() time.Time
}

// NewService constructs a Service.
func NewService(repo Repo, reports ReportSource) *Service {
	return &Service{Repo: repo, Reports: reports, now: func() time.Time { return time.Now().UTC() }}
}

// List returns the user's activities newest first.
func (s *Service) List(ctx context.Context, userID string) ([]Activity, error) {
	return s.Repo.ListByUser(ctx, userID)
}

// Create adds a pending activity.
func (s *Service) Create(ctx context.Context, userID string, in NewActivity) (Activity, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return Activity{}, fmt.Errorf("%w: title is required", ErrInvalid)
	}
	points := in.Points
	if points == 0 {
		points = defaultPoints
	}
	if points < 0 || points > maxPoints {
		return Activity{}, fmt.Errorf("%w: points must be between 1 and %d", ErrInvalid, maxPoints)
	}
	category := strings.TrimSpace(in.Category)
	if category == "" {
		category = "general"
	}
	a := Activity{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       title,
		Description: strings.TrimSpace(in.Description),
		Category:    category,
		Points:      points,
		Status:      StatusPending,
		CreatedAt:   s.now(),
	}
	if err := s.Repo.Create(ctx, a); err != nil {
		return Activity{}, err
	}
	return a, nil
}

// Complete marks an activity done. Repeating it returns the same activity and
// awards nothing.
func (s *Service) Complete(ctx context.Context, userID, id string) (Activity, bool, error) {
	a, completed, err := s.Repo.Complete(ctx, userID, id, s.now())
	if err != nil {
		return Activity{}, false, err
	}
	if completed {
		telemetry.Info("activity.completed", map[string]any{"user_id": userID, "activity_id": id, "points": a.Points})
	}
	return a, completed, nil
}

// Progress returns point and level totals.
func (s *Service) Progress(ctx context.Context, userID string) (Progress, error) {
	points, count, err := s.Repo.CompletedTotals(ctx, userID)
	if err != nil {
		return Progress{}, err
	}
	return NewProgress(points, count), nil
}

// Suggest seeds activities from an analysis report.
func (s *Service) Suggest(ctx context.Context, userID, analysisID string) ([]Activity, error) {
	if s.Reports == nil {
		return nil, fmt.Errorf("%w: reports unavailable", ErrInvalid)
	}
	analysis, err := s.Reports.Get(ctx, userID, analysisID)
	if err != nil {
		return nil, err
	}
	out := make([]Activity, 0, maxSuggestions)
	for _, in := range SuggestFromReport(analysis.Report) {
		a, err := s.Create(ctx, userID, in)
		if err != nil {
			return out, err
		}
		out = append(out, a)
	}
	return out, nil
}

// SuggestFromReport proposes up to three activities from a report's growth
// areas, falling back to a reflection exercise.
func SuggestFromReport(r normalize.Report) []NewActivity {
	out := make([]NewActivity, 0, maxSuggestions)
	for _, area := range r.GrowthAreas {
		area = strings.TrimSpace(area)
		if area == "" {
			continue
		}
		out = append(out, NewActivity{
			Title:       "Practice: " + area,
			Description: "Pick one situation this week where you can work on " + strings.ToLower(area) + ", then note how it went.",
			Category:    "growth",
			Points:      25,
		})
		if len(out) == maxSuggestions {
			return out
		}
	}
	if len(out) == 0 {
		desc := "Re-read your report and write down one trait you want to lean into this week."
		if len(r.Strengths) > 0 {
			desc = "Use your strength in " + strings.ToLower(r.Strengths[0]) + " deliberately in one conversation this week."
		}
		out = append(out, NewActivity{Title: "Reflect on your report", Description: desc, Category: "reflection", Points: 15})
	}
	return out
}
