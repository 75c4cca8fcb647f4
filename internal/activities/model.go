package activities

import (
	"errors"
	"time"
)

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"

	PointsPerLevel = 100
	defaultPoints  = 10
	maxPoints      = 500
)

var (
	ErrNotFound = errors.New("activity not found")
	ErrInvalid  = errors.New("invalid activity")
)

// Activity is a self-improvement task. Points are earned once, on completion.
type Activity struct {
	ID          string     `json:"id"`
	UserID      string     `json:"userId"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Category    string     `json:"category"`
	Points      int        `json:"points"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// Progress summarizes earned points.
type Progress struct {
	TotalPoints        int `json:"totalPoints"`
	Level              int `json:"level"`
	PointsIntoLevel    int `json:"pointsIntoLevel"`
	PointsForNextLevel int `json:"pointsForNextLevel"`
	CompletedCount     int `json:"completedCount"`
}

// NewProgress derives level figures from a point total.
func NewProgress(totalPoints, completed int) Progress {
	if totalPoints < 0 {
		totalPoints = 0
	}
	into := totalPoints % PointsPerLevel
	return Progress{
		TotalPoints:        totalPoints,
		Level:              totalPoints/PointsPerLevel + 1,
		PointsIntoLevel:    into,
		PointsForNextLevel: PointsPerLevel - into,
		CompletedCount:     completed,
	}
}
