package credits

import (
	"errors"
	"time"
)

var (
	// ErrInsufficientCredits is returned when a consume finds no remaining credits.
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrInvalidAmount       = errors.New("credit amount must be positive")
)

// Balance is a user's remaining paid assessments.
type Balance struct {
	UserID    string    `json:"userId"`
	Remaining int       `json:"creditsRemaining"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Purchase records a paid checkout session. SessionID is unique so a session
// grants credits at most once.
type Purchase struct {
	SessionID   string
	UserID      string
	Credits     int
	AmountTotal int64
	Currency    string
	CreatedAt   time.Time
}
