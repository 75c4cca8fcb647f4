package assessments

import (
	"errors"
	"time"
)

// DraftKey is the fixed key under which questionnaire progress is kept.
const DraftKey = "assessment-progress"

var ErrNotFound = errors.New("not found")

// Response is one answered question.
type Response struct {
	QuestionID string    `json:"questionId"`
	Question   string    `json:"question"`
	Answer     string    `json:"answer"`
	Category   string    `json:"category"`
	AnsweredAt time.Time `json:"answeredAt"`
}

// Assessment is a submitted questionnaire. It is immutable once written.
type Assessment struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	Variant   string     `json:"variant"`
	Responses []Response `json:"responses"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Draft is in-progress questionnaire state.
type Draft struct {
	Responses            []Response `json:"responses"`
	CompletedQuestions   []string   `json:"completedQuestions"`
	CurrentQuestionIndex int        `json:"currentQuestionIndex"`
	LastUpdated          time.Time  `json:"lastUpdated"`
}
