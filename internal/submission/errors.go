package submission

import "errors"

var (
	ErrUnauthenticated    = errors.New("sign in to submit an assessment")
	ErrNotEnoughResponses = errors.New("not enough responses")
	ErrInvalidResponse    = errors.New("invalid response")
	// ErrProviderFailed means the provider call failed and no earlier
	// analysis could stand in for it.
	ErrProviderFailed = errors.New("analysis provider failed")
	// ErrAssessmentConflict means the assessment id belongs to another user.
	ErrAssessmentConflict = errors.New("assessment id already in use")
)

// NotEnoughResponsesError carries the counts for the form-level message.
type NotEnoughResponsesError struct {
	Minimum  int
	Received int
}

func (e *NotEnoughResponsesError) Error() string {
	return ErrNotEnoughResponses.Error()
}

func (e *NotEnoughResponsesError) Is(target error) bool {
	return target == ErrNotEnoughResponses
}
