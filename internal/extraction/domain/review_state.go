package domain

// ReviewState is the position of a record in the review workflow. States only move
// forward: EXTRACTED to REVIEWED to APPLIED.
type ReviewState string

const (
	StateExtracted ReviewState = "EXTRACTED"
	StateReviewed  ReviewState = "REVIEWED"
	StateApplied   ReviewState = "APPLIED"
)

// ParseReviewState converts a stored value into a ReviewState.
func ParseReviewState(s string) (ReviewState, error) {
	switch ReviewState(s) {
	case StateExtracted, StateReviewed, StateApplied:
		return ReviewState(s), nil
	default:
		return "", ErrInvalidReviewState
	}
}

// CanTransitionTo reports whether next is the single legal successor of s.
func (s ReviewState) CanTransitionTo(next ReviewState) bool {
	switch s {
	case StateExtracted:
		return next == StateReviewed
	case StateReviewed:
		return next == StateApplied
	case StateApplied:
		return false
	default:
		return false
	}
}

// Transition returns next when the edge is legal and ErrInvalidTransition otherwise.
func (s ReviewState) Transition(next ReviewState) (ReviewState, error) {
	if !s.CanTransitionTo(next) {
		return s, ErrInvalidTransition
	}
	return next, nil
}

// AtLeast reports whether s is at or past other in the workflow.
func (s ReviewState) AtLeast(other ReviewState) bool {
	return s.rank() >= other.rank()
}

func (s ReviewState) rank() int {
	switch s {
	case StateExtracted:
		return 1
	case StateReviewed:
		return 2
	case StateApplied:
		return 3
	default:
		return 0
	}
}
