package domain

import "errors"

var (
	// ErrInvalidInput is returned when submitted quiz counters are unusable
	// (zero question count, negative values, correct > answered).
	ErrInvalidInput = errors.New("invalid quiz input")
	// ErrAttemptNotFound indicates an attempt ID with no stored row.
	ErrAttemptNotFound = errors.New("quiz attempt not found")
	// ErrNoQuestions indicates the question pool is empty or unavailable.
	ErrNoQuestions = errors.New("no quiz questions available")
	// ErrLeaderboardViewMissing signals that the precomputed leaderboard view
	// does not exist in the store; callers fall back to raw attempt rows.
	ErrLeaderboardViewMissing = errors.New("leaderboard view missing")
)
