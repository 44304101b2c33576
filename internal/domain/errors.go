package domain

import "errors"

var (
	// ErrEmptyQuestionBatch is returned when a session is started without questions.
	ErrEmptyQuestionBatch = errors.New("question batch is empty")
	// ErrInvalidTimeLimit is returned for a non-positive time limit.
	ErrInvalidTimeLimit = errors.New("time limit must be positive")
	// ErrInvalidConfig indicates a quiz selection outside the accepted ranges.
	ErrInvalidConfig = errors.New("invalid quiz configuration")
	// ErrSessionFinished is returned when mutating a finished session.
	ErrSessionFinished = errors.New("quiz session already finished")
	// ErrSnapshotRejected indicates a snapshot that cannot be restored.
	ErrSnapshotRejected = errors.New("snapshot cannot be restored")
	// ErrSessionNotFound is returned when a player has no live session.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrNothingToResume is returned when no valid snapshot exists for the player.
	ErrNothingToResume = errors.New("no resumable quiz session")
	// ErrNotFound is returned by key-value stores for absent keys.
	ErrNotFound = errors.New("key not found")

	// ErrFetchFailed wraps transport or decoding failures of the question source.
	ErrFetchFailed = errors.New("failed to fetch questions")
	// ErrNotEnoughQuestions means the selection cannot be satisfied.
	ErrNotEnoughQuestions = errors.New("not enough questions available for your selection")
	// ErrInvalidParameter means the question source rejected a parameter.
	ErrInvalidParameter = errors.New("invalid parameter in request")
	// ErrTokenNotFound means the source session token is unknown.
	ErrTokenNotFound = errors.New("session token not found")
	// ErrTokenExhausted means the source session token returned every question.
	ErrTokenExhausted = errors.New("session token has returned all possible questions")
	// ErrNoQuestions means the source answered with an empty batch.
	ErrNoQuestions = errors.New("no questions available for your selection")

	// ErrNoUser is returned when an operation needs a signed-in user.
	ErrNoUser = errors.New("no user signed in")
	// ErrPasswordMismatch is returned when the confirmation differs.
	ErrPasswordMismatch = errors.New("password mismatch")
	// ErrPasswordTooShort is returned for passwords under six characters.
	ErrPasswordTooShort = errors.New("password must be at least 6 characters long")
	// ErrEmailTaken is returned when registering a known email.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidCredentials is returned for a failed login.
	ErrInvalidCredentials = errors.New("email or password is incorrect")
	// ErrInvalidToken is returned for an unparsable or expired token.
	ErrInvalidToken = errors.New("invalid token")
)
