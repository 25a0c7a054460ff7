package domain

import "errors"

var (
	// ErrNoActiveQuiz is returned when no quiz period covers the current time.
	ErrNoActiveQuiz = errors.New("no active quiz")
	// ErrAlreadyAttempted is returned when a non-admin retries a completed period.
	ErrAlreadyAttempted = errors.New("quiz already attempted")
	// ErrSessionExpired means a transition was expected but no session exists.
	ErrSessionExpired = errors.New("quiz session expired")
	// ErrStorageFailure wraps every I/O error coming from a session store.
	ErrStorageFailure = errors.New("storage failure")
	// ErrQuizNotFound indicates the requested period is not in the catalog.
	ErrQuizNotFound = errors.New("quiz not found")
	// ErrRenderFailure is returned by gateways when an outbound render fails.
	ErrRenderFailure = errors.New("render failure")

	// ErrSessionNotFound is returned by stores when a user has no session record.
	ErrSessionNotFound = errors.New("quiz session not found")
	// ErrStaleSession is returned by stores when a conditional update lost the race.
	ErrStaleSession = errors.New("quiz session changed concurrently")
	// ErrAlreadyAdvanced means the question was already answered or timed out.
	ErrAlreadyAdvanced = errors.New("question already advanced")
	// ErrInvalidOption indicates a submitted option index is out of range.
	ErrInvalidOption = errors.New("option not found")
	// ErrResultNotFound is returned when a user has no result for a period.
	ErrResultNotFound = errors.New("result not found")
	// ErrUserNotFound is returned by admin operations targeting an unknown user.
	ErrUserNotFound = errors.New("user not found")
	// ErrNotAdmin rejects admin commands from regular users.
	ErrNotAdmin = errors.New("admin only")
	// ErrInvalidPayload indicates a button payload could not be decoded.
	ErrInvalidPayload = errors.New("invalid button payload")
	// ErrInvalidCatalog indicates quiz content failed validation.
	ErrInvalidCatalog = errors.New("invalid quiz catalog")
)
