package domain

import "errors"

// Failure categories. Every error returned by the game engine wraps exactly
// one of these, so callers can branch with errors.Is.
var (
	// ErrValidation indicates bad input such as an out-of-range or occupied cell.
	ErrValidation = errors.New("validation failed")
	// ErrAuthorization indicates the caller is not a participant or does not hold the turn.
	ErrAuthorization = errors.New("not authorized")
	// ErrState indicates the operation is invalid for the current session status.
	ErrState = errors.New("invalid state")
	// ErrNotFound indicates an unknown session or user id.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a uniqueness violation, e.g. a duplicate username.
	ErrConflict = errors.New("conflict")
)
