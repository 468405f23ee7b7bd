package shared

import "errors"

// Error categories. Domain errors wrap one of these so transports can map
// them without knowing every concrete error.
var (
	// ErrValidation indicates rejected input; resubmitting corrected input may succeed.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates the resource exists but the request cannot be applied to its current state.
	ErrConflict = errors.New("conflict")
	// ErrUnauthorized indicates missing or invalid credentials.
	ErrUnauthorized = errors.New("unauthorized")
)
