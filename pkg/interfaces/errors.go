package interfaces

import "errors"

// Errors shared across store implementations.
var (
	ErrSessionNotFound = errors.New("class session not found")
)
