package types

import "errors"

// Shared validation errors surfaced as targeted error events; none of
// these mutate state.
var (
	ErrMissingField   = errors.New("missing required field")
	ErrInvalidID      = errors.New("invalid identifier")
	ErrInvalidChannel = errors.New("invalid channel id")
	ErrInvalidRole    = errors.New("invalid role: must be 'student' or 'observer'")
)
