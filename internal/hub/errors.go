package hub

import "errors"

var (
	// ErrUnknownParticipant means the referenced id is not registered in the channel.
	ErrUnknownParticipant = errors.New("unknown participant")

	// ErrNotStudent means the operation requires a student participant.
	ErrNotStudent = errors.New("participant is not a student")

	// ErrRateLimited means the student exceeded the per-window sample budget.
	ErrRateLimited = errors.New("sample rate limit exceeded")
)
