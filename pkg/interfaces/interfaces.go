// Package interfaces holds the contracts between the engagement core and
// its external collaborators, so each component can be exercised against
// mocks.
package interfaces

import (
	"context"

	"classpulse/pkg/types"
)

// Classifier is the request/response contract of the external emotion
// inference service: image in, labeled emotion with confidence out. The
// only operation in the system expected to suspend for a non-trivial
// duration; implementations must bound it with a timeout.
type Classifier interface {
	Predict(ctx context.Context, imagePayload string) (*types.Prediction, error)
}

// SessionStore tracks channel activation lifecycle rows. The engagement
// timeline itself is never persisted; only open/close bookkeeping is.
type SessionStore interface {
	// EnsureActive returns the active class session for the channel,
	// opening one if none exists.
	EnsureActive(ctx context.Context, channel string) (*types.ClassSession, error)

	// End closes the active class session for the channel.
	End(ctx context.Context, channel string) (*types.ClassSession, error)

	// ListActive returns all currently active class sessions.
	ListActive(ctx context.Context) ([]*types.ClassSession, error)
}

// SessionDatabase is the persistence surface behind a SessionStore.
type SessionDatabase interface {
	CreateClassSession(ctx context.Context, session *types.ClassSession) error
	GetActiveByChannel(ctx context.Context, channel string) (*types.ClassSession, error)
	UpdateClassSession(ctx context.Context, session *types.ClassSession) error
	ListActiveSessions(ctx context.Context) ([]*types.ClassSession, error)
	HealthCheck(ctx context.Context) error
	Close() error
}
