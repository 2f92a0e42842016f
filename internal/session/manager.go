// Package session manages class session lifecycle: one active session
// per channel, opened implicitly on first join and closed explicitly
// through the REST surface.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"classpulse/pkg/interfaces"
	"classpulse/pkg/types"
)

const (
	StatusActive = "active"
	StatusEnded  = "ended"
)

// Manager implements interfaces.SessionStore over a SessionDatabase,
// keeping an in-memory cache of active sessions so the join path does
// not hit the database on every connection.
type Manager struct {
	db     interfaces.SessionDatabase
	mu     sync.Mutex
	active map[string]*types.ClassSession // channel -> active session
}

// NewManager creates a manager and warms the active-session cache from
// the database, so sessions survive a process restart.
func NewManager(ctx context.Context, db interfaces.SessionDatabase) (*Manager, error) {
	m := &Manager{
		db:     db,
		active: make(map[string]*types.ClassSession),
	}

	sessions, err := db.ListActiveSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load active sessions: %w", err)
	}
	for _, s := range sessions {
		// Newest first from the database; keep the first per channel.
		if _, exists := m.active[s.Channel]; !exists {
			m.active[s.Channel] = s
		}
	}

	return m, nil
}

// EnsureActive returns the channel's active session, opening one if
// none exists.
func (m *Manager) EnsureActive(ctx context.Context, channel string) (*types.ClassSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, exists := m.active[channel]; exists {
		copied := *s
		return &copied, nil
	}

	s, err := m.db.GetActiveByChannel(ctx, channel)
	if err == nil {
		m.active[channel] = s
		copied := *s
		return &copied, nil
	}
	if !errors.Is(err, interfaces.ErrSessionNotFound) {
		return nil, fmt.Errorf("failed to look up session for channel %s: %w", channel, err)
	}

	s = &types.ClassSession{
		ID:        uuid.New().String(),
		Channel:   channel,
		Name:      channel,
		StartTime: time.Now().UTC(),
		Status:    StatusActive,
	}
	if err := m.db.CreateClassSession(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to create session for channel %s: %w", channel, err)
	}

	m.active[channel] = s
	copied := *s
	return &copied, nil
}

// End closes the channel's active session. Returns
// interfaces.ErrSessionNotFound when the channel has none.
func (m *Manager) End(ctx context.Context, channel string) (*types.ClassSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, exists := m.active[channel]
	if !exists {
		loaded, err := m.db.GetActiveByChannel(ctx, channel)
		if err != nil {
			return nil, err
		}
		s = loaded
	}

	now := time.Now().UTC()
	s.EndTime = &now
	s.Status = StatusEnded
	if err := m.db.UpdateClassSession(ctx, s); err != nil {
		return nil, fmt.Errorf("failed to end session for channel %s: %w", channel, err)
	}

	delete(m.active, channel)
	copied := *s
	return &copied, nil
}

// ListActive returns all active sessions from the database.
func (m *Manager) ListActive(ctx context.Context) ([]*types.ClassSession, error) {
	return m.db.ListActiveSessions(ctx)
}
