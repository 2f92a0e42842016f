// Package registry tracks which participants are present in which
// channel. It is the sole owner of Participant state; every accessor
// returns value copies so callers never observe concurrent mutation.
package registry

import (
	"log"
	"sync"
	"time"

	"classpulse/pkg/types"
)

// Registry maps participant identity to presence metadata. Identity is
// unique per registry; a connection handle maps to at most one identity
// at a time.
type Registry struct {
	mu           sync.RWMutex
	participants map[string]*types.Participant            // identity -> participant
	channels     map[string]map[string]*types.Participant // channel -> identity -> participant
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		participants: make(map[string]*types.Participant),
		channels:     make(map[string]map[string]*types.Participant),
	}
}

// Join upserts a participant. Re-joining with a new connection handle is
// a reconnect: the handle, name, role and channel are refreshed while the
// last-known engagement state is preserved. Never an error.
func (r *Registry) Join(id string, role types.Role, channel, name string, conn types.EventSender) types.Participant {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.participants[id]
	if exists {
		// The old handle belongs to a connection that is gone or being
		// replaced; closing it asynchronously avoids blocking the
		// registry on transport teardown.
		if p.Conn != nil && p.Conn != conn {
			old := p.Conn
			go func() {
				if err := old.Close(); err != nil {
					log.Printf("Failed to close replaced connection for %s: %v", id, err)
				}
			}()
		}
		if p.Channel != channel {
			r.removeFromChannel(p)
		}
		p.Conn = conn
		p.Role = role
		p.Channel = channel
		if name != "" {
			p.Name = name
		}
	} else {
		if name == "" {
			name = id
		}
		p = &types.Participant{
			ID:      id,
			Name:    name,
			Role:    role,
			Channel: channel,
			Conn:    conn,
		}
		r.participants[id] = p
	}

	members := r.channels[channel]
	if members == nil {
		members = make(map[string]*types.Participant)
		r.channels[channel] = members
	}
	members[id] = p

	return *p
}

// Leave removes a participant by identity. Idempotent: leaving an
// unknown identity reports ok=false with no other effect.
func (r *Registry) Leave(id string) (types.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.participants[id]
	if !exists {
		return types.Participant{}, false
	}
	delete(r.participants, id)
	r.removeFromChannel(p)
	return *p, true
}

// DropConnection removes whichever participant owns the given handle.
// The transport does not know which identity a dropped connection maps
// to, so this scans. A handle that was already replaced by a reconnect
// removes nothing: the identity now belongs to the newer connection.
func (r *Registry) DropConnection(conn types.EventSender) (types.Participant, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, p := range r.participants {
		if p.Conn == conn {
			delete(r.participants, id)
			r.removeFromChannel(p)
			return *p, true
		}
	}
	return types.Participant{}, false
}

// Get returns a snapshot of a participant.
func (r *Registry) Get(id string) (types.Participant, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, exists := r.participants[id]
	if !exists {
		return types.Participant{}, false
	}
	return *p, true
}

// ListByChannel returns snapshots of the channel's participants,
// optionally filtered by role. Order is unspecified.
func (r *Registry) ListByChannel(channel string, roles ...types.Role) []types.Participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.channels[channel]
	result := make([]types.Participant, 0, len(members))
	for _, p := range members {
		if len(roles) > 0 && !roleMatches(p.Role, roles) {
			continue
		}
		result = append(result, *p)
	}
	return result
}

// Roster returns the query-surface view of a channel's participants.
func (r *Registry) Roster(channel string) []types.RosterEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := r.channels[channel]
	roster := make([]types.RosterEntry, 0, len(members))
	for _, p := range members {
		roster = append(roster, types.RosterEntry{
			ID:         p.ID,
			Name:       p.Name,
			Role:       p.Role,
			Emotion:    p.LastEmotion,
			State:      p.LastState,
			Confidence: p.LastConfidence,
			UpdatedAt:  p.LastUpdate,
		})
	}
	return roster
}

// RecordEngagement folds a resolved decision into the participant's
// last-known state. A decision racing a disconnect finds no participant;
// that is expected and silently ignored.
func (r *Registry) RecordEngagement(id, emotion string, decision types.Decision) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, exists := r.participants[id]
	if !exists {
		return
	}
	p.LastEmotion = emotion
	p.LastState = decision.State
	p.LastConfidence = decision.Confidence
	p.LastUpdate = time.Now()
}

// Counts returns the number of participants and active channels.
func (r *Registry) Counts() (participants, channels int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.participants), len(r.channels)
}

func (r *Registry) removeFromChannel(p *types.Participant) {
	members, exists := r.channels[p.Channel]
	if !exists {
		return
	}
	delete(members, p.ID)
	if len(members) == 0 {
		delete(r.channels, p.Channel)
	}
}

func roleMatches(role types.Role, roles []types.Role) bool {
	for _, candidate := range roles {
		if role == candidate {
			return true
		}
	}
	return false
}
