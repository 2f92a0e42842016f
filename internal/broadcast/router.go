// Package broadcast fans presence and engagement events out to the
// correct subscriber set of a channel. Delivery is at-most-once and
// best-effort: an event that cannot be queued on a connection is dropped.
// Per-connection ordering is FIFO because each connection serializes its
// own writes; no cross-connection ordering exists.
package broadcast

import (
	"log"

	"classpulse/internal/registry"
	"classpulse/pkg/types"
)

// Router resolves delivery targets through the session registry and
// pushes events onto each participant's output port.
type Router struct {
	registry *registry.Registry
}

// NewRouter creates a router over the given registry.
func NewRouter(reg *registry.Registry) *Router {
	return &Router{registry: reg}
}

// AnnounceJoin delivers a participant-joined event to every other
// participant of the channel. Channel-wide rather than observer-only so
// that live delivery and roster replay produce the same converged view.
func (r *Router) AnnounceJoin(p types.Participant) {
	ev := joinedEvent(p)
	for _, member := range r.registry.ListByChannel(p.Channel) {
		if member.ID == p.ID {
			continue
		}
		r.deliver(member, ev)
	}
}

// AnnounceLeave delivers a participant-left event to the observers of
// the channel the participant was in.
func (r *Router) AnnounceLeave(p types.Participant) {
	ev := types.NewEvent(types.EventParticipantLeft, map[string]any{
		"id":      p.ID,
		"role":    string(p.Role),
		"channel": p.Channel,
	})
	for _, observer := range r.registry.ListByChannel(p.Channel, types.RoleObserver) {
		r.deliver(observer, ev)
	}
}

// ReplayRoster sends the newly joined participant one participant-joined
// event per existing member of its channel, so late joiners converge to
// the same view as earlier ones. State-sync-on-join, not an event log.
func (r *Router) ReplayRoster(to types.Participant) {
	for _, member := range r.registry.ListByChannel(to.Channel) {
		if member.ID == to.ID {
			continue
		}
		r.deliver(to, joinedEvent(member))
	}
}

// SendRosterSnapshot delivers the full channel roster as one batch
// event. Observers receive this in addition to the replay so dashboards
// can seed current engagement state in a single message.
func (r *Router) SendRosterSnapshot(to types.Participant, roster []types.RosterEntry) {
	r.deliver(to, types.NewEvent(types.EventRosterSnapshot, map[string]any{
		"channel":      to.Channel,
		"participants": roster,
	}))
}

// SendResult delivers an engagement-result to the originating student
// only.
func (r *Router) SendResult(to types.Participant, record types.EngagementRecord, decision types.Decision) {
	r.deliver(to, types.NewEvent(types.EventEngagementResult, map[string]any{
		"emotion":      record.Emotion,
		"state":        string(decision.State),
		"confidence":   decision.Confidence,
		"sample_count": decision.SampleCount,
		"scores":       decision.Scores,
	}))
}

// PublishUpdate delivers an engagement-update to every observer of the
// channel.
func (r *Router) PublishUpdate(channel string, record types.EngagementRecord) {
	ev := types.NewEvent(types.EventEngagementUpdate, map[string]any{
		"student_id":   record.StudentID,
		"student_name": record.StudentName,
		"emotion":      record.Emotion,
		"state":        string(record.State),
		"confidence":   record.Confidence,
		"sample_count": record.SampleCount,
		"recorded_at":  record.Timestamp,
	})
	for _, observer := range r.registry.ListByChannel(channel, types.RoleObserver) {
		r.deliver(observer, ev)
	}
}

// deliver queues the event, dropping it when the destination is gone or
// saturated. Drops are logged and otherwise silent; there is no queue
// and no retry.
func (r *Router) deliver(to types.Participant, ev *types.Event) {
	if to.Conn == nil {
		return
	}
	if err := to.Conn.SendEvent(ev); err != nil {
		log.Printf("Dropped %s event for %s: %v", ev.Type, to.ID, err)
	}
}

func joinedEvent(p types.Participant) *types.Event {
	return types.NewEvent(types.EventParticipantJoined, map[string]any{
		"id":      p.ID,
		"name":    p.Name,
		"role":    string(p.Role),
		"channel": p.Channel,
	})
}
