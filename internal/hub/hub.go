// Package hub coordinates the engagement pipeline: joins and leaves flow
// through the registry and broadcast router, samples flow through the
// classifier, scorer, registry, router and analytics log in that order.
package hub

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"classpulse/internal/analytics"
	"classpulse/internal/broadcast"
	"classpulse/internal/registry"
	"classpulse/internal/scoring"
	"classpulse/pkg/interfaces"
	"classpulse/pkg/types"
)

// Hub owns the end-to-end pipeline. All methods are safe for concurrent
// use; serialization per student happens inside the scorer.
type Hub struct {
	registry   *registry.Registry
	scorer     *scoring.Scorer
	router     *broadcast.Router
	analytics  *analytics.Aggregator
	classifier interfaces.Classifier
	sessions   interfaces.SessionStore
	limiter    *SampleLimiter
}

// NewHub wires the pipeline. sessions may be nil when lifecycle rows are
// not being persisted.
func NewHub(
	reg *registry.Registry,
	scorer *scoring.Scorer,
	router *broadcast.Router,
	agg *analytics.Aggregator,
	classifier interfaces.Classifier,
	sessions interfaces.SessionStore,
	limiter *SampleLimiter,
) *Hub {
	return &Hub{
		registry:   reg,
		scorer:     scorer,
		router:     router,
		analytics:  agg,
		classifier: classifier,
		sessions:   sessions,
		limiter:    limiter,
	}
}

// JoinStudent registers a student on a channel and announces the join to
// the other channel members, then replays the existing roster to the
// student so every member converges to the same presence view.
func (h *Hub) JoinStudent(ctx context.Context, id, channel, name string, conn types.EventSender) error {
	if err := validateIdentity(id, channel); err != nil {
		return err
	}
	h.ensureSession(ctx, channel)

	p := h.registry.Join(id, types.RoleStudent, channel, name, conn)
	h.router.AnnounceJoin(p)
	h.router.ReplayRoster(p)
	return nil
}

// JoinObserver registers an observer on a channel. Observers additionally
// receive a roster snapshot carrying last-known engagement state, so a
// dashboard can seed itself from one message.
func (h *Hub) JoinObserver(ctx context.Context, id, channel, name string, conn types.EventSender) error {
	if err := validateIdentity(id, channel); err != nil {
		return err
	}
	h.ensureSession(ctx, channel)

	p := h.registry.Join(id, types.RoleObserver, channel, name, conn)
	h.router.AnnounceJoin(p)
	h.router.ReplayRoster(p)
	h.router.SendRosterSnapshot(p, h.registry.Roster(channel))
	return nil
}

// SubmitSample runs one frame through the full pipeline. Classifier
// failures propagate to the caller with no state mutated anywhere;
// everything after a successful prediction is commit.
func (h *Hub) SubmitSample(ctx context.Context, studentID, imagePayload string) error {
	if imagePayload == "" {
		return fmt.Errorf("imagePayload: %w", types.ErrMissingField)
	}

	p, exists := h.registry.Get(studentID)
	if !exists {
		return fmt.Errorf("student %s: %w", studentID, ErrUnknownParticipant)
	}
	if p.Role != types.RoleStudent {
		return fmt.Errorf("%s: %w", studentID, ErrNotStudent)
	}
	if h.limiter != nil && !h.limiter.Allow(studentID) {
		return fmt.Errorf("student %s: %w", studentID, ErrRateLimited)
	}

	prediction, err := h.classifier.Predict(ctx, imagePayload)
	if err != nil {
		return fmt.Errorf("classify sample for %s: %w", studentID, err)
	}

	decision := h.scorer.Observe(studentID, prediction.Emotion, prediction.Confidence)
	h.registry.RecordEngagement(studentID, prediction.Emotion, decision)

	record := types.EngagementRecord{
		ID:          uuid.New().String(),
		Timestamp:   time.Now(),
		StudentID:   p.ID,
		StudentName: p.Name,
		Emotion:     prediction.Emotion,
		State:       decision.State,
		Confidence:  decision.Confidence,
		SampleCount: decision.SampleCount,
	}

	h.router.SendResult(p, record, decision)
	h.router.PublishUpdate(p.Channel, record)
	h.analytics.Append(p.Channel, record)
	return nil
}

// Leave removes a participant by identity and announces the departure.
// Idempotent.
func (h *Hub) Leave(id string) {
	p, ok := h.registry.Leave(id)
	if !ok {
		return
	}
	h.forget(p)
	h.router.AnnounceLeave(p)
}

// DropConnection removes whichever participant owns the handle, used by
// the transport when a socket dies without a leave message. A handle
// already superseded by a reconnect removes nothing.
func (h *Hub) DropConnection(conn types.EventSender) {
	p, ok := h.registry.DropConnection(conn)
	if !ok {
		return
	}
	h.forget(p)
	h.router.AnnounceLeave(p)
}

// Roster returns the current roster of a channel.
func (h *Hub) Roster(channel string) []types.RosterEntry {
	return h.registry.Roster(channel)
}

// Counts reports registry occupancy for health reporting.
func (h *Hub) Counts() (participants, channels int) {
	return h.registry.Counts()
}

func (h *Hub) forget(p types.Participant) {
	if p.Role == types.RoleStudent {
		h.scorer.Forget(p.ID)
		if h.limiter != nil {
			h.limiter.Forget(p.ID)
		}
	}
}

// ensureSession opens the channel's class session row if persistence is
// configured. Failure is logged, never fatal: presence must not depend
// on the database.
func (h *Hub) ensureSession(ctx context.Context, channel string) {
	if h.sessions == nil {
		return
	}
	if _, err := h.sessions.EnsureActive(ctx, channel); err != nil {
		log.Printf("Failed to ensure class session for channel %s: %v", channel, err)
	}
}

func validateIdentity(id, channel string) error {
	if id == "" {
		return fmt.Errorf("id: %w", types.ErrMissingField)
	}
	if !types.IsValidID(id) {
		return fmt.Errorf("id %q: %w", id, types.ErrInvalidID)
	}
	if channel == "" {
		return fmt.Errorf("channel: %w", types.ErrMissingField)
	}
	if !types.IsValidChannel(channel) {
		return fmt.Errorf("channel %q: %w", channel, types.ErrInvalidChannel)
	}
	return nil
}
