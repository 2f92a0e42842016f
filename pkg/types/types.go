package types

import (
	"time"
)

// Participant roles within a channel.
const (
	RoleStudent  Role = "student"
	RoleObserver Role = "observer"
)

type Role string

// EngagementState is the discrete state derived from a student's recent
// emotion samples.
type EngagementState string

const (
	StateEngaged            EngagementState = "engaged"
	StateBored              EngagementState = "bored"
	StateConfused           EngagementState = "confused"
	StateNotPayingAttention EngagementState = "not_paying_attention"
)

// EngagementStates is the fixed enumeration order. Score ties resolve to
// the first maximum in this order.
var EngagementStates = [4]EngagementState{
	StateEngaged,
	StateBored,
	StateConfused,
	StateNotPayingAttention,
}

// Inbound event types submitted by client connections.
const (
	MessageStudentJoin   = "student-join"
	MessageObserverJoin  = "observer-join"
	MessageSampleSubmit  = "sample-submit"
	MessageStudentLeave  = "student-leave"
	MessageObserverLeave = "observer-leave"
)

// Outbound event types delivered to client connections.
const (
	EventParticipantJoined = "participant-joined"
	EventParticipantLeft   = "participant-left"
	EventEngagementResult  = "engagement-result"
	EventEngagementUpdate  = "engagement-update"
	EventRosterSnapshot    = "roster-snapshot"
	EventError             = "error"
)

// Event is the unit of delivery to a connection. Data holds the
// type-specific payload; the flexible map keeps the wire format stable
// while payloads evolve.
type Event struct {
	Type      string         `json:"type"`
	Timestamp time.Time      `json:"timestamp"`
	Data      map[string]any `json:"data,omitempty"`
}

// NewEvent creates an event stamped with the current time.
func NewEvent(eventType string, data map[string]any) *Event {
	return &Event{
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

// NewErrorEvent creates an error event targeted at a single connection.
func NewErrorEvent(message string) *Event {
	return NewEvent(EventError, map[string]any{"message": message})
}

// EventSender is the output port of a participant: one logical queue per
// connection, FIFO, best-effort. Implementations must be safe for
// concurrent senders and must not block.
type EventSender interface {
	// SendEvent enqueues an event for delivery. Returns an error when the
	// event was dropped (queue full or connection closed).
	SendEvent(event *Event) error

	// Close tears down the connection and releases its resources.
	Close() error
}

// Participant is a present member of a channel. Owned exclusively by the
// session registry; all other components receive value copies.
type Participant struct {
	ID      string      `json:"id"`
	Name    string      `json:"name"`
	Role    Role        `json:"role"`
	Channel string      `json:"channel"`
	Conn    EventSender `json:"-"`

	// Last resolved engagement, preserved across reconnects.
	LastEmotion    string          `json:"last_emotion,omitempty"`
	LastState      EngagementState `json:"last_state,omitempty"`
	LastConfidence float64         `json:"last_confidence,omitempty"`
	LastUpdate     time.Time       `json:"last_update,omitempty"`
}

// RosterEntry is the query-surface view of a participant.
type RosterEntry struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Role       Role            `json:"role"`
	Emotion    string          `json:"emotion,omitempty"`
	State      EngagementState `json:"state,omitempty"`
	Confidence float64         `json:"confidence"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Prediction is the response contract of the external inference service.
type Prediction struct {
	Emotion    string  `json:"emotion"`
	Confidence float64 `json:"confidence"`
}

// Decision is the scorer's output for one observed sample: the derived
// state plus the evidence behind it. Folded into an EngagementRecord
// before leaving the pipeline, never stored on its own.
type Decision struct {
	State       EngagementState             `json:"state"`
	Confidence  float64                     `json:"confidence"`
	SampleCount int                         `json:"sample_count"`
	Scores      map[EngagementState]float64 `json:"scores"`
}

// EngagementRecord is one resolved engagement decision on a channel
// timeline. Immutable once appended.
type EngagementRecord struct {
	ID          string          `json:"id"`
	Timestamp   time.Time       `json:"timestamp"`
	StudentID   string          `json:"student_id"`
	StudentName string          `json:"student_name"`
	Emotion     string          `json:"emotion"`
	State       EngagementState `json:"state"`
	Confidence  float64         `json:"confidence"`
	SampleCount int             `json:"sample_count"`
}

// Topic is a named span of a channel's timeline. EndTime nil means the
// topic is still open.
type Topic struct {
	Name      string     `json:"name"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
}

// Open reports whether the topic has not been ended yet.
func (t Topic) Open() bool {
	return t.EndTime == nil
}

// ClassSession records one activation of a channel: opened on first join,
// ended through the API. Only this lifecycle row is persisted; the
// engagement timeline never is.
type ClassSession struct {
	ID        string     `json:"id" db:"id"`
	Channel   string     `json:"channel" db:"channel"`
	Name      string     `json:"name" db:"name"`
	StartTime time.Time  `json:"start_time" db:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty" db:"end_time"`
	Status    string     `json:"status" db:"status"`
}

// StudentStats holds one student's per-state breakdown within a span.
type StudentStats struct {
	StudentID   string                      `json:"student_id"`
	StudentName string                      `json:"student_name"`
	SampleCount int                         `json:"sample_count"`
	Counts      map[EngagementState]int     `json:"counts"`
	Percentages map[EngagementState]float64 `json:"percentages"`
}

// SpanReport covers one topic, or the whole channel when Topic is nil.
// ClassEngagedPercent is the mean of the per-student engaged percentages
// of students with at least one record in the span.
type SpanReport struct {
	Topic               *Topic         `json:"topic,omitempty"`
	Students            []StudentStats `json:"students"`
	ClassEngagedPercent float64        `json:"class_engaged_percent"`
}

// ChannelReport is the full analytics output for a channel.
type ChannelReport struct {
	Channel     string             `json:"channel"`
	GeneratedAt time.Time          `json:"generated_at"`
	Overall     SpanReport         `json:"overall"`
	Topics      []SpanReport       `json:"topics,omitempty"`
	Timeline    []EngagementRecord `json:"timeline"`
}
