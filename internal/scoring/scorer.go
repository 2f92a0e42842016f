// Package scoring turns noisy per-frame emotion classifications into a
// stable per-student engagement signal using a decaying sample window.
package scoring

import (
	"math"
	"sync"
	"time"

	"classpulse/pkg/types"
)

// Config holds the temporal smoothing parameters.
type Config struct {
	// Window is the sliding retention span of a student's history.
	Window time.Duration
	// MinFrames is the corroboration floor: fewer retained samples than
	// this yields the low-confidence default decision.
	MinFrames int
	// MinConfidence filters out unreliable frames before weighting.
	MinConfidence float64
	// DecayFactor is applied once per DecayInterval of sample age, so
	// older samples count exponentially less.
	DecayFactor   float64
	DecayInterval time.Duration
	// DominanceThreshold is the minimum normalized score the leading
	// state needs before it is committed.
	DominanceThreshold float64
}

// DefaultConfig returns the tuning the classroom deployment runs with.
func DefaultConfig() Config {
	return Config{
		Window:             1500 * time.Millisecond,
		MinFrames:          2,
		MinConfidence:      0.35,
		DecayFactor:        0.85,
		DecayInterval:      500 * time.Millisecond,
		DominanceThreshold: 0.3,
	}
}

// Confidences reported by the two default decisions. Distinct values let
// callers tell "too few recent frames" from "recent frames, all
// unreliable".
const (
	insufficientConfidence = 0.5
	unreliableConfidence   = 0.4
)

// sample is one classified frame. Ephemeral: lives only in the window.
type sample struct {
	emotion    string
	confidence float64
	at         time.Time
}

// history is one student's rolling sample buffer. Its mutex serializes
// all scoring for that student; concurrent writers for the same identity
// would corrupt the window.
type history struct {
	mu      sync.Mutex
	samples []sample
}

// Scorer derives engagement decisions from per-student sample windows.
// Safe for concurrent use across students; per-student calls are
// serialized internally.
type Scorer struct {
	cfg   Config
	table *Table

	mu       sync.Mutex
	students map[string]*history

	now func() time.Time
}

// NewScorer creates a scorer with the given tuning and weight table.
func NewScorer(cfg Config, table *Table) *Scorer {
	if table == nil {
		table = DefaultTable()
	}
	return &Scorer{
		cfg:      cfg,
		table:    table,
		students: make(map[string]*history),
		now:      time.Now,
	}
}

// Observe appends a classified frame to the student's history and derives
// the current engagement decision. Samples sharing a timestamp are all
// counted; the window is order-sensitive and performs no de-duplication.
func (s *Scorer) Observe(studentID, emotion string, confidence float64) types.Decision {
	h := s.historyFor(studentID)

	h.mu.Lock()
	defer h.mu.Unlock()

	now := s.now()
	h.samples = append(h.samples, sample{emotion: emotion, confidence: confidence, at: now})
	h.prune(now.Add(-s.cfg.Window))

	if len(h.samples) < s.cfg.MinFrames {
		return defaultDecision(insufficientConfidence, len(h.samples))
	}

	reliable := h.samples[:0:0]
	for _, smp := range h.samples {
		if smp.confidence >= s.cfg.MinConfidence {
			reliable = append(reliable, smp)
		}
	}
	if len(reliable) == 0 {
		return defaultDecision(unreliableConfidence, 0)
	}

	var weighted Vector
	var totalWeight, totalConfidence float64
	for _, smp := range reliable {
		vec := s.table.Lookup(smp.emotion)
		ageMs := float64(now.Sub(smp.at).Milliseconds())
		factor := smp.confidence * math.Pow(s.cfg.DecayFactor, ageMs/float64(s.cfg.DecayInterval.Milliseconds()))
		for i := range vec {
			weighted[i] += vec[i] * factor
		}
		totalWeight += factor
		totalConfidence += smp.confidence
	}

	scores := make(map[types.EngagementState]float64, len(types.EngagementStates))
	bestIdx := -1
	var bestScore float64
	for i, state := range types.EngagementStates {
		var normalized float64
		if totalWeight > 0 {
			normalized = weighted[i] / totalWeight
		}
		scores[state] = normalized
		// Strict > keeps the first maximum in enumeration order.
		if bestIdx < 0 || normalized > bestScore {
			bestIdx = i
			bestScore = normalized
		}
	}

	state := types.StateNotPayingAttention
	if bestScore >= s.cfg.DominanceThreshold {
		state = types.EngagementStates[bestIdx]
	}

	return types.Decision{
		State:       state,
		Confidence:  totalConfidence / float64(len(reliable)),
		SampleCount: len(reliable),
		Scores:      scores,
	}
}

// Forget discards a student's history. Must be called on leave and
// disconnect so a returning identity starts from a clean window.
func (s *Scorer) Forget(studentID string) {
	s.mu.Lock()
	delete(s.students, studentID)
	s.mu.Unlock()
}

// HistoryLen reports the current retained sample count for a student
// without mutating the window.
func (s *Scorer) HistoryLen(studentID string) int {
	s.mu.Lock()
	h, ok := s.students[studentID]
	s.mu.Unlock()
	if !ok {
		return 0
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.samples)
}

func (s *Scorer) historyFor(studentID string) *history {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.students[studentID]
	if !ok {
		h = &history{}
		s.students[studentID] = h
	}
	return h
}

// prune drops samples older than the cutoff. Samples arrive in time
// order, so a single scan from the front suffices.
func (h *history) prune(cutoff time.Time) {
	keep := 0
	for keep < len(h.samples) && h.samples[keep].at.Before(cutoff) {
		keep++
	}
	if keep > 0 {
		h.samples = append(h.samples[:0], h.samples[keep:]...)
	}
}

func defaultDecision(confidence float64, sampleCount int) types.Decision {
	scores := make(map[types.EngagementState]float64, len(types.EngagementStates))
	for _, state := range types.EngagementStates {
		scores[state] = 0
	}
	return types.Decision{
		State:       types.StateNotPayingAttention,
		Confidence:  confidence,
		SampleCount: sampleCount,
		Scores:      scores,
	}
}
