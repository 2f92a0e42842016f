// Package analytics accumulates each channel's engagement decisions into
// an append-only timeline, tracks topic intervals, and computes reports
// over arbitrary spans. Read-heavy and append-only: reports never mutate
// the timeline.
package analytics

import (
	"sync"
	"time"

	"classpulse/pkg/types"
)

// Aggregator owns one timeline per channel. Channels are created lazily
// on first append or topic start; a channel nobody wrote to reports
// empty results, not errors.
type Aggregator struct {
	mu       sync.RWMutex
	channels map[string]*channelLog

	now func() time.Time
}

// channelLog is one channel's history. Its own lock keeps mutual
// exclusion per channel; writers to different channels never contend.
type channelLog struct {
	mu      sync.RWMutex
	records []types.EngagementRecord
	topics  []types.Topic
}

// NewAggregator creates an empty aggregator.
func NewAggregator() *Aggregator {
	return &Aggregator{
		channels: make(map[string]*channelLog),
		now:      time.Now,
	}
}

// Append adds a record to the channel's timeline in arrival order.
// Amortized O(1).
func (a *Aggregator) Append(channel string, record types.EngagementRecord) {
	cl := a.logFor(channel)
	cl.mu.Lock()
	cl.records = append(cl.records, record)
	cl.mu.Unlock()
}

// StartTopic opens a new topic on the channel. A previously open topic
// is deliberately not auto-closed; callers end topics explicitly.
func (a *Aggregator) StartTopic(channel, name string) types.Topic {
	topic := types.Topic{Name: name, StartTime: a.now()}

	cl := a.logFor(channel)
	cl.mu.Lock()
	cl.topics = append(cl.topics, topic)
	cl.mu.Unlock()
	return topic
}

// EndTopic closes the most recently started topic that is still open.
// Reports ok=false when no topic is open; that is not an error.
func (a *Aggregator) EndTopic(channel string) (types.Topic, bool) {
	cl, exists := a.lookup(channel)
	if !exists {
		return types.Topic{}, false
	}

	cl.mu.Lock()
	defer cl.mu.Unlock()

	for i := len(cl.topics) - 1; i >= 0; i-- {
		if cl.topics[i].Open() {
			end := a.now()
			cl.topics[i].EndTime = &end
			return copyTopic(cl.topics[i]), true
		}
	}
	return types.Topic{}, false
}

// Topics returns the channel's topics in start order.
func (a *Aggregator) Topics(channel string) []types.Topic {
	cl, exists := a.lookup(channel)
	if !exists {
		return []types.Topic{}
	}

	cl.mu.RLock()
	defer cl.mu.RUnlock()

	topics := make([]types.Topic, len(cl.topics))
	for i, topic := range cl.topics {
		topics[i] = copyTopic(topic)
	}
	return topics
}

// Timeline returns a copy of the channel's record sequence in arrival
// order.
func (a *Aggregator) Timeline(channel string) []types.EngagementRecord {
	cl, exists := a.lookup(channel)
	if !exists {
		return []types.EngagementRecord{}
	}

	cl.mu.RLock()
	defer cl.mu.RUnlock()

	records := make([]types.EngagementRecord, len(cl.records))
	copy(records, cl.records)
	return records
}

func (a *Aggregator) logFor(channel string) *channelLog {
	a.mu.Lock()
	defer a.mu.Unlock()

	cl, exists := a.channels[channel]
	if !exists {
		cl = &channelLog{}
		a.channels[channel] = cl
	}
	return cl
}

func (a *Aggregator) lookup(channel string) (*channelLog, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	cl, exists := a.channels[channel]
	return cl, exists
}

// copyTopic deep-copies the end pointer so callers cannot reach back
// into the stored topic.
func copyTopic(topic types.Topic) types.Topic {
	if topic.EndTime != nil {
		end := *topic.EndTime
		topic.EndTime = &end
	}
	return topic
}
