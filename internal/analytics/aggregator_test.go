package analytics

import (
	"sync"
	"testing"
	"time"

	"classpulse/pkg/types"
)

func testClock(start time.Time) (*Aggregator, *time.Time) {
	a := NewAggregator()
	now := start
	a.now = func() time.Time { return now }
	return a, &now
}

var baseTime = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func record(student string, state types.EngagementState, at time.Time) types.EngagementRecord {
	return types.EngagementRecord{
		ID:          student + at.String(),
		Timestamp:   at,
		StudentID:   student,
		StudentName: student,
		State:       state,
		Emotion:     "happy",
		Confidence:  0.9,
		SampleCount: 3,
	}
}

func TestAppendAndTimeline_ArrivalOrder(t *testing.T) {
	a := NewAggregator()

	a.Append("math", record("s1", types.StateEngaged, baseTime))
	a.Append("math", record("s2", types.StateBored, baseTime.Add(time.Second)))
	a.Append("math", record("s1", types.StateEngaged, baseTime.Add(2*time.Second)))

	timeline := a.Timeline("math")
	if len(timeline) != 3 {
		t.Fatalf("expected 3 records, got %d", len(timeline))
	}
	for i := 1; i < len(timeline); i++ {
		if timeline[i].Timestamp.Before(timeline[i-1].Timestamp) {
			t.Error("timeline must preserve arrival order")
		}
	}

	// The returned slice is a copy; mutating it must not corrupt the
	// stored timeline.
	timeline[0].StudentID = "corrupted"
	if a.Timeline("math")[0].StudentID != "s1" {
		t.Error("timeline snapshot leaked internal state")
	}
}

func TestTimeline_UnknownChannelEmpty(t *testing.T) {
	a := NewAggregator()
	if got := a.Timeline("nowhere"); len(got) != 0 {
		t.Errorf("unknown channel should yield empty timeline, got %d", len(got))
	}
	if got := a.Topics("nowhere"); len(got) != 0 {
		t.Errorf("unknown channel should yield empty topics, got %d", len(got))
	}
}

func TestTopics_StartAndEnd(t *testing.T) {
	a, now := testClock(baseTime)

	a.StartTopic("math", "fractions")
	*now = baseTime.Add(5 * time.Minute)
	closed, ok := a.EndTopic("math")

	if !ok {
		t.Fatal("expected an open topic to close")
	}
	if closed.Name != "fractions" || closed.EndTime == nil || !closed.EndTime.Equal(baseTime.Add(5*time.Minute)) {
		t.Errorf("unexpected closed topic: %+v", closed)
	}

	if _, ok := a.EndTopic("math"); ok {
		t.Error("ending with no open topic should be a no-op")
	}
}

func TestEndTopic_ClosesMostRecentOpen(t *testing.T) {
	// Two concurrently open topics are permitted by construction; end
	// closes the most recently started one first.
	a, now := testClock(baseTime)

	a.StartTopic("math", "first")
	*now = baseTime.Add(time.Minute)
	a.StartTopic("math", "second")
	*now = baseTime.Add(2 * time.Minute)

	closed, ok := a.EndTopic("math")
	if !ok || closed.Name != "second" {
		t.Fatalf("expected second to close first, got %+v ok=%v", closed, ok)
	}

	closed, ok = a.EndTopic("math")
	if !ok || closed.Name != "first" {
		t.Fatalf("expected first to close next, got %+v ok=%v", closed, ok)
	}

	topics := a.Topics("math")
	if len(topics) != 2 {
		t.Fatalf("expected 2 topics, got %d", len(topics))
	}
	for _, topic := range topics {
		if topic.Open() {
			t.Errorf("topic %s should be closed", topic.Name)
		}
	}
}

func TestTopics_SnapshotIsolated(t *testing.T) {
	a, now := testClock(baseTime)
	a.StartTopic("math", "t")
	*now = baseTime.Add(time.Minute)

	before := a.Topics("math")
	a.EndTopic("math")

	if before[0].EndTime != nil {
		t.Error("earlier snapshot must not observe the later close")
	}
}

func TestConcurrentAppends(t *testing.T) {
	a := NewAggregator()
	var wg sync.WaitGroup
	for c := 0; c < 4; c++ {
		channel := string(rune('a' + c))
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := 0; i < 250; i++ {
					a.Append(channel, record("s1", types.StateEngaged, baseTime))
				}
			}()
		}
	}
	wg.Wait()

	for c := 0; c < 4; c++ {
		channel := string(rune('a' + c))
		if got := len(a.Timeline(channel)); got != 1000 {
			t.Errorf("channel %s lost appends: %d", channel, got)
		}
	}
}
