package broadcast

import (
	"errors"
	"sync"
	"testing"

	"classpulse/internal/registry"
	"classpulse/pkg/types"
)

type captureSender struct {
	mu     sync.Mutex
	events []*types.Event
	fail   bool
}

func (c *captureSender) SendEvent(ev *types.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("connection gone")
	}
	c.events = append(c.events, ev)
	return nil
}

func (c *captureSender) Close() error { return nil }

func (c *captureSender) Events() []*types.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*types.Event, len(c.events))
	copy(out, c.events)
	return out
}

func (c *captureSender) countOf(eventType string) int {
	n := 0
	for _, ev := range c.Events() {
		if ev.Type == eventType {
			n++
		}
	}
	return n
}

func setup() (*registry.Registry, *Router) {
	reg := registry.NewRegistry()
	return reg, NewRouter(reg)
}

func TestAnnounceJoin_ChannelScoped(t *testing.T) {
	reg, router := setup()

	s1 := &captureSender{}
	s2 := &captureSender{}
	obs := &captureSender{}
	other := &captureSender{}
	reg.Join("s1", types.RoleStudent, "math", "Alice", s1)
	reg.Join("s2", types.RoleStudent, "math", "Bob", s2)
	reg.Join("o1", types.RoleObserver, "math", "Prof", obs)
	reg.Join("s9", types.RoleStudent, "physics", "Zoe", other)

	joiner := reg.Join("s3", types.RoleStudent, "math", "Carol", &captureSender{})
	router.AnnounceJoin(joiner)

	for name, sender := range map[string]*captureSender{"s1": s1, "s2": s2, "o1": obs} {
		if got := sender.countOf(types.EventParticipantJoined); got != 1 {
			t.Errorf("%s should receive 1 joined event, got %d", name, got)
		}
	}
	if got := other.countOf(types.EventParticipantJoined); got != 0 {
		t.Errorf("different channel must not receive join events, got %d", got)
	}
}

func TestAnnounceJoin_ExcludesSubject(t *testing.T) {
	reg, router := setup()
	self := &captureSender{}
	joiner := reg.Join("s1", types.RoleStudent, "math", "Alice", self)

	router.AnnounceJoin(joiner)

	if got := len(self.Events()); got != 0 {
		t.Errorf("joiner must not be told about their own join, got %d events", got)
	}
}

func TestReplayRoster_LateObserverConverges(t *testing.T) {
	reg, router := setup()
	for _, id := range []string{"s1", "s2", "s3"} {
		reg.Join(id, types.RoleStudent, "math", "", &captureSender{})
	}

	conn := &captureSender{}
	observer := reg.Join("o1", types.RoleObserver, "math", "Prof", conn)
	router.ReplayRoster(observer)
	router.PublishUpdate("math", types.EngagementRecord{StudentID: "s1", State: types.StateEngaged})

	events := conn.Events()
	if len(events) != 4 {
		t.Fatalf("expected 3 replayed joins + 1 update, got %d", len(events))
	}
	// All three join events precede any engagement-update on this
	// connection.
	for i := 0; i < 3; i++ {
		if events[i].Type != types.EventParticipantJoined {
			t.Errorf("event %d should be participant-joined, got %s", i, events[i].Type)
		}
	}
	if events[3].Type != types.EventEngagementUpdate {
		t.Errorf("final event should be engagement-update, got %s", events[3].Type)
	}

	seen := map[any]bool{}
	for _, ev := range events[:3] {
		seen[ev.Data["id"]] = true
	}
	if !seen["s1"] || !seen["s2"] || !seen["s3"] {
		t.Errorf("replay should cover all three students, saw %v", seen)
	}
}

func TestAnnounceLeave_ObserversOnly(t *testing.T) {
	reg, router := setup()
	student := &captureSender{}
	obs := &captureSender{}
	reg.Join("s1", types.RoleStudent, "math", "Alice", student)
	reg.Join("o1", types.RoleObserver, "math", "Prof", obs)

	departing := types.Participant{ID: "s2", Role: types.RoleStudent, Channel: "math"}
	router.AnnounceLeave(departing)

	if got := obs.countOf(types.EventParticipantLeft); got != 1 {
		t.Errorf("observer should receive the leave, got %d", got)
	}
	if got := student.countOf(types.EventParticipantLeft); got != 0 {
		t.Errorf("students should not receive leave events, got %d", got)
	}
}

func TestSendResult_OriginatingStudentOnly(t *testing.T) {
	reg, router := setup()
	s1 := &captureSender{}
	s2 := &captureSender{}
	obs := &captureSender{}
	origin := reg.Join("s1", types.RoleStudent, "math", "Alice", s1)
	reg.Join("s2", types.RoleStudent, "math", "Bob", s2)
	reg.Join("o1", types.RoleObserver, "math", "Prof", obs)

	decision := types.Decision{State: types.StateConfused, Confidence: 0.72, SampleCount: 3}
	router.SendResult(origin, types.EngagementRecord{Emotion: "fear"}, decision)

	if got := s1.countOf(types.EventEngagementResult); got != 1 {
		t.Fatalf("origin should receive the result, got %d", got)
	}
	ev := s1.Events()[0]
	if ev.Data["state"] != string(types.StateConfused) || ev.Data["emotion"] != "fear" {
		t.Errorf("unexpected result payload: %v", ev.Data)
	}
	if got := s2.countOf(types.EventEngagementResult); got != 0 {
		t.Error("other students must not receive results")
	}
	if got := obs.countOf(types.EventEngagementResult); got != 0 {
		t.Error("observers must not receive raw results")
	}
}

func TestPublishUpdate_ObserversOfChannelOnly(t *testing.T) {
	reg, router := setup()
	s1 := &captureSender{}
	obsMath := &captureSender{}
	obsPhysics := &captureSender{}
	reg.Join("s1", types.RoleStudent, "math", "Alice", s1)
	reg.Join("o1", types.RoleObserver, "math", "Prof", obsMath)
	reg.Join("o2", types.RoleObserver, "physics", "Dean", obsPhysics)

	router.PublishUpdate("math", types.EngagementRecord{StudentID: "s1", State: types.StateEngaged})

	if got := obsMath.countOf(types.EventEngagementUpdate); got != 1 {
		t.Errorf("math observer should receive the update, got %d", got)
	}
	if got := obsPhysics.countOf(types.EventEngagementUpdate); got != 0 {
		t.Errorf("physics observer must not receive math updates, got %d", got)
	}
	if got := s1.countOf(types.EventEngagementUpdate); got != 0 {
		t.Errorf("students must not receive observer updates, got %d", got)
	}
}

func TestDeliver_DeadConnectionDropsSilently(t *testing.T) {
	reg, router := setup()
	dead := &captureSender{fail: true}
	live := &captureSender{}
	reg.Join("o1", types.RoleObserver, "math", "Prof", dead)
	reg.Join("o2", types.RoleObserver, "math", "Dean", live)

	// Must not panic or error; the live observer still gets the event.
	router.PublishUpdate("math", types.EngagementRecord{StudentID: "s1"})

	if got := live.countOf(types.EventEngagementUpdate); got != 1 {
		t.Errorf("delivery should continue past a dead connection, got %d", got)
	}
}

func TestSendRosterSnapshot_Batch(t *testing.T) {
	reg, router := setup()
	conn := &captureSender{}
	observer := reg.Join("o1", types.RoleObserver, "math", "Prof", conn)

	roster := []types.RosterEntry{
		{ID: "s1", State: types.StateEngaged},
		{ID: "s2", State: types.StateBored},
	}
	router.SendRosterSnapshot(observer, roster)

	events := conn.Events()
	if len(events) != 1 {
		t.Fatalf("snapshot should be a single batch event, got %d", len(events))
	}
	entries, ok := events[0].Data["participants"].([]types.RosterEntry)
	if !ok || len(entries) != 2 {
		t.Errorf("unexpected snapshot payload: %v", events[0].Data)
	}
}
