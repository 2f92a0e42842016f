package analytics

import (
	"testing"
	"time"

	"classpulse/pkg/types"
)

func studentStats(t *testing.T, span types.SpanReport, id string) types.StudentStats {
	t.Helper()
	for _, stats := range span.Students {
		if stats.StudentID == id {
			return stats
		}
	}
	t.Fatalf("student %s missing from span", id)
	return types.StudentStats{}
}

func TestReport_HandComputedPercentages(t *testing.T) {
	// Two students, one manually closed topic covering a known subset:
	// s1 has 3 of 4 records engaged inside the topic -> 75.0%.
	a, now := testClock(baseTime)

	a.StartTopic("math", "fractions")

	times := []time.Time{
		baseTime.Add(10 * time.Second),
		baseTime.Add(20 * time.Second),
		baseTime.Add(30 * time.Second),
		baseTime.Add(40 * time.Second),
	}
	a.Append("math", record("s1", types.StateEngaged, times[0]))
	a.Append("math", record("s1", types.StateEngaged, times[1]))
	a.Append("math", record("s1", types.StateBored, times[2]))
	a.Append("math", record("s1", types.StateEngaged, times[3]))

	a.Append("math", record("s2", types.StateConfused, times[0]))
	a.Append("math", record("s2", types.StateEngaged, times[1]))

	*now = baseTime.Add(time.Minute)
	if _, ok := a.EndTopic("math"); !ok {
		t.Fatal("failed to close topic")
	}

	// Records after the topic closed: in the whole-channel span only.
	a.Append("math", record("s1", types.StateNotPayingAttention, baseTime.Add(2*time.Minute)))

	report := a.Report("math")

	if len(report.Topics) != 1 {
		t.Fatalf("expected 1 topic span, got %d", len(report.Topics))
	}
	span := report.Topics[0]

	s1 := studentStats(t, span, "s1")
	if s1.SampleCount != 4 {
		t.Fatalf("s1 should have 4 records in topic, got %d", s1.SampleCount)
	}
	if got := s1.Percentages[types.StateEngaged]; got != 75.0 {
		t.Errorf("s1 engaged = %v, want 75.0", got)
	}
	if got := s1.Percentages[types.StateBored]; got != 25.0 {
		t.Errorf("s1 bored = %v, want 25.0", got)
	}

	s2 := studentStats(t, span, "s2")
	if got := s2.Percentages[types.StateEngaged]; got != 50.0 {
		t.Errorf("s2 engaged = %v, want 50.0", got)
	}
	if got := s2.Percentages[types.StateConfused]; got != 50.0 {
		t.Errorf("s2 confused = %v, want 50.0", got)
	}

	// Class average of per-student engaged percentages: (75+50)/2.
	if got := span.ClassEngagedPercent; got != 62.5 {
		t.Errorf("class engaged = %v, want 62.5", got)
	}

	// Whole-channel span includes the post-topic record: s1 engaged
	// drops to 3 of 5 = 60.0%.
	overall := studentStats(t, report.Overall, "s1")
	if overall.SampleCount != 5 {
		t.Errorf("overall s1 count = %d, want 5", overall.SampleCount)
	}
	if got := overall.Percentages[types.StateEngaged]; got != 60.0 {
		t.Errorf("overall s1 engaged = %v, want 60.0", got)
	}

	if report.GeneratedAt.IsZero() {
		t.Error("report should carry a generation timestamp")
	}
	if len(report.Timeline) != 7 {
		t.Errorf("report should include the raw timeline, got %d records", len(report.Timeline))
	}
}

func TestReport_RangeBoundariesInclusive(t *testing.T) {
	a, now := testClock(baseTime)

	a.StartTopic("math", "t")
	end := baseTime.Add(time.Minute)

	a.Append("math", record("s1", types.StateEngaged, baseTime))                    // exactly at start
	a.Append("math", record("s1", types.StateEngaged, end))                         // exactly at end
	a.Append("math", record("s1", types.StateEngaged, baseTime.Add(-time.Second)))  // before start
	a.Append("math", record("s1", types.StateEngaged, end.Add(time.Second)))        // after end

	*now = end
	a.EndTopic("math")

	report := a.Report("math")
	stats := studentStats(t, report.Topics[0], "s1")
	if stats.SampleCount != 2 {
		t.Errorf("boundary records should be inclusive, got %d of 2", stats.SampleCount)
	}
}

func TestReport_OpenTopicExtendsToInfinity(t *testing.T) {
	a, _ := testClock(baseTime)

	a.StartTopic("math", "open")
	a.Append("math", record("s1", types.StateEngaged, baseTime.Add(time.Hour)))

	report := a.Report("math")
	stats := studentStats(t, report.Topics[0], "s1")
	if stats.SampleCount != 1 {
		t.Errorf("open topic should include later records, got %d", stats.SampleCount)
	}
}

func TestReport_StudentWithNoRecordsInTopicOmitted(t *testing.T) {
	a, now := testClock(baseTime)

	a.Append("math", record("s2", types.StateEngaged, baseTime))

	*now = baseTime.Add(time.Minute)
	a.StartTopic("math", "late")
	a.Append("math", record("s1", types.StateEngaged, baseTime.Add(2*time.Minute)))

	report := a.Report("math")
	span := report.Topics[0]

	if len(span.Students) != 1 || span.Students[0].StudentID != "s1" {
		t.Errorf("s2 has no records in topic and should be omitted: %+v", span.Students)
	}

	// s2 still appears in the whole-channel span.
	if len(report.Overall.Students) != 2 {
		t.Errorf("overall should keep both students, got %d", len(report.Overall.Students))
	}
}

func TestReport_EmptyChannel(t *testing.T) {
	a := NewAggregator()

	report := a.Report("silence")
	if len(report.Overall.Students) != 0 || report.Overall.ClassEngagedPercent != 0 {
		t.Errorf("empty channel should report empty overall: %+v", report.Overall)
	}
	if len(report.Topics) != 0 {
		t.Errorf("empty channel should have no topic spans, got %d", len(report.Topics))
	}
}

func TestReport_RoundingToOneDecimal(t *testing.T) {
	a, _ := testClock(baseTime)

	// 1 of 3 engaged -> 33.333... -> 33.3; 2 of 3 bored -> 66.666... -> 66.7.
	a.Append("math", record("s1", types.StateEngaged, baseTime))
	a.Append("math", record("s1", types.StateBored, baseTime))
	a.Append("math", record("s1", types.StateBored, baseTime))

	stats := studentStats(t, a.Report("math").Overall, "s1")
	if got := stats.Percentages[types.StateEngaged]; got != 33.3 {
		t.Errorf("engaged = %v, want 33.3", got)
	}
	if got := stats.Percentages[types.StateBored]; got != 66.7 {
		t.Errorf("bored = %v, want 66.7", got)
	}
}

func TestReport_StudentsSortedByID(t *testing.T) {
	a, _ := testClock(baseTime)
	for _, id := range []string{"zoe", "alice", "mike"} {
		a.Append("math", record(id, types.StateEngaged, baseTime))
	}

	students := a.Report("math").Overall.Students
	for i := 1; i < len(students); i++ {
		if students[i].StudentID < students[i-1].StudentID {
			t.Fatalf("students not sorted: %v", students)
		}
	}
}
