package analytics

import (
	"math"
	"sort"

	"classpulse/pkg/types"
)

// Report computes topic- and student-level statistics for a channel. The
// whole-channel span is always present; one additional span is produced
// per topic. A channel with no history yields an empty report.
func (a *Aggregator) Report(channel string) types.ChannelReport {
	records := a.Timeline(channel)
	topics := a.Topics(channel)

	report := types.ChannelReport{
		Channel:     channel,
		GeneratedAt: a.now(),
		Overall:     buildSpan(records, nil),
		Timeline:    records,
	}
	for i := range topics {
		topic := topics[i]
		report.Topics = append(report.Topics, buildSpan(records, &topic))
	}
	return report
}

// buildSpan aggregates the records falling inside the topic's interval,
// or all records when topic is nil. The interval is inclusive of a
// record exactly at start and, for a closed topic, of one exactly at
// end; an open topic extends to infinity.
func buildSpan(records []types.EngagementRecord, topic *types.Topic) types.SpanReport {
	perStudent := make(map[string]*types.StudentStats)
	for _, record := range records {
		if topic != nil && !inSpan(record, *topic) {
			continue
		}
		stats, exists := perStudent[record.StudentID]
		if !exists {
			stats = &types.StudentStats{
				StudentID:   record.StudentID,
				StudentName: record.StudentName,
				Counts:      make(map[types.EngagementState]int, len(types.EngagementStates)),
			}
			perStudent[record.StudentID] = stats
		}
		stats.Counts[record.State]++
		stats.SampleCount++
	}

	span := types.SpanReport{Topic: topic, Students: make([]types.StudentStats, 0, len(perStudent))}
	var engagedSum float64
	for _, stats := range perStudent {
		stats.Percentages = make(map[types.EngagementState]float64, len(types.EngagementStates))
		for _, state := range types.EngagementStates {
			stats.Percentages[state] = percent(stats.Counts[state], stats.SampleCount)
		}
		engagedSum += stats.Percentages[types.StateEngaged]
		span.Students = append(span.Students, *stats)
	}
	if len(span.Students) > 0 {
		span.ClassEngagedPercent = round1(engagedSum / float64(len(span.Students)))
	}

	sort.Slice(span.Students, func(i, j int) bool {
		return span.Students[i].StudentID < span.Students[j].StudentID
	})
	return span
}

func inSpan(record types.EngagementRecord, topic types.Topic) bool {
	if record.Timestamp.Before(topic.StartTime) {
		return false
	}
	if topic.EndTime != nil && record.Timestamp.After(*topic.EndTime) {
		return false
	}
	return true
}

// percent returns count/total as a percentage rounded to one decimal.
func percent(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return round1(float64(count) / float64(total) * 100)
}

func round1(x float64) float64 {
	return math.Round(x*10) / 10
}
