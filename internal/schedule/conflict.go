package schedule

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// segment is one contiguous slice of a schedule's weekly coverage:
// [start, end) minutes on a single weekday.
type segment struct {
	day   time.Weekday
	start int
	end   int
}

// expandSegments turns a schedule into day-stamped minute segments.
//
// An overnight rule (end before start) contributes two segments per
// selected weekday: one running to midnight on day D and one from
// midnight on day D+1. Start == end means the whole day.
//
// Times are assumed valid; invalid rules are rejected before they
// reach the detector.
func expandSegments(s *Schedule) []segment {
	start, err := ParseMinutes(s.StartTime)
	if err != nil {
		return nil
	}
	end, err := ParseMinutes(s.EndTime)
	if err != nil {
		return nil
	}

	segments := make([]segment, 0, len(s.DaysOfWeek)*2)
	for _, day := range s.DaysOfWeek {
		switch {
		case start == end:
			segments = append(segments, segment{day: day, start: 0, end: minutesPerDay})
		case start < end:
			segments = append(segments, segment{day: day, start: start, end: end})
		default:
			segments = append(segments,
				segment{day: day, start: start, end: minutesPerDay},
				segment{day: (day + 1) % 7, start: 0, end: end},
			)
		}
	}
	return segments
}

// DetectConflicts compares a candidate schedule against every other
// enabled schedule of the same device type in the same unit and reports
// time/day overlaps.
//
// Detection is advisory: conflicts are surfaced to callers for logging
// or display, while run-time resolution is handled by the evaluator's
// priority ordering. excludeID skips a schedule (the candidate's own
// stored copy during updates).
func (st *Store) DetectConflicts(ctx context.Context, candidate *Schedule, excludeID string) ([]Conflict, error) {
	if candidate == nil {
		return nil, ErrInvalid
	}

	others, err := st.ListForUnit(ctx, candidate.UnitID, ListFilter{
		DeviceType:  candidate.DeviceType,
		EnabledOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("listing schedules for conflict detection: %w", err)
	}

	var conflicts []Conflict
	for i := range others {
		other := &others[i]
		if other.ID == candidate.ID || other.ID == excludeID {
			continue
		}
		conflicts = append(conflicts, findOverlaps(candidate, other)...)
	}

	return conflicts, nil
}

// findOverlaps reports the overlap windows between two schedules.
// Weekdays sharing an identical overlap window are grouped into one
// Conflict. The result is symmetric: swapping a and b yields the same
// windows and weekdays.
func findOverlaps(a, b *Schedule) []Conflict {
	segsA := expandSegments(a)
	segsB := expandSegments(b)

	// Group overlapping weekdays by their shared minute window.
	type window struct{ start, end int }
	overlapDays := make(map[window][]time.Weekday)

	for _, sa := range segsA {
		for _, sb := range segsB {
			if sa.day != sb.day {
				continue
			}
			start := maxInt(sa.start, sb.start)
			end := minInt(sa.end, sb.end)
			if start >= end {
				continue
			}
			w := window{start: start, end: end}
			if !containsDay(overlapDays[w], sa.day) {
				overlapDays[w] = append(overlapDays[w], sa.day)
			}
		}
	}

	if len(overlapDays) == 0 {
		return nil
	}

	conflicts := make([]Conflict, 0, len(overlapDays))
	for w, days := range overlapDays {
		sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
		conflicts = append(conflicts, Conflict{
			ScheduleID:   a.ID,
			ScheduleName: a.Name,
			OtherID:      b.ID,
			OtherName:    b.Name,
			OverlapStart: FormatMinutes(w.start),
			OverlapEnd:   FormatMinutes(w.end),
			Days:         days,
			Resolution:   resolutionHint(a, b),
		})
	}

	// Deterministic ordering for callers and tests.
	sort.Slice(conflicts, func(i, j int) bool {
		if conflicts[i].OverlapStart != conflicts[j].OverlapStart {
			return conflicts[i].OverlapStart < conflicts[j].OverlapStart
		}
		return conflicts[i].OverlapEnd < conflicts[j].OverlapEnd
	})

	return conflicts
}

// resolutionHint describes how the evaluator will break the tie at run
// time, so the hint is always truthful about actual behaviour.
func resolutionHint(a, b *Schedule) string {
	if a.Priority != b.Priority {
		winner := a
		if b.Priority > a.Priority {
			winner = b
		}
		return fmt.Sprintf("higher priority wins (%s)", winner.ID)
	}
	winner := a
	if b.CreatedAt.Before(a.CreatedAt) {
		winner = b
	}
	return fmt.Sprintf("earliest created wins (%s)", winner.ID)
}

func containsDay(days []time.Weekday, d time.Weekday) bool {
	for _, w := range days {
		if w == d {
			return true
		}
	}
	return false
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
