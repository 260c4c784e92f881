package events

import (
	"time"

	"github.com/teambition/rrule-go"

	"playafind/internal/model"
)

const (
	// maxOccurrencesPerEvent caps rule expansion so a malformed rule can
	// never blow up a processing pass.
	maxOccurrencesPerEvent = 500

	expandBackfill = 48 * time.Hour
	expandHorizon  = 14 * 24 * time.Hour
)

// expandOccurrences returns the event's concrete occurrences. Most dataset
// events carry an explicit occurrence set and pass through untouched;
// events defined by a recurrence rule are expanded around now into the same
// shape, using their first occurrence as the start/duration template.
func expandOccurrences(ev model.RawEvent, now time.Time, loc *time.Location) []model.Occurrence {
	if ev.RecurrenceRule == "" {
		return ev.Occurrences
	}
	if len(ev.Occurrences) == 0 {
		return nil
	}

	template := ev.Occurrences[0]
	start, err := ParseEventTime(template.StartTime, loc)
	if err != nil {
		return nil
	}
	end, err := ParseEventTime(template.EndTime, loc)
	if err != nil {
		return nil
	}
	duration := end.Sub(start)

	rule, err := rrule.StrToRRule(ev.RecurrenceRule)
	if err != nil {
		// Bad rule: fall back to the explicit set rather than losing the
		// event entirely.
		return ev.Occurrences
	}
	rule.DTStart(start)

	var set rrule.Set
	set.RRule(rule)

	rangeStart := now.Add(-expandBackfill).In(start.Location())
	rangeEnd := now.Add(expandHorizon).In(start.Location())

	times := set.Between(rangeStart, rangeEnd, true)
	if len(times) > maxOccurrencesPerEvent {
		times = times[:maxOccurrencesPerEvent]
	}

	out := make([]model.Occurrence, 0, len(times))
	for _, t := range times {
		out = append(out, model.Occurrence{
			StartTime: t.Format(time.RFC3339),
			EndTime:   t.Add(duration).Format(time.RFC3339),
		})
	}
	return out
}
