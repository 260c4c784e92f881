// Package events turns raw dataset events into filtered, display-ready
// records: it flattens occurrences, classifies them against a reference
// time, resolves locations, applies the compound filters and produces
// stable orderings.
package events

import (
	"strings"
	"time"

	"playafind/internal/geo"
	"playafind/internal/model"
	"playafind/internal/timeutil"
	"playafind/internal/venue"
)

// StatusBuffer is the shared 15-minute constant behind every "soon" and
// "about to end" decision.
const StatusBuffer = 15 * time.Minute

// Defaults applied when a Params field is left zero.
const (
	DefaultRadiusMeters      = 5000.0
	DefaultTimeWindowMinutes = 240

	defaultTypeAbbr = "othr"
)

// Params configures one processing pass. Now is the reference time for
// status and admission and must be set explicitly by anything that wants
// determinism; only the outermost caller should leave it zero to mean
// wall-clock time.
type Params struct {
	ViewerLocation    *geo.Coordinate
	RadiusMeters      float64
	TimeWindowMinutes int

	Now time.Time

	// WallNow is the true current time, used only for the future-occurrence
	// weekday summary; unlike Now it is not a simulation knob. Zero means
	// time.Now().
	WallNow time.Time

	// Location parses dataset timestamps that lack an explicit offset.
	// Nil means time.Local.
	Location *time.Location

	// EventTypes restricts results to the given type abbreviations.
	// Nil admits every type.
	EventTypes map[string]bool

	ActiveOnly    bool
	UpcomingOnly  bool
	FavoritesOnly bool

	// FavoriteIDs is a point-in-time snapshot of favorited composite IDs,
	// consulted only when FavoritesOnly is set.
	FavoriteIDs map[string]bool
}

func (p *Params) applyDefaults() {
	if p.Now.IsZero() {
		p.Now = time.Now()
	}
	if p.WallNow.IsZero() {
		p.WallNow = time.Now()
	}
	if p.Location == nil {
		p.Location = time.Local
	}
	if p.RadiusMeters <= 0 {
		p.RadiusMeters = DefaultRadiusMeters
	}
	if p.TimeWindowMinutes <= 0 {
		p.TimeWindowMinutes = DefaultTimeWindowMinutes
	}
}

// StatusAt classifies one occurrence against now. An active occurrence
// inside the final buffer window reports StatusEnded on purpose: the list
// should not send anyone to something about to close.
func StatusAt(now, start, end time.Time) model.EventStatus {
	switch {
	case !start.After(now) && !now.After(end) && end.Sub(now) >= StatusBuffer:
		return model.StatusNow
	case now.Before(start) && start.Sub(now) <= StatusBuffer:
		return model.StatusSoon
	case now.Before(start):
		return model.StatusUpcoming
	default:
		return model.StatusEnded
	}
}

// admit is the hard time-window prefilter: active with at least the buffer
// of runway left, or starting within the look-ahead window (inclusive).
func admit(now, start, end time.Time, window time.Duration) bool {
	if !start.After(now) && !now.After(end) && end.Sub(now) >= StatusBuffer {
		return true
	}
	return now.Before(start) && !start.After(now.Add(window))
}

// Process runs the full pipeline over raw and returns one record per
// admitted (event, occurrence) pair. Malformed records are dropped
// silently; Process never fails. For fixed inputs, including a fixed Now
// and WallNow, the output is byte-identical across runs.
func Process(raw []model.RawEvent, index *venue.Index, p Params) []model.ProcessedEvent {
	p.applyDefaults()
	window := time.Duration(p.TimeWindowMinutes) * time.Minute

	out := make([]model.ProcessedEvent, 0, len(raw))
	for _, ev := range raw {
		if ev.UID == "" {
			continue
		}

		occs := expandOccurrences(ev, p.Now, p.Location)
		if len(occs) == 0 {
			continue
		}

		// Parse every start once; futureOccurrenceDays needs them all.
		starts := make([]time.Time, len(occs))
		for i, occ := range occs {
			if t, err := ParseEventTime(occ.StartTime, p.Location); err == nil {
				starts[i] = t
			}
		}

		// Location does not vary per occurrence; resolve lazily once the
		// first occurrence survives the admission test.
		var info venue.LocationInfo
		located := false

		for i, occ := range occs {
			start := starts[i]
			if start.IsZero() {
				continue
			}
			end, err := ParseEventTime(occ.EndTime, p.Location)
			if err != nil {
				continue
			}

			status := StatusAt(p.Now, start, end)
			if !admit(p.Now, start, end, window) {
				continue
			}

			if !located {
				info = index.ResolveLocation(ev)
				located = true
			}

			var distance *float64
			if p.ViewerLocation != nil && info.Coordinate != nil {
				d := geo.Distance(*p.ViewerLocation, *info.Coordinate)
				if d > p.RadiusMeters {
					continue
				}
				distance = &d
			}

			abbr, label := eventTypeOf(ev)
			if p.EventTypes != nil && !p.EventTypes[abbr] {
				continue
			}
			if p.ActiveOnly && status != model.StatusNow {
				continue
			}
			if p.UpcomingOnly && (status == model.StatusNow || status == model.StatusEnded) {
				continue
			}

			id := ev.UID + "-" + occ.StartTime
			if p.FavoritesOnly && !p.FavoriteIDs[id] {
				continue
			}

			out = append(out, model.ProcessedEvent{
				ID:                   id,
				EventUID:             ev.UID,
				Title:                ev.Title,
				Description:          ev.Description,
				Type:                 label,
				TypeAbbr:             abbr,
				Start:                start,
				End:                  end,
				Status:               status,
				AllDay:               ev.AllDay,
				TimeLabel:            timeLabel(status, start, end, p.Now),
				DistanceMeters:       distance,
				Coordinate:           info.Coordinate,
				LocationLabel:        info.Label,
				LocationSource:       string(info.Source),
				IsRecurring:          len(occs) > 1,
				FutureOccurrenceDays: futureOccurrenceDays(starts, i, p.WallNow),
				URL:                  ev.URL,
				ContactEmail:         ev.ContactEmail,
			})
		}
	}
	return out
}

func eventTypeOf(ev model.RawEvent) (abbr, label string) {
	abbr = defaultTypeAbbr
	if ev.EventType != nil {
		if ev.EventType.Abbr != "" {
			abbr = ev.EventType.Abbr
		}
		label = ev.EventType.Label
	}
	return abbr, label
}

// timeLabel phrases the occurrence for display: active events count down
// to their end, everything else is placed relative to its start.
func timeLabel(status model.EventStatus, start, end, now time.Time) string {
	if status == model.StatusNow {
		return "ends " + timeutil.RelativeTime(end, now).Text
	}
	return timeutil.RelativeTime(start, now).Text
}

var weekdayAbbrs = [7]string{"Su", "M", "Tu", "W", "Th", "F", "Sa"}

// futureOccurrenceDays summarizes the other still-upcoming occurrences of
// a multi-occurrence event as weekday abbreviations, de-duplicated and in
// week order starting Sunday. "Upcoming" is judged against the true
// current time, not the processing reference time.
func futureOccurrenceDays(starts []time.Time, current int, wallNow time.Time) string {
	if len(starts) <= 1 {
		return ""
	}

	var seen [7]bool
	for i, st := range starts {
		if i == current || st.IsZero() || !st.After(wallNow) {
			continue
		}
		seen[st.Weekday()] = true
	}

	parts := make([]string, 0, 7)
	for d := 0; d < 7; d++ {
		if seen[d] {
			parts = append(parts, weekdayAbbrs[d])
		}
	}
	return strings.Join(parts, ",")
}

// eventTimeLayouts are tried in order; the first two carry their own
// offset, the bare forms are interpreted in the configured location.
var eventTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// ParseEventTime parses a dataset timestamp. Every consumer of occurrence
// timestamps must go through here so a record admitted by Process is never
// unparseable elsewhere.
func ParseEventTime(s string, loc *time.Location) (time.Time, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range eventTimeLayouts {
		t, err := time.ParseInLocation(layout, s, loc)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
