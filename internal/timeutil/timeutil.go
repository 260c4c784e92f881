// Package timeutil provides pure countdown and relative-time derivations
// shared by event processing and presentation. All functions take explicit
// reference times so callers stay deterministic.
package timeutil

import (
	"fmt"
	"time"
)

// nearWindow is the threshold under which a start or end counts as "soon".
const nearWindow = 15 * time.Minute

// FormatCountdown renders a minute count as "45m", "2h" or "2h 30m". Only
// the magnitude is formatted; the sign of negative input is the caller's
// concern (e.g. RelativeTime appends "ago").
func FormatCountdown(minutes int) string {
	if minutes < 0 {
		minutes = -minutes
	}
	h := minutes / 60
	m := minutes % 60
	switch {
	case h == 0:
		return fmt.Sprintf("%dm", m)
	case m == 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dh %dm", h, m)
	}
}

// Relative describes a target instant in relation to a reference instant.
type Relative struct {
	Text   string
	IsPast bool
	IsNear bool // within nearWindow of the reference, either side
}

// RelativeTime phrases target against reference ("in 45m", "2h ago").
func RelativeTime(target, reference time.Time) Relative {
	d := target.Sub(reference)
	past := d < 0
	if past {
		d = -d
	}

	text := FormatCountdown(int(d / time.Minute))
	if past {
		text += " ago"
	} else {
		text = "in " + text
	}

	return Relative{Text: text, IsPast: past, IsNear: d <= nearWindow}
}

// Countdown summarizes where now falls against one occurrence's bounds.
// Minute fields are negative once the respective instant has passed.
type Countdown struct {
	MinutesUntilStart int
	MinutesUntilEnd   int
	IsStartingSoon    bool // 0 < time-to-start <= 15m
	IsEndingSoon      bool // active and time-to-end <= 15m
	IsActive          bool
	HasEnded          bool
}

// CountdownInfo derives the countdown summary for [start, end] at now.
func CountdownInfo(start, end, now time.Time) Countdown {
	active := !start.After(now) && !now.After(end)
	return Countdown{
		MinutesUntilStart: int(start.Sub(now) / time.Minute),
		MinutesUntilEnd:   int(end.Sub(now) / time.Minute),
		IsStartingSoon:    start.After(now) && start.Sub(now) <= nearWindow,
		IsEndingSoon:      active && end.Sub(now) <= nearWindow,
		IsActive:          active,
		HasEnded:          now.After(end),
	}
}
