// Package model holds the dataset record types and the derived,
// display-ready event representation.
package model

import (
	"encoding/json"
	"fmt"
	"time"

	"playafind/internal/geo"
)

// RawEvent is one event as loaded from a yearly dataset partition. It is
// never mutated during a processing pass; one RawEvent can yield multiple
// ProcessedEvent records, one per occurrence.
type RawEvent struct {
	UID         string     `json:"uid"`
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Year        int        `json:"year"`
	EventType   *EventType `json:"event_type,omitempty"`

	// Occurrences is the explicit occurrence set. Events defined by a
	// recurrence rule instead carry RecurrenceRule plus one template
	// occurrence supplying the start time and duration.
	Occurrences    []Occurrence `json:"occurrence_set"`
	RecurrenceRule string       `json:"rrule,omitempty"`

	LocatedAtArt  string `json:"located_at_art,omitempty"`
	HostedByCamp  string `json:"hosted_by_camp,omitempty"`
	OtherLocation string `json:"other_location,omitempty"`

	URL          string `json:"url,omitempty"`
	ContactEmail string `json:"contact_email,omitempty"`
	AllDay       bool   `json:"all_day,omitempty"`
}

// EventType labels an event category; Abbr is the short code filters match
// against.
type EventType struct {
	Label string `json:"label"`
	Abbr  string `json:"abbr"`
}

// Occurrence keeps the dataset's raw timestamp strings. Unparseable
// occurrences are silently skipped during processing, and the raw start
// string participates in the composite ProcessedEvent ID, so the original
// text is preserved here rather than parsed eagerly.
type Occurrence struct {
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

// ArtInstallation is a placed art piece. Its surveyed GPS location, when
// present, is the most trusted location source for events held at it.
type ArtInstallation struct {
	UID            string       `json:"uid"`
	Name           string       `json:"name"`
	Year           int          `json:"year,omitempty"`
	LocationString string       `json:"location_string,omitempty"`
	Location       *ArtLocation `json:"location,omitempty"`
}

// ArtLocation carries the surveyed placement of an installation. GPS
// fields are pointers because unplaced pieces ship without them.
type ArtLocation struct {
	GPSLatitude  *float64 `json:"gps_latitude,omitempty"`
	GPSLongitude *float64 `json:"gps_longitude,omitempty"`
	String       string   `json:"string,omitempty"`
}

// Camp is a theme camp; its address string is geocoded on demand.
type Camp struct {
	UID            string `json:"uid"`
	Name           string `json:"name"`
	Year           int    `json:"year,omitempty"`
	LocationString string `json:"location_string,omitempty"`
}

// EventStatus classifies one occurrence against a reference time. The
// numeric order doubles as the default sort priority.
type EventStatus int

const (
	StatusNow EventStatus = iota
	StatusSoon
	StatusUpcoming
	StatusEnded
)

var statusNames = map[EventStatus]string{
	StatusNow:      "now",
	StatusSoon:     "soon",
	StatusUpcoming: "upcoming",
	StatusEnded:    "ended",
}

func (s EventStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON renders the status as its lowercase name.
func (s EventStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts the lowercase name form produced by MarshalJSON.
func (s *EventStatus) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return err
	}
	for status, n := range statusNames {
		if n == name {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("unknown event status %q", name)
}

// ProcessedEvent is the ephemeral, display-ready record for one
// (event, occurrence) pair. It is rebuilt on every processing pass and
// never persisted.
type ProcessedEvent struct {
	// ID is a deterministic composite of the event UID and the raw
	// occurrence start string; it is stable across runs and used for
	// favorite matching and dedup.
	ID       string `json:"id"`
	EventUID string `json:"event_uid"`

	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type,omitempty"`
	TypeAbbr    string `json:"type_abbr"`

	Start  time.Time   `json:"start"`
	End    time.Time   `json:"end"`
	Status EventStatus `json:"status"`
	AllDay bool        `json:"all_day,omitempty"`

	// TimeLabel is a human phrase for the occurrence's temporal position,
	// e.g. "in 45m" or "ends in 2h 10m".
	TimeLabel string `json:"time_label"`

	DistanceMeters *float64        `json:"distance_meters"`
	Coordinate     *geo.Coordinate `json:"coordinate"`
	LocationLabel  string          `json:"location_label"`
	LocationSource string          `json:"location_source"`

	IsRecurring bool `json:"is_recurring"`
	// FutureOccurrenceDays is a comma-joined list of weekday abbreviations
	// for this event's other still-upcoming occurrences, in week order
	// starting Sunday.
	FutureOccurrenceDays string `json:"future_occurrence_days,omitempty"`

	URL          string `json:"url,omitempty"`
	ContactEmail string `json:"contact_email,omitempty"`
}

// FavoriteEvent is the serializable snapshot stored when a user favorites
// an occurrence. The store owns persistence; processing only consumes the
// set of favorited IDs.
type FavoriteEvent struct {
	ID            string    `json:"id"`
	EventUID      string    `json:"event_uid"`
	Title         string    `json:"title"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	Type          string    `json:"type,omitempty"`
	TypeAbbr      string    `json:"type_abbr,omitempty"`
	LocationLabel string    `json:"location_label,omitempty"`
	AddedAt       time.Time `json:"added_at"`
}
