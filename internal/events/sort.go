package events

import (
	"sort"

	"playafind/internal/model"
)

// SortStrategy names one of the supported orderings.
type SortStrategy string

const (
	SortDefault  SortStrategy = "default"
	SortDistance SortStrategy = "distance"
	SortTime     SortStrategy = "time"
	SortEnding   SortStrategy = "ending"
	SortType     SortStrategy = "type"
	SortTitle    SortStrategy = "title"
)

// Sort returns a new ordering of list under the given strategy; the input
// slice is left untouched. Every strategy ends in a start-time/ID tie-break
// so the ordering is a pure function of the list contents, not of the
// input order. Unknown strategies fall back to SortDefault.
func Sort(list []model.ProcessedEvent, strategy SortStrategy) []model.ProcessedEvent {
	out := make([]model.ProcessedEvent, len(list))
	copy(out, list)

	less := lessFunc(strategy)
	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func lessFunc(strategy SortStrategy) func(a, b model.ProcessedEvent) bool {
	switch strategy {
	case SortDistance:
		return lessByDistance
	case SortTime:
		return lessByStartThenID
	case SortEnding:
		return lessByEnding
	case SortType:
		return func(a, b model.ProcessedEvent) bool {
			if a.TypeAbbr != b.TypeAbbr {
				return a.TypeAbbr < b.TypeAbbr
			}
			return lessByStartThenID(a, b)
		}
	case SortTitle:
		return func(a, b model.ProcessedEvent) bool {
			if a.Title != b.Title {
				return a.Title < b.Title
			}
			return lessByStartThenID(a, b)
		}
	default:
		return lessByStatus
	}
}

func lessByStartThenID(a, b model.ProcessedEvent) bool {
	if !a.Start.Equal(b.Start) {
		return a.Start.Before(b.Start)
	}
	return a.ID < b.ID
}

// lessByDistance orders ascending by distance; records with no resolvable
// distance sort after everything else.
func lessByDistance(a, b model.ProcessedEvent) bool {
	switch {
	case a.DistanceMeters == nil && b.DistanceMeters == nil:
		return lessByStartThenID(a, b)
	case a.DistanceMeters == nil:
		return false
	case b.DistanceMeters == nil:
		return true
	case *a.DistanceMeters != *b.DistanceMeters:
		return *a.DistanceMeters < *b.DistanceMeters
	default:
		return lessByStartThenID(a, b)
	}
}

// lessByEnding puts active events first, soonest-ending leading; the rest
// follow ascending by start.
func lessByEnding(a, b model.ProcessedEvent) bool {
	aNow := a.Status == model.StatusNow
	bNow := b.Status == model.StatusNow
	if aNow != bNow {
		return aNow
	}
	if aNow {
		if !a.End.Equal(b.End) {
			return a.End.Before(b.End)
		}
		return a.ID < b.ID
	}
	return lessByStartThenID(a, b)
}

// lessByStatus is the default order: now < soon < upcoming < ended, with
// active events ordered by how soon they end and the rest by start.
func lessByStatus(a, b model.ProcessedEvent) bool {
	if a.Status != b.Status {
		return a.Status < b.Status
	}
	if a.Status == model.StatusNow {
		if !a.End.Equal(b.End) {
			return a.End.Before(b.End)
		}
		return a.ID < b.ID
	}
	return lessByStartThenID(a, b)
}
