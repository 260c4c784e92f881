package venue

import (
	"playafind/internal/geo"
	"playafind/internal/geocode"
	"playafind/internal/model"
)

// Source names which rung of the fallback chain produced a location.
type Source string

const (
	SourceArt     Source = "art"
	SourceCamp    Source = "camp"
	SourceOther   Source = "other"
	SourceUnknown Source = "unknown"
)

// LocationInfo is the outcome of resolving an event's location. Coordinate
// is nil when only a label could be derived.
type LocationInfo struct {
	Coordinate *geo.Coordinate
	Label      string
	Source     Source
}

// locationResolver attempts one rung of the chain; ok=false passes the
// event to the next rung.
type locationResolver func(ix *Index, ev model.RawEvent) (LocationInfo, bool)

// locationChain is the total resolution priority: a linked art installation
// wins outright; otherwise the hosting camp; otherwise the free-text
// location. Keeping the order as data makes the precedence explicit and
// lets new sources slot in without touching the existing rungs.
var locationChain = []locationResolver{
	resolveArtLocation,
	resolveCampLocation,
	resolveOtherLocation,
}

// ResolveLocation runs the fallback chain for one event. Address parse
// failures inside a rung degrade that rung to a label-only result; they
// never propagate to the caller.
func (ix *Index) ResolveLocation(ev model.RawEvent) LocationInfo {
	for _, resolve := range locationChain {
		if info, ok := resolve(ix, ev); ok {
			return info
		}
	}
	return LocationInfo{Label: "Unknown location", Source: SourceUnknown}
}

func resolveArtLocation(ix *Index, ev model.RawEvent) (LocationInfo, bool) {
	if ev.LocatedAtArt == "" {
		return LocationInfo{}, false
	}
	art, ok := ix.Art(ev.LocatedAtArt)
	if !ok {
		// Dangling reference: treat as unresolved, not an error.
		return LocationInfo{}, false
	}

	info := LocationInfo{Label: art.Name, Source: SourceArt}
	if loc := art.Location; loc != nil && loc.GPSLatitude != nil && loc.GPSLongitude != nil {
		info.Coordinate = &geo.Coordinate{Lat: *loc.GPSLatitude, Lon: *loc.GPSLongitude}
	} else if art.LocationString != "" {
		if c, err := geocode.ResolveAddress(art.LocationString); err == nil {
			info.Coordinate = &c
		}
	}
	return info, true
}

func resolveCampLocation(ix *Index, ev model.RawEvent) (LocationInfo, bool) {
	if ev.HostedByCamp == "" {
		return LocationInfo{}, false
	}
	camp, ok := ix.Camp(ev.HostedByCamp)
	if !ok {
		return LocationInfo{}, false
	}

	info := LocationInfo{Label: camp.Name, Source: SourceCamp}
	if camp.LocationString != "" {
		// An unparseable camp address still yields the label-only result;
		// it does not fall through to the free-text rung.
		if c, err := geocode.ResolveAddress(camp.LocationString); err == nil {
			info.Coordinate = &c
		}
	}
	return info, true
}

func resolveOtherLocation(_ *Index, ev model.RawEvent) (LocationInfo, bool) {
	if ev.OtherLocation == "" {
		return LocationInfo{}, false
	}

	info := LocationInfo{Label: ev.OtherLocation, Source: SourceOther}
	if c, err := geocode.ResolveAddress(ev.OtherLocation); err == nil {
		info.Coordinate = &c
	}
	return info, true
}
