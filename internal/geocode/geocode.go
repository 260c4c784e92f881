// Package geocode resolves the city's radial street addresses into GPS
// coordinates. Four grammars are recognized, tried in a fixed order:
// the named central plaza, ring plazas, portals, and plain intersections.
package geocode

import (
	"regexp"
	"strings"

	"playafind/internal/geo"
)

// centerCampKeyword marks the well-known central plaza, which has a fixed
// position at the 6:00 bearing on the Esplanade.
const centerCampKeyword = "center camp"

var (
	ringPlazaRe = regexp.MustCompile(`(?i)^([A-K])\s+Plaza\s*@\s*(\S+)$`)
	portalRe    = regexp.MustCompile(`(?i)^(\S+)\s+Portal$`)
	clockRe     = regexp.MustCompile(`^(?:\d{1,2}:\d{2}|\d{1,4}|\d+\.\d+)$`)
	letterRe    = regexp.MustCompile(`^[A-Za-z]$`)
)

// strategy is one rung of the grammar chain. It reports ok=false to pass
// the address to the next strategy; a non-nil error stops the chain.
type strategy struct {
	name    string
	resolve func(addr string) (geo.Coordinate, bool, error)
}

// strategies run in precedence order. Plaza forms go before the portal
// form, and both before the generic two-token splitter, so strings like
// "B Plaza @ 7:30" are never mis-read as intersections and "9:00 Portal"
// is claimed before the splitter sees it.
var strategies = []strategy{
	{name: "center-plaza", resolve: resolveCenterPlaza},
	{name: "ring-plaza", resolve: resolveRingPlaza},
	{name: "portal", resolve: resolvePortal},
	{name: "intersection", resolve: resolveIntersection},
}

// ResolveAddress converts an address string into a coordinate. It returns a
// *geo.ParseError when no grammar matches or a matched grammar carries
// malformed clock or ring notation.
func ResolveAddress(addr string) (geo.Coordinate, error) {
	trimmed := strings.TrimSpace(addr)
	if trimmed == "" {
		return geo.Coordinate{}, &geo.ParseError{Input: addr, Reason: "empty address"}
	}

	for _, s := range strategies {
		c, ok, err := s.resolve(trimmed)
		if err != nil {
			return geo.Coordinate{}, err
		}
		if ok {
			return c, nil
		}
	}

	return geo.Coordinate{}, &geo.ParseError{Input: addr, Reason: "unrecognized address format"}
}

// project composes the two math primitives: bearing from the clock token,
// radius from the ring token, projected from the city origin.
func project(clock, ring string) (geo.Coordinate, error) {
	bearing, err := geo.BearingFromClock(clock)
	if err != nil {
		return geo.Coordinate{}, err
	}
	radius, err := geo.RadiusForRing(ring)
	if err != nil {
		return geo.Coordinate{}, err
	}
	return geo.DestinationPoint(geo.Origin, radius, bearing), nil
}

func resolveCenterPlaza(addr string) (geo.Coordinate, bool, error) {
	if !strings.Contains(strings.ToLower(addr), centerCampKeyword) {
		return geo.Coordinate{}, false, nil
	}
	c, err := project("6:00", geo.EsplanadeRing)
	if err != nil {
		return geo.Coordinate{}, false, err
	}
	return c, true, nil
}

func resolveRingPlaza(addr string) (geo.Coordinate, bool, error) {
	m := ringPlazaRe.FindStringSubmatch(addr)
	if m == nil {
		return geo.Coordinate{}, false, nil
	}
	c, err := project(m[2], m[1])
	if err != nil {
		return geo.Coordinate{}, false, err
	}
	return c, true, nil
}

func resolvePortal(addr string) (geo.Coordinate, bool, error) {
	if strings.Contains(addr, "&") {
		return geo.Coordinate{}, false, nil
	}
	m := portalRe.FindStringSubmatch(addr)
	if m == nil || !clockRe.MatchString(m[1]) {
		return geo.Coordinate{}, false, nil
	}
	c, err := project(m[1], geo.EsplanadeRing)
	if err != nil {
		return geo.Coordinate{}, false, err
	}
	return c, true, nil
}

func resolveIntersection(addr string) (geo.Coordinate, bool, error) {
	parts := strings.Split(addr, "&")
	if len(parts) != 2 {
		return geo.Coordinate{}, false, nil
	}

	a := strings.TrimSpace(parts[0])
	b := strings.TrimSpace(parts[1])

	// Exactly one token must be clock-like; the other must name a ring.
	// Token order is free: "6:00 & D" and "D & 6:00" are the same corner.
	var clock, ring string
	switch {
	case looksLikeClock(a) && looksLikeRing(b):
		clock, ring = a, b
	case looksLikeClock(b) && looksLikeRing(a):
		clock, ring = b, a
	default:
		return geo.Coordinate{}, false, nil
	}

	c, err := project(clock, ring)
	if err != nil {
		return geo.Coordinate{}, false, err
	}
	return c, true, nil
}

func looksLikeClock(token string) bool {
	return clockRe.MatchString(token)
}

func looksLikeRing(token string) bool {
	return letterRe.MatchString(token) || strings.EqualFold(token, geo.EsplanadeRing)
}
