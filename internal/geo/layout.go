package geo

import (
	"math"
	"strconv"
	"strings"
)

// Layout constants for the current street plan. The survey data is in feet;
// everything is converted to meters through feetToMeters exactly once.
// Changing any of these changes every computed coordinate.
const (
	// CityRotationDegrees aligns the clock face to true north: the 12:00
	// axis points at this compass bearing.
	CityRotationDegrees = 45.0

	esplanadeRadiusFeet   = 2500.0
	innerBlockDepthFeet   = 400.0 // Esplanade out to the A ring
	regularBlockDepthFeet = 250.0 // every ring past A
	streetWidthFeet       = 40.0

	feetToMeters = 0.3048
)

// EsplanadeRing is the name of the innermost ring, the only one not named
// by a single letter.
const EsplanadeRing = "ESPLANADE"

// Origin is the surveyed center point of the city, from which all radial
// addresses are projected.
var Origin = Coordinate{Lat: 40.786958, Lon: -119.202994}

// ringNames lists the lettered rings from innermost to outermost.
var ringNames = []string{"A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "K"}

func blockDepthFeet(index int) float64 {
	if index == 0 {
		return innerBlockDepthFeet
	}
	return regularBlockDepthFeet
}

// RadiusForRing returns the distance in meters from the city center to the
// centerline of the named ring street. The radius accumulates outward from
// the Esplanade's outer edge: each ring contributes its block depth plus its
// full street width, except the target ring, which contributes half its
// width (we aim for the middle of the street).
func RadiusForRing(name string) (float64, error) {
	key := strings.ToUpper(strings.TrimSpace(name))
	if key == "" {
		return 0, &ParseError{Input: name, Reason: "empty ring name"}
	}
	if key == EsplanadeRing {
		return esplanadeRadiusFeet * feetToMeters, nil
	}

	target := -1
	for i, r := range ringNames {
		if r == key {
			target = i
			break
		}
	}
	if target < 0 {
		return 0, &ParseError{Input: name, Reason: "unknown ring name"}
	}

	radius := esplanadeRadiusFeet
	for i := 0; i <= target; i++ {
		radius += blockDepthFeet(i)
		if i < target {
			radius += streetWidthFeet
		} else {
			radius += streetWidthFeet / 2
		}
	}
	return radius * feetToMeters, nil
}

// BearingFromClock converts clock notation into a compass bearing in
// [0, 360). Accepted forms:
//
//   - "H" or "HH"      whole hours ("6", "12")
//   - "H:MM"           hours and minutes ("7:30")
//   - "HMM" / "HHMM"   3-4 digits, last two are minutes ("730", "1145")
//   - decimal hours    fraction of an hour ("6.5" meaning 6:30)
//
// Hour 12 normalizes to 0; the city rotation offset is applied before the
// final mod 360.
func BearingFromClock(notation string) (float64, error) {
	s := strings.TrimSpace(notation)
	if s == "" {
		return 0, &ParseError{Input: notation, Reason: "empty clock notation"}
	}

	hours, err := clockToHours(s)
	if err != nil {
		return 0, err
	}

	deg := math.Mod(hours*30+CityRotationDegrees, 360)
	if deg < 0 {
		deg += 360
	}
	return deg, nil
}

// clockToHours parses the supported clock forms into fractional hours in
// [0, 12), normalizing hour 12 to 0.
func clockToHours(s string) (float64, error) {
	if i := strings.IndexByte(s, ':'); i >= 0 {
		hour, err1 := strconv.Atoi(s[:i])
		minute, err2 := strconv.Atoi(s[i+1:])
		if err1 != nil || err2 != nil {
			return 0, &ParseError{Input: s, Reason: "malformed H:MM notation"}
		}
		return hoursFromParts(s, hour, minute)
	}

	if isDigits(s) {
		switch len(s) {
		case 1, 2:
			hour, _ := strconv.Atoi(s)
			return hoursFromParts(s, hour, 0)
		case 3, 4:
			// Last two digits are minutes.
			hour, _ := strconv.Atoi(s[:len(s)-2])
			minute, _ := strconv.Atoi(s[len(s)-2:])
			return hoursFromParts(s, hour, minute)
		default:
			return 0, &ParseError{Input: s, Reason: "too many digits for clock notation"}
		}
	}

	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if f < 0 || f > 12 {
			return 0, &ParseError{Input: s, Reason: "decimal hour out of range"}
		}
		return math.Mod(f, 12), nil
	}

	return 0, &ParseError{Input: s, Reason: "unrecognized clock notation"}
}

func hoursFromParts(input string, hour, minute int) (float64, error) {
	if hour < 0 || hour > 12 {
		return 0, &ParseError{Input: input, Reason: "hour out of range"}
	}
	if minute < 0 || minute > 59 {
		return 0, &ParseError{Input: input, Reason: "minute out of range"}
	}
	if hour == 12 {
		hour = 0
	}
	return float64(hour) + float64(minute)/60, nil
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
