package geo

import "fmt"

// ParseError reports a clock, ring, or address string that does not match
// any known notation. Callers in the location resolution chain catch it and
// fall back to a label-only result.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("cannot parse %q: %s", e.Input, e.Reason)
}
