package timeutil

import "fmt"

// ParseError reports a malformed timestamp, date, time of day or offset.
type ParseError struct {
	Kind  string // "timestamp", "date", "time", "offset"
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("invalid %s %q", e.Kind, e.Input)
	}
	return fmt.Sprintf("invalid %s %q: %v", e.Kind, e.Input, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
