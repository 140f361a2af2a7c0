package analysis

import (
	"errors"
	"fmt"
)

// ErrEmptySeries is returned when an analysis is started without any frame
// records.
var ErrEmptySeries = errors.New("analysis: no frame records supplied")

// MalformedRecordError reports the first record that failed validation.
// Index is the record's position in the supplied (arrival) order.
type MalformedRecordError struct {
	Index  int
	Field  string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("analysis: malformed frame record %d: %s %s", e.Index, e.Field, e.Reason)
}

type OptionsError struct {
	Option string
	Reason string
}

func (e *OptionsError) Error() string {
	return fmt.Sprintf("analysis: invalid option %s: %s", e.Option, e.Reason)
}
