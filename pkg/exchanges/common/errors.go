package common

import (
	"errors"
	"fmt"
)

// Error is a venue failure with enough classification for the execution
// layer to decide between retry and surfacing. Temporary marks failures the
// venue itself reports as transient (busy, timeout, overloaded matching
// engine); those are retryable results, not faults.
type Error struct {
	Op        string // venue operation, e.g. "submit order"
	Code      int    // venue error code, 0 when unknown
	Message   string
	Temporary bool
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("%s: code %d: %s", e.Op, e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// IsTemporary reports whether err (anywhere in its chain) is a venue
// failure flagged as transient.
func IsTemporary(err error) bool {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Temporary
	}
	return false
}
