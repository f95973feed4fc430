package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInputUnavailable means no batch could be found. The run aborts and no output is written.
	ErrInputUnavailable = errors.New("input unavailable")

	// ErrEmptyBatch means a batch was found but held no usable rows.
	ErrEmptyBatch = errors.New("empty batch")

	// ErrGeocodeTimeout marks a geocoding failure that is worth retrying.
	ErrGeocodeTimeout = errors.New("geocode timeout")
)

// MalformedRowError describes a source row that was skipped.
type MalformedRowError struct {
	Line   int
	Reason string
	Err    error
}

func (e *MalformedRowError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("line %d: %s: %v", e.Line, e.Reason, e.Err)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Reason)
}

func (e *MalformedRowError) Unwrap() error { return e.Err }

// EgressError reports a secondary sink that failed to accept a record set.
type EgressError struct {
	Sink string
	Err  error
}

func (e *EgressError) Error() string {
	return fmt.Sprintf("egress %s: %v", e.Sink, e.Err)
}

func (e *EgressError) Unwrap() error { return e.Err }
