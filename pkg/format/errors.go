package format

import (
	"errors"
	"fmt"
)

// Sentinel error kinds for message format failures. Callers match with
// errors.Is; the concrete error is always a *FormatError carrying the
// record kind and the violated condition.
var (
	// ErrDataCorrupt indicates a CRC comparison failed or a record field
	// holds a value outside its legal range (e.g. a delete flag other than 0
	// or 1). Header invariant violations are reported as ErrHeaderConstraint.
	ErrDataCorrupt = errors.New("data corrupt")

	// ErrUnknownFormatVersion indicates the leading version tag of a record
	// does not match any registered generation.
	ErrUnknownFormatVersion = errors.New("unknown format version")

	// ErrHeaderConstraint indicates the header cross-field invariants were
	// violated, either at serialize time (caller bug) or at verify time
	// (corrupt or forged record).
	ErrHeaderConstraint = errors.New("header constraint violated")

	// ErrIO indicates an underlying stream failure, a truncated stream, or
	// an out-of-range declared size.
	ErrIO = errors.New("i/o failure")
)

// FormatError is the error type returned by every codec in this package.
type FormatError struct {
	Kind   error  // one of the sentinel kinds above
	Record string // record kind, e.g. "message header", "blob"
	Msg    string
	Err    error // underlying cause, if any
}

func (e *FormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Record, e.Msg, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Record, e.Msg)
}

func (e *FormatError) Is(target error) bool {
	return target == e.Kind
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// errf builds a *FormatError with a formatted message.
func errf(kind error, record, format string, args ...interface{}) error {
	return &FormatError{Kind: kind, Record: record, Msg: fmt.Sprintf(format, args...)}
}

// ioErr wraps an underlying stream error, preserving it for errors.Is/As.
func ioErr(record string, err error) error {
	return &FormatError{Kind: ErrIO, Record: record, Msg: "stream failure", Err: err}
}
