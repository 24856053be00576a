package core

import (
	"errors"
	"fmt"
)

var (
	ErrDateFormat    = errors.New("unrecognized date format")
	ErrNumericFormat = errors.New("invalid numeric value")
	ErrArity         = errors.New("unexpected field count")
)

// DateFormatError aborts the normalization of one source.
type DateFormatError struct {
	Source SourceID
	Value  string
	Reason string
}

func (e *DateFormatError) Error() string {
	msg := fmt.Sprintf("%s: unrecognized date %q", e.Source, e.Value)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *DateFormatError) Unwrap() error {
	return ErrDateFormat
}

// NumericFormatError is a monetary cell that is neither empty nor a number.
type NumericFormatError struct {
	Source SourceID
	Field  string
	Value  string
}

func (e *NumericFormatError) Error() string {
	return fmt.Sprintf("%s: invalid %s amount %q", e.Source, e.Field, e.Value)
}

func (e *NumericFormatError) Unwrap() error {
	return ErrNumericFormat
}
