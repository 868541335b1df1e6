package dataset

import (
	"fmt"
	"strings"
)

// SchemaMismatchError reports expected columns absent from a dataset header.
type SchemaMismatchError struct {
	Missing []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("dataset schema mismatch: missing columns %s", strings.Join(e.Missing, ", "))
}

// MissingFeatureError reports a required column absent from an input record.
type MissingFeatureError struct {
	Column string
}

func (e *MissingFeatureError) Error() string {
	return fmt.Sprintf("missing feature %q", e.Column)
}

// InvalidValueError reports a value that cannot be converted to its field's type.
type InvalidValueError struct {
	Column string
	Value  any
	Reason string
}

func (e *InvalidValueError) Error() string {
	return fmt.Sprintf("invalid value %v for %s: %s", e.Value, e.Column, e.Reason)
}
