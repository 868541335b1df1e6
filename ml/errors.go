package ml

import "fmt"

// UnknownCategoryError reports a label that was not observed when the
// encoder was fitted.
type UnknownCategoryError struct {
	Column string
	Label  string
	Known  []string
}

func (e *UnknownCategoryError) Error() string {
	return fmt.Sprintf("unknown category %q for %s (known: %v)", e.Label, e.Column, e.Known)
}

// DimensionMismatchError reports a feature vector whose width differs from
// the width a transform or model was fitted on.
type DimensionMismatchError struct {
	Expected int
	Got      int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d features, got %d", e.Expected, e.Got)
}
