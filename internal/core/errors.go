package core

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors returned by the comparison service.
var (
	// ErrNoFile is returned when a comparison input is missing.
	ErrNoFile = errors.New("no file provided")
)

// ReadError reports that a table could not be loaded from its source.
// Comparison stops before any normalization happens.
type ReadError struct {
	Source string // File name or query label
	Err    error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Source, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// SchemaMismatchError reports that the normalized column sequences of the
// reference and subset tables differ.
type SchemaMismatchError struct {
	ReferenceColumns []string
	SubsetColumns    []string
}

func (e *SchemaMismatchError) Error() string {
	return fmt.Sprintf("schema mismatch: reference columns [%s], subset columns [%s]",
		strings.Join(e.ReferenceColumns, ", "),
		strings.Join(e.SubsetColumns, ", "),
	)
}

// IsSchemaMismatch reports whether err is or wraps a *SchemaMismatchError.
func IsSchemaMismatch(err error) bool {
	var sm *SchemaMismatchError
	return errors.As(err, &sm)
}

// IsReadError reports whether err is or wraps a *ReadError.
func IsReadError(err error) bool {
	var re *ReadError
	return errors.As(err, &re)
}
