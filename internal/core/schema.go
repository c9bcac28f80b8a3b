package core

// schema.go checks that two normalized tables share a column sequence.
//
// The check is order sensitive: [a, b] and [b, a] do not match. It runs
// before any fingerprinting, since fingerprints from different column
// layouts are not comparable.

import "slices"

// ValidateSchema returns a *SchemaMismatchError when the normalized column
// sequences of ref and sub differ in names or order.
func ValidateSchema(ref, sub NormalizedTable) error {
	if slices.Equal(ref.Columns, sub.Columns) {
		return nil
	}
	return &SchemaMismatchError{
		ReferenceColumns: append([]string(nil), ref.Columns...),
		SubsetColumns:    append([]string(nil), sub.Columns...),
	}
}

// SchemaDiff describes how two column sequences differ, for display.
type SchemaDiff struct {
	OnlyInReference []string `json:"only_in_reference"`
	OnlyInSubset    []string `json:"only_in_subset"`
	// FirstMismatch is the first position where the sequences differ,
	// or -1 when they are equal.
	FirstMismatch int `json:"first_mismatch"`
}

// Diff compares the two column sequences carried by the error.
func (e *SchemaMismatchError) Diff() SchemaDiff {
	d := SchemaDiff{
		OnlyInReference: missingFrom(e.ReferenceColumns, e.SubsetColumns),
		OnlyInSubset:    missingFrom(e.SubsetColumns, e.ReferenceColumns),
		FirstMismatch:   -1,
	}

	n := max(len(e.ReferenceColumns), len(e.SubsetColumns))
	for i := 0; i < n; i++ {
		if i >= len(e.ReferenceColumns) || i >= len(e.SubsetColumns) ||
			e.ReferenceColumns[i] != e.SubsetColumns[i] {
			d.FirstMismatch = i
			break
		}
	}

	return d
}

// missingFrom returns the names in a that do not appear in b, keeping a's order.
func missingFrom(a, b []string) []string {
	seen := make(map[string]struct{}, len(b))
	for _, s := range b {
		seen[s] = struct{}{}
	}
	var out []string
	for _, s := range a {
		if _, ok := seen[s]; !ok {
			out = append(out, s)
		}
	}
	return out
}
