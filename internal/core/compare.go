package core

// compare.go is the set-difference engine.
//
// Both tables are normalized, their schemas checked, and every row
// fingerprinted. The subset fingerprints go into a set; each reference row
// whose fingerprint is not in that set is reported. The work is linear in
// the total number of rows.
//
// Reported rows come from the original reference table, not the normalized
// copy, and keep their original order. A reference row that appears several
// times is reported once per occurrence.

import (
	"github.com/JonMunkholm/sheetdiff/internal/table"
)

// Report is the result of a comparison.
type Report struct {
	// Columns are the reference table's original column names.
	Columns []string `json:"columns"`
	// Rows are the original reference rows missing from the subset.
	Rows []table.Row `json:"rows"`
	// Indices are the reference row positions of Rows (0-based, data rows only).
	Indices []int `json:"indices"`
	// Count is len(Rows).
	Count int `json:"count"`

	ReferenceRows int `json:"reference_rows"`
	SubsetRows    int `json:"subset_rows"`
}

// Empty reports whether no rows are missing.
func (r *Report) Empty() bool {
	return r.Count == 0
}

// Table returns the missing rows as a table with the reference columns.
func (r *Report) Table() table.Table {
	return table.Table{Columns: r.Columns, Rows: r.Rows}
}

// FindMissing returns the indices of ref rows whose normalized content does
// not appear anywhere in sub, in ascending order.
func FindMissing(ref, sub table.Table) ([]int, error) {
	nref := Normalize(ref)
	nsub := Normalize(sub)

	if err := ValidateSchema(nref, nsub); err != nil {
		return nil, err
	}

	return missingIndices(FingerprintTable(nref), FingerprintTable(nsub)), nil
}

// Compare reports the rows of ref that are missing from sub.
//
// It returns a *SchemaMismatchError without a partial result when the
// normalized column sequences differ. ref and sub are not modified.
func Compare(ref, sub table.Table) (*Report, error) {
	idx, err := FindMissing(ref, sub)
	if err != nil {
		return nil, err
	}

	missing := ref.Select(idx)
	return &Report{
		Columns:       missing.Columns,
		Rows:          missing.Rows,
		Indices:       idx,
		Count:         len(idx),
		ReferenceRows: ref.Len(),
		SubsetRows:    sub.Len(),
	}, nil
}

// missingIndices returns positions in ref whose fingerprint is absent from sub.
func missingIndices(ref, sub []Fingerprint) []int {
	present := make(map[Fingerprint]struct{}, len(sub))
	for _, fp := range sub {
		present[fp] = struct{}{}
	}

	out := make([]int, 0)
	for i, fp := range ref {
		if _, ok := present[fp]; !ok {
			out = append(out, i)
		}
	}
	return out
}
