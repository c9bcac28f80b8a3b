package core

// normalize.go canonicalizes tables before comparison.
//
// Header names and cell values are trimmed and lowercased; empty cells become
// "". Cell text comes from table.Cell.Canonical, the one stringification rule
// used for both sides of a comparison, so a number on one side and the same
// digits typed as text on the other normalize identically.

import (
	"strings"

	"github.com/JonMunkholm/sheetdiff/internal/table"
)

// NormalizedTable is the canonical form of a table. Rows are index-aligned
// with the source table and every row has exactly len(Columns) values.
type NormalizedTable struct {
	Columns []string
	Rows    [][]string
}

// Len returns the number of rows.
func (n NormalizedTable) Len() int { return len(n.Rows) }

// Normalize returns the canonical form of t. t is not modified.
func Normalize(t table.Table) NormalizedTable {
	out := NormalizedTable{
		Columns: NormalizeColumns(t.Columns),
		Rows:    make([][]string, len(t.Rows)),
	}

	width := len(t.Columns)
	for i, row := range t.Rows {
		vals := make([]string, width)
		for j := 0; j < width; j++ {
			vals[j] = NormalizeCell(row.Get(j))
		}
		out.Rows[i] = vals
	}

	return out
}

// NormalizeColumns trims and lowercases column names.
func NormalizeColumns(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = normalizeText(c)
	}
	return out
}

// NormalizeCell returns the comparison form of a single cell.
func NormalizeCell(c table.Cell) string {
	if c.IsEmpty() {
		return ""
	}
	return normalizeText(c.Canonical())
}

func normalizeText(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
