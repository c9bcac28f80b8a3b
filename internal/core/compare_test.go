package core

import (
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/JonMunkholm/sheetdiff/internal/table"
)

func text(vals ...string) table.Row {
	r := make(table.Row, len(vals))
	for i, v := range vals {
		if v == "" {
			r[i] = table.EmptyCell()
		} else {
			r[i] = table.TextCell(v)
		}
	}
	return r
}

func rowTexts(rows []table.Row) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		vals := make([]string, len(r))
		for j, c := range r {
			vals[j] = c.Canonical()
		}
		out[i] = vals
	}
	return out
}

func TestCompare_MissingRowsInOriginalForm(t *testing.T) {
	ref := table.New([]string{"Name", "City"},
		text("Alice ", "Paris"),
		text("Bob", "Berlin"),
		text("Carol", "Rome"),
	)
	sub := table.New([]string{" name", "CITY "},
		text("alice", "PARIS"),
		text("carol", "rome"),
	)

	report, err := Compare(ref, sub)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}

	if report.Count != 1 {
		t.Fatalf("Count = %d, want 1", report.Count)
	}
	if !reflect.DeepEqual(report.Columns, []string{"Name", "City"}) {
		t.Errorf("Columns = %v, want original reference names", report.Columns)
	}
	if got := rowTexts(report.Rows); !reflect.DeepEqual(got, [][]string{{"Bob", "Berlin"}}) {
		t.Errorf("Rows = %v", got)
	}
	if !reflect.DeepEqual(report.Indices, []int{1}) {
		t.Errorf("Indices = %v, want [1]", report.Indices)
	}
	if report.ReferenceRows != 3 || report.SubsetRows != 2 {
		t.Errorf("row counts = %d/%d, want 3/2", report.ReferenceRows, report.SubsetRows)
	}
}

func TestCompare_CaseAndWhitespaceInsensitive(t *testing.T) {
	ref := table.New([]string{"Name"}, text("Alice "))
	sub := table.New([]string{"name"}, text("alice"))

	report, err := Compare(ref, sub)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if !report.Empty() {
		t.Errorf("expected no missing rows, got %v", rowTexts(report.Rows))
	}
}

func TestCompare_ColumnOrderMismatch(t *testing.T) {
	ref := table.New([]string{"a", "b"}, text("1", "2"))
	sub := table.New([]string{"b", "a"}, text("2", "1"))

	report, err := Compare(ref, sub)
	if report != nil {
		t.Errorf("expected no report on schema mismatch, got %+v", report)
	}

	var sm *SchemaMismatchError
	if !errors.As(err, &sm) {
		t.Fatalf("Compare() error = %v, want *SchemaMismatchError", err)
	}
	if !reflect.DeepEqual(sm.ReferenceColumns, []string{"a", "b"}) ||
		!reflect.DeepEqual(sm.SubsetColumns, []string{"b", "a"}) {
		t.Errorf("mismatch columns = %v / %v", sm.ReferenceColumns, sm.SubsetColumns)
	}
}

func TestCompare_EmptySubsetReturnsAllRows(t *testing.T) {
	ref := table.New([]string{"id", "v"},
		text("1", "x"),
		text("2", "y"),
		text("3", "z"),
	)
	sub := table.New([]string{"ID", "V"})

	report, err := Compare(ref, sub)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if got := rowTexts(report.Rows); !reflect.DeepEqual(got, rowTexts(ref.Rows)) {
		t.Errorf("Rows = %v, want entire reference in order", got)
	}
}

func TestCompare_EmptyReference(t *testing.T) {
	ref := table.New([]string{"id"})
	sub := table.New([]string{"id"}, text("1"))

	report, err := Compare(ref, sub)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if report.Count != 0 || len(report.Rows) != 0 {
		t.Errorf("expected empty report, got %+v", report)
	}
	if report.Rows == nil || report.Indices == nil {
		t.Error("empty report should carry non-nil slices for encoding")
	}
}

func TestCompare_IdenticalTables(t *testing.T) {
	ref := table.New([]string{"a", "b"},
		text("1", "2"),
		text("3", ""),
	)

	report, err := Compare(ref, ref.Clone())
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if !report.Empty() {
		t.Errorf("expected empty result, got %v", rowTexts(report.Rows))
	}
}

func TestCompare_DuplicatesKept(t *testing.T) {
	ref := table.New([]string{"a"},
		text("dup"),
		text("other"),
		text("Dup "),
	)
	sub := table.New([]string{"a"}, text("other"))

	report, err := Compare(ref, sub)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}

	want := [][]string{{"dup"}, {"Dup "}}
	if got := rowTexts(report.Rows); !reflect.DeepEqual(got, want) {
		t.Errorf("Rows = %v, want %v", got, want)
	}
	if !reflect.DeepEqual(report.Indices, []int{0, 2}) {
		t.Errorf("Indices = %v, want [0 2]", report.Indices)
	}
}

func TestCompare_DuplicatePresentInSubsetRemovesAllOccurrences(t *testing.T) {
	ref := table.New([]string{"a"}, text("x"), text("x"), text("y"))
	sub := table.New([]string{"a"}, text("x"))

	report, err := Compare(ref, sub)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if !reflect.DeepEqual(report.Indices, []int{2}) {
		t.Errorf("Indices = %v, want [2]", report.Indices)
	}
}

func TestCompare_MixedTypesNormalizeTogether(t *testing.T) {
	joined := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	ref := table.New([]string{"id", "active", "joined", "note"},
		table.Row{table.NumberCell(123), table.BoolCell(true), table.TimeCell(joined), table.EmptyCell()},
		table.Row{table.NumberCell(4.5), table.BoolCell(false), table.EmptyCell(), table.TextCell("x")},
	)
	sub := table.New([]string{"ID", "Active", "Joined", "Note"},
		text("123", "TRUE", "2024-01-15 00:00:00", ""),
		text("4.50", "false", "", "x"),
	)

	report, err := Compare(ref, sub)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}

	// "4.50" as text is not the number 4.5's canonical "4.5".
	if !reflect.DeepEqual(report.Indices, []int{1}) {
		t.Errorf("Indices = %v, want [1]", report.Indices)
	}
}

func TestCompare_Idempotent(t *testing.T) {
	ref := table.New([]string{"a", "b"},
		text("1", "x"),
		text("2", "y"),
		text("1", "x"),
		text("3", "z"),
	)
	sub := table.New([]string{"a", "b"}, text("2", "Y"))

	first, err := Compare(ref, sub)
	if err != nil {
		t.Fatalf("first Compare() error = %v", err)
	}
	second, err := Compare(ref, sub)
	if err != nil {
		t.Fatalf("second Compare() error = %v", err)
	}

	if !reflect.DeepEqual(first.Indices, second.Indices) ||
		!reflect.DeepEqual(rowTexts(first.Rows), rowTexts(second.Rows)) {
		t.Errorf("results differ: %v vs %v", first.Indices, second.Indices)
	}
}

func TestCompare_DoesNotMutateInputs(t *testing.T) {
	ref := table.New([]string{" Name "}, text(" Alice "), text("Bob"))
	sub := table.New([]string{"name"}, text("bob"))
	refBefore := ref.Clone()
	subBefore := sub.Clone()

	report, err := Compare(ref, sub)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	report.Rows[0][0] = table.TextCell("mutated")

	if !reflect.DeepEqual(ref, refBefore) || !reflect.DeepEqual(sub, subBefore) {
		t.Error("Compare() modified its inputs")
	}
}

func TestCompare_RaggedRows(t *testing.T) {
	ref := table.New([]string{"a", "b"}, text("1"))
	sub := table.New([]string{"a", "b"}, text("1", ""))

	report, err := Compare(ref, sub)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}
	if !report.Empty() {
		t.Error("short row should equal a row padded with empty cells")
	}
}

// TestCompare_Multiplicity checks that every reference row absent from the
// subset appears exactly as often as in the reference.
func TestCompare_Multiplicity(t *testing.T) {
	vals := []string{"a", "b", "a", "c", "b", "a", "d"}
	ref := table.New([]string{"k"})
	for _, v := range vals {
		ref.Rows = append(ref.Rows, text(v))
	}
	sub := table.New([]string{"k"}, text("b"), text("d"))

	report, err := Compare(ref, sub)
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}

	counts := map[string]int{}
	for _, r := range report.Rows {
		counts[r[0].Text()]++
	}
	if counts["a"] != 3 || counts["c"] != 1 || counts["b"] != 0 || counts["d"] != 0 {
		t.Errorf("counts = %v", counts)
	}

	for i := 1; i < len(report.Indices); i++ {
		if report.Indices[i] <= report.Indices[i-1] {
			t.Fatalf("indices not ascending: %v", report.Indices)
		}
	}
}

func TestFindMissing(t *testing.T) {
	ref := table.New([]string{"x"}, text("1"), text("2"))
	sub := table.New([]string{"X"}, text("2"))

	idx, err := FindMissing(ref, sub)
	if err != nil {
		t.Fatalf("FindMissing() error = %v", err)
	}
	if !reflect.DeepEqual(idx, []int{0}) {
		t.Errorf("FindMissing() = %v, want [0]", idx)
	}

	if _, err := FindMissing(ref, table.New([]string{"y"})); !IsSchemaMismatch(err) {
		t.Errorf("FindMissing() error = %v, want schema mismatch", err)
	}
}

func TestReport_Table(t *testing.T) {
	ref := table.New([]string{"a"}, text("1"), text("2"))
	report, err := Compare(ref, table.New([]string{"a"}, text("2")))
	if err != nil {
		t.Fatalf("Compare() error = %v", err)
	}

	tbl := report.Table()
	if tbl.Len() != 1 || tbl.Columns[0] != "a" {
		t.Errorf("Table() = %+v", tbl)
	}
}
