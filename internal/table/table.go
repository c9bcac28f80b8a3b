package table

// Row is an ordered sequence of cells aligned with Table.Columns.
type Row []Cell

// Get returns the cell at position i, or an Empty cell when the row is
// shorter than i+1. Ragged rows are common in CSV exports.
func (r Row) Get(i int) Cell {
	if i < 0 || i >= len(r) {
		return EmptyCell()
	}
	return r[i]
}

// Table is an ordered set of rows sharing one column sequence. The column
// sequence is fixed when the table is loaded.
type Table struct {
	Columns []string
	Rows    []Row
}

// New builds a table from column names and rows.
func New(columns []string, rows ...Row) Table {
	return Table{Columns: columns, Rows: rows}
}

// Len returns the number of data rows.
func (t Table) Len() int { return len(t.Rows) }

// Width returns the number of columns.
func (t Table) Width() int { return len(t.Columns) }

// Clone returns a deep copy of t. Cells are values, so copying the row
// slices is enough.
func (t Table) Clone() Table {
	out := Table{
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([]Row, len(t.Rows)),
	}
	for i, r := range t.Rows {
		out.Rows[i] = append(Row(nil), r...)
	}
	return out
}

// Select returns a new table with the same columns holding the rows at the
// given indices, in the order given. Indices may repeat.
func (t Table) Select(indices []int) Table {
	out := Table{
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([]Row, 0, len(indices)),
	}
	for _, i := range indices {
		out.Rows = append(out.Rows, append(Row(nil), t.Rows[i]...))
	}
	return out
}
