package sheet

// csv.go reads CSV uploads.
//
// Exports from spreadsheet tools often carry a UTF-8 BOM or stray non-UTF-8
// bytes; both are cleaned before parsing. Quotes are parsed lazily and rows
// may have different lengths.

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/JonMunkholm/sheetdiff/internal/table"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

func readCSV(data []byte) (table.Table, error) {
	data = sanitizeUTF8(bytes.TrimPrefix(data, utf8BOM))

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	records, err := r.ReadAll()
	if err != nil {
		return table.Table{}, fmt.Errorf("invalid csv: %w", err)
	}
	if len(records) == 0 {
		return table.Table{}, ErrEmptyFile
	}

	rows := make([]table.Row, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(table.Row, len(rec))
		for i, v := range rec {
			row[i] = csvCell(v)
		}
		rows = append(rows, row)
	}

	return buildTable(records[0], rows), nil
}

// csvCell maps a raw CSV field to a cell. Blank fields are Empty, the same
// way a blank workbook cell is.
func csvCell(v string) table.Cell {
	if strings.TrimSpace(v) == "" {
		return table.EmptyCell()
	}
	return table.TextCell(v)
}

// sanitizeUTF8 replaces invalid UTF-8 bytes with U+FFFD.
func sanitizeUTF8(data []byte) []byte {
	if utf8.Valid(data) {
		return data
	}

	var buf bytes.Buffer
	buf.Grow(len(data))

	for len(data) > 0 {
		r, size := utf8.DecodeRune(data)
		if r == utf8.RuneError && size == 1 {
			buf.WriteRune(utf8.RuneError)
		} else {
			buf.Write(data[:size])
		}
		data = data[size:]
	}

	return buf.Bytes()
}
