// Package sheet reads spreadsheet files into tables and writes tables back
// out for download.
//
// Supported inputs are Excel workbooks (.xlsx, .xlsm) and CSV. Workbooks keep
// cell types (numbers, booleans, dates); CSV cells are text. The first row
// is the header in both cases.
package sheet

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/JonMunkholm/sheetdiff/internal/table"
)

// Errors returned by Load. Callers match them with errors.Is.
var (
	ErrUnsupportedFormat = errors.New("unsupported file format")
	ErrEmptyFile         = errors.New("empty file")
	ErrNoSheet           = errors.New("no sheet found")
	ErrFileTooLarge      = errors.New("file too large")
)

// DefaultMaxBytes caps how much of an input is read when Loader.MaxBytes is unset.
const DefaultMaxBytes = 100 << 20

// zipMagic starts every xlsx file.
var zipMagic = []byte("PK\x03\x04")

// Loader parses uploaded files into tables. The zero value reads the first
// sheet of a workbook and caps input at DefaultMaxBytes.
type Loader struct {
	// Sheet selects a worksheet by name. Empty means the first sheet.
	Sheet string
	// MaxBytes caps the input size. Zero means DefaultMaxBytes.
	MaxBytes int64
}

// Load reads name's content from r. The format is chosen from the file
// extension; files without one are sniffed.
func (l Loader) Load(name string, r io.Reader) (table.Table, error) {
	data, err := l.readAll(r)
	if err != nil {
		return table.Table{}, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return table.Table{}, ErrEmptyFile
	}

	switch detectFormat(name, data) {
	case FormatXLSX:
		return readXLSX(data, l.Sheet)
	case FormatCSV:
		return readCSV(data)
	default:
		return table.Table{}, fmt.Errorf("%w: %q", ErrUnsupportedFormat, filepath.Ext(name))
	}
}

func (l Loader) readAll(r io.Reader) ([]byte, error) {
	limit := l.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}

	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrFileTooLarge, limit)
	}
	return data, nil
}

func detectFormat(name string, data []byte) Format {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX
	case ".csv":
		return FormatCSV
	case "":
		if bytes.HasPrefix(data, zipMagic) {
			return FormatXLSX
		}
		return FormatCSV
	default:
		return ""
	}
}

// buildTable turns header and typed data rows into a table. Blank header
// cells, and columns that only appear in data rows, are named "Unnamed: N"
// by position.
func buildTable(header []string, rows []table.Row) table.Table {
	width := len(header)
	for _, r := range rows {
		width = max(width, len(r))
	}

	cols := make([]string, width)
	for i := range cols {
		if i < len(header) && strings.TrimSpace(header[i]) != "" {
			cols[i] = header[i]
		} else {
			cols[i] = "Unnamed: " + strconv.Itoa(i)
		}
	}

	out := make([]table.Row, len(rows))
	for i, r := range rows {
		row := make(table.Row, width)
		copy(row, r)
		out[i] = row
	}

	return table.Table{Columns: cols, Rows: trimTrailingEmpty(out)}
}

// trimTrailingEmpty drops all-empty rows at the end of the sheet.
func trimTrailingEmpty(rows []table.Row) []table.Row {
	n := len(rows)
	for n > 0 && rowEmpty(rows[n-1]) {
		n--
	}
	return rows[:n]
}

func rowEmpty(r table.Row) bool {
	for _, c := range r {
		if !c.IsEmpty() {
			return false
		}
	}
	return true
}
