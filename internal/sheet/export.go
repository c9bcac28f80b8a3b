package sheet

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/sheetdiff/internal/table"
)

// Format is an export file format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
)

// DefaultExportName is the base name offered for downloads.
const DefaultExportName = "missing_rows"

// exportSheet is the worksheet name written to xlsx exports.
const exportSheet = "Sheet1"

// ParseFormat maps a user-supplied format name to a Format. Empty means xlsx.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "xlsx", "excel":
		return FormatXLSX, nil
	case "csv":
		return FormatCSV, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

// MIMEType returns the content type for downloads.
func (f Format) MIMEType() string {
	switch f {
	case FormatCSV:
		return "text/csv; charset=utf-8"
	default:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
}

// FileName returns base with the format's extension.
func (f Format) FileName(base string) string {
	if base == "" {
		base = DefaultExportName
	}
	if f == "" {
		f = FormatXLSX
	}
	return base + "." + string(f)
}

// Export writes t to w in the given format. Cell values keep their types in
// xlsx output; CSV output uses each cell's canonical text.
func Export(w io.Writer, t table.Table, format Format) error {
	switch format {
	case FormatXLSX, "":
		return writeXLSX(w, t)
	case FormatCSV:
		return writeCSV(w, t)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
}

func writeXLSX(w io.Writer, t table.Table) error {
	f := excelize.NewFile()
	defer f.Close()

	if len(t.Columns) > 0 {
		header := make([]any, len(t.Columns))
		for i, c := range t.Columns {
			header[i] = c
		}
		if err := f.SetSheetRow(exportSheet, "A1", &header); err != nil {
			return fmt.Errorf("write header: %w", err)
		}

		headerStyle, err := f.NewStyle(&excelize.Style{
			Font: &excelize.Font{Bold: true},
		})
		if err != nil {
			return fmt.Errorf("create header style: %w", err)
		}
		last, err := excelize.CoordinatesToCellName(len(t.Columns), 1)
		if err != nil {
			return err
		}
		if err := f.SetCellStyle(exportSheet, "A1", last, headerStyle); err != nil {
			return fmt.Errorf("style header: %w", err)
		}
	}

	width := len(t.Columns)
	for i, r := range t.Rows {
		vals := make([]any, width)
		for j := range vals {
			vals[j] = r.Get(j).Value()
		}

		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(exportSheet, cell, &vals); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeCSV(w io.Writer, t table.Table) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	rec := make([]string, len(t.Columns))
	for i, r := range t.Rows {
		for j := range rec {
			rec[j] = r.Get(j).Canonical()
		}
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write row %d: %w", i+1, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
