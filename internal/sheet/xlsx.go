package sheet

// xlsx.go reads Excel workbooks with excelize.
//
// Raw cell values are read so numbers keep full precision regardless of the
// display format. Cell types decide the variant:
//
//   - boolean cells become Bool
//   - numeric cells become Number, or Time when the cell carries a date format
//   - ISO 8601 date cells become Time
//   - everything else non-blank is Text

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/JonMunkholm/sheetdiff/internal/table"
)

// isoDateLayouts are tried, in order, for cells stored with t="d".
var isoDateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

type xlsxReader struct {
	f        *excelize.File
	sheet    string
	date1904 bool

	// dateStyle caches whether a style index formats numbers as dates.
	dateStyle map[int]bool
}

func readXLSX(data []byte, sheet string) (table.Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return table.Table{}, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheet = f.GetSheetName(0)
		if sheet == "" {
			return table.Table{}, ErrNoSheet
		}
	} else if idx, err := f.GetSheetIndex(sheet); err != nil || idx < 0 {
		return table.Table{}, fmt.Errorf("%w: %q", ErrNoSheet, sheet)
	}

	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return table.Table{}, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(raw) == 0 {
		return table.Table{}, ErrEmptyFile
	}

	x := &xlsxReader{
		f:         f,
		sheet:     sheet,
		dateStyle: make(map[int]bool),
	}
	if props, err := f.GetWorkbookProps(); err == nil && props.Date1904 != nil {
		x.date1904 = *props.Date1904
	}

	rows := make([]table.Row, 0, len(raw)-1)
	for i, rec := range raw[1:] {
		row := make(table.Row, len(rec))
		for j, v := range rec {
			c, err := x.cell(j+1, i+2, v)
			if err != nil {
				return table.Table{}, err
			}
			row[j] = c
		}
		rows = append(rows, row)
	}

	return buildTable(raw[0], rows), nil
}

// cell converts the raw value at (col, row), both 1-based, to a typed cell.
func (x *xlsxReader) cell(col, row int, raw string) (table.Cell, error) {
	if strings.TrimSpace(raw) == "" {
		return table.EmptyCell(), nil
	}

	axis, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return table.Cell{}, err
	}

	typ, err := x.f.GetCellType(x.sheet, axis)
	if err != nil {
		return table.Cell{}, fmt.Errorf("cell %s: %w", axis, err)
	}

	switch typ {
	case excelize.CellTypeBool:
		return table.BoolCell(raw == "1" || strings.EqualFold(raw, "true")), nil

	case excelize.CellTypeNumber, excelize.CellTypeUnset:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return table.TextCell(raw), nil
		}
		if x.isDate(axis) {
			if t, err := excelize.ExcelDateToTime(v, x.date1904); err == nil {
				return table.TimeCell(t), nil
			}
		}
		return table.NumberCell(v), nil

	case excelize.CellTypeDate:
		for _, layout := range isoDateLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return table.TimeCell(t), nil
			}
		}
		return table.TextCell(raw), nil

	default:
		return table.TextCell(raw), nil
	}
}

// isDate reports whether the number format applied to axis renders a date.
func (x *xlsxReader) isDate(axis string) bool {
	styleID, err := x.f.GetCellStyle(x.sheet, axis)
	if err != nil || styleID == 0 {
		return false
	}
	if v, ok := x.dateStyle[styleID]; ok {
		return v
	}

	var isDate bool
	if style, err := x.f.GetStyle(styleID); err == nil && style != nil {
		custom := ""
		if style.CustomNumFmt != nil {
			custom = *style.CustomNumFmt
		}
		isDate = isDateNumFmt(style.NumFmt, custom)
	}

	x.dateStyle[styleID] = isDate
	return isDate
}

// isDateNumFmt reports whether a built-in number format id or a custom
// format code renders dates or times.
func isDateNumFmt(id int, custom string) bool {
	if custom != "" {
		return isDateFormatCode(custom)
	}
	switch {
	case id >= 14 && id <= 22,
		id >= 27 && id <= 36,
		id >= 45 && id <= 47,
		id >= 50 && id <= 58:
		return true
	}
	return false
}

// isDateFormatCode scans a custom format code for date/time tokens, skipping
// quoted literals, escaped characters and bracketed sections such as colors
// and locales. Elapsed-time brackets ([h], [mm], [ss]) count as time.
func isDateFormatCode(code string) bool {
	// Only the positive section matters.
	if i := strings.IndexByte(code, ';'); i >= 0 {
		code = code[:i]
	}

	for i := 0; i < len(code); i++ {
		switch c := code[i]; c {
		case '"':
			j := strings.IndexByte(code[i+1:], '"')
			if j < 0 {
				return false
			}
			i += j + 1
		case '\\', '_', '*':
			i++
		case '[':
			j := strings.IndexByte(code[i+1:], ']')
			if j < 0 {
				return false
			}
			inner := strings.ToLower(code[i+1 : i+1+j])
			if strings.Trim(inner, "hms") == "" && inner != "" {
				return true
			}
			i += j + 1
		default:
			switch c | 0x20 {
			case 'y', 'm', 'd', 'h', 's':
				return true
			}
		}
	}
	return false
}
