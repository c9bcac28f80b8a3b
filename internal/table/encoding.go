package table

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// encodedTable is the wire form used by Encode and Decode. Every cell is a
// [kind, value] pair of strings so the kind survives the round trip.
type encodedTable struct {
	Columns []string      `json:"columns"`
	Rows    [][][2]string `json:"rows"`
}

// Kind tags used in the encoded form.
const (
	tagEmpty  = ""
	tagText   = "t"
	tagNumber = "n"
	tagBool   = "b"
	tagTime   = "d"
)

// Encode returns a JSON form of t that Decode turns back into an equal
// table, cell kinds included.
func Encode(t Table) ([]byte, error) {
	enc := encodedTable{
		Columns: t.Columns,
		Rows:    make([][][2]string, len(t.Rows)),
	}
	for i, r := range t.Rows {
		cells := make([][2]string, len(t.Columns))
		for j := range t.Columns {
			cells[j] = encodeCell(r.Get(j))
		}
		enc.Rows[i] = cells
	}
	return json.Marshal(enc)
}

// Decode parses the output of Encode. Rows longer than the header are
// rejected.
func Decode(data []byte) (Table, error) {
	var enc encodedTable
	if err := json.Unmarshal(data, &enc); err != nil {
		return Table{}, fmt.Errorf("decode table: %w", err)
	}
	if len(enc.Columns) == 0 {
		return Table{}, errors.New("decode table: no columns")
	}

	t := Table{Columns: enc.Columns, Rows: make([]Row, len(enc.Rows))}
	for i, cells := range enc.Rows {
		if len(cells) > len(enc.Columns) {
			return Table{}, fmt.Errorf("decode table: row %d has %d cells for %d columns", i+1, len(cells), len(enc.Columns))
		}
		row := make(Row, len(cells))
		for j, c := range cells {
			cell, err := decodeCell(c)
			if err != nil {
				return Table{}, fmt.Errorf("decode table: row %d column %d: %w", i+1, j+1, err)
			}
			row[j] = cell
		}
		t.Rows[i] = row
	}
	return t, nil
}

func encodeCell(c Cell) [2]string {
	switch c.kind {
	case Text:
		return [2]string{tagText, c.text}
	case Number:
		return [2]string{tagNumber, strconv.FormatFloat(c.num, 'g', -1, 64)}
	case Bool:
		return [2]string{tagBool, strconv.FormatBool(c.b)}
	case Time:
		return [2]string{tagTime, c.t.Format(time.RFC3339Nano)}
	default:
		return [2]string{tagEmpty, ""}
	}
}

func decodeCell(c [2]string) (Cell, error) {
	switch c[0] {
	case tagEmpty:
		return EmptyCell(), nil
	case tagText:
		return TextCell(c[1]), nil
	case tagNumber:
		v, err := strconv.ParseFloat(c[1], 64)
		if err != nil {
			return Cell{}, err
		}
		return NumberCell(v), nil
	case tagBool:
		v, err := strconv.ParseBool(c[1])
		if err != nil {
			return Cell{}, err
		}
		return BoolCell(v), nil
	case tagTime:
		v, err := time.Parse(time.RFC3339Nano, c[1])
		if err != nil {
			return Cell{}, err
		}
		return TimeCell(v), nil
	default:
		return Cell{}, fmt.Errorf("unknown cell kind %q", c[0])
	}
}
