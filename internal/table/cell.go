// Package table defines the in-memory tabular data model shared by the
// loaders, the comparison core and the exporters.
//
// Cells are a closed variant over [Kind]. Loaders keep the original typed
// value so reports can show exactly what the user uploaded; the comparison
// core only ever looks at [Cell.Canonical].
package table

import (
	"encoding/json"
	"math"
	"strconv"
	"time"
)

// Kind identifies which variant a Cell holds.
type Kind uint8

const (
	Empty Kind = iota
	Text
	Number
	Bool
	Time
)

// TimeLayout is the canonical text form of Time cells.
const TimeLayout = "2006-01-02 15:04:05"

func (k Kind) String() string {
	switch k {
	case Empty:
		return "empty"
	case Text:
		return "text"
	case Number:
		return "number"
	case Bool:
		return "bool"
	case Time:
		return "time"
	default:
		return "unknown"
	}
}

// Cell is a single spreadsheet value.
type Cell struct {
	kind Kind
	text string
	num  float64
	b    bool
	t    time.Time
}

// EmptyCell returns a cell with no value.
func EmptyCell() Cell { return Cell{} }

// TextCell returns a text cell. An empty string is still a Text cell; loaders
// decide whether a blank input becomes Empty.
func TextCell(s string) Cell { return Cell{kind: Text, text: s} }

// NumberCell returns a numeric cell.
func NumberCell(v float64) Cell { return Cell{kind: Number, num: v} }

// BoolCell returns a boolean cell.
func BoolCell(v bool) Cell { return Cell{kind: Bool, b: v} }

// TimeCell returns a date/time cell. The value is stored in UTC.
func TimeCell(v time.Time) Cell { return Cell{kind: Time, t: v.UTC()} }

// Kind reports the variant held by c.
func (c Cell) Kind() Kind { return c.kind }

// IsEmpty reports whether c holds no value.
func (c Cell) IsEmpty() bool { return c.kind == Empty }

// Text returns the text of a Text cell and "" otherwise.
func (c Cell) Text() string { return c.text }

// Number returns the value of a Number cell and 0 otherwise.
func (c Cell) Number() float64 { return c.num }

// Bool returns the value of a Bool cell and false otherwise.
func (c Cell) Bool() bool { return c.b }

// Time returns the value of a Time cell and the zero time otherwise.
func (c Cell) Time() time.Time { return c.t }

// Canonical returns the deterministic text form of the cell.
//
//	Empty   ""
//	Text    the text unchanged
//	Number  integral values without a fraction ("123"), otherwise the
//	        shortest decimal that round-trips ("0.1"); "nan", "inf", "-inf"
//	Bool    "true" or "false"
//	Time    UTC, TimeLayout
//
// The rule does not depend on the kind beyond this table, so the text "123"
// and the number 123 canonicalize identically.
func (c Cell) Canonical() string {
	switch c.kind {
	case Text:
		return c.text
	case Number:
		return formatNumber(c.num)
	case Bool:
		return strconv.FormatBool(c.b)
	case Time:
		return c.t.Format(TimeLayout)
	default:
		return ""
	}
}

// String implements fmt.Stringer.
func (c Cell) String() string { return c.Canonical() }

// Value returns the cell as a plain Go value (nil, string, float64, bool or
// time.Time), the shape exporters and encoders expect.
func (c Cell) Value() any {
	switch c.kind {
	case Text:
		return c.text
	case Number:
		return c.num
	case Bool:
		return c.b
	case Time:
		return c.t
	default:
		return nil
	}
}

// MarshalJSON encodes the cell as its native JSON value.
func (c Cell) MarshalJSON() ([]byte, error) {
	switch c.kind {
	case Number:
		if math.IsNaN(c.num) || math.IsInf(c.num, 0) {
			return json.Marshal(formatNumber(c.num))
		}
		return json.Marshal(c.num)
	case Time:
		return json.Marshal(c.t.Format(time.RFC3339))
	default:
		return json.Marshal(c.Value())
	}
}

// Equal reports whether a and b hold the same kind and value.
func (c Cell) Equal(o Cell) bool {
	if c.kind != o.kind {
		return false
	}
	switch c.kind {
	case Text:
		return c.text == o.text
	case Number:
		return c.num == o.num || (math.IsNaN(c.num) && math.IsNaN(o.num))
	case Bool:
		return c.b == o.b
	case Time:
		return c.t.Equal(o.t)
	default:
		return true
	}
}

func formatNumber(v float64) string {
	switch {
	case math.IsNaN(v):
		return "nan"
	case math.IsInf(v, 1):
		return "inf"
	case math.IsInf(v, -1):
		return "-inf"
	case v == 0:
		// Collapses -0 into 0.
		return "0"
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
