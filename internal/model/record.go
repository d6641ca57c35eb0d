// Package model defines the tabular data structures shared by the loader,
// the mapping engine and the exporters.
package model

import (
	"math"
	"strconv"
	"strings"
)

// Kind indicates what a Value holds.
type Kind uint8

const (
	KindEmpty Kind = iota
	KindString
	KindNumber
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	default:
		return "empty"
	}
}

// Value is a single cell. The zero Value is Empty.
type Value struct {
	kind Kind
	str  string
	num  float64
}

// Empty is the missing-value marker.
var Empty = Value{}

// String returns a string cell.
func String(s string) Value {
	return Value{kind: KindString, str: s}
}

// Number returns a numeric cell. NaN is stored as Empty.
func Number(f float64) Value {
	if math.IsNaN(f) {
		return Empty
	}
	return Value{kind: KindNumber, num: f}
}

// Text returns a string cell, or Empty when s is blank.
// Loaders use it so that blank cells become missing values.
func Text(s string) Value {
	if strings.TrimSpace(s) == "" {
		return Empty
	}
	return String(s)
}

// Kind returns the value kind.
func (v Value) Kind() Kind { return v.kind }

// IsEmpty reports whether the cell holds no usable value.
// Whitespace-only strings count as empty.
func (v Value) IsEmpty() bool {
	switch v.kind {
	case KindString:
		return strings.TrimSpace(v.str) == ""
	case KindNumber:
		return false
	default:
		return true
	}
}

// Float returns the numeric payload and whether the value is a number.
func (v Value) Float() (float64, bool) {
	return v.num, v.kind == KindNumber
}

// String renders the value as text. Empty renders as "".
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	default:
		return ""
	}
}

// Equal reports whether two values have the same kind and payload.
func (v Value) Equal(o Value) bool {
	return v.kind == o.kind && v.str == o.str && v.num == o.num
}

// Record is one row, positionally aligned with its Dataset's Columns.
type Record []Value

// Clone returns a copy of the record.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	copy(out, r)
	return out
}

// Dataset is an ordered list of records sharing a common set of named columns.
type Dataset struct {
	Columns []string
	Rows    []Record
}

// NewDataset creates a dataset with the given columns and no rows.
func NewDataset(columns ...string) *Dataset {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Dataset{Columns: cols}
}

// Append adds a row. Short rows are padded with Empty; long rows are truncated.
func (d *Dataset) Append(values ...Value) {
	row := make(Record, len(d.Columns))
	copy(row, values)
	d.Rows = append(d.Rows, row)
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// Index returns the position of the first column whose trimmed name equals
// the trimmed name given, or -1.
func (d *Dataset) Index(name string) int {
	name = strings.TrimSpace(name)
	for i, c := range d.Columns {
		if strings.TrimSpace(c) == name {
			return i
		}
	}
	return -1
}

// Cell returns the value at row i in the named column, or Empty.
func (d *Dataset) Cell(i int, name string) Value {
	col := d.Index(name)
	if col < 0 || i < 0 || i >= len(d.Rows) || col >= len(d.Rows[i]) {
		return Empty
	}
	return d.Rows[i][col]
}

// Clone deep-copies the dataset.
func (d *Dataset) Clone() *Dataset {
	out := NewDataset(d.Columns...)
	out.Rows = make([]Record, len(d.Rows))
	for i, row := range d.Rows {
		out.Rows[i] = row.Clone()
	}
	return out
}

// TrimColumns rewrites column names without surrounding whitespace.
func (d *Dataset) TrimColumns() {
	for i, c := range d.Columns {
		d.Columns[i] = strings.TrimSpace(c)
	}
}

// PadRows extends short rows with Empty so every row spans all columns.
func (d *Dataset) PadRows() {
	for i, row := range d.Rows {
		if len(row) < len(d.Columns) {
			d.Rows[i] = append(row, make(Record, len(d.Columns)-len(row))...)
		}
	}
}

// Head returns a copy holding at most n leading rows.
func (d *Dataset) Head(n int) *Dataset {
	if n < 0 || n > len(d.Rows) {
		n = len(d.Rows)
	}
	out := NewDataset(d.Columns...)
	out.Rows = make([]Record, n)
	for i := 0; i < n; i++ {
		out.Rows[i] = d.Rows[i].Clone()
	}
	return out
}

// Strings renders every row as text, for previews and CSV output.
func (d *Dataset) Strings() [][]string {
	out := make([][]string, len(d.Rows))
	for i, row := range d.Rows {
		cells := make([]string, len(d.Columns))
		for j := range cells {
			if j < len(row) {
				cells[j] = row[j].String()
			}
		}
		out[i] = cells
	}
	return out
}
