package dataset

import (
	"fmt"
	"time"
)

// ColumnType describes the inferred role of a column in an uploaded table.
type ColumnType string

const (
	TypeDate        ColumnType = "date"
	TypeNumeric     ColumnType = "numeric"
	TypeCategorical ColumnType = "categorical"
	TypeText        ColumnType = "text"
	TypeIdentifier  ColumnType = "identifier"
)

// Column carries the inferred type plus a few raw sample values used for
// prompt construction.
type Column struct {
	Name    string     `json:"name"`
	Type    ColumnType `json:"type"`
	Samples []string   `json:"samples,omitempty"`

	// IdentifierPattern is the regular expression source that matched the
	// column's values when Type is identifier, empty otherwise.
	IdentifierPattern string `json:"identifier_pattern,omitempty"`
}

type Schema struct {
	Columns []Column `json:"columns"`
}

// Column returns the column definition for name, matching case-sensitively.
func (s Schema) Column(name string) (Column, bool) {
	for _, col := range s.Columns {
		if col.Name == name {
			return col, true
		}
	}
	return Column{}, false
}

func (s Schema) ColumnIndex(name string) (int, bool) {
	for i, col := range s.Columns {
		if col.Name == name {
			return i, true
		}
	}
	return 0, false
}

func (s Schema) ColumnNames() []string {
	names := make([]string, len(s.Columns))
	for i, col := range s.Columns {
		names[i] = col.Name
	}
	return names
}

// IdentifierColumns returns the columns whose values look like structured
// record keys such as T100001.
func (s Schema) IdentifierColumns() []Column {
	var cols []Column
	for _, col := range s.Columns {
		if col.Type == TypeIdentifier {
			cols = append(cols, col)
		}
	}
	return cols
}

type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindNumber
	KindText
	KindTime
	KindBool
)

// Value is a typed cell. The zero value is null.
type Value struct {
	Kind   ValueKind
	Number float64
	Text   string
	Time   time.Time
	Bool   bool
}

func Null() Value                 { return Value{} }
func Number(v float64) Value      { return Value{Kind: KindNumber, Number: v} }
func Text(v string) Value         { return Value{Kind: KindText, Text: v} }
func Timestamp(v time.Time) Value { return Value{Kind: KindTime, Time: v} }
func Bool(v bool) Value           { return Value{Kind: KindBool, Bool: v} }

func (v Value) IsNull() bool { return v.Kind == KindNull }

// Native converts the cell to its JSON-friendly representation.
func (v Value) Native() any {
	switch v.Kind {
	case KindNumber:
		return v.Number
	case KindText:
		return v.Text
	case KindTime:
		return v.Time.Format("2006-01-02")
	case KindBool:
		return v.Bool
	default:
		return nil
	}
}

func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return formatNumber(v.Number)
	case KindText:
		return v.Text
	case KindTime:
		return v.Time.Format("2006-01-02")
	case KindBool:
		return fmt.Sprintf("%t", v.Bool)
	default:
		return ""
	}
}

// Row is a slice of cells aligned with Schema.Columns.
type Row []Value

// Dataset is the in-memory table a session operates on.
type Dataset struct {
	Schema Schema
	Rows   []Row
}

func (d *Dataset) RowCount() int {
	return len(d.Rows)
}

// Cell returns the value at the named column for the given row.
func (d *Dataset) Cell(row Row, column string) (Value, bool) {
	idx, ok := d.Schema.ColumnIndex(column)
	if !ok || idx >= len(row) {
		return Value{}, false
	}
	return row[idx], true
}

func formatNumber(v float64) string {
	if v == float64(int64(v)) && v > -1e15 && v < 1e15 {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.2f", v)
}
