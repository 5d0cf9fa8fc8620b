package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Table is an ordered tabular result set. It serializes to the
// column-oriented JSON the deployed clients expect:
//
//	{"col1":{"0":v,"1":v},"col2":{"0":v,"1":v}}
//
// Column order and row order are preserved exactly as appended; row keys are
// the decimal row positions. Timestamps serialize as epoch milliseconds and
// nil pointers as null.
type Table struct {
	columns []string
	rows    [][]any
}

// NewTable creates an empty table with the given column order.
func NewTable(columns ...string) *Table {
	return &Table{columns: columns}
}

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	return t.columns
}

// Append adds one row. The number of values must match the column count.
func (t *Table) Append(values ...any) error {
	if len(values) != len(t.columns) {
		return fmt.Errorf("row has %d values, table has %d columns", len(values), len(t.columns))
	}
	t.rows = append(t.rows, values)
	return nil
}

// Len returns the number of rows.
func (t *Table) Len() int {
	return len(t.rows)
}

// Empty reports whether the table has no rows.
func (t *Table) Empty() bool {
	return len(t.rows) == 0
}

// MarshalJSON implements json.Marshaler, writing columns in declaration
// order and rows in append order.
func (t *Table) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	for ci, col := range t.columns {
		if ci > 0 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.WriteByte('{')

		for ri, row := range t.rows {
			if ri > 0 {
				buf.WriteByte(',')
			}
			fmt.Fprintf(&buf, "%q:", fmt.Sprintf("%d", ri))
			cell, err := marshalCell(row[ci])
			if err != nil {
				return nil, fmt.Errorf("column %s row %d: %w", col, ri, err)
			}
			buf.Write(cell)
		}

		buf.WriteByte('}')
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Encode returns the table as a JSON string for embedding in a Response.
func (t *Table) Encode() (string, error) {
	data, err := t.MarshalJSON()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// marshalCell serializes one cell, mapping timestamps to epoch milliseconds.
func marshalCell(v any) ([]byte, error) {
	switch tv := v.(type) {
	case nil:
		return []byte("null"), nil
	case time.Time:
		return json.Marshal(tv.UnixMilli())
	case *time.Time:
		if tv == nil {
			return []byte("null"), nil
		}
		return json.Marshal(tv.UnixMilli())
	default:
		return json.Marshal(v)
	}
}
