package schema

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Cell is one column of a decoded row. A nil Value means the cell was empty.
type Cell struct {
	Column string
	Value  *string
}

// Row is one spreadsheet data line in column order, tagged with its 1-based
// position among the sheet's data rows. Rows are not modified after decoding.
type Row struct {
	Index int
	cells []Cell
}

// NewRow builds a row from parallel header and value slices. Empty values
// become nil cells; values are stored verbatim.
func NewRow(index int, header, values []string) Row {
	cells := make([]Cell, 0, len(header))
	for i, col := range header {
		c := Cell{Column: col}
		if i < len(values) && values[i] != "" {
			v := values[i]
			c.Value = &v
		}
		cells = append(cells, c)
	}
	return Row{Index: index, cells: cells}
}

// Value returns the raw text of a column and whether it is non-null.
func (r Row) Value(column string) (string, bool) {
	for _, c := range r.cells {
		if c.Column == column {
			if c.Value == nil {
				return "", false
			}
			return *c.Value, true
		}
	}
	return "", false
}

// Text returns the trimmed value of a column, or "" when null.
func (r Row) Text(column string) string {
	v, _ := r.Value(column)
	return strings.TrimSpace(v)
}

// Columns returns the row's column names in sheet order.
func (r Row) Columns() []string {
	cols := make([]string, len(r.cells))
	for i, c := range r.cells {
		cols[i] = c.Column
	}
	return cols
}

// Cells returns a copy of the row's cells.
func (r Row) Cells() []Cell {
	out := make([]Cell, len(r.cells))
	copy(out, r.cells)
	return out
}

// MarshalJSON renders the row as an ordered object with a trailing _rowIndex.
func (r Row) MarshalJSON() ([]byte, error) {
	return r.marshalWith(nil)
}

// AnnotatedJSON renders the row like MarshalJSON with extra trailing keys.
func (r Row) AnnotatedJSON(extra map[string]any, order ...string) ([]byte, error) {
	pairs := make([][2]any, 0, len(order))
	for _, k := range order {
		pairs = append(pairs, [2]any{k, extra[k]})
	}
	return r.marshalWith(pairs)
}

func (r Row) marshalWith(extra [][2]any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	write := func(key string, val any) error {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return err
		}
		v, err := json.Marshal(val)
		if err != nil {
			return err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
		return nil
	}

	for _, c := range r.cells {
		if err := write(c.Column, c.Value); err != nil {
			return nil, err
		}
	}
	if err := write("_rowIndex", r.Index); err != nil {
		return nil, err
	}
	for _, kv := range extra {
		if err := write(kv[0].(string), kv[1]); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}
