// Package table assembles column-oriented tables from rows whose key sets
// differ. Absent values are explicit Missing cells, never zero values.
package table

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"
)

// Cell is a single table value. A cell with Valid == false is missing.
type Cell struct {
	V     any
	Valid bool
}

// Missing marks a column that had no value in a row.
var Missing = Cell{}

// Of wraps a present value.
func Of(v any) Cell { return Cell{V: v, Valid: true} }

// String renders the cell for text output. Missing cells render empty.
func (c Cell) String() string {
	if !c.Valid {
		return ""
	}
	switch v := c.V.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case bool:
		return strconv.FormatBool(v)
	case time.Time:
		return v.UTC().Format(time.RFC3339)
	default:
		return fmt.Sprint(v)
	}
}

// Field is one named value of a row.
type Field struct {
	Name  string
	Value any
}

// Row is an ordered set of fields. Order decides column order in Build.
type Row []Field

// Table is an immutable column-oriented table.
type Table struct {
	columns []string
	values  map[string][]Cell
	rows    int
}

// Build assembles a table from rows. The column set is the union of all
// field names in first-seen order; a row lacking a column gets Missing.
// When a row repeats a name, the last value wins.
func Build(rows []Row) *Table {
	t := &Table{values: make(map[string][]Cell), rows: len(rows)}
	for i, row := range rows {
		for _, f := range row {
			col, ok := t.values[f.Name]
			if !ok {
				col = make([]Cell, len(rows))
				t.values[f.Name] = col
				t.columns = append(t.columns, f.Name)
			}
			col[i] = Of(f.Value)
		}
	}
	return t
}

// Columns returns the column names in order.
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// Len returns the number of rows.
func (t *Table) Len() int { return t.rows }

// Column returns a copy of the named column.
func (t *Table) Column(name string) ([]Cell, bool) {
	col, ok := t.values[name]
	if !ok {
		return nil, false
	}
	return append([]Cell(nil), col...), true
}

// Cell returns the cell at row i of the named column.
// Unknown columns and out-of-range rows yield Missing.
func (t *Table) Cell(i int, name string) Cell {
	col, ok := t.values[name]
	if !ok || i < 0 || i >= t.rows {
		return Missing
	}
	return col[i]
}

// Row returns row i as a Row holding only its present cells.
func (t *Table) Row(i int) Row {
	if i < 0 || i >= t.rows {
		return nil
	}
	var row Row
	for _, name := range t.columns {
		if c := t.values[name][i]; c.Valid {
			row = append(row, Field{Name: name, Value: c.V})
		}
	}
	return row
}

// Rows returns every row, see Row.
func (t *Table) Rows() []Row {
	rows := make([]Row, t.rows)
	for i := range rows {
		rows[i] = t.Row(i)
	}
	return rows
}

// Records renders the table as a header followed by string rows.
func (t *Table) Records() [][]string {
	out := make([][]string, 0, t.rows+1)
	out = append(out, t.Columns())
	for i := 0; i < t.rows; i++ {
		rec := make([]string, len(t.columns))
		for j, name := range t.columns {
			rec[j] = t.values[name][i].String()
		}
		out = append(out, rec)
	}
	return out
}

// WriteCSV writes the table with a header line. Missing cells are empty.
func (t *Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.WriteAll(t.Records()); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return nil
}
