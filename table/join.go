package table

// LeftJoin returns every row of left extended with the columns of the first
// right row whose rightKey cell equals the row's leftKey cell. Keys compare
// by their rendered string. The right key column is dropped, and right
// columns whose name already exists in left are skipped. Rows without a
// match hold Missing in the right columns.
func LeftJoin(left, right *Table, leftKey, rightKey string) *Table {
	index := make(map[string]int, right.rows)
	if keys, ok := right.values[rightKey]; ok {
		for j, c := range keys {
			if !c.Valid {
				continue
			}
			if _, seen := index[c.String()]; !seen {
				index[c.String()] = j
			}
		}
	}

	match := make([]int, left.rows)
	for i := range match {
		match[i] = -1
		if k := left.Cell(i, leftKey); k.Valid {
			if j, ok := index[k.String()]; ok {
				match[i] = j
			}
		}
	}

	out := &Table{values: make(map[string][]Cell), rows: left.rows}
	for _, name := range left.columns {
		out.columns = append(out.columns, name)
		out.values[name] = append([]Cell(nil), left.values[name]...)
	}
	for _, name := range right.columns {
		if name == rightKey {
			continue
		}
		if _, dup := out.values[name]; dup {
			continue
		}
		src := right.values[name]
		col := make([]Cell, left.rows)
		for i, j := range match {
			if j >= 0 {
				col[i] = src[j]
			}
		}
		out.columns = append(out.columns, name)
		out.values[name] = col
	}
	return out
}

// Prepend returns a copy of t with constant-valued columns placed first.
// A field whose name already exists in t replaces that column.
func Prepend(t *Table, fields ...Field) *Table {
	out := &Table{values: make(map[string][]Cell), rows: t.rows}
	for _, f := range fields {
		if _, dup := out.values[f.Name]; dup {
			continue
		}
		col := make([]Cell, t.rows)
		for i := range col {
			col[i] = Of(f.Value)
		}
		out.columns = append(out.columns, f.Name)
		out.values[f.Name] = col
	}
	for _, name := range t.columns {
		if _, dup := out.values[name]; dup {
			continue
		}
		out.columns = append(out.columns, name)
		out.values[name] = append([]Cell(nil), t.values[name]...)
	}
	return out
}
