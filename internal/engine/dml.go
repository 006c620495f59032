package engine

import "github.com/sqlitoy/sqlitoy/internal/catalog"

// Insert validates table existence, row arity, per-cell type, primary key
// uniqueness (fast path via the primary key index, fallback linear scan),
// and every foreign key (skipping NULLs), then appends the row and
// updates every index on the table.
func (e *Engine) Insert(table string, values []catalog.Value) error {
	t, err := e.requireTable(table)
	if err != nil {
		return err
	}

	if len(values) != len(t.Columns) {
		return ValueErrorf("row length %d does not match the number of table columns (%d)", len(values), len(t.Columns))
	}

	row := make(catalog.Row, len(values))
	pkIdx := t.PrimaryKeyIndex()
	for i, col := range t.Columns {
		v := values[i]
		if i == pkIdx && v.Null {
			return ConstraintErrorf("primary key column %q cannot be NULL", col.Name)
		}
		coerced, ok := catalog.CoerceLiteral(v, col.Type)
		if !ok {
			return ConstraintErrorf("column %q expects type %s, got %s", col.Name, col.Type, v.Type)
		}
		row[i] = coerced
	}

	if pkIdx >= 0 {
		pkValue := row[pkIdx]
		if pkIndex := e.idx.On(table, t.PrimaryKey); pkIndex != nil {
			if len(pkIndex.Lookup(pkValue)) > 0 {
				return ConstraintErrorf("duplicate entry for primary key %q with value %q", t.PrimaryKey, pkValue.Render())
			}
		} else {
			for _, existing := range t.Data {
				if existing[pkIdx].Equal(pkValue) {
					return ConstraintErrorf("duplicate entry for primary key %q with value %q", t.PrimaryKey, pkValue.Render())
				}
			}
		}
	}

	for _, fk := range t.ForeignKeys {
		ci := t.ColumnIndex(fk.Column)
		v := row[ci]
		if v.Null {
			continue
		}
		refTable, err := e.requireTable(fk.ReferencedTable)
		if err != nil {
			return err
		}
		refIdx := refTable.ColumnIndex(fk.ReferencedCol)
		found := false
		if refIndex := e.idx.On(fk.ReferencedTable, fk.ReferencedCol); refIndex != nil {
			found = len(refIndex.Lookup(v)) > 0
		} else {
			for _, r := range refTable.Data {
				if r[refIdx].Equal(v) {
					found = true
					break
				}
			}
		}
		if !found {
			return ConstraintErrorf("foreign key violation: %q=%s not present in %s.%s", fk.Column, v.Render(), fk.ReferencedTable, fk.ReferencedCol)
		}
	}

	t.Data = append(t.Data, row)
	rowID := len(t.Data) - 1
	e.idx.InsertRow(t, row, rowID)

	log.Debug("row inserted", "table", table, "row_id", rowID)
	return nil
}

// Update is one SET assignment: either a literal replacement or a
// transformation applied to the row's existing cell.
type Update struct {
	Column    string
	Literal   catalog.Value
	IsLiteral bool
	Transform func(catalog.Value) catalog.Value
}

// Delete evaluates where against each row, partitions into kept/removed,
// replaces the table's data with the kept subset, and rebuilds every index
// on the table (row ids change on compaction, so partial maintenance would
// be incorrect). Returns the number of removed rows.
func (e *Engine) Delete(table string, where *catalog.Predicate) (int, error) {
	t, err := e.requireTable(table)
	if err != nil {
		return 0, err
	}

	kept := make([]catalog.Row, 0, len(t.Data))
	removed := 0
	for _, row := range t.Data {
		rec := catalog.RecordFromRow(t, row)
		if where.Eval(rec) {
			removed++
		} else {
			kept = append(kept, row)
		}
	}
	t.Data = kept
	e.idx.RebuildAll(t)

	log.Debug("rows deleted", "table", table, "count", removed)
	return removed, nil
}

// Update applies updates to every row matching where, in two passes: pass
// one computes every hypothetical post-update primary key and fails if any
// collides with an existing row's primary key or another updated row's new
// primary key; pass two applies the updates and rebuilds every index.
// Returns the number of modified rows.
func (e *Engine) UpdateRows(table string, updates []Update, where *catalog.Predicate) (int, error) {
	t, err := e.requireTable(table)
	if err != nil {
		return 0, err
	}
	for _, u := range updates {
		if !t.HasColumn(u.Column) {
			return 0, SchemaErrorf("column %q does not exist in table %q", u.Column, table)
		}
	}

	pkIdx := t.PrimaryKeyIndex()
	matched := make([]int, 0)
	for i, row := range t.Data {
		rec := catalog.RecordFromRow(t, row)
		if where.Eval(rec) {
			matched = append(matched, i)
		}
	}

	if pkIdx >= 0 {
		newPKs := make(map[int]catalog.Value, len(matched))
		for _, rowIdx := range matched {
			newPK := t.Data[rowIdx][pkIdx]
			for _, u := range updates {
				if t.ColumnIndex(u.Column) != pkIdx {
					continue
				}
				newPK = applyUpdate(u, newPK)
			}
			if newPK.Null {
				return 0, ConstraintErrorf("primary key column %q cannot be NULL", t.PrimaryKey)
			}
			newPKs[rowIdx] = newPK
		}

		seen := make(map[int]bool, len(matched))
		for _, rowIdx := range matched {
			seen[rowIdx] = true
		}
		for i, row := range t.Data {
			if seen[i] {
				continue
			}
			for _, newPK := range newPKs {
				if row[pkIdx].Equal(newPK) {
					return 0, ConstraintErrorf("duplicate entry for primary key %q with value %q", t.PrimaryKey, newPK.Render())
				}
			}
		}
		seenPK := make([]catalog.Value, 0, len(newPKs))
		for _, rowIdx := range matched {
			np := newPKs[rowIdx]
			for _, other := range seenPK {
				if other.Equal(np) {
					return 0, ConstraintErrorf("duplicate entry for primary key %q with value %q among updated rows", t.PrimaryKey, np.Render())
				}
			}
			seenPK = append(seenPK, np)
		}
	}

	for _, rowIdx := range matched {
		row := t.Data[rowIdx].Clone()
		for _, u := range updates {
			ci := t.ColumnIndex(u.Column)
			row[ci] = applyUpdate(u, row[ci])
		}
		t.Data[rowIdx] = row
	}

	e.idx.RebuildAll(t)
	log.Debug("rows updated", "table", table, "count", len(matched))
	return len(matched), nil
}

func applyUpdate(u Update, old catalog.Value) catalog.Value {
	if u.Transform != nil {
		return u.Transform(old)
	}
	return u.Literal
}
