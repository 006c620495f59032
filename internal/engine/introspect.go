package engine

import "github.com/sqlitoy/sqlitoy/internal/catalog"

// TableColumns returns table's columns in declared order, for callers (the
// planner) that need to resolve an INSERT's column list or validate a
// projection against the schema.
func (e *Engine) TableColumns(table string) ([]catalog.Column, error) {
	t, err := e.requireTable(table)
	if err != nil {
		return nil, err
	}
	return t.Columns, nil
}

// ColumnType resolves a single column's declared type, used to coerce a
// parsed literal in a WHERE/HAVING/SET clause to the type its comparison
// partner expects.
func (e *Engine) ColumnType(table, column string) (catalog.Type, error) {
	t, err := e.requireTable(table)
	if err != nil {
		return 0, err
	}
	c, ok := t.Column(column)
	if !ok {
		return 0, SchemaErrorf("column %q does not exist in table %q", column, table)
	}
	return c.Type, nil
}

// TableExists reports whether a table is registered, for planner-time
// validation that happens before any mutating call.
func (e *Engine) TableExists(table string) bool {
	return e.cat.TableExists(table)
}
