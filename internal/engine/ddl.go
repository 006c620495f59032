package engine

import "github.com/sqlitoy/sqlitoy/internal/catalog"

// CreateTable registers a new table with empty data, an empty index
// container, and an implicit primary key index. It fails if the name
// already exists, any column type is unrecognized, or any foreign key
// references a non-existent table or column.
func (e *Engine) CreateTable(name string, columns []catalog.Column, primaryKey string, fks []catalog.ForeignKey) error {
	if e.cat.TableExists(name) {
		return SchemaErrorf("table %q already exists", name)
	}
	if primaryKey == "" {
		return SchemaErrorf("table %q requires a primary key column", name)
	}
	foundPK := false
	for _, c := range columns {
		if c.Type != catalog.Int && c.Type != catalog.Double && c.Type != catalog.String {
			return SchemaErrorf("invalid column type for column %q", c.Name)
		}
		if c.Name == primaryKey {
			foundPK = true
		}
	}
	if !foundPK {
		return SchemaErrorf("primary key column %q is not declared on table %q", primaryKey, name)
	}

	for _, fk := range fks {
		refTable := e.cat.Table(fk.ReferencedTable)
		if refTable == nil {
			return SchemaErrorf("referenced table %q in foreign key does not exist", fk.ReferencedTable)
		}
		if !refTable.HasColumn(fk.ReferencedCol) {
			return SchemaErrorf("referenced column %q in table %q does not exist", fk.ReferencedCol, fk.ReferencedTable)
		}
	}

	t := catalog.NewTable(name, columns, primaryKey, fks)
	e.cat.AddTable(t)
	e.idx.EnsureTable(name)
	e.idx.CreateOrRebuild(t, primaryKey, "")

	log.Info("table created", "table", name, "columns", len(columns))
	return nil
}

// DropTable removes a table and every index defined on it. It fails if the
// table does not exist or any other table's foreign keys reference it.
func (e *Engine) DropTable(name string) error {
	if !e.cat.TableExists(name) {
		return SchemaErrorf("table %q does not exist", name)
	}
	if refs := e.cat.ReferencingTables(name); len(refs) > 0 {
		return SchemaErrorf("cannot drop table %q: referenced by %q", name, refs[0])
	}
	e.cat.DropTable(name)
	e.idx.DropTable(name)
	log.Info("table dropped", "table", name)
	return nil
}

// CreateIndex creates (or, if one already exists on the column, rebuilds)
// an index on table.column, returning its effective name.
func (e *Engine) CreateIndex(table, column, requestedName string) (string, error) {
	t, err := e.requireTable(table)
	if err != nil {
		return "", err
	}
	if !t.HasColumn(column) {
		return "", SchemaErrorf("column %q does not exist in table %q", column, table)
	}
	idx := e.idx.CreateOrRebuild(t, column, requestedName)
	log.Info("index created", "name", idx.Name, "table", table, "column", column)
	return idx.Name, nil
}

// DropIndex removes the index with the given name, searching every
// (table, column) pair. It fails if none is found.
func (e *Engine) DropIndex(name string) error {
	if !e.idx.DropByName(name) {
		return SchemaErrorf("no index found with the name %q", name)
	}
	log.Info("index dropped", "name", name)
	return nil
}
