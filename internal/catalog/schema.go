package catalog

import "fmt"

// Column is a single named, typed field in a table's fixed column order.
type Column struct {
	Name string
	Type Type
}

// ForeignKey is a (local column, referenced table, referenced column)
// constraint validated on insert, skipped when the local value is NULL.
type ForeignKey struct {
	Column          string
	ReferencedTable string
	ReferencedCol   string
}

// Row is a positional tuple matching a table's column order.
type Row []Value

// Clone returns an independent copy of the row.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	copy(out, r)
	return out
}

// Table is the in-memory definition and data of one relation. Row ids are
// the zero-based positions in Data and are invalidated by any compacting
// mutation (delete or update).
type Table struct {
	Name        string
	Columns     []Column
	PrimaryKey  string
	ForeignKeys []ForeignKey
	Data        []Row

	colIndex map[string]int
}

// NewTable builds a table shell with no rows and an index from column name
// to position, derived once from the column order.
func NewTable(name string, columns []Column, primaryKey string, fks []ForeignKey) *Table {
	t := &Table{
		Name:        name,
		Columns:     columns,
		PrimaryKey:  primaryKey,
		ForeignKeys: fks,
		Data:        []Row{},
	}
	t.reindex()
	return t
}

func (t *Table) reindex() {
	t.colIndex = make(map[string]int, len(t.Columns))
	for i, c := range t.Columns {
		t.colIndex[c.Name] = i
	}
}

// ColumnIndex returns the position of a column name, or -1 if it is not
// part of the table.
func (t *Table) ColumnIndex(name string) int {
	if t.colIndex == nil {
		t.reindex()
	}
	if i, ok := t.colIndex[name]; ok {
		return i
	}
	return -1
}

// HasColumn reports whether name is a declared column.
func (t *Table) HasColumn(name string) bool {
	return t.ColumnIndex(name) >= 0
}

// Column looks up a column definition by name.
func (t *Table) Column(name string) (Column, bool) {
	i := t.ColumnIndex(name)
	if i < 0 {
		return Column{}, false
	}
	return t.Columns[i], true
}

// PrimaryKeyIndex returns the column position of the primary key.
func (t *Table) PrimaryKeyIndex() int {
	return t.ColumnIndex(t.PrimaryKey)
}

// ColumnNames returns the table's columns in declared order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// ForeignKey looks up the constraint declared on a local column, if any.
func (t *Table) ForeignKey(column string) (ForeignKey, bool) {
	for _, fk := range t.ForeignKeys {
		if fk.Column == column {
			return fk, true
		}
	}
	return ForeignKey{}, false
}

// Record is a named-value view of a row, used by predicate evaluation,
// projection, grouping, and join output. Keys may be bare column names or
// "alias.column" qualified names.
type Record map[string]Value

// RecordFromRow builds a Record from a row using the table's column order,
// the basic named-value materialization step of a single-table scan.
func RecordFromRow(t *Table, row Row) Record {
	rec := make(Record, len(t.Columns))
	for i, c := range t.Columns {
		if i < len(row) {
			rec[c.Name] = row[i]
		}
	}
	return rec
}

// Catalog is the process-wide, in-memory registry of every table, mirrored
// to disk by the storage layer. Table names are kept in an explicit order
// slice so iteration never depends on Go map ordering.
type Catalog struct {
	order  []string
	tables map[string]*Table
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{tables: make(map[string]*Table)}
}

// TableExists reports whether name is a registered table.
func (c *Catalog) TableExists(name string) bool {
	_, ok := c.tables[name]
	return ok
}

// Table returns the table by name, or nil if it doesn't exist.
func (c *Catalog) Table(name string) *Table {
	return c.tables[name]
}

// Tables returns every table in creation order.
func (c *Catalog) Tables() []*Table {
	out := make([]*Table, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.tables[name])
	}
	return out
}

// AddTable registers a new table. It is an error to add a table whose name
// already exists; callers validate uniqueness before calling this.
func (c *Catalog) AddTable(t *Table) {
	if _, exists := c.tables[t.Name]; !exists {
		c.order = append(c.order, t.Name)
	}
	c.tables[t.Name] = t
}

// DropTable removes a table's entry from the catalog.
func (c *Catalog) DropTable(name string) {
	delete(c.tables, name)
	for i, n := range c.order {
		if n == name {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

// ReferencingTables returns every table (other than name itself) with a
// foreign key pointing at name, used to block a DROP TABLE.
func (c *Catalog) ReferencingTables(name string) []string {
	var refs []string
	for _, tn := range c.order {
		if tn == name {
			continue
		}
		t := c.tables[tn]
		for _, fk := range t.ForeignKeys {
			if fk.ReferencedTable == name {
				refs = append(refs, tn)
				break
			}
		}
	}
	return refs
}

func (t *Table) String() string {
	return fmt.Sprintf("Table(%s, %d cols, %d rows)", t.Name, len(t.Columns), len(t.Data))
}
