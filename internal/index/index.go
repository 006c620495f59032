// Package index implements the per-(table, column) ordered secondary index
// subsystem: a google/btree-backed map from column value to the list of row
// ids holding that value, plus the stable name a user or the system gave
// the index. This is the literal "ordered B-tree based secondary index"
// the engine is built around.
package index

import (
	"sort"

	"github.com/google/btree"

	"github.com/sqlitoy/sqlitoy/internal/catalog"
)

const btreeDegree = 32

// entry is one key in the B-tree: a column value mapped to every row id
// currently holding it.
type entry struct {
	value catalog.Value
	rows  []int
}

func lessEntry(a, b *entry) bool {
	return a.value.Compare(b.value) < 0
}

// Index is a single (table, column) secondary index.
type Index struct {
	Name   string
	Table  string
	Column string

	tree *btree.BTreeG[*entry]
}

// New creates an empty index over table.column with the given name.
func New(name, table, column string) *Index {
	return &Index{
		Name:   name,
		Table:  table,
		Column: column,
		tree:   btree.NewG(btreeDegree, lessEntry),
	}
}

// Insert appends rowID under value, creating the bucket if this is the
// first row with that value.
func (idx *Index) Insert(value catalog.Value, rowID int) {
	key := &entry{value: value}
	if existing, ok := idx.tree.Get(key); ok {
		existing.rows = append(existing.rows, rowID)
		return
	}
	key.rows = []int{rowID}
	idx.tree.ReplaceOrInsert(key)
}

// Lookup returns the row ids mapped to value, or nil if none match.
func (idx *Index) Lookup(value catalog.Value) []int {
	if found, ok := idx.tree.Get(&entry{value: value}); ok {
		return found.rows
	}
	return nil
}

// Len reports the number of distinct values held in the index.
func (idx *Index) Len() int {
	return idx.tree.Len()
}

// Rebuild discards the current tree and re-scans table, binding every
// row's value in the index's column to its row id. Used after any
// compacting mutation (delete, update) where row ids have shifted, and by
// CREATE INDEX when the index already exists.
func (idx *Index) Rebuild(t *catalog.Table) {
	idx.tree = btree.NewG(btreeDegree, lessEntry)
	colIdx := t.ColumnIndex(idx.Column)
	if colIdx < 0 {
		return
	}
	for rowID, row := range t.Data {
		idx.Insert(row[colIdx], rowID)
	}
}

// Ascend iterates every (value, rowIDs) pair in ascending key order. Used
// for snapshotting and, potentially, range predicates.
func (idx *Index) Ascend(fn func(value catalog.Value, rows []int) bool) {
	idx.tree.Ascend(func(e *entry) bool {
		return fn(e.value, e.rows)
	})
}

// Set holds every index defined on a single table, keyed by column name.
type Set struct {
	byColumn map[string]*Index
}

func newSet() *Set {
	return &Set{byColumn: make(map[string]*Index)}
}

// Store is the top-level index registry: one Set per table.
type Store struct {
	tables map[string]*Set
}

// NewStore returns an empty index store.
func NewStore() *Store {
	return &Store{tables: make(map[string]*Set)}
}

// EnsureTable registers an (initially empty) index set for table, used at
// CREATE TABLE time before the primary key index is created.
func (s *Store) EnsureTable(table string) {
	if _, ok := s.tables[table]; !ok {
		s.tables[table] = newSet()
	}
}

// DropTable removes every index registered on table.
func (s *Store) DropTable(table string) {
	delete(s.tables, table)
}

// On returns the index on (table, column), or nil if none exists.
func (s *Store) On(table, column string) *Index {
	set, ok := s.tables[table]
	if !ok {
		return nil
	}
	return set.byColumn[column]
}

// CreateOrRebuild creates a new index on (table, column), or rebuilds it
// in place if one already exists. A rebuild keeps the existing index's
// name; requestedName only applies to a newly created index.
func (s *Store) CreateOrRebuild(t *catalog.Table, column, requestedName string) *Index {
	s.EnsureTable(t.Name)
	set := s.tables[t.Name]
	if existing, ok := set.byColumn[column]; ok {
		existing.Rebuild(t)
		return existing
	}
	name := requestedName
	if name == "" {
		name = DefaultName(t.Name, column)
	}
	idx := New(name, t.Name, column)
	idx.Rebuild(t)
	set.byColumn[column] = idx
	return idx
}

// DefaultName is the system-chosen name for an index that wasn't given one
// explicitly.
func DefaultName(table, column string) string {
	return table + "_" + column + "_idx"
}

// DropByName searches every (table, column) pair for a matching index name
// and removes the first match, reporting whether one was found. Table
// names are walked in sorted order so the search (and therefore "first
// match" on a name collision, which shouldn't happen since names are
// unique) is deterministic.
func (s *Store) DropByName(name string) bool {
	tables := make([]string, 0, len(s.tables))
	for t := range s.tables {
		tables = append(tables, t)
	}
	sort.Strings(tables)

	for _, table := range tables {
		set := s.tables[table]
		cols := make([]string, 0, len(set.byColumn))
		for c := range set.byColumn {
			cols = append(cols, c)
		}
		sort.Strings(cols)
		for _, col := range cols {
			if set.byColumn[col].Name == name {
				delete(set.byColumn, col)
				return true
			}
		}
	}
	return false
}

// RebuildAll rebuilds every index defined on t, used after a delete or
// update compacts the row ids.
func (s *Store) RebuildAll(t *catalog.Table) {
	set, ok := s.tables[t.Name]
	if !ok {
		return
	}
	for _, idx := range set.byColumn {
		idx.Rebuild(t)
	}
}

// InsertRow appends rowID to every index on t for the values in row.
func (s *Store) InsertRow(t *catalog.Table, row catalog.Row, rowID int) {
	set, ok := s.tables[t.Name]
	if !ok {
		return
	}
	for column, idx := range set.byColumn {
		colIdx := t.ColumnIndex(column)
		if colIdx < 0 || colIdx >= len(row) {
			continue
		}
		idx.Insert(row[colIdx], rowID)
	}
}

// Snapshot describes one persisted index entry, flattened to a plain value
// -> []int map for portable (de)serialization.
type Snapshot struct {
	Name   string
	Table  string
	Column string
	Type   catalog.Type
	Rows   map[SnapshotKey][]int
}

// SnapshotKey is a serialization-friendly key: the pair (type, raw value)
// a catalog.Value decomposes to, since gob cannot key a map on an
// interface-free struct containing mixed-type fields used inconsistently.
type SnapshotKey struct {
	IsNull bool
	Int    int64
	Float  float64
	Str    string
}

func toKey(v catalog.Value) SnapshotKey {
	return SnapshotKey{IsNull: v.Null, Int: v.Int, Float: v.Float, Str: v.String}
}

func fromKey(k SnapshotKey, t catalog.Type) catalog.Value {
	if k.IsNull {
		return catalog.NewNull(t)
	}
	switch t {
	case catalog.Int:
		return catalog.NewInt(k.Int)
	case catalog.Double:
		return catalog.NewDouble(k.Float)
	default:
		return catalog.NewString(k.Str)
	}
}

// Export flattens every index in the store into its persisted form.
func (s *Store) Export(valueType func(table, column string) catalog.Type) []Snapshot {
	tables := make([]string, 0, len(s.tables))
	for t := range s.tables {
		tables = append(tables, t)
	}
	sort.Strings(tables)

	var out []Snapshot
	for _, table := range tables {
		set := s.tables[table]
		cols := make([]string, 0, len(set.byColumn))
		for c := range set.byColumn {
			cols = append(cols, c)
		}
		sort.Strings(cols)
		for _, col := range cols {
			idx := set.byColumn[col]
			snap := Snapshot{
				Name:   idx.Name,
				Table:  table,
				Column: col,
				Type:   valueType(table, col),
				Rows:   make(map[SnapshotKey][]int),
			}
			idx.Ascend(func(value catalog.Value, rows []int) bool {
				cp := make([]int, len(rows))
				copy(cp, rows)
				snap.Rows[toKey(value)] = cp
				return true
			})
			out = append(out, snap)
		}
	}
	return out
}

// Import rehydrates a store from its persisted snapshots.
func Import(snapshots []Snapshot) *Store {
	s := NewStore()
	for _, snap := range snapshots {
		s.EnsureTable(snap.Table)
		idx := New(snap.Name, snap.Table, snap.Column)
		for key, rows := range snap.Rows {
			v := fromKey(key, snap.Type)
			cp := make([]int, len(rows))
			copy(cp, rows)
			idx.tree.ReplaceOrInsert(&entry{value: v, rows: cp})
		}
		s.tables[snap.Table].byColumn[snap.Column] = idx
	}
	return s
}
