// Package storage persists and restores the full catalog and the full
// index map as two single files: a mutex-guarded handle opened once at
// startup, with every save going through a temp file and an atomic rename.
package storage

import (
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sqlitoy/sqlitoy/internal/catalog"
	"github.com/sqlitoy/sqlitoy/internal/index"
	"github.com/sqlitoy/sqlitoy/internal/logging"
)

var log = logging.GetLogger("storage")

// tableSnapshot is the persisted form of one table: its metadata plus its
// row data, in a shape gob can round-trip without needing access to
// catalog's unexported fields.
type tableSnapshot struct {
	Name        string
	Columns     []catalog.Column
	PrimaryKey  string
	ForeignKeys []catalog.ForeignKey
	Rows        []catalog.Row
}

// dbSnapshot is the full persisted catalog. Tables is an ordered slice, not
// a map, so creation order survives a save/load round trip.
type dbSnapshot struct {
	Tables []tableSnapshot
}

// Store owns the two on-disk snapshot files and the paths they live at.
// Directory creation happens once, at Open.
type Store struct {
	mu        sync.Mutex
	dbPath    string
	indexPath string
}

// Open prepares a Store for dbPath/indexPath, creating their parent
// directories if missing. It does not read either file yet; callers call
// LoadDB/LoadIndex to do that (or just start from empty structures).
func Open(dbPath, indexPath string) (*Store, error) {
	for _, p := range []string{dbPath, indexPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			return nil, fmt.Errorf("storage: create directory for %s: %w", p, err)
		}
	}
	log.Info("storage opened", "db_path", dbPath, "index_path", indexPath)
	return &Store{dbPath: dbPath, indexPath: indexPath}, nil
}

// LoadDB reads the database snapshot, returning a fresh empty catalog if
// the file does not exist yet.
func (s *Store) LoadDB() (*catalog.Catalog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cat := catalog.NewCatalog()

	f, err := os.Open(s.dbPath)
	if os.IsNotExist(err) {
		return cat, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: open database snapshot: %w", err)
	}
	defer f.Close()

	var snap dbSnapshot
	if err := gob.NewDecoder(f).Decode(&snap); err != nil {
		return nil, fmt.Errorf("storage: decode database snapshot: %w", err)
	}

	for _, ts := range snap.Tables {
		t := catalog.NewTable(ts.Name, ts.Columns, ts.PrimaryKey, ts.ForeignKeys)
		t.Data = ts.Rows
		cat.AddTable(t)
	}
	return cat, nil
}

// SaveDB writes cat atomically: encode to a sibling temp file, then rename
// onto the target so a crash mid-write never corrupts the previous
// snapshot.
func (s *Store) SaveDB(cat *catalog.Catalog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var snap dbSnapshot
	for _, t := range cat.Tables() {
		snap.Tables = append(snap.Tables, tableSnapshot{
			Name:        t.Name,
			Columns:     t.Columns,
			PrimaryKey:  t.PrimaryKey,
			ForeignKeys: t.ForeignKeys,
			Rows:        t.Data,
		})
	}

	return atomicWriteGob(s.dbPath, snap)
}

// LoadIndex reads the index snapshot, returning an empty store if the file
// is absent.
func (s *Store) LoadIndex() (*index.Store, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.Open(s.indexPath)
	if os.IsNotExist(err) {
		return index.NewStore(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: open index snapshot: %w", err)
	}
	defer f.Close()

	var snaps []index.Snapshot
	if err := gob.NewDecoder(f).Decode(&snaps); err != nil {
		return nil, fmt.Errorf("storage: decode index snapshot: %w", err)
	}
	return index.Import(snaps), nil
}

// SaveIndex flattens every index's ordered tree to a plain map for
// portability and atomically replaces the index snapshot file.
func (s *Store) SaveIndex(store *index.Store, valueType func(table, column string) catalog.Type) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	snaps := store.Export(valueType)
	return atomicWriteGob(s.indexPath, snaps)
}

func atomicWriteGob(path string, v interface{}) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("storage: create temp file %s: %w", tmp, err)
	}
	if err := gob.NewEncoder(f).Encode(v); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("storage: encode %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("storage: close temp file %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("storage: rename %s into place: %w", path, err)
	}
	return nil
}
