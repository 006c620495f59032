// Package engine implements the DDL/DML executors: the primitive
// operations that read and mutate the catalog, row store, and indexes
// while preserving the invariants of the data model. Every entry point is
// called with the engine's single exclusive lock already held by the
// batch dispatcher (see Engine.RunBatch); the reload-before/save-after
// discipline happens once per batch rather than once per statement, so a
// multi-statement request pays for one load/save pair instead of N.
package engine

import (
	"sync"

	"github.com/sqlitoy/sqlitoy/internal/catalog"
	"github.com/sqlitoy/sqlitoy/internal/index"
	"github.com/sqlitoy/sqlitoy/internal/logging"
	"github.com/sqlitoy/sqlitoy/internal/storage"
)

var log = logging.GetLogger("engine")

// Engine owns the in-memory catalog and index store, guarded by a single
// mutex held for the duration of one statement batch.
type Engine struct {
	mu    sync.Mutex
	store *storage.Store
	cat   *catalog.Catalog
	idx   *index.Store
}

// Open loads the catalog and index snapshots and returns a ready Engine.
func Open(store *storage.Store) (*Engine, error) {
	cat, err := store.LoadDB()
	if err != nil {
		return nil, IOErrorf(err, "loading database snapshot")
	}
	idx, err := store.LoadIndex()
	if err != nil {
		return nil, IOErrorf(err, "loading index snapshot")
	}
	return &Engine{store: store, cat: cat, idx: idx}, nil
}

// Statement is one parsed-and-planned SQL statement, ready to run against
// an Engine. The sql package's planner produces these.
type Statement interface {
	Execute(e *Engine) (Result, error)
}

// ResultKind distinguishes what shape of payload a statement produced.
type ResultKind int

const (
	// NoResult is returned by DDL and INSERT: the HTTP layer renders null.
	NoResult ResultKind = iota
	// CountResult is returned by DELETE and UPDATE: the affected row count.
	CountResult
	// RowsResult is returned by SELECT: an ordered list of records.
	RowsResult
)

// Result is the outcome of one executed statement.
type Result struct {
	Kind  ResultKind
	Count int
	Rows  []catalog.Record
}

// RunBatch runs every statement in order against one reload/save boundary:
// it reloads both snapshots, applies each statement, and on success saves
// both snapshots back before returning the last statement's result. If any
// statement fails, nothing in the batch is saved — the whole batch shares
// one transaction boundary, folding the original per-call reload/save
// pairing into a single pair per request (see design notes).
func (e *Engine) RunBatch(stmts []Statement) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	cat, err := e.store.LoadDB()
	if err != nil {
		return Result{}, IOErrorf(err, "reloading database snapshot")
	}
	idx, err := e.store.LoadIndex()
	if err != nil {
		return Result{}, IOErrorf(err, "reloading index snapshot")
	}
	e.cat, e.idx = cat, idx

	var last Result
	for i, stmt := range stmts {
		res, err := stmt.Execute(e)
		if err != nil {
			log.Debug("statement failed, batch discarded", "index", i, "error", err)
			return Result{}, err
		}
		last = res
	}

	if err := e.store.SaveDB(e.cat); err != nil {
		return Result{}, IOErrorf(err, "saving database snapshot")
	}
	if err := e.store.SaveIndex(e.idx, e.valueType); err != nil {
		return Result{}, IOErrorf(err, "saving index snapshot")
	}
	return last, nil
}

func (e *Engine) valueType(table, column string) catalog.Type {
	t := e.cat.Table(table)
	if t == nil {
		return catalog.String
	}
	if c, ok := t.Column(column); ok {
		return c.Type
	}
	return catalog.String
}

func (e *Engine) requireTable(name string) (*catalog.Table, error) {
	t := e.cat.Table(name)
	if t == nil {
		return nil, SchemaErrorf("table %q does not exist", name)
	}
	return t, nil
}
