// Package testutil provides testing utilities and helpers for sqlitoy.
package testutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sqlitoy/sqlitoy/internal/engine"
	"github.com/sqlitoy/sqlitoy/internal/sql"
	"github.com/sqlitoy/sqlitoy/internal/storage"
)

// TestEngine wraps a sqlitoy Engine backed by a temporary pair of
// snapshot files, for tests that want to run real SQL against the
// catalog/index/executor stack without touching a real database file.
type TestEngine struct {
	*engine.Engine
	Dir string
	t   *testing.T
}

// NewTestEngine opens an Engine over fresh snapshot files in a temp
// directory. The directory is removed automatically when the test ends.
func NewTestEngine(t *testing.T) *TestEngine {
	t.Helper()

	dir := t.TempDir()
	store, err := storage.Open(filepath.Join(dir, "database.gob"), filepath.Join(dir, "index.gob"))
	if err != nil {
		t.Fatalf("failed to open test storage: %v", err)
	}
	eng, err := engine.Open(store)
	if err != nil {
		t.Fatalf("failed to open test engine: %v", err)
	}

	return &TestEngine{Engine: eng, Dir: dir, t: t}
}

// MustRun parses and runs src as a statement batch, failing the test on
// any parse, plan, or execution error.
func (e *TestEngine) MustRun(src string) engine.Result {
	e.t.Helper()

	stmts, err := sql.PlanBatch(src)
	if err != nil {
		e.t.Fatalf("failed to plan batch: %v\nquery: %s", err, src)
	}
	result, err := e.RunBatch(stmts)
	if err != nil {
		e.t.Fatalf("failed to run batch: %v\nquery: %s", err, src)
	}
	return result
}

// Count returns the number of rows currently in table.
func (e *TestEngine) Count(table string) int {
	e.t.Helper()

	result := e.MustRun(fmt.Sprintf("SELECT COUNT(*) AS n FROM %s;", table))
	if len(result.Rows) != 1 {
		e.t.Fatalf("expected one row from COUNT(*), got %d", len(result.Rows))
	}
	v, ok := result.Rows[0]["n"]
	if !ok {
		e.t.Fatalf("COUNT(*) result missing its n column: %v", result.Rows[0])
	}
	return int(v.Int)
}

// AssertRowCount asserts that table has exactly expected rows.
func (e *TestEngine) AssertRowCount(table string, expected int) {
	e.t.Helper()

	actual := e.Count(table)
	if actual != expected {
		e.t.Errorf("expected %d rows in %s, got %d", expected, table, actual)
	}
}

// TempDir creates a temporary directory for testing. Automatically
// cleaned up after test completion.
func TempDir(t *testing.T) string {
	t.Helper()
	return t.TempDir()
}

// TempFile creates a temporary file for testing. Automatically cleaned
// up after test completion.
func TempFile(t *testing.T, name string, content []byte) string {
	t.Helper()

	dir := t.TempDir()
	path := filepath.Join(dir, name)

	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}

	return path
}

// AssertNoError fails the test if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails the test if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()

	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertEqual fails the test if got != want.
func AssertEqual(t *testing.T, got, want interface{}) {
	t.Helper()

	if got != want {
		t.Errorf("got %v, want %v", got, want)
	}
}

// AssertStringContains fails the test if str doesn't contain substr.
func AssertStringContains(t *testing.T, str, substr string) {
	t.Helper()

	if !strings.Contains(str, substr) {
		t.Errorf("string %q does not contain %q", str, substr)
	}
}
