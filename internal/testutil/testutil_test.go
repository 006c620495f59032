package testutil

import (
	"os"
	"testing"
)

func TestNewTestEngine(t *testing.T) {
	e := NewTestEngine(t)

	e.MustRun(`CREATE TABLE widgets (id INT, name STRING, PRIMARY KEY(id));`)
	e.AssertRowCount("widgets", 0)
}

func TestTestEngine_MustRunAndCount(t *testing.T) {
	e := NewTestEngine(t)
	e.MustRun(`CREATE TABLE widgets (id INT, name STRING, PRIMARY KEY(id));`)

	e.MustRun(`INSERT INTO widgets VALUES (1, 'cog');`)
	e.AssertRowCount("widgets", 1)

	e.MustRun(`INSERT INTO widgets VALUES (2, 'gear');`)
	e.AssertRowCount("widgets", 2)
}

func TestTempDir(t *testing.T) {
	dir := TempDir(t)

	info, err := os.Stat(dir)
	if err != nil {
		t.Fatalf("temp directory doesn't exist: %v", err)
	}
	if !info.IsDir() {
		t.Error("path is not a directory")
	}
}

func TestTempFile(t *testing.T) {
	content := []byte("test content")
	path := TempFile(t, "test.txt", content)

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read temp file: %v", err)
	}

	if string(data) != string(content) {
		t.Errorf("expected content %q, got %q", string(content), string(data))
	}
}

func TestAssertNoError(t *testing.T) {
	AssertNoError(t, nil)
}

func TestAssertEqual(t *testing.T) {
	AssertEqual(t, 1, 1)
	AssertEqual(t, "test", "test")
	AssertEqual(t, true, true)
}

func TestAssertStringContains(t *testing.T) {
	AssertStringContains(t, "hello world", "world")
	AssertStringContains(t, "hello world", "hello")
	AssertStringContains(t, "hello world", "o w")
}
