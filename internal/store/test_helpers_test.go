package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/eqb/internal/ir"
)

// createTestStore opens a fresh store in a temp directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestQuery builds a query record, failing the test on error.
func createTestQuery(t *testing.T, text string, params map[string]any) ir.QueryRecord {
	t.Helper()
	q, err := ir.NewQueryRecord(text, params)
	if err != nil {
		t.Fatalf("NewQueryRecord() failed: %v", err)
	}
	return q
}
