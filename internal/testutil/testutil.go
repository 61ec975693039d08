package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/codr1/Ensaios/internal/booking"
	"github.com/codr1/Ensaios/internal/store"
	"github.com/codr1/Ensaios/internal/store/memory"
	"github.com/codr1/Ensaios/internal/store/sqlite"
)

// NewTestStore returns an in-memory store seeded with rows.
func NewTestStore(t *testing.T, rows ...store.Row) *memory.Store {
	t.Helper()
	return memory.New(rows...)
}

// NewTestSQLiteStore creates a temporary SQLite store with migrations applied.
func NewTestSQLiteStore(t *testing.T) *sqlite.Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := sqlite.New(dbPath)
	if err != nil {
		t.Fatalf("create test store: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})

	return s
}

// NewTestLedger builds a ledger over s and loads it.
func NewTestLedger(t *testing.T, s store.Store, opts ...booking.Option) *booking.Ledger {
	t.Helper()

	ledger, err := booking.NewLedger(s, opts...)
	if err != nil {
		t.Fatalf("create ledger: %v", err)
	}
	if _, err := ledger.Reload(context.Background()); err != nil {
		t.Fatalf("load ledger: %v", err)
	}
	return ledger
}

// Row builds a stored row in the on-disk format.
func Row(id, date, band, clock string) store.Row {
	return store.Row{ID: id, Date: date, Band: band, Time: clock}
}
