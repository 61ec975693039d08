// Package memory is an in-process Store used by tests and the "memory" driver.
package memory

import (
	"context"
	"sync"

	"github.com/codr1/Ensaios/internal/store"
)

type Store struct {
	mu   sync.Mutex
	rows []store.Row

	// FailLoad and FailReplace force the next calls to fail with ErrUnavailable.
	FailLoad    error
	FailReplace error
}

func New(rows ...store.Row) *Store {
	return &Store{rows: store.CloneRows(rows)}
}

func (s *Store) LoadAll(ctx context.Context) (store.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return store.Snapshot{}, store.Unavailable("load_all", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailLoad != nil {
		return store.Snapshot{}, store.Unavailable("load_all", s.FailLoad)
	}
	return store.Snapshot{
		Rows:     store.CloneRows(s.rows),
		Revision: store.RevisionOf(s.rows),
	}, nil
}

func (s *Store) ReplaceAll(ctx context.Context, rows []store.Row, expected store.Revision) (store.Revision, error) {
	if err := ctx.Err(); err != nil {
		return "", store.Unavailable("replace_all", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailReplace != nil {
		return "", store.Unavailable("replace_all", s.FailReplace)
	}
	if err := store.CheckRevision(store.RevisionOf(s.rows), expected); err != nil {
		return "", err
	}
	s.rows = store.CloneRows(rows)
	return store.RevisionOf(s.rows), nil
}

// Rows returns a copy of the stored rows.
func (s *Store) Rows() []store.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return store.CloneRows(s.rows)
}

// SetFailures toggles forced failures; pass nil to clear.
func (s *Store) SetFailures(load, replace error) {
	s.mu.Lock()
	s.FailLoad = load
	s.FailReplace = replace
	s.mu.Unlock()
}
