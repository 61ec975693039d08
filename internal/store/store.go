// Package store defines the persistence boundary of the agenda: a plain row
// collection that is read whole and overwritten whole.
package store

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// DateLayout is the canonical on-disk date format (day first, as the
// original spreadsheet kept it).
const DateLayout = "02/01/2006"

// Header is written as the first record by row-oriented backends.
var Header = []string{"data", "banda", "horario", "id"}

var (
	ErrUnavailable      = errors.New("store unavailable")
	ErrRevisionMismatch = errors.New("store revision mismatch")
)

// Row is the persisted record. All fields are text; parsing happens in the ledger.
type Row struct {
	ID   string
	Date string
	Band string
	Time string
}

// Revision identifies the content of the store at a point in time.
type Revision string

type Snapshot struct {
	Rows     []Row
	Revision Revision
}

// Store is the two-operation contract the ledger depends on.
//
// ReplaceAll overwrites the whole collection. When expected is non-empty and
// the stored content no longer matches it, ReplaceAll fails with
// ErrRevisionMismatch and writes nothing.
type Store interface {
	LoadAll(ctx context.Context) (Snapshot, error)
	ReplaceAll(ctx context.Context, rows []Row, expected Revision) (Revision, error)
}

// UnavailableError wraps backend failures so callers can match ErrUnavailable.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("store unavailable: %s: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() []error {
	return []error{ErrUnavailable, e.Err}
}

func Unavailable(op string, err error) error {
	return &UnavailableError{Op: op, Err: err}
}

// RevisionOf hashes the rows in order. Equal content always yields an equal revision.
func RevisionOf(rows []Row) Revision {
	h := sha256.New()
	for _, row := range rows {
		for _, field := range []string{row.ID, row.Date, row.Band, row.Time} {
			h.Write([]byte(field))
			h.Write([]byte{0x1f})
		}
		h.Write([]byte{0x1e})
	}
	return Revision(hex.EncodeToString(h.Sum(nil)))
}

// CheckRevision reports ErrRevisionMismatch when expected is set and differs from current.
func CheckRevision(current, expected Revision) error {
	if expected == "" || current == expected {
		return nil
	}
	return fmt.Errorf("%w: expected %.12s, found %.12s", ErrRevisionMismatch, expected, current)
}

func CloneRows(rows []Row) []Row {
	if rows == nil {
		return []Row{}
	}
	out := make([]Row, len(rows))
	copy(out, rows)
	return out
}
