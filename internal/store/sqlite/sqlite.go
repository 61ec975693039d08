// Package sqlite keeps the agenda rows in a SQLite table, one row per booking
// in working-set order.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog/log"

	"github.com/codr1/Ensaios/internal/store"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

type Store struct {
	db *sql.DB
}

// New opens the SQLite database at filename, creating its directory, applies
// the embedded migrations and returns a Store bound to the connection.
func New(filename string) (*Store, error) {
	if strings.TrimSpace(filename) == "" {
		return nil, fmt.Errorf("sqlite filename is required")
	}
	if !strings.HasPrefix(filename, "file:") {
		if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
			return nil, fmt.Errorf("error creating database directory: %w", err)
		}
	}

	dataSourceName := ensureDSNParam(filename, "_busy_timeout", "5000")
	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("error running migrations: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the connection for tests and tools.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) LoadAll(ctx context.Context) (store.Snapshot, error) {
	rows, err := listRows(ctx, s.db)
	if err != nil {
		return store.Snapshot{}, store.Unavailable("load_all", err)
	}
	return store.Snapshot{Rows: rows, Revision: store.RevisionOf(rows)}, nil
}

func (s *Store) ReplaceAll(ctx context.Context, rows []store.Row, expected store.Revision) (store.Revision, error) {
	var mismatch error
	err := s.runInTx(ctx, func(tx *sql.Tx) error {
		current, err := listRows(ctx, tx)
		if err != nil {
			return err
		}
		if err := store.CheckRevision(store.RevisionOf(current), expected); err != nil {
			mismatch = err
			return err
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM bookings"); err != nil {
			return fmt.Errorf("clear bookings: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, "INSERT INTO bookings (position, id, date, band_code, time) VALUES (?, ?, ?, ?, ?)")
		if err != nil {
			return fmt.Errorf("prepare insert: %w", err)
		}
		defer stmt.Close()

		for i, row := range rows {
			if _, err := stmt.ExecContext(ctx, i+1, row.ID, row.Date, row.Band, row.Time); err != nil {
				return fmt.Errorf("insert booking %d: %w", i+1, err)
			}
		}
		return nil
	})
	if mismatch != nil {
		return "", mismatch
	}
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Int("rows", len(rows)).Msg("Failed to replace bookings")
		return "", store.Unavailable("replace_all", err)
	}
	return store.RevisionOf(rows), nil
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func listRows(ctx context.Context, q queryer) ([]store.Row, error) {
	result, err := q.QueryContext(ctx, "SELECT id, date, band_code, time FROM bookings ORDER BY position")
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer result.Close()

	rows := []store.Row{}
	for result.Next() {
		var row store.Row
		if err := result.Scan(&row.ID, &row.Date, &row.Band, &row.Time); err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		rows = append(rows, row)
	}
	if err := result.Err(); err != nil {
		return nil, fmt.Errorf("iterate bookings: %w", err)
	}
	return rows, nil
}

// runInTx runs fn in a transaction, rolling back on error or panic.
func (s *Store) runInTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error beginning transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("error rolling back: %v (original error: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing: %w", err)
	}
	return nil
}

// ensureDSNParam appends key=value to the DSN unless the key is already present.
func ensureDSNParam(dataSourceName, key, value string) string {
	if strings.Contains(dataSourceName, key+"=") {
		return dataSourceName
	}
	if strings.Contains(dataSourceName, "?") {
		return dataSourceName + "&" + key + "=" + value
	}
	return dataSourceName + "?" + key + "=" + value
}

// Migrator returns a golang-migrate instance for db backed by the embedded
// migrations. Closing it closes db.
func Migrator(db *sql.DB) (*migrate.Migrate, error) {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return nil, fmt.Errorf("could not create migrate driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("could not create source: %w", err)
	}

	m, err := migrate.NewWithInstance(
		"iofs", source,
		"sqlite3", driver,
	)
	if err != nil {
		return nil, fmt.Errorf("could not create migrate instance: %w", err)
	}
	return m, nil
}

// runMigrations applies the embedded SQL migrations. ErrNoChange is not an error.
func runMigrations(db *sql.DB) error {
	m, err := Migrator(db)
	if err != nil {
		return err
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("could not run migrations: %w", err)
	}
	return nil
}
