// Package csvfile keeps the agenda in a flat CSV file with a header row.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/codr1/Ensaios/internal/store"
)

type Store struct {
	path string
	mu   sync.Mutex
}

// New returns a store for path, creating the parent directory if needed.
// The file itself is created on the first write.
func New(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("csv store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("error creating csv store directory: %w", err)
	}
	return &Store{path: path}, nil
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) LoadAll(ctx context.Context) (store.Snapshot, error) {
	if err := ctx.Err(); err != nil {
		return store.Snapshot{}, store.Unavailable("load_all", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.read()
	if err != nil {
		return store.Snapshot{}, store.Unavailable("load_all", err)
	}
	return store.Snapshot{Rows: rows, Revision: store.RevisionOf(rows)}, nil
}

func (s *Store) ReplaceAll(ctx context.Context, rows []store.Row, expected store.Revision) (store.Revision, error) {
	if err := ctx.Err(); err != nil {
		return "", store.Unavailable("replace_all", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if expected != "" {
		current, err := s.read()
		if err != nil {
			return "", store.Unavailable("replace_all", err)
		}
		if err := store.CheckRevision(store.RevisionOf(current), expected); err != nil {
			return "", err
		}
	}

	if err := s.write(rows); err != nil {
		return "", store.Unavailable("replace_all", err)
	}
	log.Debug().Str("path", s.path).Int("rows", len(rows)).Msg("CSV store rewritten")
	return store.RevisionOf(rows), nil
}

func (s *Store) read() ([]store.Row, error) {
	file, err := os.Open(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []store.Row{}, nil
		}
		return nil, fmt.Errorf("open %s: %w", s.path, err)
	}
	defer file.Close()

	rows, err := ReadRows(file)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", s.path, err)
	}
	return rows, nil
}

// write replaces the file atomically through a temp file in the same directory.
func (s *Store) write(rows []store.Row) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := WriteRows(tmp, rows); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

type columns struct {
	date, band, time, id int
}

var positional = columns{date: 0, band: 1, time: 2, id: 3}

// ReadRows parses CSV content. A header row, when present, decides the column
// positions; otherwise the order is date, band, time and an optional id.
// Extra columns are ignored. Short records yield rows with empty fields so the
// ledger can report them as malformed.
func ReadRows(r io.Reader) ([]store.Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	cols := positional
	if len(records) > 0 {
		if header, ok := parseHeader(records[0]); ok {
			cols = header
			records = records[1:]
		}
	}

	rows := make([]store.Row, 0, len(records))
	for _, record := range records {
		if isBlank(record) {
			continue
		}
		rows = append(rows, store.Row{
			ID:   field(record, cols.id),
			Date: field(record, cols.date),
			Band: field(record, cols.band),
			Time: field(record, cols.time),
		})
	}
	return rows, nil
}

// WriteRows writes the header followed by one record per row.
func WriteRows(w io.Writer, rows []store.Row) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(store.Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, row := range rows {
		if err := writer.Write([]string{row.Date, row.Band, row.Time, row.ID}); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func parseHeader(record []string) (columns, bool) {
	cols := columns{date: -1, band: -1, time: -1, id: -1}
	for i, name := range record {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "data", "date":
			cols.date = i
		case "banda", "band", "band_code":
			cols.band = i
		case "horario", "horário", "time":
			cols.time = i
		case "id":
			cols.id = i
		}
	}
	if cols.date < 0 && cols.band < 0 && cols.time < 0 {
		return columns{}, false
	}
	return cols, true
}

func field(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

func isBlank(record []string) bool {
	for _, value := range record {
		if strings.TrimSpace(value) != "" {
			return false
		}
	}
	return true
}
