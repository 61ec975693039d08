// internal/store/backend/backend.go
package backend

import (
	"fmt"
	"io"

	"github.com/rs/zerolog/log"

	"github.com/codr1/Ensaios/internal/config"
	"github.com/codr1/Ensaios/internal/store"
	"github.com/codr1/Ensaios/internal/store/csvfile"
	"github.com/codr1/Ensaios/internal/store/memory"
	"github.com/codr1/Ensaios/internal/store/sqlite"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open builds the configured row store, wrapped with the configured per-call timeout.
// The returned closer releases the underlying resources and is never nil on success.
func Open(cfg config.StoreConfig) (store.Store, io.Closer, error) {
	var (
		s      store.Store
		closer io.Closer = nopCloser{}
	)

	switch cfg.Driver {
	case config.StoreDriverSQLite:
		db, err := sqlite.New(cfg.Filename)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		s, closer = db, db
	case config.StoreDriverCSV:
		file, err := csvfile.New(cfg.Filename)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open csv store: %w", err)
		}
		s = file
	case config.StoreDriverMemory:
		s = memory.New()
	default:
		return nil, nil, fmt.Errorf("unsupported store driver: %q", cfg.Driver)
	}

	log.Info().
		Str("driver", cfg.Driver).
		Str("filename", cfg.Filename).
		Dur("timeout", cfg.Timeout).
		Msg("Opened booking store")

	if cfg.Timeout > 0 {
		s = store.WithTimeout(s, cfg.Timeout)
	}
	return s, closer, nil
}
