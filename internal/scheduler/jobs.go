package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/codr1/Ensaios/internal/booking"
	"github.com/codr1/Ensaios/internal/store"
	"github.com/codr1/Ensaios/internal/store/csvfile"
)

const (
	flushJobName     = "booking_flush"
	backupJobName    = "booking_backup"
	flushJobTimeout  = 30 * time.Second
	backupJobTimeout = time.Minute
	backupFilePrefix = "agenda-"
)

// RegisterFlushJob retries saves the ledger is still holding after a store failure.
func RegisterFlushJob(svc *Service, cronExpr string, ledger *booking.Ledger) error {
	if ledger == nil {
		return fmt.Errorf("flush job requires a ledger")
	}
	jobLogger := log.With().Str("component", "booking_flush_job").Logger()

	_, err := svc.AddJob(flushJobName, cronExpr, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), flushJobTimeout)
		defer cancel()
		return FlushPending(jobLogger.WithContext(ctx), ledger)
	})
	return err
}

// FlushPending saves the working set if an earlier save failed. It is a no-op otherwise.
func FlushPending(ctx context.Context, ledger *booking.Ledger) error {
	logger := log.Ctx(ctx)
	if !ledger.Pending() {
		logger.Debug().Msg("No pending bookings to flush")
		return nil
	}
	if err := ledger.Flush(ctx); err != nil {
		return fmt.Errorf("flush pending bookings: %w", err)
	}
	logger.Info().Int("bookings", ledger.Len()).Msg("Pending bookings saved")
	return nil
}

// RegisterBackupJob writes a CSV copy of the working set into dir on schedule.
func RegisterBackupJob(svc *Service, cronExpr, dir string, ledger *booking.Ledger) error {
	if ledger == nil {
		return fmt.Errorf("backup job requires a ledger")
	}
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("backup job requires a directory")
	}
	jobLogger := log.With().Str("component", "booking_backup_job").Str("dir", dir).Logger()

	_, err := svc.AddJob(backupJobName, cronExpr, func() error {
		ctx, cancel := context.WithTimeout(context.Background(), backupJobTimeout)
		defer cancel()
		_, err := WriteBackup(jobLogger.WithContext(ctx), ledger, dir, time.Now())
		return err
	})
	return err
}

// WriteBackup writes every booking, in (date, time) order, to a timestamped
// CSV file in dir and returns its path. The file appears atomically. Nothing is
// written while the ledger has not loaded the store.
func WriteBackup(ctx context.Context, ledger *booking.Ledger, dir string, now time.Time) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !ledger.Loaded() {
		return "", fmt.Errorf("backup skipped: agenda has not been loaded from the store")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create backup directory: %w", err)
	}

	bookings := ledger.All()
	rows := make([]store.Row, len(bookings))
	for i, b := range bookings {
		rows[i] = b.Row()
	}

	name := filepath.Join(dir, backupFilePrefix+now.Format("20060102-150405")+".csv")
	tmp, err := os.CreateTemp(dir, ".backup-*.csv")
	if err != nil {
		return "", fmt.Errorf("create backup file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := csvfile.WriteRows(tmp, rows); err != nil {
		tmp.Close()
		return "", fmt.Errorf("write backup: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close backup: %w", err)
	}
	if err := os.Rename(tmp.Name(), name); err != nil {
		return "", fmt.Errorf("publish backup: %w", err)
	}

	log.Ctx(ctx).Info().Str("file", name).Int("bookings", len(rows)).Msg("Booking backup written")
	return name, nil
}
