package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/codr1/Ensaios/internal/booking"
	"github.com/codr1/Ensaios/internal/store/csvfile"
	"github.com/codr1/Ensaios/internal/testutil"
)

func newTestService(t *testing.T) *Service {
	t.Helper()

	svc, err := New()
	if err != nil {
		t.Fatalf("new scheduler: %v", err)
	}
	t.Cleanup(func() {
		_ = svc.Stop()
	})
	return svc
}

func TestAddJobValidation(t *testing.T) {
	svc := newTestService(t)
	noop := func() error { return nil }

	tests := []struct {
		name    string
		job     string
		cron    string
		wantErr error
	}{
		{name: "empty_name", job: " ", cron: "* * * * *", wantErr: ErrEmptyJobName},
		{name: "empty_cron", job: "job", cron: "", wantErr: ErrEmptyCronExpr},
		{name: "invalid_cron", job: "job", cron: "not a cron"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			_, err := svc.AddJob(test.job, test.cron, noop)
			if err == nil {
				t.Fatal("expected error")
			}
			if test.wantErr != nil && !errors.Is(err, test.wantErr) {
				t.Fatalf("expected %v, got %v", test.wantErr, err)
			}
		})
	}
}

func TestAddJobRegisters(t *testing.T) {
	svc := newTestService(t)

	job, err := svc.AddJob("nightly", "@daily", func() error { return nil })
	if err != nil {
		t.Fatalf("add job: %v", err)
	}
	if job.Name() != "nightly" {
		t.Fatalf("job name = %q", job.Name())
	}
	if len(svc.Jobs()) != 1 {
		t.Fatalf("expected one job, got %d", len(svc.Jobs()))
	}
}

func TestNilService(t *testing.T) {
	var svc *Service
	if _, err := svc.AddJob("job", "* * * * *", func() error { return nil }); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if err := svc.Stop(); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if svc.Jobs() != nil {
		t.Fatal("expected no jobs")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	svc := newTestService(t)
	svc.Start()
	if err := svc.Stop(); err != nil {
		t.Fatalf("first stop: %v", err)
	}
	if err := svc.Stop(); err != nil {
		t.Fatalf("second stop: %v", err)
	}
}

func TestRegisterJobs(t *testing.T) {
	svc := newTestService(t)
	ledger := testutil.NewTestLedger(t, testutil.NewTestStore(t))

	if err := RegisterFlushJob(svc, "*/5 * * * *", ledger); err != nil {
		t.Fatalf("register flush job: %v", err)
	}
	if err := RegisterBackupJob(svc, "0 3 * * *", t.TempDir(), ledger); err != nil {
		t.Fatalf("register backup job: %v", err)
	}
	if err := RegisterBackupJob(svc, "0 3 * * *", "", ledger); err == nil {
		t.Fatal("expected error for missing backup directory")
	}
	if err := RegisterFlushJob(svc, "*/5 * * * *", nil); err == nil {
		t.Fatal("expected error for missing ledger")
	}

	names := map[string]bool{}
	for _, job := range svc.Jobs() {
		names[job.Name()] = true
	}
	if !names[flushJobName] || !names[backupJobName] {
		t.Fatalf("unexpected jobs: %v", names)
	}
}

func TestFlushPending(t *testing.T) {
	ctx := context.Background()
	s := testutil.NewTestStore(t)
	ledger := testutil.NewTestLedger(t, s)

	if err := FlushPending(ctx, ledger); err != nil {
		t.Fatalf("flush on clean ledger: %v", err)
	}

	s.SetFailures(nil, errors.New("disk full"))
	date := booking.NewDate(2025, time.March, 14)
	if _, err := ledger.Add(ctx, date, "D1", "19:00"); !errors.Is(err, booking.ErrStoreUnavailable) {
		t.Fatalf("expected store unavailable, got %v", err)
	}
	if err := FlushPending(ctx, ledger); !errors.Is(err, booking.ErrStoreUnavailable) {
		t.Fatalf("expected flush to keep failing, got %v", err)
	}

	s.SetFailures(nil, nil)
	if err := FlushPending(ctx, ledger); err != nil {
		t.Fatalf("flush after recovery: %v", err)
	}
	if ledger.Pending() {
		t.Fatal("ledger should be clean after flush")
	}
	if rows := s.Rows(); len(rows) != 1 || rows[0].Date != "14/03/2025" {
		t.Fatalf("unexpected stored rows: %+v", rows)
	}
}

func TestWriteBackup(t *testing.T) {
	s := testutil.NewTestStore(t,
		testutil.Row("b", "15/03/2025", "D2", "20:00"),
		testutil.Row("a", "14/03/2025", "D1", "19:00"),
	)
	ledger := testutil.NewTestLedger(t, s)
	dir := filepath.Join(t.TempDir(), "backups")
	now := time.Date(2025, time.March, 16, 3, 0, 0, 0, time.Local)

	path, err := WriteBackup(context.Background(), ledger, dir, now)
	if err != nil {
		t.Fatalf("write backup: %v", err)
	}
	if filepath.Base(path) != "agenda-20250316-030000.csv" {
		t.Fatalf("unexpected backup name %q", path)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open backup: %v", err)
	}
	defer f.Close()
	rows, err := csvfile.ReadRows(f)
	if err != nil {
		t.Fatalf("read backup: %v", err)
	}
	if len(rows) != 2 || rows[0].ID != "a" || rows[1].ID != "b" {
		t.Fatalf("expected rows sorted by date, got %+v", rows)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), ".backup-") {
			t.Fatalf("temporary file left behind: %s", entry.Name())
		}
	}
}

func TestWriteBackupSkipsUnloadedLedger(t *testing.T) {
	s := testutil.NewTestStore(t, testutil.Row("a", "14/03/2025", "D1", "19:00"))
	ledger := testutil.NewTestLedger(t, s)
	s.SetFailures(errors.New("offline"), nil)
	if _, err := ledger.Reload(context.Background()); err == nil {
		t.Fatal("expected reload to fail")
	}

	dir := filepath.Join(t.TempDir(), "backups")
	if _, err := WriteBackup(context.Background(), ledger, dir, time.Now()); err == nil {
		t.Fatal("expected backup of an unloaded ledger to fail")
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("expected no backup directory, got %v", err)
	}
}
