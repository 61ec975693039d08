package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/codr1/Ensaios/internal/bands"
	"github.com/codr1/Ensaios/internal/store"
)

// ConflictPolicy decides which existing bookings block a new one.
type ConflictPolicy string

const (
	// ConflictDateTime blocks a booking with the same date and the same time.
	ConflictDateTime ConflictPolicy = "date_time"
	// ConflictDate blocks any second booking on the same date.
	ConflictDate ConflictPolicy = "date"
)

func ParseConflictPolicy(value string) (ConflictPolicy, error) {
	switch ConflictPolicy(strings.TrimSpace(value)) {
	case "", ConflictDateTime:
		return ConflictDateTime, nil
	case ConflictDate:
		return ConflictDate, nil
	default:
		return "", fmt.Errorf("unknown conflict policy %q", value)
	}
}

// LoadReport summarizes a load. Malformed rows are skipped, never fatal.
type LoadReport struct {
	Loaded  int
	Skipped int
	Errors  []*MalformedRowError
}

// Ledger owns the working set for the life of the process. Handlers share one
// Ledger; every method is safe for concurrent use.
type Ledger struct {
	mu       sync.Mutex
	store    store.Store
	policy   ConflictPolicy
	newID    func() string
	bookings []Booking
	revision store.Revision
	dirty    bool
	// loaded is false until the store has been read once and after a failed
	// read. The working set then says nothing about what the store holds.
	loaded   bool
	loadedAt time.Time
}

type Option func(*Ledger)

func WithConflictPolicy(policy ConflictPolicy) Option {
	return func(l *Ledger) {
		if policy != "" {
			l.policy = policy
		}
	}
}

// WithIDGenerator replaces the random UUID generator, mostly for tests.
func WithIDGenerator(newID func() string) Option {
	return func(l *Ledger) {
		if newID != nil {
			l.newID = newID
		}
	}
}

func NewLedger(s store.Store, opts ...Option) (*Ledger, error) {
	if s == nil {
		return nil, errors.New("ledger requires a store")
	}
	l := &Ledger{
		store:  s,
		policy: ConflictDateTime,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

func (l *Ledger) Policy() ConflictPolicy {
	return l.policy
}

// Load replaces the working set with the parsed rows. Rows that cannot be
// parsed, or that would break the one-booking-per-slot rule, are skipped and
// reported.
func (l *Ledger) Load(rows []store.Row) LoadReport {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loadLocked(rows)
}

// Reload reads the store and replaces the working set. When the store is
// unavailable the working set is emptied and the error returned for display;
// the next save reads the store again before writing anything.
func (l *Ledger) Reload(ctx context.Context) (LoadReport, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	logger := log.Ctx(ctx)
	snapshot, err := l.store.LoadAll(ctx)
	if err != nil {
		l.bookings = nil
		l.revision = ""
		l.dirty = false
		l.loaded = false
		logger.Error().Err(err).Msg("Failed to load bookings")
		return LoadReport{}, &StoreUnavailableError{Op: "load", Err: err}
	}

	report := l.loadLocked(snapshot.Rows)
	l.revision = snapshot.Revision
	l.dirty = false
	l.loaded = true
	l.loadedAt = time.Now()

	event := logger.Info()
	if report.Skipped > 0 {
		event = logger.Warn()
	}
	event.Int("loaded", report.Loaded).Int("skipped", report.Skipped).Msg("Bookings loaded")
	for _, rowErr := range report.Errors {
		logger.Debug().Err(rowErr).Int("row", rowErr.Index+1).Msg("Skipped malformed booking row")
	}
	return report, nil
}

func (l *Ledger) loadLocked(rows []store.Row) LoadReport {
	report := LoadReport{}
	bookings := make([]Booking, 0, len(rows))
	ids := make(map[string]struct{}, len(rows))

	for i, row := range rows {
		b, err := FromRow(i, row)
		if err != nil {
			var rowErr *MalformedRowError
			if errors.As(err, &rowErr) {
				report.Errors = append(report.Errors, rowErr)
			}
			report.Skipped++
			continue
		}
		if _, dup := ids[b.ID]; dup {
			report.Errors = append(report.Errors, &MalformedRowError{Index: i, Field: "id", Value: b.ID, Err: errors.New("duplicate id")})
			report.Skipped++
			continue
		}
		if existing, taken := conflictIn(bookings, l.policy, b.Date, b.Time); taken {
			report.Errors = append(report.Errors, &MalformedRowError{
				Index: i,
				Field: "time",
				Value: string(b.Time),
				Err:   fmt.Errorf("slot already held by %s", existing.Band),
			})
			report.Skipped++
			continue
		}
		ids[b.ID] = struct{}{}
		bookings = append(bookings, b)
	}

	l.bookings = bookings
	report.Loaded = len(bookings)
	return report
}

// HasConflict reports whether a booking already holds the slot.
func (l *Ledger) HasConflict(date Date, t Clock) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, taken := conflictIn(l.bookings, l.policy, date, t)
	return taken
}

// Add appends a booking after a conflict check and saves the full set.
// When the save fails the booking stays in the working set, the ledger is
// left pending and the returned error is retryable through Flush.
func (l *Ledger) Add(ctx context.Context, date Date, band bands.Code, t Clock) (Booking, error) {
	if date.IsZero() {
		return Booking{}, fmt.Errorf("%w: date is required", ErrInvalid)
	}
	if band == "" {
		return Booking{}, fmt.Errorf("%w: band is required", ErrInvalid)
	}
	if t == "" {
		return Booking{}, fmt.Errorf("%w: time is required", ErrInvalid)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if existing, taken := conflictIn(l.bookings, l.policy, date, t); taken {
		return Booking{}, &ConflictError{Date: date, Time: t, Existing: existing}
	}

	b := Booking{ID: l.newID(), Date: date, Band: band, Time: t}
	l.bookings = append(l.bookings, b)
	l.dirty = true

	logger := log.Ctx(ctx).With().
		Str("booking_id", b.ID).
		Str("date", b.Date.String()).
		Str("band", string(b.Band)).
		Str("time", string(b.Time)).
		Logger()
	logger.Info().Msg("Booking added")

	if err := l.persistLocked(ctx); err != nil {
		if errors.Is(err, ErrConflict) {
			logger.Warn().Err(err).Msg("Booking dropped; slot taken in the stored agenda")
			return Booking{}, err
		}
		logger.Error().Err(err).Msg("Booking kept in memory; save failed")
		return b, err
	}
	return b, nil
}

// Remove deletes exactly the booking with id and saves the remaining set.
// An unknown id leaves the working set untouched.
func (l *Ledger) Remove(ctx context.Context, id string) (Booking, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	idx := -1
	for i, b := range l.bookings {
		if b.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return Booking{}, &NotFoundError{ID: id}
	}

	removed := l.bookings[idx]
	l.bookings = append(l.bookings[:idx:idx], l.bookings[idx+1:]...)
	l.dirty = true

	logger := log.Ctx(ctx).With().
		Str("booking_id", removed.ID).
		Str("date", removed.Date.String()).
		Str("time", string(removed.Time)).
		Logger()
	logger.Info().Msg("Booking removed")

	if err := l.persistLocked(ctx); err != nil {
		logger.Error().Err(err).Msg("Removal kept in memory; save failed")
		return removed, err
	}
	return removed, nil
}

// Flush retries a save that failed earlier. It is a no-op when nothing is pending.
func (l *Ledger) Flush(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.dirty {
		return nil
	}
	return l.persistLocked(ctx)
}

func (l *Ledger) persistLocked(ctx context.Context) error {
	var clash *ConflictError
	if !l.loaded {
		var err error
		if clash, err = l.mergeStoredLocked(ctx); err != nil {
			return err
		}
	}

	revision, err := l.store.ReplaceAll(ctx, toRows(l.bookings), l.revision)
	if err != nil {
		if errors.Is(err, store.ErrRevisionMismatch) {
			return &StaleError{Err: err}
		}
		return &StoreUnavailableError{Op: "save", Err: err}
	}
	l.revision = revision
	l.dirty = false
	if clash != nil {
		return clash
	}
	return nil
}

// mergeStoredLocked reads the store under a working set built while it was
// unreachable. Stored bookings come first; changes made in memory are kept on
// top unless they clash with a stored booking, in which case they are dropped
// and the first clash is returned.
func (l *Ledger) mergeStoredLocked(ctx context.Context) (*ConflictError, error) {
	snapshot, err := l.store.LoadAll(ctx)
	if err != nil {
		return nil, &StoreUnavailableError{Op: "load", Err: err}
	}

	logger := log.Ctx(ctx)
	inMemory := l.bookings
	report := l.loadLocked(snapshot.Rows)
	l.revision = snapshot.Revision
	l.loaded = true
	l.loadedAt = time.Now()

	var clash *ConflictError
	for _, b := range inMemory {
		if existing, taken := conflictIn(l.bookings, l.policy, b.Date, b.Time); taken {
			logger.Warn().Str("booking_id", b.ID).Str("held_by", existing.ID).Msg("Dropped unsaved booking that clashes with the stored agenda")
			if clash == nil {
				clash = &ConflictError{Date: b.Date, Time: b.Time, Existing: existing}
			}
			continue
		}
		l.bookings = append(l.bookings, b)
	}
	logger.Info().Int("stored", report.Loaded).Int("unsaved", len(inMemory)).Msg("Merged unsaved bookings into the stored agenda")
	return clash, nil
}

// ForDay returns the bookings on date in working-set order.
func (l *Ledger) ForDay(date Date) []Booking {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := []Booking{}
	for _, b := range l.bookings {
		if b.Date == date {
			out = append(out, b)
		}
	}
	return out
}

// ForMonth returns the bookings in year/month sorted by (date, time).
func (l *Ledger) ForMonth(year int, month time.Month) []Booking {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := []Booking{}
	for _, b := range l.bookings {
		if b.Date.InMonth(year, month) {
			out = append(out, b)
		}
	}
	SortByDateTime(out)
	return out
}

// Get looks a booking up by id.
func (l *Ledger) Get(id string) (Booking, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, b := range l.bookings {
		if b.ID == id {
			return b, true
		}
	}
	return Booking{}, false
}

// All returns a copy of the working set sorted by (date, time).
func (l *Ledger) All() []Booking {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]Booking, len(l.bookings))
	copy(out, l.bookings)
	SortByDateTime(out)
	return out
}

// Recent returns up to n bookings in the order they were added or loaded.
func (l *Ledger) Recent(n int) []Booking {
	l.mu.Lock()
	defer l.mu.Unlock()

	if n <= 0 || len(l.bookings) == 0 {
		return []Booking{}
	}
	start := len(l.bookings) - n
	if start < 0 {
		start = 0
	}
	out := make([]Booking, len(l.bookings)-start)
	copy(out, l.bookings[start:])
	return out
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.bookings)
}

// Pending reports whether the working set holds changes the store has not accepted.
func (l *Ledger) Pending() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.dirty
}

// Loaded reports whether the working set reflects a successful read of the store.
func (l *Ledger) Loaded() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loaded
}

func (l *Ledger) LoadedAt() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.loadedAt
}

func conflictIn(bookings []Booking, policy ConflictPolicy, date Date, t Clock) (Booking, bool) {
	for _, b := range bookings {
		if b.Date != date {
			continue
		}
		if policy == ConflictDate || b.Time == t {
			return b, true
		}
	}
	return Booking{}, false
}
