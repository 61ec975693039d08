package store

import (
	"context"
	"errors"
	"time"
)

type timeoutStore struct {
	next    Store
	timeout time.Duration
}

// WithTimeout bounds every call to next. A call that runs past the deadline
// is reported as ErrUnavailable so the caller can offer a retry.
func WithTimeout(next Store, timeout time.Duration) Store {
	if timeout <= 0 {
		return next
	}
	return &timeoutStore{next: next, timeout: timeout}
}

func (s *timeoutStore) LoadAll(ctx context.Context) (Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	snapshot, err := s.next.LoadAll(ctx)
	return snapshot, s.mapErr("load_all", err)
}

func (s *timeoutStore) ReplaceAll(ctx context.Context, rows []Row, expected Revision) (Revision, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	revision, err := s.next.ReplaceAll(ctx, rows, expected)
	return revision, s.mapErr("replace_all", err)
}

func (s *timeoutStore) mapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, ErrUnavailable) {
		return Unavailable(op, err)
	}
	return err
}
