package pause

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

// ErrInvalidRange is returned when the start day is after the end day.
var ErrInvalidRange = errors.New("pause: start date is after end date")

// Persister saves the window so it survives restarts.
type Persister interface {
	Save(ctx context.Context, w Window) error
	Load(ctx context.Context) (*Window, error)
}

// Store is the process-wide pause state. Writers serialize on mu; readers load
// the current immutable snapshot without locking.
type Store struct {
	mu        sync.Mutex
	current   atomic.Pointer[Window]
	persister Persister
	now       func() time.Time
	logger    *logging.Logger
}

// Option customises a Store.
type Option func(*Store)

// WithClock overrides the clock used to anchor "until D" pauses.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// NewStore returns an unpaused store. persister may be nil.
func NewStore(persister Persister, logger *logging.Logger, opts ...Option) *Store {
	if logger == nil {
		logger = logging.Default()
	}
	s := &Store{persister: persister, now: time.Now, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	s.current.Store(&Window{})
	return s
}

// Restore loads a previously persisted window, if any. A stored window whose
// start is after its end is rejected like Set and the store stays unpaused.
func (s *Store) Restore(ctx context.Context) error {
	if s.persister == nil {
		return nil
	}
	w, err := s.persister.Load(ctx)
	if err != nil {
		return fmt.Errorf("pause: restore: %w", err)
	}
	if w == nil {
		return nil
	}
	if w.Start != nil && w.End != nil && w.Start.Format(dateLayout) > w.End.Format(dateLayout) {
		return fmt.Errorf("pause: restore %s: %w", w.String(), ErrInvalidRange)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current.Store(w)
	s.logger.Info("pause window restored", "window", w.String())
	return nil
}

// Set declares a pause. With only start the pause covers that single day;
// with neither it is a blanket pause. start after end is rejected and the
// current window is left untouched.
func (s *Store) Set(ctx context.Context, start, end *time.Time) (Window, error) {
	if start != nil && end != nil && start.Format(dateLayout) > end.Format(dateLayout) {
		return s.Current(), ErrInvalidRange
	}
	next := Window{Start: copyDay(start), End: copyDay(end), Active: true}
	if next.Start == nil && next.End != nil {
		// "until D" without a start runs from today.
		today := dayOf(s.now().In(next.End.Location()))
		next.Start = &today
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.persist(ctx, next); err != nil {
		return *s.current.Load(), err
	}
	s.current.Store(&next)
	s.logger.Info("bookings paused", "window", next.String())
	return next, nil
}

// Clear lifts any pause.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.persist(ctx, Window{}); err != nil {
		return err
	}
	s.current.Store(&Window{})
	s.logger.Info("bookings resumed")
	return nil
}

// IsPausedOn reports whether bookings on the calendar day of d are paused.
func (s *Store) IsPausedOn(d time.Time) bool {
	return s.current.Load().Contains(d)
}

// Current returns the active snapshot.
func (s *Store) Current() Window {
	return *s.current.Load()
}

func (s *Store) persist(ctx context.Context, w Window) error {
	if s.persister == nil {
		return nil
	}
	if err := s.persister.Save(ctx, w); err != nil {
		return fmt.Errorf("pause: persist window: %w", err)
	}
	return nil
}

func copyDay(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	d := dayOf(*t)
	return &d
}

func dayOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
