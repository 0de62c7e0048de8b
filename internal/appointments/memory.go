package appointments

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore keeps appointments in process. Used for local runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Appointment
	now     func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Append(ctx context.Context, a Appointment) (Appointment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a.Ref = uuid.NewString()
	now := s.now().UTC()
	a.CreatedAt, a.UpdatedAt = now, now
	if a.DurationMinutes <= 0 {
		a.DurationMinutes = DefaultDurationMinutes
	}
	s.records = append(s.records, a)
	return a, nil
}

func (s *MemoryStore) Query(ctx context.Context, f Filter) ([]Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Appointment
	for _, a := range s.records {
		if f.Matches(a) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Time < out[j].Time
	})
	return out, nil
}

func (s *MemoryStore) Update(ctx context.Context, ref string, p Patch) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.records {
		if s.records[i].Ref == ref {
			p.Apply(&s.records[i])
			s.records[i].UpdatedAt = s.now().UTC()
			return nil
		}
	}
	return ErrNotFound
}

// All returns a copy of every record, in insertion order.
func (s *MemoryStore) All() []Appointment {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Appointment(nil), s.records...)
}
