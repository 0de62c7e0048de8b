package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

// DefaultContextTTL bounds how long an idle conversation is remembered.
const DefaultContextTTL = 30 * time.Minute

// ContextStore persists per-sender contexts. Load returns a fresh idle
// context for unknown or expired senders.
type ContextStore interface {
	Load(ctx context.Context, senderID string) (*Context, error)
	Save(ctx context.Context, c *Context) error
	Delete(ctx context.Context, senderID string) error
}

type memoryEntry struct {
	ctx     *Context
	expires time.Time
}

// MemoryContextStore keeps contexts in process with a sliding TTL.
type MemoryContextStore struct {
	entries sync.Map
	ttl     time.Duration
	now     func() time.Time
}

func NewMemoryContextStore(ttl time.Duration) *MemoryContextStore {
	if ttl <= 0 {
		ttl = DefaultContextTTL
	}
	return &MemoryContextStore{ttl: ttl, now: time.Now}
}

var _ ContextStore = (*MemoryContextStore)(nil)

func (s *MemoryContextStore) Load(_ context.Context, senderID string) (*Context, error) {
	v, ok := s.entries.Load(senderID)
	if !ok {
		return NewContext(senderID), nil
	}
	e := v.(memoryEntry)
	if s.now().After(e.expires) {
		s.entries.CompareAndDelete(senderID, v)
		return NewContext(senderID), nil
	}
	return e.ctx.Clone(), nil
}

func (s *MemoryContextStore) Save(_ context.Context, c *Context) error {
	now := s.now()
	cp := c.Clone()
	cp.UpdatedAt = now.UTC()
	s.entries.Store(c.SenderID, memoryEntry{ctx: cp, expires: now.Add(s.ttl)})
	return nil
}

func (s *MemoryContextStore) Delete(_ context.Context, senderID string) error {
	s.entries.Delete(senderID)
	return nil
}

// Sweep drops expired contexts and returns how many were removed.
func (s *MemoryContextStore) Sweep() int {
	now := s.now()
	removed := 0
	s.entries.Range(func(k, v any) bool {
		if now.After(v.(memoryEntry).expires) && s.entries.CompareAndDelete(k, v) {
			removed++
		}
		return true
	})
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *MemoryContextStore) RunSweeper(ctx context.Context, interval time.Duration, logger *logging.Logger) {
	if interval <= 0 {
		interval = s.ttl
	}
	if logger == nil {
		logger = logging.Default()
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				logger.Debug("expired conversation contexts swept", "count", n)
			}
		}
	}
}
