package pause

import (
	"context"
	"errors"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestRedisPersisterRoundTripThroughStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	persister := NewRedisPersister(client, "")

	s := NewStore(persister, nil)
	if _, err := s.Set(context.Background(), day(2025, 3, 1), day(2025, 3, 5)); err != nil {
		t.Fatalf("set: %v", err)
	}
	if !mr.Exists(defaultRedisKey) {
		t.Fatal("expected pause window to be written to redis")
	}

	restored := NewStore(persister, nil)
	if err := restored.Restore(context.Background()); err != nil {
		t.Fatalf("restore: %v", err)
	}
	if got := restored.Current().String(); got != "from 2025-03-01 to 2025-03-05" {
		t.Fatalf("unexpected restored window %q", got)
	}

	if err := restored.Clear(context.Background()); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if mr.Exists(defaultRedisKey) {
		t.Fatal("expected key removed after clear")
	}
}

func TestRedisPersisterLoadEmpty(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	w, err := NewRedisPersister(client, "custom").Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if w != nil {
		t.Fatalf("expected nil window, got %+v", w)
	}
}

func TestRestoreRejectsInvertedWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	persister := NewRedisPersister(client, "")

	if err := persister.Save(context.Background(), Window{Start: day(2025, 3, 5), End: day(2025, 3, 1), Active: true}); err != nil {
		t.Fatalf("save: %v", err)
	}

	s := NewStore(persister, nil)
	err := s.Restore(context.Background())
	if !errors.Is(err, ErrInvalidRange) {
		t.Fatalf("expected ErrInvalidRange, got %v", err)
	}
	if s.Current().Active {
		t.Fatalf("expected store to stay unpaused, got %q", s.Current().String())
	}
	if s.IsPausedOn(*day(2025, 3, 3)) {
		t.Fatal("expected no pause from a rejected window")
	}
}
