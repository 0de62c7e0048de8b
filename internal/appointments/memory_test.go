package appointments

import (
	"context"
	"errors"
	"testing"
)

func TestMemoryStoreQuerySortsAndFilters(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for _, a := range []Appointment{
		{PatientName: "Ana", Date: "2026-03-10", Time: "15:00", Status: StatusBooked},
		{PatientName: "Ben", Date: "2026-03-10", Time: "09:00", Status: StatusBooked},
		{PatientName: "ana", Date: "2026-03-09", Time: "11:00", Status: StatusCancelled},
	} {
		if _, err := store.Append(ctx, a); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	day, err := store.Query(ctx, Filter{Date: "2026-03-10"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(day) != 2 || day[0].PatientName != "Ben" || day[1].PatientName != "Ana" {
		t.Fatalf("expected time-ordered results, got %#v", day)
	}

	ana, _ := store.Query(ctx, Filter{PatientName: "ANA", Statuses: ActiveStatuses()})
	if len(ana) != 1 || ana[0].Time != "15:00" {
		t.Fatalf("expected one active match for ana, got %#v", ana)
	}
}

func TestMemoryStoreUpdate(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	saved, _ := store.Append(ctx, Appointment{PatientName: "Ana", Date: "2026-03-10", Time: "10:00", Status: StatusBooked})
	if saved.DurationMinutes != DefaultDurationMinutes {
		t.Fatalf("expected default duration, got %d", saved.DurationMinutes)
	}

	date := "2026-03-12"
	if err := store.Update(ctx, saved.Ref, Patch{Date: &date, Status: statusPtr(StatusRescheduled)}); err != nil {
		t.Fatalf("update: %v", err)
	}
	all := store.All()
	if all[0].Date != date || all[0].Status != StatusRescheduled || all[0].Time != "10:00" {
		t.Fatalf("unexpected record after patch: %#v", all[0])
	}
	if err := store.Update(ctx, "missing", StatusPatch(StatusCancelled)); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStatusActive(t *testing.T) {
	if StatusCancelled.Active() {
		t.Fatal("cancelled must not occupy a slot")
	}
	for _, s := range ActiveStatuses() {
		if !s.Active() {
			t.Fatalf("%s should be active", s)
		}
	}
}

func statusPtr(s Status) *Status { return &s }
