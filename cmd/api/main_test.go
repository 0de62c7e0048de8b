package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/clinic-scheduler/internal/appointments"
	"github.com/wolfman30/clinic-scheduler/internal/calendar"
	appconfig "github.com/wolfman30/clinic-scheduler/internal/config"
	"github.com/wolfman30/clinic-scheduler/internal/conversation"
	"github.com/wolfman30/clinic-scheduler/internal/intent"
	"github.com/wolfman30/clinic-scheduler/pkg/logging"
)

func TestSetupMetricsExposesMetrics(t *testing.T) {
	handler, messagingMetrics, dialogueMetrics := setupMetrics()
	if handler == nil || messagingMetrics == nil || dialogueMetrics == nil {
		t.Fatalf("expected non-nil handler and metrics")
	}

	messagingMetrics.ObserveInbound("twilio_sms", "ok")

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "clinic_messaging_inbound_total") {
		t.Fatalf("expected inbound counter to be exported")
	}
}

func TestConnectPostgresPoolEmptyURLReturnsNil(t *testing.T) {
	if pool := connectPostgresPool(context.Background(), "", logging.New("error")); pool != nil {
		t.Fatalf("expected nil pool for empty URL")
	}
}

func TestSetupAppointmentsDefaultsToMemory(t *testing.T) {
	store, err := setupAppointments(context.Background(), &appconfig.Config{AppointmentStore: appconfig.StoreMemory}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := store.(*appointments.MemoryStore); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}

	if _, err := setupAppointments(context.Background(), &appconfig.Config{AppointmentStore: appconfig.StorePostgres}, nil); err == nil {
		t.Fatalf("expected error without a pool")
	}
}

func TestSetupCalendarWithoutIDUsesMemory(t *testing.T) {
	cal, err := setupCalendar(context.Background(), &appconfig.Config{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := cal.(*calendar.MemoryCalendar); !ok {
		t.Fatalf("expected memory calendar, got %T", cal)
	}
}

func TestSetupContexts(t *testing.T) {
	logger := logging.New("error")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := setupContexts(ctx, &appconfig.Config{ContextStore: appconfig.StoreMemory}, nil, nil, logger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := store.(*conversation.MemoryContextStore); !ok {
		t.Fatalf("expected memory store, got %T", store)
	}

	if _, err := setupContexts(ctx, &appconfig.Config{ContextStore: appconfig.StoreRedis}, nil, nil, logger); err == nil {
		t.Fatalf("expected error without redis")
	}
	if _, err := setupContexts(ctx, &appconfig.Config{ContextStore: appconfig.StoreDynamoDB}, nil, nil, logger); err == nil {
		t.Fatalf("expected error without AWS config")
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	store, err = setupContexts(ctx, &appconfig.Config{ContextStore: appconfig.StoreRedis}, client, nil, logger)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := store.(*conversation.RedisContextStore); !ok {
		t.Fatalf("expected redis store, got %T", store)
	}
}

func TestSetupLLMWithoutProviders(t *testing.T) {
	if client := setupLLM(context.Background(), &appconfig.Config{}, nil, logging.New("error")); client != nil {
		t.Fatalf("expected no client, got %T", client)
	}
}

func TestSetupNotifyWithoutChannels(t *testing.T) {
	svc := setupNotify(&appconfig.Config{ClinicName: "Test Clinic"}, nil, nil, logging.New("error"))
	if svc == nil {
		t.Fatalf("expected service")
	}
	if err := svc.NotifyDoctor(context.Background(), "hello"); err != nil {
		t.Fatalf("expected silent no-op, got %v", err)
	}
}

func TestRoleResolver(t *testing.T) {
	roles := roleResolver(&appconfig.Config{DoctorIDs: []string{"+15550000009"}})
	if roles("+15550000009") != intent.RoleDoctor {
		t.Fatalf("expected doctor")
	}
	if roles("+15550000001") != intent.RolePatient {
		t.Fatalf("expected patient")
	}
}
