package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("ENV", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("CLINIC_OPEN_HOUR", "")
	t.Setenv("CONTEXT_TTL", "")
	t.Setenv("DOCTOR_IDS", "")
	cfg := Load()
	if cfg.Port != "8080" {
		t.Fatalf("expected default port, got %s", cfg.Port)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env, got %s", cfg.Env)
	}
	if cfg.ClinicOpenHour != 9 || cfg.ClinicCloseHour != 17 {
		t.Fatalf("expected default hours 9-17, got %d-%d", cfg.ClinicOpenHour, cfg.ClinicCloseHour)
	}
	if cfg.AppointmentDurationMinutes != 60 {
		t.Fatalf("expected default duration 60, got %d", cfg.AppointmentDurationMinutes)
	}
	if cfg.MaxParseFailures != 3 {
		t.Fatalf("expected default parse failure limit 3, got %d", cfg.MaxParseFailures)
	}
	if cfg.ContextTTL != 30*time.Minute {
		t.Fatalf("expected default context ttl, got %s", cfg.ContextTTL)
	}
	if len(cfg.DoctorIDs) != 0 {
		t.Fatalf("expected no doctor ids, got %v", cfg.DoctorIDs)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CLINIC_OPEN_HOUR", "8")
	t.Setenv("CLINIC_CLOSE_HOUR", "18")
	t.Setenv("DOCTOR_IDS", " +15550001, ,+15550002 ")
	t.Setenv("CONTEXT_STORE", "REDIS")
	t.Setenv("CONTEXT_TTL", "45m")
	t.Setenv("RATE_LIMIT_PER_SECOND", "2.5")
	cfg := Load()
	if cfg.Port != "9090" {
		t.Fatalf("expected override port, got %s", cfg.Port)
	}
	if cfg.ClinicOpenHour != 8 || cfg.ClinicCloseHour != 18 {
		t.Fatalf("expected hours 8-18, got %d-%d", cfg.ClinicOpenHour, cfg.ClinicCloseHour)
	}
	if len(cfg.DoctorIDs) != 2 || !cfg.IsDoctor("+15550002") {
		t.Fatalf("expected two doctor ids, got %v", cfg.DoctorIDs)
	}
	if cfg.IsDoctor("+15559999") {
		t.Fatalf("unexpected doctor match")
	}
	if cfg.ContextStore != StoreRedis {
		t.Fatalf("expected lower-cased store kind, got %s", cfg.ContextStore)
	}
	if cfg.ContextTTL != 45*time.Minute {
		t.Fatalf("expected ttl override, got %s", cfg.ContextTTL)
	}
	if cfg.RateLimitPerSecond != 2.5 {
		t.Fatalf("expected rate override, got %v", cfg.RateLimitPerSecond)
	}
}

func TestValidateRejectsBadCombinations(t *testing.T) {
	cfg := Load()
	cfg.ClinicOpenHour = 18
	cfg.ClinicCloseHour = 9
	cfg.AppointmentStore = StorePostgres
	cfg.DatabaseURL = ""
	cfg.ContextStore = "etcd"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"clinic hours", "DATABASE_URL", "CONTEXT_STORE"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %v", want, err)
		}
	}
}
