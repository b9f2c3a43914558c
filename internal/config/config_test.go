package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if cfg.ClinicTimezone != "America/Argentina/Buenos_Aires" {
		t.Errorf("ClinicTimezone = %q", cfg.ClinicTimezone)
	}
	if cfg.DefaultSlotMinutes != 50 || cfg.DefaultBufferMinutes != 10 {
		t.Errorf("slot/buffer defaults = %d/%d, want 50/10", cfg.DefaultSlotMinutes, cfg.DefaultBufferMinutes)
	}
	if cfg.BookingWindowDays != 21 {
		t.Errorf("BookingWindowDays = %d, want 21", cfg.BookingWindowDays)
	}
	if cfg.CancelMinBusinessHour != 24 {
		t.Errorf("CancelMinBusinessHour = %d, want 24", cfg.CancelMinBusinessHour)
	}
	if cfg.HoldTTL != 15*time.Minute {
		t.Errorf("HoldTTL = %v, want 15m", cfg.HoldTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("CLINIC_TIMEZONE", "UTC")
	t.Setenv("BOOKING_WINDOW_DAYS", "7")
	t.Setenv("HOLD_TTL", "5m")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")

	cfg := Load()

	if cfg.Port != "9090" {
		t.Errorf("Port = %q, want 9090", cfg.Port)
	}
	if cfg.ClinicTimezone != "UTC" {
		t.Errorf("ClinicTimezone = %q, want UTC", cfg.ClinicTimezone)
	}
	if cfg.BookingWindowDays != 7 {
		t.Errorf("BookingWindowDays = %d, want 7", cfg.BookingWindowDays)
	}
	if cfg.HoldTTL != 5*time.Minute {
		t.Errorf("HoldTTL = %v, want 5m", cfg.HoldTTL)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Errorf("CORSAllowedOrigins = %#v", cfg.CORSAllowedOrigins)
	}
}

func TestGetEnvAsIntInvalid(t *testing.T) {
	t.Setenv("DEFAULT_SLOT_MINUTES", "not-a-number")
	cfg := Load()
	if cfg.DefaultSlotMinutes != 50 {
		t.Errorf("DefaultSlotMinutes = %d, want fallback 50", cfg.DefaultSlotMinutes)
	}
}
