package config

import (
	"os"
	"testing"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	os.Setenv("DATABASE_URL", "postgres://localhost:5432/fuse_test")
	t.Cleanup(func() { os.Unsetenv("DATABASE_URL") })
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.DefaultClinic != "default" {
		t.Errorf("expected default clinic, got %s", cfg.DefaultClinic)
	}
	if cfg.PlatformFeeBps != 2000 {
		t.Errorf("expected default platform fee 2000 bps, got %d", cfg.PlatformFeeBps)
	}
	if cfg.DBMaxConns != 20 || cfg.DBMinConns != 5 {
		t.Errorf("unexpected pool defaults: max=%d min=%d", cfg.DBMaxConns, cfg.DBMinConns)
	}
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	os.Unsetenv("DATABASE_URL")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when DATABASE_URL is missing")
	}
}

func TestLoad_ProductionRequiresWebhookSecret(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("ENV", "production")
	os.Unsetenv("WEBHOOK_SECRET")
	t.Cleanup(func() { os.Unsetenv("ENV") })

	if _, err := Load(); err == nil {
		t.Fatal("expected error when WEBHOOK_SECRET is missing in production")
	}

	os.Setenv("WEBHOOK_SECRET", "whsec_test")
	t.Cleanup(func() { os.Unsetenv("WEBHOOK_SECRET") })
	if _, err := Load(); err != nil {
		t.Fatalf("unexpected error with secret set: %v", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("PORT", "9090")
	os.Setenv("ENV", "production")
	os.Setenv("WEBHOOK_SECRET", "whsec_test")
	os.Setenv("CORS_ORIGINS", "https://admin.example.com,https://patient.example.com")
	os.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Cleanup(func() {
		os.Unsetenv("PORT")
		os.Unsetenv("ENV")
		os.Unsetenv("WEBHOOK_SECRET")
		os.Unsetenv("CORS_ORIGINS")
		os.Unsetenv("KAFKA_BROKERS")
	})

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Port)
	}
	if !cfg.IsProduction() || cfg.IsDev() {
		t.Error("expected production mode")
	}
	if len(cfg.CORSOrigins) != 2 {
		t.Errorf("expected 2 CORS origins, got %v", cfg.CORSOrigins)
	}
	if len(cfg.KafkaBrokers) != 2 {
		t.Errorf("expected 2 kafka brokers, got %v", cfg.KafkaBrokers)
	}
}

func TestLoad_InvalidPlatformFee(t *testing.T) {
	setRequiredEnv(t)
	os.Setenv("PLATFORM_FEE_BPS", "20000")
	t.Cleanup(func() { os.Unsetenv("PLATFORM_FEE_BPS") })

	_, err := Load()
	if err == nil {
		t.Fatal("expected error for out-of-range platform fee")
	}
}
