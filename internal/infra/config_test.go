package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaultStorageBaseURL(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("STORAGE_BASE_URL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	expected := "http://localhost:8080/static"
	if cfg.StorageBaseURL != expected {
		t.Fatalf("StorageBaseURL mismatch: got %q want %q", cfg.StorageBaseURL, expected)
	}
	if cfg.StoragePath != "./storage" {
		t.Fatalf("StoragePath mismatch: got %q", cfg.StoragePath)
	}
}

func TestLoadConfigInheritsPortInStorageBaseURL(t *testing.T) {
	t.Setenv("PORT", "1919")
	t.Setenv("STORAGE_BASE_URL", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	expected := "http://localhost:1919/static"
	if cfg.StorageBaseURL != expected {
		t.Fatalf("StorageBaseURL mismatch: got %q want %q", cfg.StorageBaseURL, expected)
	}
}

func TestLoadConfigJobTimeouts(t *testing.T) {
	t.Setenv("JOB_WATCHDOG", "")
	t.Setenv("JOB_IO_TIMEOUT", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.JobWatchdog != 10*time.Minute {
		t.Fatalf("JobWatchdog = %s, want 10m", cfg.JobWatchdog)
	}
	if cfg.JobIOTimeout != 3*time.Second {
		t.Fatalf("JobIOTimeout = %s, want 3s", cfg.JobIOTimeout)
	}
}

func TestLoadConfigRejectsLongIOTimeout(t *testing.T) {
	t.Setenv("JOB_IO_TIMEOUT", "10s")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for io timeout above 3s")
	}
}

func TestLoadConfigFlags(t *testing.T) {
	t.Setenv("DEMO_MODE", "true")
	t.Setenv("CHARACTER_CONSISTENT_STORYBOARD", "1")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if !cfg.DemoMode || !cfg.CharacterConsistent {
		t.Fatalf("flags not parsed: demo=%v consistent=%v", cfg.DemoMode, cfg.CharacterConsistent)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("CORSAllowedOrigins mismatch: %#v", cfg.CORSAllowedOrigins)
	}
}
