package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad_MissingConfigFallsBackToDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(envAPIKey, "")
	t.Setenv(envDatabaseURL, "")

	cfg, err := Load(filepath.Join(home, "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.ReadingsPath != defaultReadingsPath {
		t.Fatalf("ReadingsPath = %q, want %q", cfg.ReadingsPath, defaultReadingsPath)
	}
	if cfg.OrderBy != defaultOrderBy {
		t.Fatalf("OrderBy = %q, want %q", cfg.OrderBy, defaultOrderBy)
	}
	if cfg.IdentityURL != defaultIdentityURL || cfg.TokenURL != defaultTokenURL {
		t.Fatalf("identity endpoints = %q %q, want defaults", cfg.IdentityURL, cfg.TokenURL)
	}
	wantLog := filepath.Join(home, ".local/state/weatherdash/weatherdash.log")
	if cfg.LogFile != wantLog {
		t.Fatalf("LogFile = %q, want %q", cfg.LogFile, wantLog)
	}
	if cfg.IdentityTimeout != 0 {
		t.Fatalf("IdentityTimeout = %v, want 0", cfg.IdentityTimeout)
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("Validate returned nil error for empty backend settings")
	}
}

func TestLoad_ParsesAndTrimsConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(envAPIKey, "")
	t.Setenv(envDatabaseURL, "")

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`
database_url = "  https://station-default-rtdb.example.app/  "
api_key = " key-123 "
readings_path = "/stations/alpha/logs/"
session_file = "~/sessions/wd.toml"
identity_timeout = "5s"
`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.DatabaseURL != "https://station-default-rtdb.example.app" {
		t.Fatalf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.APIKey != "key-123" {
		t.Fatalf("APIKey = %q, want key-123", cfg.APIKey)
	}
	if cfg.ReadingsPath != "stations/alpha/logs" {
		t.Fatalf("ReadingsPath = %q, want stations/alpha/logs", cfg.ReadingsPath)
	}
	if !strings.HasPrefix(cfg.SessionFile, home) {
		t.Fatalf("SessionFile = %q, want it under HOME %q", cfg.SessionFile, home)
	}
	if cfg.IdentityTimeout != 5*time.Second {
		t.Fatalf("IdentityTimeout = %v, want 5s", cfg.IdentityTimeout)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(envAPIKey, "env-key")
	t.Setenv(envDatabaseURL, "https://env.example.app/")

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`api_key = "file-key"`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.APIKey != "env-key" {
		t.Fatalf("APIKey = %q, want env-key", cfg.APIKey)
	}
	if cfg.DatabaseURL != "https://env.example.app" {
		t.Fatalf("DatabaseURL = %q, want https://env.example.app", cfg.DatabaseURL)
	}
}

func TestLoad_InvalidTOMLFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(`api_key = [`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, err := Load(path)
	if err == nil {
		t.Fatalf("Load returned nil error, want parse error")
	}
	if !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("Load error = %q, want it to mention parse config", err.Error())
	}
}

func TestLoad_InvalidTimeoutFails(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"garbage", "soon"},
		{"negative", "-1s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.toml")
			if err := os.WriteFile(path, []byte(`identity_timeout = "`+tt.value+`"`), 0o600); err != nil {
				t.Fatalf("WriteFile: %v", err)
			}
			if _, err := Load(path); err == nil {
				t.Fatalf("Load(%q) returned nil error", tt.value)
			}
		})
	}
}

func TestExpandPath_ExpandsTildeAndReturnsAbs(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := expandPath("~/a/b")
	if err != nil {
		t.Fatalf("expandPath returned error: %v", err)
	}
	want := filepath.Join(home, "a/b")
	if got != want {
		t.Fatalf("expandPath = %q, want %q", got, want)
	}
}

func TestExpandPath_EmptyErrors(t *testing.T) {
	if _, err := expandPath("   "); err == nil {
		t.Fatalf("expandPath returned nil error, want error")
	}
}
