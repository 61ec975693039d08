package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validYAML = `app:
  name: "Ensaios"
  environment: "development"
  port: 8080

store:
  driver: "csv"
  filename: "data/agenda.csv"

scheduler:
  flush_schedule: "*/5 * * * *"
  backup_schedule: "@daily"
  backup_dir: "data/backups"
`

func validConfig(t *testing.T) *Config {
	t.Helper()

	cfg, err := Parse([]byte(validYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	cfg.App.SecretKey = strings.Repeat("k", 32)
	cfg.App.PasswordHash = "$2a$10$hash"
	return cfg
}

func TestParseAppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(validYAML))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if cfg.Store.Timeout != 10*time.Second {
		t.Fatalf("store timeout = %v", cfg.Store.Timeout)
	}
	if cfg.Agenda.ConflictPolicy != "date_time" {
		t.Fatalf("conflict policy = %q", cfg.Agenda.ConflictPolicy)
	}
	if cfg.Agenda.DefaultTime != "19:00" {
		t.Fatalf("default time = %q", cfg.Agenda.DefaultTime)
	}
	if cfg.Agenda.MinYear != 2023 || cfg.Agenda.MaxYear != 2030 {
		t.Fatalf("year range = %d..%d", cfg.Agenda.MinYear, cfg.Agenda.MaxYear)
	}
	if len(cfg.Bands) != 6 {
		t.Fatalf("expected default roster, got %d bands", len(cfg.Bands))
	}
}

func TestParseBands(t *testing.T) {
	cfg, err := Parse([]byte(validYAML + `
bands:
  - code: "D5"
    name: "Banda D5"
    color: "#AABBCC"
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(cfg.Bands) != 1 || cfg.Bands[0].Code != "D5" {
		t.Fatalf("unexpected bands: %+v", cfg.Bands)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing_name", mutate: func(c *Config) { c.App.Name = "" }, wantErr: "app name"},
		{name: "missing_port", mutate: func(c *Config) { c.App.Port = 0 }, wantErr: "app port"},
		{name: "short_secret", mutate: func(c *Config) { c.App.SecretKey = "short" }, wantErr: "APP_SECRET_KEY"},
		{name: "missing_password", mutate: func(c *Config) { c.App.PasswordHash = "" }, wantErr: "APP_PASSWORD_HASH"},
		{name: "unknown_driver", mutate: func(c *Config) { c.Store.Driver = "gsheet" }, wantErr: "unsupported store driver"},
		{name: "missing_filename", mutate: func(c *Config) { c.Store.Filename = "" }, wantErr: "filename"},
		{name: "memory_needs_no_filename", mutate: func(c *Config) { c.Store.Driver = "memory"; c.Store.Filename = "" }},
		{name: "bad_policy", mutate: func(c *Config) { c.Agenda.ConflictPolicy = "band" }, wantErr: "conflict policy"},
		{name: "bad_years", mutate: func(c *Config) { c.Agenda.MinYear = 2031 }, wantErr: "min_year"},
		{name: "bad_cron", mutate: func(c *Config) { c.Scheduler.FlushSchedule = "every minute" }, wantErr: "flush_schedule"},
		{name: "backup_without_dir", mutate: func(c *Config) { c.Scheduler.BackupDir = "" }, wantErr: "backup_dir"},
		{name: "notifications_without_sender", mutate: func(c *Config) { c.Notifications.Recipient = "band@example.com" }, wantErr: "sender"},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			cfg := validConfig(t)
			test.mutate(cfg)
			err := cfg.Validate()
			if test.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), test.wantErr) {
				t.Fatalf("expected error containing %q, got %v", test.wantErr, err)
			}
		})
	}
}

func TestLoadReadsEnvFile(t *testing.T) {
	dir := t.TempDir()
	configPath := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(validYAML), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	env := "APP_SECRET_KEY=" + strings.Repeat("s", 40) + "\nAPP_PASSWORD_HASH=$2a$10$abc\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(env), 0644); err != nil {
		t.Fatalf("write env: %v", err)
	}
	t.Setenv("APP_SECRET_KEY", "")
	t.Setenv("APP_PASSWORD_HASH", "")
	os.Unsetenv("APP_SECRET_KEY")
	os.Unsetenv("APP_PASSWORD_HASH")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.App.SecretKey != strings.Repeat("s", 40) {
		t.Fatalf("secret key not loaded from .env")
	}
	if cfg.App.PasswordHash != "$2a$10$abc" {
		t.Fatalf("password hash = %q", cfg.App.PasswordHash)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
