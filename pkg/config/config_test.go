package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"WhatsappLinker/pkg/config"
)

func TestNew_FileWithEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	body := "tg_api_token: from-file\npair_timeout_seconds: 30\nsessions_dir: /tmp/attempts\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BOT_TOKEN", "from-env")
	t.Setenv("PORT", "9090")

	cfg, err := config.New(path)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if cfg.TgApiToken != "from-env" {
		t.Fatalf("token = %q, env must win", cfg.TgApiToken)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Fatalf("http addr = %q", cfg.HTTPAddr)
	}
	if cfg.SessionsDir != "/tmp/attempts" {
		t.Fatalf("sessions dir = %q", cfg.SessionsDir)
	}
	if cfg.PairTimeout() != 30*time.Second {
		t.Fatalf("pair timeout = %v", cfg.PairTimeout())
	}
}

func TestNew_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.New(filepath.Join(t.TempDir(), "nope.yml"))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.DatabasePath != "sessions.db" {
		t.Fatalf("defaults not applied: %+v", cfg)
	}
	if cfg.PairTimeout() != 60*time.Second {
		t.Fatalf("pair timeout = %v", cfg.PairTimeout())
	}
}

func TestNew_BadYAMLFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(path, []byte("tg_api_token: [unterminated"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := config.New(path); err == nil {
		t.Fatal("expected parse error")
	}
}
