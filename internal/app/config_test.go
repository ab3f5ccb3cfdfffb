package app

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/yungbote/lasttime-backend/internal/services"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("CONFIG_FILE", "")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("addr = %q", cfg.Server.Addr)
	}
	if !cfg.RateLimit.Enabled || cfg.RateLimit.Window != time.Minute {
		t.Fatalf("rate limit defaults: %+v", cfg.RateLimit)
	}
	if cfg.RateLimit.Budgets[services.BucketActivityCreate] != 30 {
		t.Fatalf("budgets: %+v", cfg.RateLimit.Budgets)
	}
	if cfg.Auth.AppleJWKSURL != services.DefaultAppleJWKSURL {
		t.Fatalf("jwks url = %q", cfg.Auth.AppleJWKSURL)
	}
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	path := writeConfig(t, `
server:
  addr: ":9000"
  cors_allow_origins: ["https://app.example.com"]
database:
  url: "sqlite:/tmp/lasttime.db"
auth:
  google_client_id: "from-file"
rate_limit:
  window: 30s
  budgets:
    activity:create: 5
`)
	t.Setenv("GOOGLE_CLIENT_ID", "from-env")
	t.Setenv("PORT", "7000")
	t.Setenv("RATE_LIMIT_DEFAULT", "250")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Addr != ":7000" {
		t.Fatalf("PORT should override file addr, got %q", cfg.Server.Addr)
	}
	if cfg.Auth.GoogleClientID != "from-env" {
		t.Fatalf("google client id = %q", cfg.Auth.GoogleClientID)
	}
	if cfg.Database.URL != "sqlite:/tmp/lasttime.db" {
		t.Fatalf("database url = %q", cfg.Database.URL)
	}
	if len(cfg.Server.CORSOrigins) != 1 || cfg.Server.CORSOrigins[0] != "https://app.example.com" {
		t.Fatalf("cors origins = %v", cfg.Server.CORSOrigins)
	}
	if cfg.RateLimit.Window != 30*time.Second {
		t.Fatalf("window = %v", cfg.RateLimit.Window)
	}
	if cfg.RateLimit.Budgets[services.BucketActivityCreate] != 5 {
		t.Fatalf("file budget not applied: %+v", cfg.RateLimit.Budgets)
	}
	if cfg.RateLimit.Budgets[services.BucketActivityList] != 60 {
		t.Fatalf("unlisted bucket lost its default: %+v", cfg.RateLimit.Budgets)
	}
	if cfg.RateLimit.Budgets[services.BucketDefault] != 250 {
		t.Fatalf("RATE_LIMIT_DEFAULT not applied: %d", cfg.RateLimit.Budgets[services.BucketDefault])
	}
}

func TestLoadConfigErrors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("explicit missing file accepted")
	}
	if _, err := LoadConfig(writeConfig(t, "server: [")); err == nil {
		t.Fatal("malformed yaml accepted")
	}
	if _, err := LoadConfig(writeConfig(t, "rate_limit:\n  budgets:\n    default: 0\n")); err == nil {
		t.Fatal("zero budget accepted")
	}
}

func TestOtelHeaders(t *testing.T) {
	h := otelHeaders("a=1, b = 2 ,broken,=x")
	if len(h) != 2 || h["a"] != "1" || h["b"] != "2" {
		t.Fatalf("headers = %v", h)
	}
	if otelHeaders("") != nil {
		t.Fatal("empty headers should be nil")
	}
}
