package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleYAML = `
bot:
  token: abc123
  update_interval: 90s
  display_player_gear_level: true
storage:
  driver: sqlite
  path: /var/lib/statusbot/monitors.db
admin:
  addr: 127.0.0.1:9410
  bearer_token: secret
query:
  timeout: 5s
  global_qps_cap: 50
  per_host_qps_cap: 2
`

func TestLoad(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(path, []byte(sampleYAML), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(ctx, path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Bot.UpdateInterval.Std() != 90*time.Second {
		t.Fatalf("unexpected update interval: %v", cfg.Bot.UpdateInterval)
	}
	if !cfg.Bot.DisplayPlayerGearLevel {
		t.Fatalf("expected display_player_gear_level to be true")
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.Path != "/var/lib/statusbot/monitors.db" {
		t.Fatalf("unexpected storage config: %+v", cfg.Storage)
	}
	if cfg.Query.PerHostQPSCap != 2 {
		t.Fatalf("unexpected per host cap: %d", cfg.Query.PerHostQPSCap)
	}
}

func TestLoadFromEnv(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	if err := os.WriteFile(path, []byte(sampleYAML), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv(envConfigPath, path)

	cfg, err := LoadFromEnv(ctx)
	if err != nil {
		t.Fatalf("LoadFromEnv returned error: %v", err)
	}

	if cfg.Admin.Addr != "127.0.0.1:9410" {
		t.Fatalf("unexpected admin addr: %s", cfg.Admin.Addr)
	}
}

func TestDurationForms(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := "bot:\n  token: abc\n  update_interval: 120\nquery:\n  timeout: 2500ms\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(ctx, path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Bot.UpdateInterval.Std() != 120*time.Second {
		t.Fatalf("bare integer must mean seconds, got %s", cfg.Bot.UpdateInterval.Std())
	}
	if cfg.Query.Timeout.Std() != 2500*time.Millisecond {
		t.Fatalf("unexpected timeout: %s", cfg.Query.Timeout.Std())
	}
}

func TestDurationRejectsGarbage(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	content := "bot:\n  token: abc\n  update_interval: soon\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := Load(ctx, path); err == nil {
		t.Fatalf("expected error for unparseable duration")
	}
}

func TestResolveTokenFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "token")
	if err := os.WriteFile(path, []byte("tok-from-file\n"), 0o600); err != nil {
		t.Fatalf("write token file: %v", err)
	}

	bot := BotConfig{Token: "inline", TokenFile: path}
	token, err := bot.ResolveToken()
	if err != nil {
		t.Fatalf("ResolveToken returned error: %v", err)
	}
	if token != "tok-from-file" {
		t.Fatalf("expected file token to win, got %q", token)
	}

	if _, err := (BotConfig{}).ResolveToken(); err == nil {
		t.Fatalf("expected error when no token configured")
	}
}
