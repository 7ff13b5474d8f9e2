package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
server:
  port: "9090"
redis:
  addr: localhost:6379
game:
  weekStart: monday
  maxVoteRetries: 8
log:
  format: json
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != "9090" || cfg.Redis.Addr != "localhost:6379" || cfg.Game.MaxVoteRetries != 8 || cfg.Log.Format != "json" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.Server.Endpoint != "/normalzGame" || cfg.Leaderboards.Daily != "dailyLeaderboardID" {
		t.Fatalf("defaults lost: %+v", cfg)
	}
	if day, err := cfg.WeekStart(); err != nil || day != time.Monday {
		t.Fatalf("expected monday, got %v (%v)", day, err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Game.MaxVoteRetries != 64 || cfg.Pool.TTL != "30s" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestResetLocation(t *testing.T) {
	cfg := Default()
	loc, err := cfg.ResetLocation()
	if err != nil {
		t.Fatalf("reset location: %v", err)
	}
	_, offset := time.Date(2024, 1, 1, 0, 0, 0, 0, loc).Zone()
	if offset != 7200 || loc.String() != "UTC+2" {
		t.Fatalf("expected UTC+2, got %s %d", loc, offset)
	}

	cfg.Game.ResetOffset = "nonsense"
	if _, err := cfg.ResetLocation(); err == nil {
		t.Fatalf("expected parse error")
	}
	cfg.Game.WeekStart = "someday"
	if _, err := cfg.WeekStart(); err == nil {
		t.Fatalf("expected week start error")
	}
}

func TestTTLDuration(t *testing.T) {
	if d := TTLDuration("", time.Minute); d != time.Minute {
		t.Fatalf("expected fallback, got %v", d)
	}
	if d := TTLDuration("bad", time.Minute); d != time.Minute {
		t.Fatalf("expected fallback, got %v", d)
	}
	if d := TTLDuration("5s", time.Minute); d != 5*time.Second {
		t.Fatalf("expected 5s, got %v", d)
	}
}
