package config

import (
	"testing"
	"time"

	"github.com/robalobadob/connections/apps/go-server/internal/game"
)

func TestDefaults(t *testing.T) {
	for _, k := range []string{"PORT", "LOG_LEVEL", "PUZZLE_FILE", "JWT_SECRET", "JWT_EXPIRES_HOURS",
		"COOKIE_NAME", "NODE_ENV", "DAILY_SALT", "LOSS_MODE", "SESSION_IDLE_TIMEOUT", "CLIENT_ORIGIN"} {
		t.Setenv(k, "")
	}
	c := Load()
	if c.Port != "5175" || c.CookieName != "connections_token" || c.LogLevel != "info" {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if c.JWTExpiry != 24*time.Hour || c.IdleTimeout != 2*time.Hour {
		t.Fatalf("unexpected durations: %v %v", c.JWTExpiry, c.IdleTimeout)
	}
	if c.LossRule != game.LossReveal || c.Production {
		t.Fatalf("unexpected rule/production: %+v", c)
	}
}

func TestOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("JWT_EXPIRES_HOURS", "2")
	t.Setenv("SESSION_IDLE_TIMEOUT", "15m")
	t.Setenv("LOSS_MODE", "immediate")
	t.Setenv("NODE_ENV", "production")
	t.Setenv("DB_PATH", "")

	c := Load()
	if c.Port != "9000" || c.JWTExpiry != 2*time.Hour || c.IdleTimeout != 15*time.Minute {
		t.Fatalf("overrides not applied: %+v", c)
	}
	if c.LossRule != game.LossImmediate || !c.Production {
		t.Fatalf("unexpected rule/production: %+v", c)
	}
	if c.DBPath != "" {
		t.Fatalf("explicitly empty DB_PATH should disable history, got %q", c.DBPath)
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("JWT_EXPIRES_HOURS", "soon")
	t.Setenv("SESSION_IDLE_TIMEOUT", "-1h")
	t.Setenv("LOSS_MODE", "sudden")

	c := Load()
	if c.JWTExpiry != 24*time.Hour || c.IdleTimeout != 2*time.Hour || c.LossRule != game.LossReveal {
		t.Fatalf("invalid values should fall back: %+v", c)
	}
}
