// apps/go-server/internal/config/config.go
//
// Environment configuration for the Connections server.
// Values come from the process environment (optionally seeded from .env by
// godotenv in main). Every key has a development-friendly default.

package config

import (
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/connections/apps/go-server/internal/game"
)

type Config struct {
	Port         string
	LogLevel     string
	DBPath       string // empty disables history
	PuzzleFile   string // empty uses the embedded puzzle
	ClientOrigin string

	JWTSecret   string
	JWTExpiry   time.Duration
	CookieName  string
	Production  bool
	DailySalt   string
	LossRule    game.LossRule
	IdleTimeout time.Duration
}

// Load reads the configuration from the environment.
func Load() Config {
	rule, ok := game.ParseLossRule(getEnv("LOSS_MODE", "reveal"))
	if !ok {
		log.Warn().Str("LOSS_MODE", os.Getenv("LOSS_MODE")).Msg("unknown loss mode, using reveal")
	}
	return Config{
		Port:         getEnv("PORT", "5175"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
		DBPath:       envOr("DB_PATH", "./data/app.db"),
		PuzzleFile:   os.Getenv("PUZZLE_FILE"),
		ClientOrigin: getEnv("CLIENT_ORIGIN", "http://localhost:5173"),
		JWTSecret:    getEnv("JWT_SECRET", "dev_secret_change_me"),
		JWTExpiry:    time.Duration(envInt("JWT_EXPIRES_HOURS", 24)) * time.Hour,
		CookieName:   getEnv("COOKIE_NAME", "connections_token"),
		Production:   os.Getenv("NODE_ENV") == "production",
		DailySalt:    getEnv("DAILY_SALT", "local_dev_salt"),
		LossRule:     rule,
		IdleTimeout:  envDuration("SESSION_IDLE_TIMEOUT", 2*time.Hour),
	}
}

// getEnv returns the value of k or def if unset/empty.
func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

// envOr is like getEnv but keeps an explicitly empty value.
func envOr(k, def string) string {
	if v, ok := os.LookupEnv(k); ok {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Warn().Str(k, v).Int("default", def).Msg("invalid integer, using default")
		return def
	}
	return n
}

func envDuration(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Warn().Str(k, v).Dur("default", def).Msg("invalid duration, using default")
		return def
	}
	return d
}
