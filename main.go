// apps/go-server/main.go
//
// Entry point for the Connections Go server.
// Startup order: .env, log level, config, puzzle, optional history database,
// idle-game janitor, HTTP server. SIGINT/SIGTERM shut the server down.

package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/connections/apps/go-server/internal/config"
	"github.com/robalobadob/connections/apps/go-server/internal/history"
	"github.com/robalobadob/connections/apps/go-server/internal/httpserver"
	"github.com/robalobadob/connections/apps/go-server/internal/puzzle"
	"github.com/robalobadob/connections/apps/go-server/internal/store"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()
	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if !cfg.Production {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	}

	def, err := puzzle.Load(cfg.PuzzleFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.PuzzleFile).Msg("failed to load puzzle")
	}

	var opts []httpserver.Option
	if cfg.DBPath != "" {
		db, err := setupDB(cfg.DBPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to open database")
		}
		defer db.Close()
		opts = append(opts, httpserver.WithHistory(history.NewStore(db)))
	} else {
		log.Info().Msg("DB_PATH empty, game history disabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	mem := store.NewMemoryStore()
	go janitor(ctx, mem, cfg.IdleTimeout)

	srv := httpserver.New(mem, def, cfg, opts...)
	log.Info().Str("port", cfg.Port).Str("puzzle", def.Name()).Msg("starting go-server")
	if err := srv.Start(ctx, ":"+cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
	log.Info().Msg("server stopped")
}

func setupDB(path string) (*sql.DB, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	if err := migrate(db, getEnv("MIGRATIONS_DIR", "sql")); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// janitor drops games nobody has touched for idle.
func janitor(ctx context.Context, st store.Store, idle time.Duration) {
	period := idle / 4
	if period < time.Second {
		period = time.Second
	}
	t := time.NewTicker(period)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := st.Sweep(ctx, idle); n > 0 {
				log.Info().Int("removed", n).Int("live", st.Len()).Msg("swept idle games")
			}
		}
	}
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
