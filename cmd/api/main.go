package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/gridlog/gridlog/internal/cache"
	"github.com/gridlog/gridlog/internal/config"
	"github.com/gridlog/gridlog/internal/httpserver"
	"github.com/gridlog/gridlog/internal/store"
)

// main boots the service: config → DB → schema → cache → HTTP server.
func main() {
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	zerolog.TimeFieldFormat = time.RFC3339

	// Load runtime config from environment (DB_URL, REDIS_ADDR, VIEWER_TOKENS).
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	// Connect to durable storage (Postgres) using a connection pool.
	db, err := store.NewPostgresStore(cfg.DBURL)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres unreachable")
	}
	defer db.Close()

	// Ensure required tables/indexes exist so `docker compose up --build` is enough.
	if err := db.EnsureSchema(); err != nil {
		log.Fatal().Err(err).Msg("schema bootstrap failed")
	}

	// Response cache is optional: no REDIS_ADDR means every read
	// recomputes from the store.
	rc := cache.New(cfg.RedisAddr, cfg.CacheTTLShort, cfg.CacheTTLLong)
	if rc == nil {
		log.Info().Msg("response cache disabled")
	}
	defer rc.Close()

	// Build HTTP router (public health + viewer-scoped APIs).
	router := httpserver.NewRouter(cfg, db, rc)

	log.Info().Str("addr", cfg.Listen).Msg("server started")
	if err := router.Run(cfg.Listen); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}
