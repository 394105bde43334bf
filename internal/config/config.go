package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Config contains runtime configuration required by the service.
type Config struct {
	DBURL     string
	RedisAddr string // empty disables the response cache
	Listen    string

	// ViewerTokens maps bearer token -> viewer id. Stands in for the
	// identity collaborator in dev and tests.
	ViewerTokens map[string]uuid.UUID

	// Response cache TTL classes. Short covers every viewer-scoped
	// payload and any recent session; long only archived anonymous ones.
	CacheTTLShort time.Duration
	CacheTTLLong  time.Duration
}

// Load reads required values from environment variables.
// VIEWER_TOKENS format: "token1:uuid1,token2:uuid2"
func Load() (Config, error) {
	dbURL := strings.TrimSpace(os.Getenv("DB_URL"))
	if dbURL == "" {
		return Config{}, errors.New("DB_URL required")
	}

	cfg := Config{
		DBURL:         dbURL,
		RedisAddr:     strings.TrimSpace(os.Getenv("REDIS_ADDR")),
		Listen:        strings.TrimSpace(os.Getenv("LISTEN_ADDR")),
		ViewerTokens:  map[string]uuid.UUID{},
		CacheTTLShort: 45 * time.Second,
		CacheTTLLong:  15 * time.Minute,
	}
	if cfg.Listen == "" {
		cfg.Listen = ":8080"
	}

	raw := strings.TrimSpace(os.Getenv("VIEWER_TOKENS"))
	if raw != "" {
		for _, p := range strings.Split(raw, ",") {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			parts := strings.SplitN(p, ":", 2)
			if len(parts) != 2 {
				return Config{}, errors.New(`VIEWER_TOKENS must be "token:uuid,token:uuid"`)
			}
			token := strings.TrimSpace(parts[0])
			id, err := uuid.Parse(strings.TrimSpace(parts[1]))
			if token == "" || err != nil {
				return Config{}, errors.New(`VIEWER_TOKENS must be "token:uuid,token:uuid"`)
			}
			cfg.ViewerTokens[token] = id
		}
	}

	var err error
	if cfg.CacheTTLShort, err = durationEnv("CACHE_TTL_SHORT", cfg.CacheTTLShort); err != nil {
		return Config{}, err
	}
	if cfg.CacheTTLLong, err = durationEnv("CACHE_TTL_LONG", cfg.CacheTTLLong); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// durationEnv parses an optional duration override like "30s" or "5m".
func durationEnv(name string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("%s must be a positive duration", name)
	}
	return d, nil
}
