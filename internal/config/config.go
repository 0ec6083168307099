package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type APIConfig struct {
	Addr             string
	DatabaseURL      string
	JWTSecret        string
	TokenTTL         time.Duration
	TerritoriesPath  string
	HolidaysPath     string
	EngineSeed       int64
	AutoAdvanceEvery time.Duration
	WorkerRunOnce    bool
	DBMaxConns       int32
	DBMinConns       int32
}

type CLIConfig struct {
	APIBaseURL string
}

func LoadAPIFromEnv() (APIConfig, error) {
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("MARQUEE_API_ADDR", ":8080")
	}

	cfg := APIConfig{
		Addr:             addr,
		DatabaseURL:      strings.TrimSpace(os.Getenv("DATABASE_URL")),
		JWTSecret:        strings.TrimSpace(os.Getenv("MARQUEE_JWT_SECRET")),
		TokenTTL:         envDurationDefault("MARQUEE_TOKEN_TTL", 24*time.Hour),
		TerritoriesPath:  envDefault("MARQUEE_TERRITORIES_PATH", ""),
		HolidaysPath:     envDefault("MARQUEE_HOLIDAYS_PATH", ""),
		EngineSeed:       envInt64Default("MARQUEE_ENGINE_SEED", 0),
		AutoAdvanceEvery: envDurationDefault("MARQUEE_AUTO_ADVANCE_EVERY", 10*time.Minute),
		WorkerRunOnce:    envBoolDefault("MARQUEE_WORKER_RUN_ONCE", false),
		DBMaxConns:       int32(envInt64Default("MARQUEE_DB_MAX_CONNS", 16)),
		DBMinConns:       int32(envInt64Default("MARQUEE_DB_MIN_CONNS", 2)),
	}
	if cfg.DatabaseURL == "" {
		return cfg, fmt.Errorf("DATABASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return cfg, fmt.Errorf("MARQUEE_JWT_SECRET is required")
	}
	return cfg, nil
}

func LoadCLIFromEnv() CLIConfig {
	return CLIConfig{
		APIBaseURL: strings.TrimRight(envDefault("MQ_API_BASE_URL", "http://localhost:8080"), "/"),
	}
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envDurationDefault(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func envInt64Default(key string, fallback int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func envBoolDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
