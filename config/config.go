// Package config provides runtime configuration for the back-office service.
//
// Values come from the environment, with an optional .env file loaded first
// (ignored if absent). Every knob has a default so the server runs with no
// configuration at all, backed by a local SQLite file.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime settings for the server.
type Config struct {
	// HTTP
	Addr            string
	CORSOrigins     []string
	ShutdownTimeout time.Duration

	// Storage
	DBPath       string
	MaxOpenConns int

	// Auth
	JWTSecret string
	TokenTTL  time.Duration

	// Bootstrap admin account, created only when the users table is empty.
	AdminUsername string
	AdminPassword string
	AdminEmail    string

	// Observability
	LogLevel string
	DevMode  bool
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func atoienv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func boolenv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// Load collects configuration from the environment with defaults.
// A .env file in the working directory is honored when present.
func Load() Config {
	_ = godotenv.Load()

	origins := strings.Split(getenv("CORS_ORIGINS", "http://localhost:5173,http://localhost:3000"), ",")
	for i := range origins {
		origins[i] = strings.TrimSpace(origins[i])
	}

	return Config{
		Addr:            getenv("HTTP_ADDR", ":8080"),
		CORSOrigins:     origins,
		ShutdownTimeout: time.Duration(atoienv("SHUTDOWN_TIMEOUT_SECONDS", 30)) * time.Second,

		DBPath:       getenv("DB_PATH", "backoffice.db"),
		MaxOpenConns: atoienv("DB_MAX_OPEN_CONNS", 10),

		JWTSecret: getenv("JWT_SECRET", "dev-secret-change-in-production"),
		TokenTTL:  time.Duration(atoienv("TOKEN_TTL_HOURS", 24)) * time.Hour,

		AdminUsername: getenv("ADMIN_USERNAME", "admin"),
		AdminPassword: getenv("ADMIN_PASSWORD", ""),
		AdminEmail:    getenv("ADMIN_EMAIL", ""),

		LogLevel: getenv("LOG_LEVEL", "info"),
		DevMode:  boolenv("DEV_MODE", false),
	}
}
