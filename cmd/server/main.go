/*
main.go - Application entry point

STARTUP SEQUENCE:
  1. Load configuration (env + optional .env, flags override)
  2. Initialize logger and SQLite store
  3. Bootstrap the admin account if the users table is empty
  4. Start the HTTP server with graceful shutdown

On SIGINT/SIGTERM the server stops accepting connections, waits for in-flight
requests up to the configured timeout, then closes the store.
*/
package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/atelier/backoffice/api"
	"github.com/atelier/backoffice/config"
	"github.com/atelier/backoffice/logging"
	"github.com/atelier/backoffice/storage/sqlite"
)

func main() {
	addr := flag.String("addr", "", "listen address (overrides HTTP_ADDR)")
	dbPath := flag.String("db", "", "SQLite database path (overrides DB_PATH), \":memory:\" for in-memory")
	flag.Parse()

	cfg := config.Load()
	if *addr != "" {
		cfg.Addr = *addr
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	logger := logging.New("backoffice", cfg.LogLevel, cfg.DevMode)

	store, err := sqlite.New(cfg.DBPath, cfg.MaxOpenConns)
	if err != nil {
		logger.Fatal().Err(err).Str("path", cfg.DBPath).Msg("failed to open database")
	}
	defer store.Close()

	if err := bootstrapAdmin(store, cfg); err != nil {
		logger.Fatal().Err(err).Msg("admin bootstrap failed")
	}

	auth := api.NewAuthenticator(cfg.JWTSecret, cfg.TokenTTL)
	handler := api.NewHandler(store, auth, logger)
	router := api.NewRouter(handler, cfg.CORSOrigins, logger)

	server := &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.Addr).Str("db", cfg.DBPath).Msg("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("forced shutdown")
	}
	logger.Info().Msg("server stopped")
}

// bootstrapAdmin creates the initial account when the users table is empty
// and ADMIN_PASSWORD is set. Without it the API stays locked until a user row
// is created out of band.
func bootstrapAdmin(store *sqlite.Store, cfg config.Config) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	n, err := store.CountUsers(ctx)
	if err != nil {
		return err
	}
	if n > 0 || cfg.AdminPassword == "" {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = store.CreateUser(ctx, cfg.AdminUsername, string(hash), cfg.AdminEmail)
	return err
}
