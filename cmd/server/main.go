/*
main.go - Application entry point

STARTUP SEQUENCE:
  1. Load configuration from the environment (.env in development)
  2. Initialize the SQLite store
  3. Wire the ledger, connection service, and matchmaker
  4. Configure the HTTP router
  5. Start the server with graceful shutdown

CONFIGURATION (environment):
  PORT             HTTP server port (default: 8080)
  DB_PATH          SQLite database path (default: skillswap.db, ":memory:" supported)
  KAFKA_BROKERS    Comma-separated broker list; empty disables event publishing
  ALLOWED_ORIGINS  Comma-separated CORS origins

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM: stop accepting connections, wait up to 30s for active
  requests, close the store and event publisher, exit.

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Environment loading
*/
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/skillswap/credit-engine/api"
	"github.com/skillswap/credit-engine/config"
	"github.com/skillswap/credit-engine/connection"
	"github.com/skillswap/credit-engine/credit"
	"github.com/skillswap/credit-engine/events"
	"github.com/skillswap/credit-engine/events/kafka"
	"github.com/skillswap/credit-engine/matchmaking"
	"github.com/skillswap/credit-engine/store/sqlite"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg := config.Load()

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		logger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	var publisher events.Publisher = events.Noop{}
	if len(cfg.KafkaBrokers) > 0 {
		kp := kafka.NewPublisher(cfg.KafkaBrokers)
		defer kp.Close()
		publisher = kp
		logger.Info("event publishing enabled", "brokers", cfg.KafkaBrokers)
	}

	ledger := credit.NewLedger(store, store, publisher, logger)
	connections := connection.NewService(store, store, ledger)
	matchmaker := matchmaking.NewService(store)

	handler := api.NewHandler(store, connections, ledger, matchmaker)
	router := api.NewRouter(handler, cfg.AllowedOrigins)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "port", cfg.Port, "env", cfg.Env, "db", cfg.DBPath)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
