/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the cash-flow engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Read environment config (CASHFLOW_* variables), then flags
  2. Initialize SQLite store and load the engine state
  3. Wire the bus and the collaborator poller
  4. Configure HTTP router
  5. Start server with graceful shutdown

CONFIGURATION:
  CASHFLOW_PORT             HTTP server port (default: 8080)
  CASHFLOW_DB               SQLite database path (default: cashflow.db)
                            Use ":memory:" for an in-memory database
  CASHFLOW_POLL_INTERVAL    Collaborator sweep interval (default: 1h)
  CASHFLOW_ALLOWED_ORIGINS  CORS origins (comma-separated)

  Flags -port and -db override the environment.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the poller
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

SEE ALSO:
  - api/server.go: Router configuration
  - api/poller.go: Collaborator collection cycle
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"

	"github.com/warp/cashflow-engine/api"
	"github.com/warp/cashflow-engine/engine"
	"github.com/warp/cashflow-engine/store/sqlite"
)

type config struct {
	Port           int           `envconfig:"PORT" default:"8080"`
	DB             string        `envconfig:"DB" default:"cashflow.db"`
	PollInterval   time.Duration `envconfig:"POLL_INTERVAL" default:"1h"`
	AllowedOrigins []string      `envconfig:"ALLOWED_ORIGINS" default:"http://localhost:5173,http://localhost:8080"`
}

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	var cfg config
	if err := envconfig.Process("cashflow", &cfg); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// Flags override the environment
	port := flag.Int("port", cfg.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DB, "SQLite database path")
	flag.Parse()

	store, err := sqlite.New(*dbPath)
	if err != nil {
		logger.Error("failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	eng, err := engine.New(context.Background(), store)
	if err != nil {
		logger.Error("failed to load engine state", "error", err)
		os.Exit(1)
	}

	// Collaborator handles are registered here as they come online; the
	// HTTP collect/post endpoints cover push-style integrations.
	bus := engine.NewBus()
	poller := api.NewPoller(eng, bus, nil, cfg.PollInterval, logger)
	poller.Start()
	defer poller.Stop()

	handler := api.NewHandler(eng, logger)
	router := api.NewRouter(handler, cfg.AllowedOrigins)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", *port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("forced shutdown", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
