package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/crypto/bcrypt"

	cardsapi "bankcards/internal/cards/api"
	"bankcards/internal/cards/application"
	"bankcards/internal/cards/infrastructure/memory"
	"bankcards/internal/cards/infrastructure/postgres"
	"bankcards/internal/common/auth"
	"bankcards/internal/common/config"
	"bankcards/internal/common/logging"
	"bankcards/internal/common/metrics"
	"bankcards/internal/common/types"
)

// pinger is implemented by storage backends that have an external dependency to check.
type pinger interface {
	Ping(ctx context.Context) error
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logging.Setup(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})

	startupCtx := logging.WithCorrelationID(context.Background(), types.NewCorrelationID())

	logging.InfoContext(startupCtx, "Starting bank cards service",
		"port", cfg.Port,
		"environment", cfg.Environment,
		"storage", cfg.Storage,
		"log_level", cfg.LogLevel,
	)

	var (
		dataStore application.DataStore
		ready     pinger
	)
	if cfg.UsesPostgres() {
		pool, err := cfg.NewPostgresPool(startupCtx)
		if err != nil {
			logging.ErrorContext(startupCtx, "Failed to connect to Postgres", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		pgStore := postgres.NewDataStore(pool)
		dataStore, ready = pgStore, pgStore
	} else {
		logging.WarnContext(startupCtx, "Using in-memory storage; data is lost on restart")
		dataStore = memory.NewDataStore()
	}

	tokens, err := auth.NewTokenService(cfg.JWTSecret, time.Duration(cfg.JWTTTLMinutes)*time.Minute)
	if err != nil {
		logging.ErrorContext(startupCtx, "Failed to create token service", "error", err)
		os.Exit(1)
	}

	cardService := application.NewCardService(dataStore)
	transferService := application.NewTransferService(dataStore)
	userService := application.NewUserService(dataStore, auth.NewPasswordHasher(bcrypt.DefaultCost), tokens)

	if err := userService.EnsureAdmin(startupCtx, cfg.AdminEmail, cfg.AdminPassword, cfg.AdminName); err != nil {
		logging.ErrorContext(startupCtx, "Failed to bootstrap admin", "error", err)
		os.Exit(1)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler)
	mux.HandleFunc("GET /ready", readyHandler(cfg, ready))
	mux.Handle("GET /metrics", metrics.Handler())

	cardsHandler := cardsapi.NewHandler(cardService, transferService, userService, auth.NewMiddleware(tokens))
	cardsHandler.RegisterRoutes(mux)

	logging.InfoContext(startupCtx, "Cards context initialized")

	relayCtx, stopRelay := context.WithCancel(logging.WithCorrelationID(context.Background(), types.NewCorrelationID()))
	defer stopRelay()
	relay := application.NewOutboxRelay(dataStore, application.LogPublisher{})
	go relay.Run(relayCtx, time.Duration(cfg.OutboxPollSeconds)*time.Second)

	// Middleware chain: metrics -> correlation -> handler
	handler := metrics.Middleware(correlationMiddleware(mux))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logging.Info("HTTP server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Error("HTTP server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logging.Info("Shutting down server")
	stopRelay()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logging.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logging.Info("Server stopped")
}

// requestTimeout is the maximum time allowed for processing a single request.
const requestTimeout = 5 * time.Second

// correlationMiddleware adds correlation ID and request timeout to each request.
func correlationMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		corrID := types.CorrelationID(r.Header.Get("X-Correlation-ID"))
		if corrID.IsEmpty() {
			corrID = types.NewCorrelationID()
		}

		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()

		ctx = logging.WithCorrelationID(ctx, corrID)

		w.Header().Set("X-Correlation-ID", corrID.String())

		logging.InfoContext(ctx, "HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
		)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// healthHandler returns basic health status.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status": "healthy",
	})
}

// readyHandler reports ready once the storage backend answers a ping.
func readyHandler(cfg *config.Config, db pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if db != nil {
			if err := db.Ping(r.Context()); err != nil {
				logging.WarnContext(r.Context(), "Readiness check failed", "error", err)
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]any{
					"status": "unavailable",
					"error":  "database unreachable",
				})
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]any{
			"status":      "ready",
			"environment": cfg.Environment,
			"storage":     cfg.Storage,
		})
	}
}
