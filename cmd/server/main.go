/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the club activity and reward engine server.
  Handles configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration from the environment
  2. Initialize SQLite store (auto-migrated)
  3. Seed multiplier policies when the table is empty
  4. Build the engine and API handler
  5. Start the HTTP server and the monthly scheduler
  6. Graceful shutdown on SIGINT/SIGTERM

ENVIRONMENT:
  PORT               HTTP server port (default: 8080)
  DB_PATH            SQLite database path, ":memory:" for throwaway
  LOG_LEVEL          logrus level (default: info)
  SCHEDULER_ENABLED  run the monthly recomputation cron (default: true)
  SCHEDULER_SPEC     cron spec (default: "0 3 1 * *")
  POLICY_FILE        optional JSON overriding the built-in tiers

SEE ALSO:
  - config/config.go: Configuration loading
  - api/server.go: Router configuration
  - store/sqlite: Database implementation
*/
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/clubhub/activity-engine/api"
	"github.com/clubhub/activity-engine/config"
	"github.com/clubhub/activity-engine/engine"
	"github.com/clubhub/activity-engine/policy"
	"github.com/clubhub/activity-engine/store/sqlite"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}
	log := cfg.Logger()

	store, err := sqlite.New(cfg.DBPath)
	if err != nil {
		log.WithError(err).Fatal("failed to initialize database")
	}
	defer store.Close()

	ctx := context.Background()
	resolver, err := loadPolicies(ctx, cfg, store, log)
	if err != nil {
		log.WithError(err).Fatal("failed to load multiplier policies")
	}

	eng := engine.New(store, store, resolver)
	eng.Log = log
	eng.Notifier = engine.LogNotifier{Log: log}

	handler := api.NewHandler(eng, store.Policies)
	router := api.NewRouter(handler, cfg.AllowedOrigins)

	server := &http.Server{
		Addr:         cfg.Addr(),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	var scheduler *api.Scheduler
	if cfg.SchedulerEnabled {
		scheduler = api.NewScheduler(eng, log)
		if err := scheduler.Start(cfg.SchedulerSpec); err != nil {
			log.WithError(err).Fatal("failed to start scheduler")
		}
	}

	go func() {
		log.WithField("addr", server.Addr).Info("server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.ShutdownTimeout)*time.Second)
	defer cancel()

	if scheduler != nil {
		scheduler.Stop()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}

	log.Info("server stopped")
}

// loadPolicies builds the tier resolver. Stored policies win; an empty
// table is seeded from POLICY_FILE when given, else from the built-in
// presets.
func loadPolicies(ctx context.Context, cfg *config.Config, store *sqlite.Store, log *logrus.Logger) (*policy.Resolver, error) {
	stored, err := store.Policies(ctx)
	if err != nil {
		return nil, err
	}
	if len(stored) > 0 {
		return policy.NewResolver(stored), nil
	}

	seed := policy.DefaultPolicies()
	if cfg.PolicyFile != "" {
		raw, err := os.ReadFile(cfg.PolicyFile)
		if err != nil {
			return nil, err
		}
		seed, err = policy.ParsePolicies(raw)
		if err != nil {
			return nil, err
		}
	}

	for _, p := range seed {
		if err := store.SavePolicy(ctx, p); err != nil {
			return nil, err
		}
	}
	log.WithField("count", len(seed)).Info("seeded multiplier policies")
	return policy.NewResolver(seed), nil
}
