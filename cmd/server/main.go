/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the schedule engine server. Handles configuration,
  dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load configuration (viper: file, environment, defaults)
  2. Build the zap logger
  3. Initialize SQLite store and load the holiday calendar
  4. Wire the engine components (detector, PTO manager, expander, ledger)
  5. Start HTTP server with graceful shutdown

CONFIGURATION:
  Read from config.yaml in the working directory (optional) and from
  SCHEDULE_* environment variables. Keys:
    server.port        HTTP port (default: 8080)
    server.origins     Allowed CORS origins
    db.path            SQLite database path (":memory:" for ephemeral)
    pto.service_id     Reserved PTO service identifier
    inpatient.services Service names exempt from holiday blocking
    log.level          "debug" enables development logging

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close database connection
  4. Exit

SEE ALSO:
  - api/server.go: Router configuration
  - store/sqlite/sqlite.go: Database implementation
*/
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/meridian/schedule-engine/api"
	"github.com/meridian/schedule-engine/schedule"
	"github.com/meridian/schedule-engine/store/sqlite"
)

func main() {
	cfg := loadConfig()

	logger, err := buildLogger(cfg.GetString("log.level"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	store, err := sqlite.New(cfg.GetString("db.path"))
	if err != nil {
		logger.Fatal("failed to initialize database", zap.Error(err))
	}
	defer store.Close()

	calendar, err := schedule.LoadCalendar(context.Background(), store)
	if err != nil {
		logger.Fatal("failed to load holiday calendar", zap.Error(err))
	}
	inpatient := schedule.NewInpatientServices(cfg.GetStringSlice("inpatient.services")...)

	ledger := schedule.NewLedger(store, store, logger)
	evaluator := &schedule.RuleEvaluator{Rules: store}
	detector := schedule.NewDetector(store, store, evaluator, calendar, inpatient, ledger, logger)
	manager := schedule.NewManager(store, store, store, calendar,
		schedule.ServiceID(cfg.GetString("pto.service_id")),
		schedule.LogNotifier{Logger: logger}, logger)
	expander := schedule.NewExpander(store, store, store, calendar, inpatient, logger)

	handler := &api.Handler{
		Detector:    detector,
		Manager:     manager,
		Expander:    expander,
		Ledger:      ledger,
		Assignments: store,
		PTO:         store,
		History:     store,
		Holidays:    store,
		Rules:       store,
		Logger:      logger,
	}
	router := api.NewRouter(handler, cfg.GetStringSlice("server.origins"))

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.GetInt("server.port")),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting",
			zap.Int("port", cfg.GetInt("server.port")),
			zap.String("db", cfg.GetString("db.path")))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func loadConfig() *viper.Viper {
	v := viper.New()
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.origins", []string{"http://localhost:5173", "http://localhost:8080"})
	v.SetDefault("db.path", "schedule.db")
	v.SetDefault("pto.service_id", "pto")
	v.SetDefault("inpatient.services", []string{})
	v.SetDefault("log.level", "info")

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		// Config file is optional; environment and defaults still apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			fmt.Fprintf(os.Stderr, "failed to read config: %v\n", err)
			os.Exit(1)
		}
	}

	v.SetEnvPrefix("SCHEDULE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func buildLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
