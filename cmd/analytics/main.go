// Command analytics consumes search and indexing events from Kafka,
// aggregates them in memory and serves the stats at GET /api/v1/analytics.
// When PostgreSQL is reachable the stats are also snapshotted periodically.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
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

	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/analytics/snapshot"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/postgres"
)

const snapshotInterval = time.Minute

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, nil)
		defer shutdownMetrics(context.Background())
	}

	aggregator := analytics.NewAggregator()
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents,
		analytics.HandleEvent(aggregator),
		kafka.WithGroup(cfg.Kafka.ConsumerGroup+"-analytics"),
	)
	go func() {
		if err := consumer.Start(ctx); err != nil {
			slog.Error("analytics consumer error", "error", err)
		}
	}()
	slog.Info("analytics aggregator started", "topic", cfg.Kafka.Topics.AnalyticsEvents)

	checker := health.NewChecker()
	checker.Register("kafka", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{Status: health.StatusUp, Message: "consumer active"}
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", analytics.NewHandler(aggregator).Stats)

	waitSnapshots := func() {}
	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, analytics snapshots disabled", "error", err)
	} else {
		defer db.Close()
		store := snapshot.NewStore(db.DB, snapshot.DefaultRetain)
		waitSnapshots = store.StartPeriodicSave(ctx, aggregator, snapshotInterval)
		mux.HandleFunc("GET /api/v1/analytics/snapshots", snapshot.NewHandler(store).List)
		checker.Register("postgres", health.OptionalCheck(health.PingCheck(db.Ping)))
	}

	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      middleware.Chain(mux, middleware.RequestID, middleware.Metrics(m)),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	// The deferred db.Close must not run before the final snapshot lands.
	waitSnapshots()
	slog.Info("analytics service stopped")
}
