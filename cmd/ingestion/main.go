// Command ingestion starts the question token ingestion HTTP service.
//
// The service accepts question text via POST /api/v1/questions/tokens,
// validates it, builds the token set and publishes it to Kafka for the
// indexer.
//
// Usage:
//
//	go run ./cmd/ingestion [-config configs/development.yaml]
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

	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting ingestion service", "port", cfg.Server.Port)

	m := metrics.New(nil)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, nil)
		defer shutdownMetrics(context.Background())
	}

	db, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to postgres")

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.TokenIndex)
	defer producer.Close()
	slog.Info("kafka producer initialized", "topic", cfg.Kafka.Topics.TokenIndex)

	tok := tokenizer.New(tokenizer.Options{
		MinTokenLength:    cfg.Tokenizer.MinTokenLength,
		MaxSequenceLength: cfg.Tokenizer.MaxSequenceLength,
	})
	pub := publisher.New(catalog.NewQuestionStore(db.DB), indexer.NewEngine(tok, nil, nil), producer)
	h := handler.New(pub)

	checker := health.NewChecker()
	checker.Register("postgres", health.PingCheck(db.Ping))

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: middleware.Chain(mux,
			middleware.RequestID,
			middleware.Metrics(m),
			middleware.Timeout(cfg.Server.WriteTimeout),
		),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()
	slog.Info("ingestion service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("ingestion service stopped")
}
