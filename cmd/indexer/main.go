package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/redis"
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
	slog.Info("starting indexer service")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

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

	tokenStore := catalog.NewTokenStore(db.DB, catalog.TokenStoreConfig{
		LookupTimeout: cfg.Search.LookupTimeout,
		LookupRetries: cfg.Search.LookupRetries,
	})
	tok := tokenizer.New(tokenizer.Options{
		MinTokenLength:    cfg.Tokenizer.MinTokenLength,
		MaxSequenceLength: cfg.Tokenizer.MaxSequenceLength,
	})
	engine := indexer.NewEngine(tok, tokenStore, m)

	var invalidator consumer.Invalidator
	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, resolution cache will expire by TTL only", "error", err)
	} else {
		defer redisClient.Close()
		invalidator = cache.New(redisClient, cfg.Redis, m)
	}

	analyticsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
	defer analyticsProducer.Close()
	collector := analytics.NewCollector(analyticsProducer, analytics.CollectorConfig{})
	collector.Start(ctx)
	defer collector.Close()

	kafkaConsumer := kafka.NewConsumer(
		cfg.Kafka,
		cfg.Kafka.Topics.TokenIndex,
		consumer.HandleMessage(engine, invalidator, collector),
	)
	indexConsumer := consumer.New(kafkaConsumer)

	slog.Info("indexer service ready, consuming from kafka",
		"topic", cfg.Kafka.Topics.TokenIndex,
		"group", cfg.Kafka.ConsumerGroup,
	)

	if err := indexConsumer.Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
	}

	slog.Info("indexer service stopped")
}
