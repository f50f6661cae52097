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

	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/searcher/resolver"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/middleware"
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
	slog.Info("starting search service",
		"port", cfg.Server.Port,
		"lookup_backend", cfg.Search.LookupBackend,
	)

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
	questionStore := catalog.NewQuestionStore(db.DB)
	tok := tokenizer.New(tokenizer.Options{
		MinTokenLength:    cfg.Tokenizer.MinTokenLength,
		MaxSequenceLength: cfg.Tokenizer.MaxSequenceLength,
	})

	var resolutionCache *cache.ResolutionCache
	redisClient, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, resolution caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		resolutionCache = cache.New(redisClient, cfg.Redis, m)
		slog.Info("resolution cache enabled",
			"addr", cfg.Redis.Addr,
			"ttl", cfg.Redis.CacheTTL,
		)
	}

	var lookup resolver.Lookup = tokenStore
	var memIndex *index.MemoryIndex
	if cfg.Search.LookupBackend == config.BackendMemory {
		memIndex = index.NewMemoryIndex(m)
		if err := memIndex.Reload(ctx, tokenStore); err != nil {
			slog.Error("failed to load memory index", "error", err)
			os.Exit(1)
		}
		memIndex.StartRefreshLoop(ctx, tokenStore, cfg.Search.RefreshInterval)
		startLiveUpdates(ctx, cfg, tok, memIndex, resolutionCache)
		lookup = memIndex
	}

	analyticsProducer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.AnalyticsEvents)
	defer analyticsProducer.Close()
	collector := analytics.NewCollector(analyticsProducer, analytics.CollectorConfig{})
	collector.Start(ctx)
	defer collector.Close()

	res := resolver.New(lookup, tok, m)
	var execCache executor.ResolutionCache
	var handlerCache handler.Cache
	if resolutionCache != nil {
		execCache = resolutionCache
		handlerCache = resolutionCache
	}
	exec := executor.New(res, execCache, questionStore, cfg.Search, m)
	h := handler.New(exec, questionStore, handlerCache, collector, cfg.Search)

	checker := health.NewChecker()
	checker.Register("postgres", health.PingCheck(db.Ping))
	checker.Register("redis", health.OptionalCheck(func(ctx context.Context) health.ComponentHealth {
		if redisClient == nil {
			return health.ComponentHealth{Status: health.StatusDown, Message: "not connected"}
		}
		return health.PingCheck(redisClient.Ping)(ctx)
	}))
	if memIndex != nil {
		checker.Register("memory_index", func(ctx context.Context) health.ComponentHealth {
			return health.ComponentHealth{
				Status:  health.StatusUp,
				Message: fmt.Sprintf("%d questions", memIndex.Len()),
			}
		})
	}

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	server := &http.Server{
		Addr: fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: middleware.Chain(mux,
			middleware.CORS(middleware.DefaultCORSConfig()),
			middleware.RequestID,
			middleware.Metrics(m),
			middleware.Timeout(cfg.Server.WriteTimeout),
		),
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

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}

// startLiveUpdates applies newly published token sets to the memory index
// between reloads. Every instance consumes under its own group so each one
// sees every event.
func startLiveUpdates(ctx context.Context, cfg *config.Config, tok *tokenizer.Tokenizer, memIndex *index.MemoryIndex, rc *cache.ResolutionCache) {
	host, err := os.Hostname()
	if err != nil {
		host = fmt.Sprintf("pid-%d", os.Getpid())
	}
	var invalidator consumer.Invalidator
	if rc != nil {
		invalidator = rc
	}
	engine := indexer.NewEngine(tok, memIndex, nil)
	kc := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.TokenIndex,
		consumer.HandleMessage(engine, invalidator, nil),
		kafka.WithGroup(cfg.Kafka.ConsumerGroup+"-searcher-"+host),
		kafka.FromLatest(),
	)
	go func() {
		if err := consumer.New(kc).Start(ctx); err != nil {
			slog.Error("live index consumer error", "error", err)
		}
	}()
	slog.Info("memory index live updates enabled", "topic", cfg.Kafka.Topics.TokenIndex)
}
