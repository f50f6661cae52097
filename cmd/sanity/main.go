// Command sanity checks that the question bank is populated and searchable.
// It prints a JSON report to stdout, keeps a copy under -out and exits 1 when
// any check failed.
//
// Usage:
//
//	go run ./cmd/sanity [-config configs/development.yaml] [-out logs/sanity]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/diagnostics"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/searcher/resolver"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/postgres"
)

const runTimeout = time.Minute

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	outDir := flag.String("out", "logs/sanity", "directory for the report file; empty disables it")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	// stdout carries the report, so logs go to stderr.
	slog.SetDefault(logger.New(os.Stderr, cfg.Logging.Level, cfg.Logging.Format))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, runTimeout)
	defer cancel()

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
	checker := diagnostics.NewChecker(catalog.NewQuestionStore(db.DB), resolver.New(tokenStore, tok, nil), cfg.Search.SampleQueries)

	report := checker.Run(ctx)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		slog.Error("failed to write report", "error", err)
	}
	for _, hint := range report.Hints {
		slog.Warn("hint", "message", hint)
	}
	if *outDir != "" {
		path, err := report.WriteFile(*outDir)
		if err != nil {
			slog.Error("failed to save report", "error", err)
		} else {
			slog.Info("report saved", "path", path)
		}
	}

	if report.Failed() {
		db.Close()
		os.Exit(1)
	}
}
