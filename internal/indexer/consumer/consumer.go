// Package consumer reads token index events from Kafka and writes them
// through the indexer engine.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/kafka"
)

// Indexer is satisfied by *indexer.Engine.
type Indexer interface {
	Index(ctx context.Context, questionID string, set tokenizer.TokenSet) error
	Remove(ctx context.Context, questionID string) error
}

// Invalidator drops cached query resolutions. *cache.ResolutionCache
// satisfies it.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// Tracker is satisfied by *analytics.Collector.
type Tracker interface {
	Track(event any)
}

// IndexConsumer wraps a Kafka consumer to drive the indexing pipeline.
type IndexConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

func New(kafkaConsumer *kafka.Consumer) *IndexConsumer {
	return &IndexConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "index-consumer"),
	}
}

// Start blocks until ctx is cancelled.
func (ic *IndexConsumer) Start(ctx context.Context) error {
	ic.logger.Info("index consumer starting")
	return ic.consumer.Start(ctx)
}

// HandleMessage indexes each TokenIndexEvent (or removes the set for a
// tombstone) and then invalidates the resolution cache, since any change to a
// token set can change any query's outcome.
// invalidator and tracker may be nil. Undecodable or id-less messages are
// logged and skipped; index failures are returned so the offset is not
// committed.
func HandleMessage(idx Indexer, invalidator Invalidator, tracker Tracker) kafka.MessageHandler {
	logger := slog.Default().With("component", "index-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		start := time.Now()
		event, err := kafka.DecodeJSON[ingestion.TokenIndexEvent](value)
		if err != nil {
			logger.Error("failed to decode token index event",
				"error", err,
				"key", string(key),
			)
			return nil
		}
		if strings.TrimSpace(event.QuestionID) == "" {
			logger.Warn("skipping token index event without question_id", "key", string(key))
			return nil
		}

		set := tokenizer.TokenSet{
			Tokens:   nonNil(event.Tokens),
			Bigrams:  nonNil(event.Bigrams),
			Trigrams: nonNil(event.Trigrams),
		}
		eventType := analytics.EventIndexToken
		if event.Deleted {
			eventType = analytics.EventRemoveToken
			if err := idx.Remove(ctx, event.QuestionID); err != nil {
				return fmt.Errorf("removing question %s: %w", event.QuestionID, err)
			}
		} else if err := idx.Index(ctx, event.QuestionID, set); err != nil {
			return fmt.Errorf("indexing question %s: %w", event.QuestionID, err)
		}

		if invalidator != nil {
			if err := invalidator.Invalidate(ctx); err != nil {
				logger.Warn("resolution cache invalidation failed",
					"question_id", event.QuestionID,
					"error", err,
				)
			}
		}
		if tracker != nil {
			tracker.Track(analytics.IndexEvent{
				Type:         eventType,
				QuestionID:   event.QuestionID,
				TokenCount:   len(set.Tokens),
				BigramCount:  len(set.Bigrams),
				TrigramCount: len(set.Trigrams),
				LatencyMs:    time.Since(start).Milliseconds(),
				Timestamp:    time.Now().UTC(),
			})
		}

		logger.Info("token index event applied",
			"question_id", event.QuestionID,
			"deleted", event.Deleted,
			"tokens", len(set.Tokens),
		)
		return nil
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
