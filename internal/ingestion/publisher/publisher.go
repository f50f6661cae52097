// Package publisher builds token sets for ingested questions and publishes
// them to Kafka for the indexer.
package publisher

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/ingestion"
	apperrors "github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/kafka"
)

const statusQueued = "QUEUED"

// QuestionChecker is satisfied by *catalog.QuestionStore.
type QuestionChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// Builder is satisfied by *indexer.Engine.
type Builder interface {
	Build(doc indexer.Document) tokenizer.TokenSet
}

type Publisher struct {
	questions QuestionChecker
	builder   Builder
	producer  kafka.Publisher
	logger    *slog.Logger
}

func New(questions QuestionChecker, builder Builder, producer kafka.Publisher) *Publisher {
	return &Publisher{
		questions: questions,
		builder:   builder,
		producer:  producer,
		logger:    slog.Default().With("component", "publisher"),
	}
}

// Ingest tokenizes the request and queues the token set keyed by question
// id, so updates to one question stay ordered within a partition.
func (p *Publisher) Ingest(ctx context.Context, req *ingestion.IngestRequest) (*ingestion.IngestResponse, error) {
	exists, err := p.questions.Exists(ctx, req.QuestionID)
	if err != nil {
		return nil, fmt.Errorf("checking question: %w", err)
	}
	if !exists {
		return nil, apperrors.Newf(apperrors.ErrQuestionNotFound, http.StatusNotFound, "question %s does not exist", req.QuestionID)
	}

	set := p.builder.Build(indexer.Document{
		QuestionID: req.QuestionID,
		RawText:    req.RawText,
		Unit:       req.Unit,
		QType:      req.QType,
	})
	event := kafka.Event{
		Key: req.QuestionID,
		Value: ingestion.TokenIndexEvent{
			QuestionID: req.QuestionID,
			Tokens:     set.Tokens,
			Bigrams:    set.Bigrams,
			Trigrams:   set.Trigrams,
			IngestedAt: time.Now().UTC(),
		},
	}
	if err := p.producer.Publish(ctx, event); err != nil {
		p.logger.Error("failed to publish token set",
			"question_id", req.QuestionID,
			"error", err,
		)
		return nil, apperrors.New(apperrors.ErrUnavailable, http.StatusServiceUnavailable, "token index queue unavailable")
	}

	return &ingestion.IngestResponse{
		QuestionID:   req.QuestionID,
		Status:       statusQueued,
		TokenCount:   len(set.Tokens),
		BigramCount:  len(set.Bigrams),
		TrigramCount: len(set.Trigrams),
	}, nil
}

// Remove queues a tombstone for questionID. It does not require the question
// row to exist, since removal typically follows the row's deletion.
func (p *Publisher) Remove(ctx context.Context, questionID string) (*ingestion.RemoveResponse, error) {
	event := kafka.Event{
		Key: questionID,
		Value: ingestion.TokenIndexEvent{
			QuestionID: questionID,
			Tokens:     []string{},
			Bigrams:    []string{},
			Trigrams:   []string{},
			Deleted:    true,
			IngestedAt: time.Now().UTC(),
		},
	}
	if err := p.producer.Publish(ctx, event); err != nil {
		p.logger.Error("failed to publish token set removal",
			"question_id", questionID,
			"error", err,
		)
		return nil, apperrors.New(apperrors.ErrUnavailable, http.StatusServiceUnavailable, "token index queue unavailable")
	}
	return &ingestion.RemoveResponse{QuestionID: questionID, Status: statusQueued}, nil
}
