// Package indexer turns question text into token sets and writes them to a
// token sink (the Postgres token store or the in-memory overlap index).
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/metrics"
)

// Document is the indexable text of one question.
type Document struct {
	QuestionID string
	RawText    string
	Unit       string
	QType      string
}

// Sink persists token sets. *catalog.TokenStore and *index.MemoryIndex
// satisfy it. Delete of an unknown id is not an error.
type Sink interface {
	Put(ctx context.Context, questionID string, set tokenizer.TokenSet) error
	Delete(ctx context.Context, questionID string) error
}

type Engine struct {
	tokenizer *tokenizer.Tokenizer
	sink      Sink
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewEngine builds an Engine. A nil tok uses the default options and m may
// be nil.
func NewEngine(tok *tokenizer.Tokenizer, sink Sink, m *metrics.Metrics) *Engine {
	if tok == nil {
		tok = tokenizer.New(tokenizer.DefaultOptions())
	}
	return &Engine{
		tokenizer: tok,
		sink:      sink,
		metrics:   m,
		logger:    slog.Default().With("component", "indexer"),
	}
}

// Build tokenizes the raw text and the meta text ("unit qtype") separately
// and returns their union.
func (e *Engine) Build(doc Document) tokenizer.TokenSet {
	return e.tokenizer.TokenizeAll(doc.RawText, metaText(doc))
}

// Index writes set to the sink.
func (e *Engine) Index(ctx context.Context, questionID string, set tokenizer.TokenSet) error {
	start := time.Now()
	if err := e.sink.Put(ctx, questionID, set); err != nil {
		e.record("failure", set)
		return fmt.Errorf("storing token set for %s: %w", questionID, err)
	}
	e.record("success", set)
	e.logger.Debug("token set indexed",
		"question_id", questionID,
		"tokens", len(set.Tokens),
		"bigrams", len(set.Bigrams),
		"trigrams", len(set.Trigrams),
		"duration", time.Since(start),
	)
	return nil
}

// Remove drops the token set of questionID from the sink.
func (e *Engine) Remove(ctx context.Context, questionID string) error {
	if err := e.sink.Delete(ctx, questionID); err != nil {
		e.record("failure", tokenizer.TokenSet{})
		return fmt.Errorf("removing token set for %s: %w", questionID, err)
	}
	e.record("removed", tokenizer.TokenSet{})
	e.logger.Debug("token set removed", "question_id", questionID)
	return nil
}

// IndexDocument builds and indexes doc, returning the stored set.
func (e *Engine) IndexDocument(ctx context.Context, doc Document) (tokenizer.TokenSet, error) {
	set := e.Build(doc)
	if err := e.Index(ctx, doc.QuestionID, set); err != nil {
		return tokenizer.TokenSet{}, err
	}
	return set, nil
}

func (e *Engine) record(status string, set tokenizer.TokenSet) {
	if e.metrics == nil {
		return
	}
	e.metrics.TokenSetsIndexedTotal.WithLabelValues(status).Inc()
	if status != "success" {
		return
	}
	for _, f := range tokenizer.Fields {
		e.metrics.TokenSetSize.WithLabelValues(string(f)).Observe(float64(len(set.Values(f))))
	}
}

func metaText(doc Document) string {
	parts := make([]string, 0, 2)
	for _, p := range []string{doc.Unit, doc.QType} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}
