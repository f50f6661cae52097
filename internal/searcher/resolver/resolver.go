// Package resolver turns a free-text query into a candidate set of question
// ids by probing the token store one tier at a time: whole tokens first, then
// bigrams, then trigrams. The first tier that matches anything wins.
package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/metrics"
)

// Lookup finds records whose stored sequence for field shares at least one
// element with values.
type Lookup interface {
	Overlaps(ctx context.Context, field tokenizer.Field, values []string) ([]string, error)
}

// Resolution is the outcome of resolving one query. Matched is false when no
// tier produced a candidate, which callers must treat as an empty result and
// never as "no filter".
type Resolution struct {
	Matched   bool              `json:"matched"`
	MatchedBy tokenizer.Field   `json:"matched_by,omitempty"`
	IDs       []string          `json:"ids"`
	Attempted []tokenizer.Field `json:"attempted"`
}

// Resolver is safe for concurrent use.
type Resolver struct {
	lookup    Lookup
	tokenizer *tokenizer.Tokenizer
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New builds a Resolver. m may be nil.
func New(lookup Lookup, tok *tokenizer.Tokenizer, m *metrics.Metrics) *Resolver {
	if tok == nil {
		tok = tokenizer.New(tokenizer.DefaultOptions())
	}
	return &Resolver{
		lookup:    lookup,
		tokenizer: tok,
		metrics:   m,
		logger:    slog.Default().With("component", "resolver"),
	}
}

// Tokenizer returns the tokenizer queries are run through.
func (r *Resolver) Tokenizer() *tokenizer.Tokenizer {
	return r.tokenizer
}

// Resolve tokenizes query and resolves the resulting set.
func (r *Resolver) Resolve(ctx context.Context, query string) (Resolution, error) {
	return r.ResolveSet(ctx, r.tokenizer.Tokenize(query))
}

// ResolveSet runs the tier fallback over an already tokenized query. Tiers
// with no values are skipped without a lookup. Lookups are issued one after
// another; a lookup error aborts resolution with no partial result.
func (r *Resolver) ResolveSet(ctx context.Context, set tokenizer.TokenSet) (Resolution, error) {
	res := Resolution{IDs: []string{}, Attempted: make([]tokenizer.Field, 0, len(tokenizer.Fields))}
	log := logger.FromContext(ctx).With("component", "resolver")

	for _, field := range tokenizer.Fields {
		values := set.Values(field)
		if len(values) == 0 {
			continue
		}
		res.Attempted = append(res.Attempted, field)

		start := time.Now()
		ids, err := r.lookup.Overlaps(ctx, field, values)
		if r.metrics != nil {
			r.metrics.OverlapLookupDuration.WithLabelValues(string(field)).Observe(time.Since(start).Seconds())
		}
		if err != nil {
			return Resolution{}, fmt.Errorf("overlap lookup on %s: %w", field, err)
		}
		if len(ids) == 0 {
			log.Debug("tier empty, falling through", "tier", field, "values", len(values))
			continue
		}

		res.Matched = true
		res.MatchedBy = field
		res.IDs = dedupIDs(ids)
		r.observe(string(field))
		log.Debug("query resolved", "tier", field, "candidates", len(res.IDs))
		return res, nil
	}

	r.observe(metrics.TierNone)
	return res, nil
}

func (r *Resolver) observe(tier string) {
	if r.metrics != nil {
		r.metrics.ResolutionTierTotal.WithLabelValues(tier).Inc()
	}
}

func dedupIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
