// Package index holds an in-memory overlap index over question token sets.
// Each (field, gram) pair keeps a roaring bitmap of dense record ordinals, so
// an overlap lookup is the OR of a handful of bitmaps.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/metrics"
)

// Source streams stored token sets. *catalog.TokenStore satisfies it.
type Source interface {
	ForEach(ctx context.Context, fn func(questionID string, set tokenizer.TokenSet) error) error
}

type snapshot struct {
	ordinals map[string]uint32
	ids      []string
	sets     map[uint32]tokenizer.TokenSet
	fields   map[tokenizer.Field]postings
}

func newSnapshot() *snapshot {
	fields := make(map[tokenizer.Field]postings, len(tokenizer.Fields))
	for _, f := range tokenizer.Fields {
		fields[f] = make(postings)
	}
	return &snapshot{
		ordinals: make(map[string]uint32),
		sets:     make(map[uint32]tokenizer.TokenSet),
		fields:   fields,
	}
}

func (s *snapshot) put(id string, set tokenizer.TokenSet) {
	ord, exists := s.ordinals[id]
	if exists {
		s.unlink(ord)
	} else {
		ord = uint32(len(s.ids))
		s.ids = append(s.ids, id)
		s.ordinals[id] = ord
	}
	s.sets[ord] = set
	for _, f := range tokenizer.Fields {
		s.fields[f].add(set.Values(f), ord)
	}
}

func (s *snapshot) delete(id string) {
	ord, ok := s.ordinals[id]
	if !ok {
		return
	}
	s.unlink(ord)
	delete(s.ordinals, id)
	s.ids[ord] = ""
}

func (s *snapshot) unlink(ord uint32) {
	old, ok := s.sets[ord]
	if !ok {
		return
	}
	for _, f := range tokenizer.Fields {
		s.fields[f].remove(old.Values(f), ord)
	}
	delete(s.sets, ord)
}

// mutation is a live write that the reload source may not reflect yet.
type mutation struct {
	id     string
	set    tokenizer.TokenSet
	delete bool
}

// MemoryIndex implements the overlap lookup of the resolver and the sink of
// the indexing engine. It is safe for concurrent use.
//
// Live writes can arrive ahead of the reload source, since the indexer
// persists the same events on its own schedule. Every write is therefore
// replayed onto the first two reloads that start after it.
type MemoryIndex struct {
	mu        sync.RWMutex
	current   *snapshot
	reloading bool
	pending   []mutation
	previous  []mutation
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewMemoryIndex returns an empty index. m may be nil.
func NewMemoryIndex(m *metrics.Metrics) *MemoryIndex {
	return &MemoryIndex{
		current: newSnapshot(),
		metrics: m,
		logger:  slog.Default().With("component", "memory-index"),
	}
}

// Put stores set under questionID, replacing any previous set.
func (m *MemoryIndex) Put(_ context.Context, questionID string, set tokenizer.TokenSet) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.put(questionID, set)
	m.pending = append(m.pending, mutation{id: questionID, set: set})
	m.updateGauge()
	return nil
}

// Delete removes questionID. Unknown ids are ignored.
func (m *MemoryIndex) Delete(_ context.Context, questionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current.delete(questionID)
	m.pending = append(m.pending, mutation{id: questionID, delete: true})
	m.updateGauge()
	return nil
}

// Overlaps returns the ids whose field shares at least one element with
// values, in ordinal order.
func (m *MemoryIndex) Overlaps(_ context.Context, field tokenizer.Field, values []string) ([]string, error) {
	if len(values) == 0 {
		return nil, apperrors.InvalidInput("overlap lookup on %s needs at least one value", field)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.current.fields[field]
	if !ok {
		return nil, apperrors.InvalidInput("unknown token field %q", field)
	}
	hits := p.union(values)
	ids := make([]string, 0, hits.GetCardinality())
	it := hits.Iterator()
	for it.HasNext() {
		ids = append(ids, m.current.ids[it.Next()])
	}
	return ids, nil
}

// Len returns the number of indexed questions.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.current.ordinals)
}

// Reload rebuilds the index from src and swaps it in. Recent live writes,
// including those made while the rebuild runs, are replayed onto the new
// snapshot in order. On error the current snapshot and the write history
// are kept.
func (m *MemoryIndex) Reload(ctx context.Context, src Source) error {
	m.mu.Lock()
	if m.reloading {
		m.mu.Unlock()
		return fmt.Errorf("memory index reload already in progress")
	}
	m.reloading = true
	prevGen, curGen := m.previous, m.pending
	carried := append(append(make([]mutation, 0, len(prevGen)+len(curGen)), prevGen...), curGen...)
	m.previous, m.pending = curGen, nil
	m.mu.Unlock()

	start := time.Now()
	next := newSnapshot()
	err := src.ForEach(ctx, func(questionID string, set tokenizer.TokenSet) error {
		next.put(questionID, set)
		return nil
	})

	m.mu.Lock()
	defer m.mu.Unlock()
	m.reloading = false
	if err != nil {
		m.previous = prevGen
		m.pending = append(curGen, m.pending...)
		m.recordReload("failure")
		return fmt.Errorf("reloading memory index: %w", err)
	}
	replay(next, carried)
	replay(next, m.pending)
	m.current = next
	m.updateGauge()
	m.recordReload("success")
	m.logger.Info("memory index reloaded",
		"questions", len(next.ordinals),
		"replayed", len(carried)+len(m.pending),
		"duration", time.Since(start),
	)
	return nil
}

func replay(s *snapshot, muts []mutation) {
	for _, mu := range muts {
		if mu.delete {
			s.delete(mu.id)
		} else {
			s.put(mu.id, mu.set)
		}
	}
}

// StartRefreshLoop reloads from src every interval until ctx is cancelled.
func (m *MemoryIndex) StartRefreshLoop(ctx context.Context, src Source, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				m.logger.Info("refresh loop stopping")
				return
			case <-ticker.C:
				if err := m.Reload(ctx, src); err != nil {
					m.logger.Error("periodic reload failed", "error", err)
				}
			}
		}
	}()
}

func (m *MemoryIndex) updateGauge() {
	if m.metrics != nil {
		m.metrics.MemoryIndexQuestions.Set(float64(len(m.current.ordinals)))
	}
}

func (m *MemoryIndex) recordReload(status string) {
	if m.metrics != nil {
		m.metrics.IndexReloadsTotal.WithLabelValues(status).Inc()
	}
}
