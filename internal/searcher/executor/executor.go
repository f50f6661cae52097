// Package executor runs a question search: it resolves the free-text query to
// candidate ids, narrows them with attribute filters and pages the result.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/searcher/filter"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/searcher/resolver"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/tracing"
)

// MatchedNone is reported when a non-blank query resolved to nothing.
const MatchedNone = "none"

type Resolver interface {
	Resolve(ctx context.Context, query string) (resolver.Resolution, error)
}

// ResolutionCache memoises resolutions. *cache.ResolutionCache satisfies it.
type ResolutionCache interface {
	GetOrCompute(ctx context.Context, query string, compute func(ctx context.Context) (resolver.Resolution, error)) (resolver.Resolution, bool, error)
}

type QuestionSearcher interface {
	Search(ctx context.Context, preds []filter.Predicate, page, pageSize int) ([]catalog.Question, int, error)
}

type Params struct {
	Query    string
	Filters  filter.Filters
	Page     int
	PageSize int
}

type SearchResult struct {
	Items     []catalog.Question `json:"items"`
	Total     int                `json:"total"`
	Page      int                `json:"page"`
	PageSize  int                `json:"pageSize"`
	MatchedBy string             `json:"matched_by,omitempty"`
	CacheHit  bool               `json:"-"`
}

type Executor struct {
	resolver  Resolver
	cache     ResolutionCache
	questions QuestionSearcher
	cfg       config.SearchConfig
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// New builds an Executor. cache and m may be nil.
func New(r Resolver, cache ResolutionCache, questions QuestionSearcher, cfg config.SearchConfig, m *metrics.Metrics) *Executor {
	return &Executor{
		resolver:  r,
		cache:     cache,
		questions: questions,
		cfg:       cfg,
		metrics:   m,
		logger:    slog.Default().With("component", "search-executor"),
	}
}

// Execute clamps paging, resolves the query when it is not blank and runs the
// filtered, paged question query. A query that resolves to nothing returns an
// empty page without touching the questions table.
func (e *Executor) Execute(ctx context.Context, p Params) (*SearchResult, error) {
	start := time.Now()
	page, pageSize := e.clampPaging(p.Page, p.PageSize)
	result := &SearchResult{
		Items:    []catalog.Question{},
		Page:     page,
		PageSize: pageSize,
	}

	preds := make([]filter.Predicate, 0, 10)
	query := strings.TrimSpace(p.Query)
	if query != "" {
		resolveCtx, span := tracing.StartChildSpan(ctx, "resolve")
		res, hit, err := e.resolve(resolveCtx, query)
		span.SetAttr("cache_hit", hit)
		span.SetAttr("matched_by", string(res.MatchedBy))
		span.End()
		if err != nil {
			e.observe("error", hit, start, 0)
			return nil, fmt.Errorf("resolving query: %w", err)
		}
		result.CacheHit = hit
		if !res.Matched {
			result.MatchedBy = MatchedNone
			e.observe("no_match", hit, start, 0)
			logger.FromContext(ctx).Debug("query matched no tier", "query", query, "attempted", res.Attempted)
			return result, nil
		}
		result.MatchedBy = string(res.MatchedBy)
		preds = append(preds, filter.Predicate{Field: "id", Op: filter.OpIn, Value: res.IDs})
	}
	preds = append(preds, p.Filters.Predicates()...)

	queryCtx, span := tracing.StartChildSpan(ctx, "question_query")
	items, total, err := e.questions.Search(queryCtx, preds, page, pageSize)
	span.SetAttr("predicates", len(preds))
	span.SetAttr("total", total)
	span.End()
	if err != nil {
		e.observe("error", result.CacheHit, start, 0)
		return nil, fmt.Errorf("searching questions: %w", err)
	}
	if items != nil {
		result.Items = items
	}
	result.Total = total

	resultType := "hit"
	if total == 0 {
		resultType = "zero_result"
	}
	e.observe(resultType, result.CacheHit, start, total)
	return result, nil
}

func (e *Executor) resolve(ctx context.Context, query string) (resolver.Resolution, bool, error) {
	if e.cache == nil {
		res, err := e.resolver.Resolve(ctx, query)
		return res, false, err
	}
	return e.cache.GetOrCompute(ctx, query, func(ctx context.Context) (resolver.Resolution, error) {
		return e.resolver.Resolve(ctx, query)
	})
}

func (e *Executor) clampPaging(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = e.cfg.DefaultPageSize
	}
	if pageSize > e.cfg.MaxPageSize {
		pageSize = e.cfg.MaxPageSize
	}
	return page, pageSize
}

func (e *Executor) observe(resultType string, cacheHit bool, start time.Time, total int) {
	if e.metrics == nil {
		return
	}
	cacheStatus := "miss"
	if cacheHit {
		cacheStatus = "hit"
	}
	e.metrics.SearchQueriesTotal.WithLabelValues(resultType).Inc()
	e.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(time.Since(start).Seconds())
	if resultType != "error" {
		e.metrics.SearchResultsCount.Observe(float64(total))
	}
}
