package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/searcher/filter"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/tracing"
)

type SearchExecutor interface {
	Execute(ctx context.Context, p executor.Params) (*executor.SearchResult, error)
}

// Catalog is the read side of the question store. *catalog.QuestionStore
// satisfies it.
type Catalog interface {
	GetByPublicQID(ctx context.Context, publicQID string) (catalog.Question, error)
	ListOrganizations(ctx context.Context) ([]catalog.Organization, error)
	ListSubjects(ctx context.Context) ([]catalog.Subject, error)
}

type Cache interface {
	Stats() (hits, misses int64)
	Invalidate(ctx context.Context) error
}

// Tracker receives one analytics event per search. *analytics.Collector
// satisfies it.
type Tracker interface {
	Track(event any)
}

type Handler struct {
	executor SearchExecutor
	catalog  Catalog
	cache    Cache
	tracker  Tracker
	cfg      config.SearchConfig
	logger   *slog.Logger
}

// New builds a Handler. cache and tracker may be nil.
func New(exec SearchExecutor, cat Catalog, cache Cache, tracker Tracker, cfg config.SearchConfig) *Handler {
	return &Handler{
		executor: exec,
		catalog:  cat,
		cache:    cache,
		tracker:  tracker,
		cfg:      cfg,
		logger:   slog.Default().With("component", "search-handler"),
	}
}

// Register mounts the search API on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/questions", h.Search)
	mux.HandleFunc("GET /api/v1/questions/{public_qid}", h.GetQuestion)
	mux.HandleFunc("GET /api/v1/meta/organizations", h.ListOrganizations)
	mux.HandleFunc("GET /api/v1/meta/subjects", h.ListSubjects)
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.CacheInvalidate)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()
	log := logger.FromContext(ctx)

	params, err := h.parseParams(r)
	if err != nil {
		h.writeAppError(w, err)
		return
	}

	ctx, span := tracing.StartSpan(ctx, "search", middleware.GetRequestID(ctx))
	result, err := h.executor.Execute(ctx, params)
	span.End()
	span.Log(ctx, log)
	if err != nil {
		log.Error("search execution failed", "query", params.Query, "error", err)
		h.writeError(w, http.StatusInternalServerError, apperrors.CodeInternal, "search failed")
		return
	}

	latencyMs := time.Since(start).Milliseconds()
	log.Info("search completed",
		"query", params.Query,
		"matched_by", result.MatchedBy,
		"total", result.Total,
		"returned", len(result.Items),
		"cache_hit", result.CacheHit,
		"latency_ms", latencyMs,
	)
	if h.tracker != nil {
		h.tracker.Track(analytics.SearchEvent{
			Type:      analytics.EventSearch,
			Query:     params.Query,
			MatchedBy: result.MatchedBy,
			TotalHits: result.Total,
			Returned:  len(result.Items),
			LatencyMs: latencyMs,
			CacheHit:  result.CacheHit,
			Timestamp: time.Now().UTC(),
			RequestID: middleware.GetRequestID(ctx),
		})
	}

	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) parseParams(r *http.Request) (executor.Params, error) {
	q := r.URL.Query()
	params := executor.Params{
		Query:    q.Get("q"),
		Page:     1,
		PageSize: h.cfg.DefaultPageSize,
	}
	if v := q.Get("page"); v != "" {
		page, err := strconv.Atoi(v)
		if err != nil || page < 1 {
			return params, apperrors.InvalidInput("page must be a positive integer")
		}
		params.Page = page
	}
	if v := q.Get("pageSize"); v != "" {
		size, err := strconv.Atoi(v)
		if err != nil || size < 1 || size > h.cfg.MaxPageSize {
			return params, apperrors.InvalidInput("pageSize must be between 1 and %d", h.cfg.MaxPageSize)
		}
		params.PageSize = size
	}
	filters, err := filter.ParseFilters(q)
	if err != nil {
		return params, err
	}
	params.Filters = filters
	return params, nil
}

func (h *Handler) GetQuestion(w http.ResponseWriter, r *http.Request) {
	publicQID := r.PathValue("public_qid")
	if !catalog.ValidPublicQID(publicQID) {
		h.writeError(w, http.StatusBadRequest, apperrors.CodeBadRequest, "public_qid must be 12 digits")
		return
	}
	q, err := h.catalog.GetByPublicQID(r.Context(), publicQID)
	if errors.Is(err, apperrors.ErrQuestionNotFound) {
		h.writeError(w, http.StatusNotFound, apperrors.CodeNotFound, "question not found")
		return
	}
	if err != nil {
		logger.FromContext(r.Context()).Error("question lookup failed", "public_qid", publicQID, "error", err)
		h.writeError(w, http.StatusInternalServerError, apperrors.CodeInternal, "question lookup failed")
		return
	}
	h.writeJSON(w, http.StatusOK, q)
}

func (h *Handler) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	items, err := h.catalog.ListOrganizations(r.Context())
	if err != nil {
		h.logger.Error("listing organizations failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, apperrors.CodeInternal, "failed to list organizations")
		return
	}
	if items == nil {
		items = []catalog.Organization{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) ListSubjects(w http.ResponseWriter, r *http.Request) {
	items, err := h.catalog.ListSubjects(r.Context())
	if err != nil {
		h.logger.Error("listing subjects failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, apperrors.CodeInternal, "failed to list subjects")
		return
	}
	if items == nil {
		items = []catalog.Subject{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	hits, misses := h.cache.Stats()
	total := hits + misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(hits) / float64(total) * 100
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     hits,
		"misses":   misses,
		"total":    total,
		"hit_rate": fmt.Sprintf("%.1f%%", hitRate),
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, apperrors.CodeUnavailable, "caching is disabled")
		return
	}

	if err := h.cache.Invalidate(r.Context()); err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, apperrors.CodeInternal, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{"status": "invalidated"})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store, max-age=0")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, map[string]string{"error": message, "code": code})
}

func (h *Handler) writeAppError(w http.ResponseWriter, err error) {
	message := err.Error()
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	h.writeError(w, apperrors.HTTPStatusCode(err), apperrors.Code(err), message)
}
