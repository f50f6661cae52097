package analytics

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

// StatsSource is satisfied by *Aggregator.
type StatsSource interface {
	Stats() AggregatedStats
}

// Handler serves the live aggregate over HTTP.
type Handler struct {
	source StatsSource
	logger *slog.Logger
}

func NewHandler(source StatsSource) *Handler {
	return &Handler{
		source: source,
		logger: slog.Default().With("component", "analytics-handler"),
	}
}

// Stats serves GET /api/v1/analytics?top=N. top trims the top and
// zero-result query lists; it must be between 1 and the tracked maximum.
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	top := topQueryCount
	if v := r.URL.Query().Get("top"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > topQueryCount {
			h.writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "top must be between 1 and " + strconv.Itoa(topQueryCount),
				"code":  "BAD_REQUEST",
			})
			return
		}
		top = n
	}

	stats := h.source.Stats()
	stats.TopQueries = firstN(stats.TopQueries, top)
	stats.ZeroResultQueries = firstN(stats.ZeroResultQueries, top)
	h.writeJSON(w, http.StatusOK, stats)
}

func firstN(list []QueryCount, n int) []QueryCount {
	if list == nil {
		return []QueryCount{}
	}
	if len(list) > n {
		return list[:n]
	}
	return list
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store, max-age=0")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write analytics response", "error", err)
	}
}
