package snapshot

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type Lister interface {
	List(ctx context.Context, limit int) ([]Snapshot, error)
}

type Handler struct {
	lister Lister
	logger *slog.Logger
}

func NewHandler(lister Lister) *Handler {
	return &Handler{
		lister: lister,
		logger: slog.Default().With("component", "snapshot-handler"),
	}
}

// List serves GET /api/v1/analytics/snapshots?limit=N.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > maxListLimit {
			h.writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "limit must be between 1 and 100",
				"code":  "BAD_REQUEST",
			})
			return
		}
		limit = n
	}
	items, err := h.lister.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("listing snapshots failed", "error", err)
		h.writeJSON(w, http.StatusInternalServerError, map[string]string{
			"error": "failed to list snapshots",
			"code":  "INTERNAL_ERROR",
		})
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store, max-age=0")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}
