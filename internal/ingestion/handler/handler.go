package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/ingestion"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/ingestion/validator"
	apperrors "github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/logger"
)

// maxBodyBytes leaves room for JSON escaping of a maximal raw_text.
const maxBodyBytes = 4 << 20

// Ingester is satisfied by *publisher.Publisher.
type Ingester interface {
	Ingest(ctx context.Context, req *ingestion.IngestRequest) (*ingestion.IngestResponse, error)
	Remove(ctx context.Context, questionID string) (*ingestion.RemoveResponse, error)
}

type Handler struct {
	ingester Ingester
	logger   *slog.Logger
}

func New(ing Ingester) *Handler {
	return &Handler{
		ingester: ing,
		logger:   slog.Default().With("component", "ingestion-handler"),
	}
}

func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/questions/tokens", h.Ingest)
	mux.HandleFunc("DELETE /api/v1/questions/tokens/{question_id}", h.Remove)
}

func (h *Handler) Ingest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)
	var req ingestion.IngestRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, apperrors.CodeBadRequest, "invalid JSON body")
		return
	}
	if err := validator.ValidateIngestRequest(&req); err != nil {
		var validationErr *validator.ValidationError
		if errors.As(err, &validationErr) {
			h.writeJSON(w, http.StatusBadRequest, map[string]any{
				"error":  "validation failed",
				"code":   apperrors.CodeBadRequest,
				"fields": validationErr.Fields,
			})
			return
		}
		h.writeError(w, http.StatusBadRequest, apperrors.CodeBadRequest, err.Error())
		return
	}

	resp, err := h.ingester.Ingest(ctx, &req)
	if err != nil {
		h.writeFailure(w, r, req.QuestionID, "ingestion failed", err)
		return
	}
	log.Info("token set queued",
		"question_id", resp.QuestionID,
		"tokens", resp.TokenCount,
	)
	h.writeJSON(w, http.StatusAccepted, resp)
}

// Remove serves DELETE /api/v1/questions/tokens/{question_id}.
func (h *Handler) Remove(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(r.PathValue("question_id"))
	if err := validator.ValidateQuestionID(id); err != nil {
		var validationErr *validator.ValidationError
		errors.As(err, &validationErr)
		h.writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "validation failed",
			"code":   apperrors.CodeBadRequest,
			"fields": validationErr.Fields,
		})
		return
	}
	resp, err := h.ingester.Remove(r.Context(), id)
	if err != nil {
		h.writeFailure(w, r, id, "removal failed", err)
		return
	}
	logger.FromContext(r.Context()).Info("token set removal queued", "question_id", id)
	h.writeJSON(w, http.StatusAccepted, resp)
}

// writeFailure answers with the AppError's status and message, or fallback
// for anything else.
func (h *Handler) writeFailure(w http.ResponseWriter, r *http.Request, questionID, fallback string, err error) {
	statusCode := apperrors.HTTPStatusCode(err)
	logger.FromContext(r.Context()).Error(fallback,
		"question_id", questionID,
		"error", err,
		"status_code", statusCode,
	)
	message := fallback
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		message = appErr.Message
	}
	h.writeError(w, statusCode, apperrors.Code(err), message)
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
