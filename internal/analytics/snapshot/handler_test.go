package snapshot

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/analytics"
)

type stubLister struct {
	limit int
	err   error
}

func (s *stubLister) List(_ context.Context, limit int) ([]Snapshot, error) {
	s.limit = limit
	if s.err != nil {
		return nil, s.err
	}
	return []Snapshot{{Stats: analytics.AggregatedStats{TotalSearches: 4}, CapturedAt: time.Unix(0, 0).UTC()}}, nil
}

func TestHandler_List(t *testing.T) {
	l := &stubLister{}
	h := NewHandler(l)

	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/snapshots", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultListLimit, l.limit)
	assert.Contains(t, rec.Body.String(), `"total_searches":4`)

	rec = httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/snapshots?limit=5", nil))
	assert.Equal(t, 5, l.limit)

	rec = httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/snapshots?limit=500", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandler_ListError(t *testing.T) {
	h := NewHandler(&stubLister{err: errors.New("db down")})
	rec := httptest.NewRecorder()
	h.List(rec, httptest.NewRequest(http.MethodGet, "/api/v1/analytics/snapshots", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
