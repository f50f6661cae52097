package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/errors"
)

type stubExecutor struct {
	got    executor.Params
	calls  int
	result *executor.SearchResult
	err    error
}

func (s *stubExecutor) Execute(_ context.Context, p executor.Params) (*executor.SearchResult, error) {
	s.calls++
	s.got = p
	return s.result, s.err
}

type stubCatalog struct {
	questions map[string]catalog.Question
	orgs      []catalog.Organization
	err       error
}

func (s *stubCatalog) GetByPublicQID(_ context.Context, id string) (catalog.Question, error) {
	if s.err != nil {
		return catalog.Question{}, s.err
	}
	q, ok := s.questions[id]
	if !ok {
		return catalog.Question{}, fmt.Errorf("public_qid %s: %w", id, apperrors.ErrQuestionNotFound)
	}
	return q, nil
}

func (s *stubCatalog) ListOrganizations(context.Context) ([]catalog.Organization, error) {
	return s.orgs, s.err
}

func (s *stubCatalog) ListSubjects(context.Context) ([]catalog.Subject, error) {
	return nil, s.err
}

type stubCache struct {
	invalidated bool
	err         error
}

func (c *stubCache) Stats() (int64, int64) { return 3, 1 }

func (c *stubCache) Invalidate(context.Context) error {
	c.invalidated = true
	return c.err
}

type recordingTracker struct{ events []any }

func (t *recordingTracker) Track(event any) { t.events = append(t.events, event) }

func searchConfig() config.SearchConfig {
	return config.SearchConfig{DefaultPageSize: 20, MaxPageSize: 50}
}

func newServer(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()
	h.Register(mux)
	return mux
}

func do(t *testing.T, mux http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestSearch_PassesParamsAndTracks(t *testing.T) {
	exec := &stubExecutor{result: &executor.SearchResult{
		Items:     []catalog.Question{{ID: "q1", PublicQID: "202401010001"}},
		Total:     1,
		Page:      2,
		PageSize:  10,
		MatchedBy: "bigrams",
	}}
	tracker := &recordingTracker{}
	mux := newServer(New(exec, &stubCatalog{}, nil, tracker, searchConfig()))

	rec := do(t, mux, http.MethodGet, "/api/v1/questions?q=%EC%88%98%ED%95%99&page=2&pageSize=10&year=2024&unit=%ED%95%A8%EC%88%98")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "no-store, max-age=0", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "수학", exec.got.Query)
	assert.Equal(t, 2, exec.got.Page)
	assert.Equal(t, 10, exec.got.PageSize)
	require.NotNil(t, exec.got.Filters.Year)
	assert.Equal(t, 2024, *exec.got.Filters.Year)
	assert.Equal(t, "함수", exec.got.Filters.Unit)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(1), body["total"])
	assert.Equal(t, float64(10), body["pageSize"])
	assert.Equal(t, "bigrams", body["matched_by"])

	require.Len(t, tracker.events, 1)
	event := tracker.events[0].(analytics.SearchEvent)
	assert.Equal(t, analytics.EventSearch, event.Type)
	assert.Equal(t, "bigrams", event.MatchedBy)
	assert.Equal(t, 1, event.TotalHits)
}

func TestSearch_DefaultsPaging(t *testing.T) {
	exec := &stubExecutor{result: &executor.SearchResult{Items: []catalog.Question{}}}
	mux := newServer(New(exec, &stubCatalog{}, nil, nil, searchConfig()))

	rec := do(t, mux, http.MethodGet, "/api/v1/questions")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, exec.got.Page)
	assert.Equal(t, 20, exec.got.PageSize)
}

func TestSearch_InvalidParams(t *testing.T) {
	cases := map[string]string{
		"page zero":          "/api/v1/questions?page=0",
		"page not a number":  "/api/v1/questions?page=abc",
		"page size too big":  "/api/v1/questions?pageSize=51",
		"page size zero":     "/api/v1/questions?pageSize=0",
		"bad year":           "/api/v1/questions?year=twenty",
		"unknown difficulty": "/api/v1/questions?difficulty_5=easy",
	}
	for name, target := range cases {
		t.Run(name, func(t *testing.T) {
			exec := &stubExecutor{}
			mux := newServer(New(exec, &stubCatalog{}, nil, nil, searchConfig()))
			rec := do(t, mux, http.MethodGet, target)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, apperrors.CodeBadRequest, decodeError(t, rec)["code"])
			assert.Zero(t, exec.calls)
		})
	}
}

func TestSearch_ExecutorFailure(t *testing.T) {
	exec := &stubExecutor{err: errors.New("connection refused")}
	tracker := &recordingTracker{}
	mux := newServer(New(exec, &stubCatalog{}, nil, tracker, searchConfig()))

	rec := do(t, mux, http.MethodGet, "/api/v1/questions?q=x")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, "search failed", body["error"])
	assert.Equal(t, apperrors.CodeInternal, body["code"])
	assert.Empty(t, tracker.events)
}

func TestGetQuestion(t *testing.T) {
	cat := &stubCatalog{questions: map[string]catalog.Question{
		"202401010001": {ID: "q1", PublicQID: "202401010001"},
	}}
	mux := newServer(New(&stubExecutor{}, cat, nil, nil, searchConfig()))

	rec := do(t, mux, http.MethodGet, "/api/v1/questions/202401010001")
	require.Equal(t, http.StatusOK, rec.Code)
	var q catalog.Question
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &q))
	assert.Equal(t, "q1", q.ID)

	rec = do(t, mux, http.MethodGet, "/api/v1/questions/12345")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, mux, http.MethodGet, "/api/v1/questions/999999999999")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, apperrors.CodeNotFound, decodeError(t, rec)["code"])
}

func TestMeta(t *testing.T) {
	cat := &stubCatalog{orgs: []catalog.Organization{{Code2: "01", Name: "교육청", Kind: "public"}}}
	mux := newServer(New(&stubExecutor{}, cat, nil, nil, searchConfig()))

	rec := do(t, mux, http.MethodGet, "/api/v1/meta/organizations")
	require.Equal(t, http.StatusOK, rec.Code)
	var orgs struct {
		Items []catalog.Organization `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &orgs))
	assert.Len(t, orgs.Items, 1)

	rec = do(t, mux, http.MethodGet, "/api/v1/meta/subjects")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"items":[]}`, rec.Body.String())
}

func TestCacheEndpoints(t *testing.T) {
	c := &stubCache{}
	mux := newServer(New(&stubExecutor{}, &stubCatalog{}, c, nil, searchConfig()))

	rec := do(t, mux, http.MethodGet, "/api/v1/cache/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"hit_rate":"75.0%"`)

	rec = do(t, mux, http.MethodPost, "/api/v1/cache/invalidate")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, c.invalidated)

	disabled := newServer(New(&stubExecutor{}, &stubCatalog{}, nil, nil, searchConfig()))
	rec = do(t, disabled, http.MethodPost, "/api/v1/cache/invalidate")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
