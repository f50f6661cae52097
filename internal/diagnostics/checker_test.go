package diagnostics

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/searcher/resolver"
)

type fakeStore struct {
	total     int
	active    int
	inactive  int
	recent    []string
	activeErr error
}

func (f *fakeStore) CountQuestions(context.Context) (int, error) { return f.total, nil }

func (f *fakeStore) CountActive(_ context.Context, active bool) (int, error) {
	if f.activeErr != nil {
		return 0, f.activeErr
	}
	if active {
		return f.active, nil
	}
	return f.inactive, nil
}

func (f *fakeStore) RecentPublicQIDs(context.Context, int) ([]string, error) { return f.recent, nil }

func (f *fakeStore) CountByIDs(_ context.Context, ids []string) (int, error) { return len(ids), nil }

type fakeResolver map[string]resolver.Resolution

func (f fakeResolver) Resolve(_ context.Context, q string) (resolver.Resolution, error) {
	if q == "오류" {
		return resolver.Resolution{}, errors.New("lookup timed out")
	}
	return f[q], nil
}

func fixedChecker(store Store, r Resolver, samples []string) *Checker {
	c := NewChecker(store, r, samples)
	c.now = func() time.Time { return time.Date(2026, 3, 1, 9, 5, 7, 0, time.UTC) }
	return c
}

func TestRun_Healthy(t *testing.T) {
	store := &fakeStore{total: 10, active: 9, inactive: 1, recent: []string{"202601010001", "202601010002"}}
	res := fakeResolver{"수학": {Matched: true, MatchedBy: tokenizer.FieldTokens, IDs: []string{"a", "b"}}}

	report := fixedChecker(store, res, []string{"수학"}).Run(context.Background())

	assert.Equal(t, "20260301_090507", report.Stamp)
	require.Len(t, report.Checks, 4)
	assert.Equal(t, "total=10", report.Checks[0].Status)
	assert.Equal(t, "true=9, false=1", report.Checks[1].Status)
	assert.Equal(t, "202601010001, 202601010002", report.Checks[2].Status)
	assert.Equal(t, Check{Name: "search total (q=수학)", Status: "total=2", OK: true}, report.Checks[3])
	assert.Empty(t, report.Hints)
	assert.Equal(t, Summary{OKCount: 4}, report.Summary)
	assert.False(t, report.Failed())
}

func TestRun_HintsAndFailures(t *testing.T) {
	store := &fakeStore{activeErr: errors.New("column is_active does not exist")}
	report := fixedChecker(store, fakeResolver{}, []string{"국어", "오류"}).Run(context.Background())

	assert.Equal(t, Summary{OKCount: 3, FailCount: 2}, report.Summary)
	assert.True(t, report.Failed())
	assert.Equal(t, "none", report.Checks[2].Status)
	assert.Len(t, report.Hints, 4)
	assert.Contains(t, report.Hints[0], "questions total = 0")
	assert.Contains(t, report.Hints[2], "q=국어")
}

func TestReport_WriteFile(t *testing.T) {
	report := &Report{Stamp: "20260301_090507", Checks: []Check{{Name: "x", Status: "total=1", OK: true}}, Hints: []string{}}
	path, err := report.WriteFile(t.TempDir())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "20260301_090507", decoded["stamp"])
	assert.Contains(t, string(data), `"url": "x"`)
}
