// Package diagnostics runs the data sanity checks behind cmd/sanity: row
// counts, the is_active split, the newest public ids and a few sample
// searches through the live resolver.
package diagnostics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/searcher/resolver"
)

const (
	stampLayout = "20060102_150405"
	recentLimit = 5
)

// Store is satisfied by *catalog.QuestionStore.
type Store interface {
	CountQuestions(ctx context.Context) (int, error)
	CountActive(ctx context.Context, active bool) (int, error)
	RecentPublicQIDs(ctx context.Context, limit int) ([]string, error)
	CountByIDs(ctx context.Context, ids []string) (int, error)
}

type Resolver interface {
	Resolve(ctx context.Context, query string) (resolver.Resolution, error)
}

// Check is one line of the report. Status holds the observed value or the
// error text.
type Check struct {
	Name   string `json:"url"`
	Status string `json:"status"`
	OK     bool   `json:"ok"`
}

type Summary struct {
	OKCount   int `json:"okCount"`
	FailCount int `json:"failCount"`
}

type Report struct {
	Stamp   string   `json:"stamp"`
	Checks  []Check  `json:"checks"`
	Hints   []string `json:"hints"`
	Summary Summary  `json:"summary"`
}

// Failed reports whether any check failed.
func (r *Report) Failed() bool {
	return r.Summary.FailCount > 0
}

// WriteFile stores the report as dir/<stamp>.json and returns the path.
func (r *Report) WriteFile(dir string) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating report directory: %w", err)
	}
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding report: %w", err)
	}
	path := filepath.Join(dir, r.Stamp+".json")
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return "", fmt.Errorf("writing report: %w", err)
	}
	return path, nil
}

type Checker struct {
	store    Store
	resolver Resolver
	samples  []string
	now      func() time.Time
	logger   *slog.Logger
}

func NewChecker(store Store, r Resolver, samples []string) *Checker {
	return &Checker{
		store:    store,
		resolver: r,
		samples:  samples,
		now:      time.Now,
		logger:   slog.Default().With("component", "sanity-checker"),
	}
}

// Run executes every check. A failing check is recorded and never stops the
// remaining ones.
func (c *Checker) Run(ctx context.Context) *Report {
	report := &Report{
		Stamp:  c.now().Format(stampLayout),
		Checks: make([]Check, 0, 3+len(c.samples)),
		Hints:  []string{},
	}
	record := func(name string, ok bool, status string) {
		report.Checks = append(report.Checks, Check{Name: name, Status: status, OK: ok})
		if !ok {
			c.logger.Error("sanity check failed", "check", name, "error", status)
		}
	}
	hint := func(format string, args ...any) {
		report.Hints = append(report.Hints, fmt.Sprintf(format, args...))
	}

	if total, err := c.store.CountQuestions(ctx); err != nil {
		record("questions total", false, err.Error())
		hint("questions total 조회 실패: 테이블 권한/네트워크 확인.")
	} else {
		record("questions total", true, fmt.Sprintf("total=%d", total))
		if total == 0 {
			hint("questions total = 0: 데이터 적재 또는 DB 연결 확인 필요.")
		}
	}

	if active, inactive, err := c.activeSplit(ctx); err != nil {
		record("is_active distribution", false, err.Error())
		hint("is_active 분포 조회 실패: 컬럼 존재 여부/권한 확인.")
	} else {
		record("is_active distribution", true, fmt.Sprintf("true=%d, false=%d", active, inactive))
		if active == 0 {
			hint("active_true=0: is_active 업데이트 또는 기본값 확인 필요.")
		}
	}

	name := fmt.Sprintf("recent public_qid (%d)", recentLimit)
	if recent, err := c.store.RecentPublicQIDs(ctx, recentLimit); err != nil {
		record(name, false, err.Error())
		hint("recent public_qid 조회 실패: created_at 컬럼 확인.")
	} else {
		list := strings.Join(recent, ", ")
		if list == "" {
			list = "none"
		}
		record(name, true, list)
	}

	for _, q := range c.samples {
		name := fmt.Sprintf("search total (q=%s)", q)
		total, err := c.searchTotal(ctx, q)
		if err != nil {
			record(name, false, err.Error())
			hint("search 실패 (q=%s): question_tokens 테이블 권한 확인.", q)
			continue
		}
		record(name, true, fmt.Sprintf("total=%d", total))
		if total == 0 {
			hint("search 결과 0건(q=%s): question_tokens 생성 여부 확인.", q)
		}
	}

	for _, ch := range report.Checks {
		if ch.OK {
			report.Summary.OKCount++
		} else {
			report.Summary.FailCount++
		}
	}
	return report
}

func (c *Checker) activeSplit(ctx context.Context) (int, int, error) {
	active, err := c.store.CountActive(ctx, true)
	if err != nil {
		return 0, 0, err
	}
	inactive, err := c.store.CountActive(ctx, false)
	if err != nil {
		return 0, 0, err
	}
	return active, inactive, nil
}

func (c *Checker) searchTotal(ctx context.Context, q string) (int, error) {
	res, err := c.resolver.Resolve(ctx, q)
	if err != nil {
		return 0, err
	}
	if !res.Matched {
		return 0, nil
	}
	return c.store.CountByIDs(ctx, res.IDs)
}
