// Package snapshot persists periodic copies of the aggregated search
// analytics in PostgreSQL so history survives aggregator restarts.
package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/postgres"
)

// DefaultRetain is how many snapshots Save keeps when NewStore gets a
// non-positive retain.
const DefaultRetain = 1440

const finalSaveTimeout = 5 * time.Second

// Snapshot is one persisted copy of the stats.
type Snapshot struct {
	Stats      analytics.AggregatedStats `json:"stats"`
	CapturedAt time.Time                 `json:"captured_at"`
}

// Store writes to the analytics_snapshots table, keeping only the newest
// retain rows:
//
//	CREATE TABLE analytics_snapshots (
//	    id          BIGSERIAL PRIMARY KEY,
//	    data        JSONB NOT NULL,
//	    captured_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
//	);
type Store struct {
	db     *sql.DB
	retain int
	logger *slog.Logger
}

func NewStore(db *sql.DB, retain int) *Store {
	if retain <= 0 {
		retain = DefaultRetain
	}
	return &Store{
		db:     db,
		retain: retain,
		logger: slog.Default().With("component", "analytics-snapshots"),
	}
}

const pruneSnapshotsSQL = `
DELETE FROM analytics_snapshots
WHERE id NOT IN (
    SELECT id FROM analytics_snapshots ORDER BY captured_at DESC, id DESC LIMIT $1
)`

func (s *Store) Save(ctx context.Context, stats analytics.AggregatedStats) error {
	data, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("marshaling stats: %w", err)
	}
	var pruned int64
	err = postgres.InTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO analytics_snapshots (data, captured_at) VALUES ($1, $2)`,
			data, time.Now().UTC(),
		); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, pruneSnapshotsSQL, s.retain)
		if err != nil {
			return err
		}
		pruned, _ = res.RowsAffected()
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving analytics snapshot: %w", err)
	}
	s.logger.Debug("analytics snapshot saved",
		"total_searches", stats.TotalSearches,
		"no_match_count", stats.NoMatchCount,
		"pruned", pruned,
	)
	return nil
}

// Latest returns nil, nil when nothing has been saved yet.
func (s *Store) Latest(ctx context.Context) (*Snapshot, error) {
	list, err := s.List(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return &list[0], nil
}

// List returns up to limit snapshots, newest first. Corrupt rows are skipped.
func (s *Store) List(ctx context.Context, limit int) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT data, captured_at FROM analytics_snapshots ORDER BY captured_at DESC, id DESC LIMIT $1`,
		limit,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return []Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer rows.Close()

	snapshots := make([]Snapshot, 0, limit)
	for rows.Next() {
		var data []byte
		var snap Snapshot
		if err := rows.Scan(&data, &snap.CapturedAt); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		if err := json.Unmarshal(data, &snap.Stats); err != nil {
			s.logger.Warn("skipping corrupt snapshot", "error", err)
			continue
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, rows.Err()
}

// StartPeriodicSave snapshots src every interval and once more when ctx is
// cancelled. The returned wait blocks until that final save has finished;
// callers must call it before closing the database.
func (s *Store) StartPeriodicSave(ctx context.Context, src analytics.StatsSource, interval time.Duration) (wait func()) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := s.Save(ctx, src.Stats()); err != nil {
					s.logger.Error("periodic snapshot failed", "error", err)
				}
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), finalSaveTimeout)
				defer cancel()
				if err := s.Save(shutdownCtx, src.Stats()); err != nil {
					s.logger.Error("final snapshot failed", "error", err)
				}
				return
			}
		}
	}()
	s.logger.Info("periodic snapshot started", "interval", interval)
	return func() { <-done }
}
