package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/resilience"
)

// tokenColumns maps each field onto its question_tokens column. Field values
// never reach SQL any other way.
var tokenColumns = map[tokenizer.Field]string{
	tokenizer.FieldTokens:   "tokens",
	tokenizer.FieldBigrams:  "bigrams",
	tokenizer.FieldTrigrams: "trigrams",
}

// TokenStoreConfig bounds each overlap lookup.
type TokenStoreConfig struct {
	LookupTimeout time.Duration
	LookupRetries int
}

// TokenStore persists TokenSets in question_tokens and answers overlap
// lookups with the && array operator.
type TokenStore struct {
	db     *sql.DB
	lookup resilience.Policy
	logger *slog.Logger
}

func NewTokenStore(db *sql.DB, cfg TokenStoreConfig) *TokenStore {
	return &TokenStore{
		db: db,
		lookup: resilience.Policy{
			Name:      "overlap-lookup",
			Timeout:   cfg.LookupTimeout,
			Attempts:  cfg.LookupRetries + 1,
			BaseDelay: 25 * time.Millisecond,
			MaxDelay:  250 * time.Millisecond,
			Transient: isTransient,
		},
		logger: slog.Default().With("component", "token-store"),
	}
}

const upsertTokensSQL = `
INSERT INTO question_tokens (question_id, tokens, bigrams, trigrams, created_at, updated_at)
VALUES ($1, $2, $3, $4, now(), now())
ON CONFLICT (question_id) DO UPDATE
SET tokens = EXCLUDED.tokens,
    bigrams = EXCLUDED.bigrams,
    trigrams = EXCLUDED.trigrams,
    updated_at = now()`

// Put stores set for questionID, replacing whatever was there.
func (s *TokenStore) Put(ctx context.Context, questionID string, set tokenizer.TokenSet) error {
	if questionID == "" {
		return fmt.Errorf("storing tokens: empty question id: %w", apperrors.ErrInvalidInput)
	}
	_, err := s.db.ExecContext(ctx, upsertTokensSQL,
		questionID,
		pq.Array(nonNil(set.Tokens)),
		pq.Array(nonNil(set.Bigrams)),
		pq.Array(nonNil(set.Trigrams)),
	)
	if err != nil {
		return fmt.Errorf("storing tokens for %s: %w", questionID, err)
	}
	return nil
}

// Overlaps returns the ids of questions whose field column shares at least
// one element with values. Transient failures are retried within the
// configured timeout.
func (s *TokenStore) Overlaps(ctx context.Context, field tokenizer.Field, values []string) ([]string, error) {
	query, err := overlapQuery(field)
	if err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("overlap on %s with no values: %w", field, apperrors.ErrInvalidInput)
	}

	var ids []string
	err = s.lookup.Do(ctx, func(ctx context.Context) error {
		var qerr error
		ids, qerr = s.queryIDs(ctx, query, pq.Array(values))
		return qerr
	})
	if err != nil {
		return nil, fmt.Errorf("overlap lookup on %s: %w", field, err)
	}
	return ids, nil
}

func overlapQuery(field tokenizer.Field) (string, error) {
	column, ok := tokenColumns[field]
	if !ok {
		return "", fmt.Errorf("unknown token field %q: %w", field, apperrors.ErrInvalidInput)
	}
	return fmt.Sprintf(
		"SELECT question_id::text FROM question_tokens WHERE %s && $1::text[] ORDER BY question_id",
		column,
	), nil
}

func (s *TokenStore) queryIDs(ctx context.Context, query string, arg any) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning question id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ForEach streams every stored token set in question_id order.
func (s *TokenStore) ForEach(ctx context.Context, fn func(questionID string, set tokenizer.TokenSet) error) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT question_id::text, tokens, bigrams, trigrams FROM question_tokens ORDER BY question_id")
	if err != nil {
		return fmt.Errorf("listing token sets: %w", err)
	}
	defer rows.Close()
	count := 0
	for rows.Next() {
		var id string
		var set tokenizer.TokenSet
		if err := rows.Scan(&id,
			(*pq.StringArray)(&set.Tokens),
			(*pq.StringArray)(&set.Bigrams),
			(*pq.StringArray)(&set.Trigrams),
		); err != nil {
			return fmt.Errorf("scanning token set: %w", err)
		}
		if err := fn(id, set); err != nil {
			return err
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating token sets: %w", err)
	}
	s.logger.Debug("token sets streamed", "count", count)
	return nil
}

// Delete removes the token set of questionID, if any.
func (s *TokenStore) Delete(ctx context.Context, questionID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM question_tokens WHERE question_id = $1", questionID); err != nil {
		return fmt.Errorf("deleting tokens for %s: %w", questionID, err)
	}
	return nil
}

// isTransient reports whether a lookup error is worth retrying. Caller
// errors, cancellation and SQL errors outside the connection and resource
// classes fail fast.
func isTransient(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, apperrors.ErrInvalidInput) {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "53", "57", "40":
			return true
		default:
			return false
		}
	}
	return true
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
