package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lib/pq"

	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/searcher/filter"
	apperrors "github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/errors"
)

const questionColumns = `id::text, public_qid, org_code2, subject_code2,
	COALESCE(year, 0), COALESCE(month, 0), COALESCE(number, 0),
	COALESCE(unit, ''), COALESCE(qtype, ''), correct_rate, difficulty_5, killer_3,
	COALESCE(pdf_url, ''), COALESCE(page_no, 0), bbox, explanation_allowed,
	created_at, updated_at`

// QuestionStore reads questions and their reference data.
type QuestionStore struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewQuestionStore(db *sql.DB) *QuestionStore {
	return &QuestionStore{
		db:     db,
		logger: slog.Default().With("component", "question-store"),
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanQuestion(row rowScanner) (Question, error) {
	var q Question
	var rate sql.NullFloat64
	var difficulty, killer sql.NullString
	err := row.Scan(
		&q.ID, &q.PublicQID, &q.OrgCode2, &q.SubjectCode2,
		&q.Year, &q.Month, &q.Number,
		&q.Unit, &q.QType, &rate, &difficulty, &killer,
		&q.PDFURL, &q.PageNo, &q.BBox, &q.ExplanationAllowed,
		&q.CreatedAt, &q.UpdatedAt,
	)
	if err != nil {
		return Question{}, err
	}
	if rate.Valid {
		q.CorrectRate = &rate.Float64
	}
	if difficulty.Valid {
		q.Difficulty5 = &difficulty.String
	}
	if killer.Valid {
		q.Killer3 = &killer.String
	}
	return q, nil
}

// Search returns one page of questions matching preds together with the
// total number of matches. page is 1-based.
func (s *QuestionStore) Search(ctx context.Context, preds []filter.Predicate, page, pageSize int) ([]Question, int, error) {
	if page < 1 || pageSize < 1 {
		return nil, 0, fmt.Errorf("page %d size %d: %w", page, pageSize, apperrors.ErrInvalidInput)
	}
	where, args, err := filter.Apply(preds, 1)
	if err != nil {
		return nil, 0, err
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM questions WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting questions: %w", err)
	}
	items := make([]Question, 0, pageSize)
	offset := (page - 1) * pageSize
	if total == 0 || offset >= total {
		return items, total, nil
	}

	n := len(args)
	query := fmt.Sprintf(
		"SELECT %s FROM questions WHERE %s ORDER BY public_qid LIMIT $%d OFFSET $%d",
		questionColumns, where, n+1, n+2,
	)
	rows, err := s.db.QueryContext(ctx, query, append(args, pageSize, offset)...)
	if err != nil {
		return nil, 0, fmt.Errorf("querying questions: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		q, err := scanQuestion(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning question: %w", err)
		}
		items = append(items, q)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating questions: %w", err)
	}
	return items, total, nil
}

// GetByPublicQID returns apperrors.ErrQuestionNotFound when no row matches.
func (s *QuestionStore) GetByPublicQID(ctx context.Context, publicQID string) (Question, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+questionColumns+" FROM questions WHERE public_qid = $1", publicQID)
	q, err := scanQuestion(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Question{}, fmt.Errorf("public_qid %s: %w", publicQID, apperrors.ErrQuestionNotFound)
	}
	if err != nil {
		return Question{}, fmt.Errorf("loading question %s: %w", publicQID, err)
	}
	return q, nil
}

// Exists reports whether a question with the given internal id exists.
func (s *QuestionStore) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM questions WHERE id::text = $1)", id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking question %s: %w", id, err)
	}
	return exists, nil
}

func (s *QuestionStore) ListOrganizations(ctx context.Context) ([]Organization, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT code2, name, kind FROM organizations ORDER BY code2")
	if err != nil {
		return nil, fmt.Errorf("listing organizations: %w", err)
	}
	defer rows.Close()
	orgs := make([]Organization, 0)
	for rows.Next() {
		var o Organization
		if err := rows.Scan(&o.Code2, &o.Name, &o.Kind); err != nil {
			return nil, fmt.Errorf("scanning organization: %w", err)
		}
		orgs = append(orgs, o)
	}
	return orgs, rows.Err()
}

func (s *QuestionStore) ListSubjects(ctx context.Context) ([]Subject, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT code2, name FROM subjects ORDER BY code2")
	if err != nil {
		return nil, fmt.Errorf("listing subjects: %w", err)
	}
	defer rows.Close()
	subjects := make([]Subject, 0)
	for rows.Next() {
		var sub Subject
		if err := rows.Scan(&sub.Code2, &sub.Name); err != nil {
			return nil, fmt.Errorf("scanning subject: %w", err)
		}
		subjects = append(subjects, sub)
	}
	return subjects, rows.Err()
}

func (s *QuestionStore) CountQuestions(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM questions").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting questions: %w", err)
	}
	return n, nil
}

// CountActive counts questions whose is_active flag equals active.
func (s *QuestionStore) CountActive(ctx context.Context, active bool) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		"SELECT count(*) FROM questions WHERE is_active = $1", active).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting is_active=%t: %w", active, err)
	}
	return n, nil
}

// RecentPublicQIDs returns up to limit public ids, newest first.
func (s *QuestionStore) RecentPublicQIDs(ctx context.Context, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT public_qid FROM questions ORDER BY created_at DESC LIMIT $1", limit)
	if err != nil {
		return nil, fmt.Errorf("listing recent public_qid: %w", err)
	}
	defer rows.Close()
	ids := make([]string, 0, limit)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning public_qid: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CountByIDs counts the questions whose id is in ids.
func (s *QuestionStore) CountByIDs(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	var n int
	if err := s.db.QueryRowContext(ctx,
		"SELECT count(*) FROM questions WHERE id::text = ANY($1)", pq.Array(ids)).Scan(&n); err != nil {
		return 0, fmt.Errorf("counting questions by id: %w", err)
	}
	return n, nil
}
