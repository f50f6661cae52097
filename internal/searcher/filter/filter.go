// Package filter models the optional attribute filters of a question search
// as plain predicates and renders them into a parameterised SQL WHERE clause.
package filter

import (
	"fmt"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/lib/pq"

	apperrors "github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/errors"
)

type Op string

const (
	OpEq    Op = "eq"
	OpILike Op = "ilike"
	OpIn    Op = "in"
)

// Predicate is one condition on a questions column. For OpIn, Value must be a
// []string.
type Predicate struct {
	Field string
	Op    Op
	Value any
}

// Columns that predicates may reference.
var columns = map[string]struct{}{
	"id":            {},
	"org_code2":     {},
	"subject_code2": {},
	"year":          {},
	"month":         {},
	"number":        {},
	"unit":          {},
	"qtype":         {},
	"difficulty_5":  {},
	"killer_3":      {},
	"is_active":     {},
}

var (
	Difficulty5Values = []string{"매우 쉬움", "쉬움", "보통", "어려움(준킬러)", "매우 어려움(킬러)"}
	Killer3Values     = []string{"비킬러", "준킬러", "킬러"}
)

// Filters are the user-facing search filters. Nil or empty fields are unset.
type Filters struct {
	OrgCode2     string `json:"org_code2,omitempty"`
	SubjectCode2 string `json:"subject_code2,omitempty"`
	Year         *int   `json:"year,omitempty"`
	Month        *int   `json:"month,omitempty"`
	Number       *int   `json:"number,omitempty"`
	Unit         string `json:"unit,omitempty"`
	QType        string `json:"qtype,omitempty"`
	Difficulty5  string `json:"difficulty_5,omitempty"`
	Killer3      string `json:"killer_3,omitempty"`
}

// Predicates returns one predicate per set filter. Unit and qtype match as
// case-insensitive substrings; everything else is equality.
func (f Filters) Predicates() []Predicate {
	preds := make([]Predicate, 0, 9)
	eqString := func(field, v string) {
		if v != "" {
			preds = append(preds, Predicate{Field: field, Op: OpEq, Value: v})
		}
	}
	eqInt := func(field string, v *int) {
		if v != nil {
			preds = append(preds, Predicate{Field: field, Op: OpEq, Value: *v})
		}
	}
	eqString("org_code2", f.OrgCode2)
	eqString("subject_code2", f.SubjectCode2)
	eqInt("year", f.Year)
	eqInt("month", f.Month)
	eqInt("number", f.Number)
	eqString("difficulty_5", f.Difficulty5)
	eqString("killer_3", f.Killer3)
	if f.Unit != "" {
		preds = append(preds, Predicate{Field: "unit", Op: OpILike, Value: f.Unit})
	}
	if f.QType != "" {
		preds = append(preds, Predicate{Field: "qtype", Op: OpILike, Value: f.QType})
	}
	return preds
}

// ParseFilters reads filters from query parameters (org, subject, year,
// month, number, unit, qtype, difficulty_5, killer_3).
func ParseFilters(v url.Values) (Filters, error) {
	var f Filters
	var err error
	f.OrgCode2 = strings.TrimSpace(v.Get("org"))
	f.SubjectCode2 = strings.TrimSpace(v.Get("subject"))
	f.Unit = strings.TrimSpace(v.Get("unit"))
	f.QType = strings.TrimSpace(v.Get("qtype"))

	if f.Year, err = optionalInt(v, "year"); err != nil {
		return Filters{}, err
	}
	if f.Month, err = optionalInt(v, "month"); err != nil {
		return Filters{}, err
	}
	if f.Number, err = optionalInt(v, "number"); err != nil {
		return Filters{}, err
	}

	if d := v.Get("difficulty_5"); d != "" {
		if !slices.Contains(Difficulty5Values, d) {
			return Filters{}, apperrors.InvalidInput("invalid difficulty_5")
		}
		f.Difficulty5 = d
	}
	if k := v.Get("killer_3"); k != "" {
		if !slices.Contains(Killer3Values, k) {
			return Filters{}, apperrors.InvalidInput("invalid killer_3")
		}
		f.Killer3 = k
	}
	return f, nil
}

func optionalInt(v url.Values, key string) (*int, error) {
	raw := strings.TrimSpace(v.Get(key))
	if raw == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return nil, apperrors.InvalidInput("invalid %s", key)
	}
	return &n, nil
}

// Apply renders preds as an AND-joined WHERE clause whose placeholders start
// at $firstArg. An empty list yields "TRUE".
func Apply(preds []Predicate, firstArg int) (string, []any, error) {
	if len(preds) == 0 {
		return "TRUE", nil, nil
	}
	if firstArg < 1 {
		firstArg = 1
	}
	clauses := make([]string, 0, len(preds))
	args := make([]any, 0, len(preds))
	n := firstArg
	for _, p := range preds {
		if _, ok := columns[p.Field]; !ok {
			return "", nil, fmt.Errorf("filter on column %q: %w", p.Field, apperrors.ErrInvalidInput)
		}
		switch p.Op {
		case OpEq:
			clauses = append(clauses, fmt.Sprintf("%s = $%d", p.Field, n))
			args = append(args, p.Value)
		case OpILike:
			s, ok := p.Value.(string)
			if !ok {
				return "", nil, fmt.Errorf("ilike on %s needs a string, got %T: %w", p.Field, p.Value, apperrors.ErrInvalidInput)
			}
			clauses = append(clauses, fmt.Sprintf("%s ILIKE $%d", p.Field, n))
			args = append(args, "%"+escapeLike(s)+"%")
		case OpIn:
			values, ok := p.Value.([]string)
			if !ok {
				return "", nil, fmt.Errorf("in on %s needs []string, got %T: %w", p.Field, p.Value, apperrors.ErrInvalidInput)
			}
			clauses = append(clauses, fmt.Sprintf("%s = ANY($%d)", castColumn(p.Field), n))
			args = append(args, pq.Array(values))
		default:
			return "", nil, fmt.Errorf("unknown operator %q: %w", p.Op, apperrors.ErrInvalidInput)
		}
		n++
	}
	return strings.Join(clauses, " AND "), args, nil
}

// castColumn compares uuid ids as text so they can match a text[] parameter.
func castColumn(field string) string {
	if field == "id" {
		return "id::text"
	}
	return field
}

// likeEscaper makes ILIKE wildcards in user input match literally.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
