package filter

import (
	"net/url"
	"testing"

	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/errors"
)

func intPtr(n int) *int { return &n }

func TestPredicates_OnlySetFilters(t *testing.T) {
	assert.Empty(t, Filters{}.Predicates())

	f := Filters{OrgCode2: "KS", Year: intPtr(2024), Unit: "확률", Killer3: "킬러"}
	assert.Equal(t, []Predicate{
		{Field: "org_code2", Op: OpEq, Value: "KS"},
		{Field: "year", Op: OpEq, Value: 2024},
		{Field: "killer_3", Op: OpEq, Value: "킬러"},
		{Field: "unit", Op: OpILike, Value: "확률"},
	}, f.Predicates())
}

func TestPredicates_ZeroIntIsSet(t *testing.T) {
	f := Filters{Number: intPtr(0)}
	assert.Equal(t, []Predicate{{Field: "number", Op: OpEq, Value: 0}}, f.Predicates())
}

func TestParseFilters(t *testing.T) {
	v := url.Values{
		"org":          {"KS"},
		"subject":      {"MA"},
		"year":         {"2023"},
		"month":        {"11"},
		"qtype":        {"객관식"},
		"difficulty_5": {"어려움(준킬러)"},
	}
	f, err := ParseFilters(v)
	require.NoError(t, err)
	assert.Equal(t, "KS", f.OrgCode2)
	assert.Equal(t, "MA", f.SubjectCode2)
	assert.Equal(t, 2023, *f.Year)
	assert.Equal(t, 11, *f.Month)
	assert.Nil(t, f.Number)
	assert.Equal(t, "객관식", f.QType)
	assert.Equal(t, "어려움(준킬러)", f.Difficulty5)
}

func TestParseFilters_Invalid(t *testing.T) {
	cases := []url.Values{
		{"year": {"twenty"}},
		{"number": {"1.5"}},
		{"difficulty_5": {"hard"}},
		{"killer_3": {"super"}},
	}
	for _, v := range cases {
		_, err := ParseFilters(v)
		require.Error(t, err, "values %v", v)
		assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	}
}

func TestApply_Empty(t *testing.T) {
	where, args, err := Apply(nil, 1)
	require.NoError(t, err)
	assert.Equal(t, "TRUE", where)
	assert.Empty(t, args)
}

func TestApply_BuildsPlaceholders(t *testing.T) {
	preds := []Predicate{
		{Field: "id", Op: OpIn, Value: []string{"a", "b"}},
		{Field: "org_code2", Op: OpEq, Value: "KS"},
		{Field: "unit", Op: OpILike, Value: "100%_sure"},
	}
	where, args, err := Apply(preds, 3)
	require.NoError(t, err)
	assert.Equal(t, "id::text = ANY($3) AND org_code2 = $4 AND unit ILIKE $5", where)
	require.Len(t, args, 3)
	assert.Equal(t, pq.Array([]string{"a", "b"}), args[0])
	assert.Equal(t, "KS", args[1])
	assert.Equal(t, `%100\%\_sure%`, args[2])
}

func TestApply_ILikeEscapesWildcards(t *testing.T) {
	cases := map[string]string{
		"미적분":    "%미적분%",
		"50%":    `%50\%%`,
		"a_b":    `%a\_b%`,
		`C:\dir`: `%C:\\dir%`,
		`\%_`:    `%\\\%\_%`,
	}
	for in, want := range cases {
		_, args, err := Apply([]Predicate{{Field: "qtype", Op: OpILike, Value: in}}, 1)
		require.NoError(t, err, in)
		assert.Equal(t, want, args[0], in)
	}
}

func TestApply_RejectsUnknownColumn(t *testing.T) {
	_, _, err := Apply([]Predicate{{Field: "pdf_url; DROP TABLE questions", Op: OpEq, Value: "x"}}, 1)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestApply_RejectsBadValues(t *testing.T) {
	_, _, err := Apply([]Predicate{{Field: "unit", Op: OpILike, Value: 3}}, 1)
	assert.Error(t, err)
	_, _, err = Apply([]Predicate{{Field: "id", Op: OpIn, Value: "q1"}}, 1)
	assert.Error(t, err)
	_, _, err = Apply([]Predicate{{Field: "year", Op: "gt", Value: 1}}, 1)
	assert.Error(t, err)
}
