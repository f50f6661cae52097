package validator

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/ingestion"
)

func TestValidateIngestRequest(t *testing.T) {
	cases := []struct {
		name  string
		req   ingestion.IngestRequest
		field string
	}{
		{"missing id", ingestion.IngestRequest{RawText: "수학"}, "question_id"},
		{"id too long", ingestion.IngestRequest{QuestionID: strings.Repeat("a", 65), RawText: "수학"}, "question_id"},
		{"raw text too long", ingestion.IngestRequest{QuestionID: "q1", RawText: strings.Repeat("a", maxRawTextLength+1)}, "raw_text"},
		{"nothing to index", ingestion.IngestRequest{QuestionID: "q1", RawText: " ", Unit: "\t"}, "raw_text"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateIngestRequest(&tc.req)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Contains(t, verr.Fields, tc.field)
		})
	}
}

func TestValidateIngestRequest_Accepts(t *testing.T) {
	req := ingestion.IngestRequest{QuestionID: "  q1  ", QType: "객관식"}
	require.NoError(t, ValidateIngestRequest(&req))
	assert.Equal(t, "q1", req.QuestionID)
}

func TestValidationError_Message(t *testing.T) {
	err := &ValidationError{Fields: map[string]string{"raw_text": "b", "question_id": "a"}}
	assert.Equal(t, "question_id: a; raw_text: b", err.Error())
}

func TestValidateQuestionID(t *testing.T) {
	assert.NoError(t, ValidateQuestionID("q1"))

	var verr *ValidationError
	require.True(t, errors.As(ValidateQuestionID(""), &verr))
	assert.Contains(t, verr.Fields, "question_id")
	require.True(t, errors.As(ValidateQuestionID(strings.Repeat("a", 65)), &verr))
	assert.Contains(t, verr.Fields["question_id"], "at most 64")
}
