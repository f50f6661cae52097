// Package validator checks ingestion requests and reports per-field errors.
package validator

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/exam-question-search/internal/ingestion"
)

const (
	maxQuestionIDLength = 64
	maxRawTextLength    = 1 << 20
)

// ValidationError holds per-field validation failure messages.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for field, msg := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s: %s", field, msg))
	}
	sort.Strings(parts)
	return strings.Join(parts, "; ")
}

// ValidateIngestRequest trims the request in place and checks it.
func ValidateIngestRequest(req *ingestion.IngestRequest) error {
	errs := make(map[string]string)

	req.QuestionID = strings.TrimSpace(req.QuestionID)
	if msg := checkQuestionID(req.QuestionID); msg != "" {
		errs["question_id"] = msg
	}
	if len(req.RawText) > maxRawTextLength {
		errs["raw_text"] = fmt.Sprintf("raw_text must be at most %d bytes", maxRawTextLength)
	}
	if strings.TrimSpace(req.RawText) == "" && strings.TrimSpace(req.Unit) == "" && strings.TrimSpace(req.QType) == "" {
		errs["raw_text"] = "one of raw_text, unit or qtype is required"
	}
	if len(errs) > 0 {
		return &ValidationError{Fields: errs}
	}
	return nil
}

// ValidateQuestionID checks a trimmed question id on its own, as used by
// token set removal.
func ValidateQuestionID(id string) error {
	if msg := checkQuestionID(id); msg != "" {
		return &ValidationError{Fields: map[string]string{"question_id": msg}}
	}
	return nil
}

func checkQuestionID(id string) string {
	if id == "" {
		return "question_id is required"
	}
	if len(id) > maxQuestionIDLength {
		return fmt.Sprintf("question_id must be at most %d characters", maxQuestionIDLength)
	}
	return ""
}
