// Package catalog stores exam questions, their reference data and the derived
// token sets in PostgreSQL.
package catalog

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Question is a row of the questions table.
type Question struct {
	ID                 string    `json:"id"`
	PublicQID          string    `json:"public_qid"`
	OrgCode2           string    `json:"org_code2"`
	SubjectCode2       string    `json:"subject_code2"`
	Year               int       `json:"year"`
	Month              int       `json:"month"`
	Number             int       `json:"number"`
	Unit               string    `json:"unit"`
	QType              string    `json:"qtype"`
	CorrectRate        *float64  `json:"correct_rate"`
	Difficulty5        *string   `json:"difficulty_5"`
	Killer3            *string   `json:"killer_3"`
	PDFURL             string    `json:"pdf_url"`
	PageNo             int       `json:"page_no"`
	BBox               BBox      `json:"bbox"`
	ExplanationAllowed bool      `json:"explanation_allowed"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// BBox locates a question on its PDF page, stored as jsonb.
type BBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Scan implements sql.Scanner for jsonb columns.
func (b *BBox) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*b = BBox{}
		return nil
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("scanning bbox from %T", src)
	}
	if err := json.Unmarshal(data, b); err != nil {
		return fmt.Errorf("decoding bbox: %w", err)
	}
	return nil
}

// Value implements driver.Valuer.
func (b BBox) Value() (driver.Value, error) {
	return json.Marshal(b)
}

type Organization struct {
	Code2 string `json:"code2"`
	Name  string `json:"name"`
	Kind  string `json:"kind"`
}

type Subject struct {
	Code2 string `json:"code2"`
	Name  string `json:"name"`
}

// ValidPublicQID reports whether s is a 12-digit public question id.
func ValidPublicQID(s string) bool {
	if len(s) != 12 {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
