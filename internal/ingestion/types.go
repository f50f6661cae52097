// Package ingestion defines the request/response types and Kafka event schema
// of the question token ingestion pipeline.
package ingestion

import "time"

// IngestRequest is the JSON body of POST /api/v1/questions/tokens.
type IngestRequest struct {
	QuestionID string `json:"question_id"`
	RawText    string `json:"raw_text"`
	Unit       string `json:"unit"`
	QType      string `json:"qtype"`
}

// IngestResponse is returned once the token set has been queued.
type IngestResponse struct {
	QuestionID   string `json:"question_id"`
	Status       string `json:"status"`
	TokenCount   int    `json:"token_count"`
	BigramCount  int    `json:"bigram_count"`
	TrigramCount int    `json:"trigram_count"`
}

// RemoveResponse is returned once a token set removal has been queued.
type RemoveResponse struct {
	QuestionID string `json:"question_id"`
	Status     string `json:"status"`
}

// TokenIndexEvent is the Kafka message consumed by the indexer. A Deleted
// event is a tombstone: the question's token set is dropped and the gram
// lists are empty.
type TokenIndexEvent struct {
	QuestionID string    `json:"question_id"`
	Tokens     []string  `json:"tokens"`
	Bigrams    []string  `json:"bigrams"`
	Trigrams   []string  `json:"trigrams"`
	Deleted    bool      `json:"deleted,omitempty"`
	IngestedAt time.Time `json:"ingested_at"`
}
