package analytics

import "time"

type EventType string

const (
	EventSearch      EventType = "search"
	EventIndexToken  EventType = "index_tokens"
	EventRemoveToken EventType = "remove_tokens"
)

// SearchEvent describes one executed question search. MatchedBy is the tier
// that produced candidates, "none" when the query matched nothing and empty
// for filter-only searches.
type SearchEvent struct {
	Type      EventType `json:"type"`
	Query     string    `json:"query"`
	MatchedBy string    `json:"matched_by"`
	TotalHits int       `json:"total_hits"`
	Returned  int       `json:"returned"`
	LatencyMs int64     `json:"latency_ms"`
	CacheHit  bool      `json:"cache_hit"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// IndexEvent describes one token set written or removed by the indexer.
type IndexEvent struct {
	Type         EventType `json:"type"`
	QuestionID   string    `json:"question_id"`
	TokenCount   int       `json:"token_count"`
	BigramCount  int       `json:"bigram_count"`
	TrigramCount int       `json:"trigram_count"`
	LatencyMs    int64     `json:"latency_ms"`
	Timestamp    time.Time `json:"timestamp"`
}

// envelope peeks at the type discriminator before full decoding.
type envelope struct {
	Type EventType `json:"type"`
}
