// Package model defines the core data types shared by the dispatcher and the memory engine.
package model

import "time"

// Category is a member of the closed memory taxonomy. See package taxonomy.
type Category string

// Source provenance tags for a memory record.
const (
	SourceExplicit = "explicit" // user stated it directly
	SourceInferred = "inferred" // inferred from conversation context
	SourceLLM      = "llm"      // validated LLM extraction
	SourceAuto     = "auto"     // auto-captured by background extraction
	SourceCanvas   = "canvas"   // derived from canvas content
)

// Temporal relevance tags.
const (
	TemporalCurrent  = "current"
	TemporalPast     = "past"
	TemporalFuture   = "future"
	TemporalTimeless = "timeless"
)

// Granularity values for course and lesson records.
const (
	GranularityChunk   = "chunk"
	GranularitySummary = "summary"
)

// Entity describes the person a relational fact is about.
type Entity struct {
	Name     string `json:"name,omitempty"`
	Relation string `json:"relation,omitempty"`
}

// MemoryMetadata is the fixed metadata bag attached to every record.
type MemoryMetadata struct {
	Source            string    `json:"source"`
	Importance        float64   `json:"importance"`
	EmotionalWeight   float64   `json:"emotional_weight"`
	TemporalRelevance string    `json:"temporal_relevance,omitempty"`
	Entity            *Entity   `json:"entity,omitempty"`
	Granularity       string    `json:"granularity,omitempty"`
	SessionID         string    `json:"session_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	Supersedes        string    `json:"supersedes,omitempty"`
}

// MemoryRecord is a durable fact about a user. Key is unique per user.
type MemoryRecord struct {
	ID             string         `json:"id"`
	UserID         string         `json:"user_id"`
	Key            string         `json:"key"`
	Value          string         `json:"value"`
	Category       Category       `json:"category"`
	Confidence     float64        `json:"confidence"`
	Version        int            `json:"version"`
	AccessCount    int            `json:"access_count"`
	LastAccessedAt *time.Time     `json:"last_accessed_at,omitempty"`
	DeletedAt      *time.Time     `json:"deleted_at,omitempty"`
	Metadata       MemoryMetadata `json:"metadata"`
}

// CreatedAt returns the creation time recorded in the metadata.
func (r MemoryRecord) CreatedAt() time.Time { return r.Metadata.CreatedAt }

// Candidate is a fact proposed by the extractor, not yet persisted.
type Candidate struct {
	Category          Category `json:"category"`
	Key               string   `json:"key"`
	Value             string   `json:"value"`
	Confidence        float64  `json:"confidence"`
	Importance        float64  `json:"importance"`
	EmotionalWeight   float64  `json:"emotional_weight"`
	TemporalRelevance string   `json:"temporal_relevance,omitempty"`
	Entity            *Entity  `json:"entity,omitempty"`
	Source            string   `json:"source"`
}

// Record converts a candidate into a record owned by userID.
func (c Candidate) Record(userID, sessionID string, now time.Time) MemoryRecord {
	return MemoryRecord{
		UserID:     userID,
		Key:        c.Key,
		Value:      c.Value,
		Category:   c.Category,
		Confidence: c.Confidence,
		Metadata: MemoryMetadata{
			Source:            c.Source,
			Importance:        c.Importance,
			EmotionalWeight:   c.EmotionalWeight,
			TemporalRelevance: c.TemporalRelevance,
			Entity:            c.Entity,
			SessionID:         sessionID,
			CreatedAt:         now,
		},
	}
}

// QueryType biases scoring without filtering.
type QueryType string

const (
	QueryGreeting QueryType = "greeting"
	QueryRecall   QueryType = "recall"
	QueryChat     QueryType = "chat"
)

// SupersessionContext describes the query a record is being ranked for.
type SupersessionContext struct {
	QueryType      QueryType
	TargetCategory Category
	Query          string
	Now            time.Time // zero means time.Now()
}

// Retrieval strategy names.
const (
	StrategyBaseline    = "baseline"
	StrategyCategory    = "category"
	StrategySemantic    = "semantic"
	StrategyEmotional   = "emotional"
	StrategyTemporal    = "temporal"
	StrategyAssociative = "associative"
	StrategyContinuity  = "continuity"
	StrategyFallback    = "fallback"
)

// RetrievalHit is one normalized store or index hit. It lives for a single turn.
type RetrievalHit struct {
	Record     MemoryRecord `json:"record"`
	Similarity float64      `json:"similarity"`
	Strategy   string       `json:"strategy"`
}

// RankedMemory is a hit after supersession scoring.
type RankedMemory struct {
	ID       string    `json:"id"`
	Key      string    `json:"key"`
	Content  string    `json:"content"`
	Category Category  `json:"category"`
	Score    float64   `json:"score"`
	Strategy string    `json:"strategy"`
	Recency  time.Time `json:"recency"`
}
