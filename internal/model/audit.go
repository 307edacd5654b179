package model

import (
	"encoding/json"
	"time"
)

// Tier is the qualitative priority bucket derived from a score.
type Tier string

const (
	TierHot  Tier = "hot"
	TierWarm Tier = "warm"
	TierCold Tier = "cold"
)

// TagCount compares how often a page uses a tag against the competitor target.
type TagCount struct {
	Tag     string `json:"tag"`
	Current int    `json:"current"`
	Target  int    `json:"target"`
}

// Metrics is the normalized output of one content audit. Every field
// defaults to its zero value when the source payload lacks it.
type Metrics struct {
	WordCountCurrent  int        `json:"word_count_current"`
	WordCountTarget   int        `json:"word_count_target"`
	WordCountAverage  int        `json:"word_count_average"`
	PageScore         float64    `json:"pop_score"`
	CompetitorCount   int        `json:"competitor_count"`
	TagCounts         []TagCount `json:"tag_counts"`
	MissingTerms      []string   `json:"missing_terms"`
	MissingTermsCount int        `json:"missing_terms_count"`
	RelatedQuestions  []string   `json:"related_questions"`
	Variations        []string   `json:"variations"`
	SchemaTypes       []string   `json:"schema_types"`
}

// Score is the priority ranking derived from Metrics.
type Score struct {
	PriorityScore int      `json:"priority_score"`
	Tier          Tier     `json:"tier"`
	Reasons       []string `json:"reasons"`
}

// AuditResult is the combined outcome of a completed audit.
type AuditResult struct {
	Keyword     string          `json:"keyword"`
	TargetURL   string          `json:"target_url"`
	Metrics     Metrics         `json:"metrics"`
	Score       Score           `json:"score"`
	Raw         json.RawMessage `json:"raw,omitempty"`
	Persisted   bool            `json:"persisted"`
	CompletedAt time.Time       `json:"completed_at"`
}
