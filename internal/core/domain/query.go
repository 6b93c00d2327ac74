package domain

import (
	"strings"
	"time"
)

// Query is the immutable input of one pipeline invocation. SanitizedText is
// the trimmed form of RawText and is what every downstream stage consumes.
type Query struct {
	RawText       string
	SanitizedText string
	HumanResponse string
	ReceivedAt    time.Time
}

func NewQuery(rawText, humanResponse string, receivedAt time.Time) Query {
	return Query{
		RawText:       rawText,
		SanitizedText: strings.TrimSpace(rawText),
		HumanResponse: humanResponse,
		ReceivedAt:    receivedAt,
	}
}

// ModerationVerdict is the moderation service's screening result for one
// query. Categories holds the per-category booleans, CategoryScores the
// matching confidence scores.
type ModerationVerdict struct {
	Flagged        bool
	Categories     map[string]bool
	CategoryScores map[string]float64
}

// PageSection is one indexed corpus section returned by the vector matcher,
// in descending similarity order. Read-only to the pipeline.
type PageSection struct {
	Heading    string  `json:"heading"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}

// MatchParams are the fixed retrieval parameters passed to the vector
// matcher.
type MatchParams struct {
	Threshold        float64
	MaxCount         int
	MinContentLength int
}

// ContextBundle is the token-bounded context assembled from matched sections.
// References holds at most the configured number of unique trimmed headings
// in first-occurrence order. TokenCount may exceed the budget by the cost of
// the last rejected section; that section's text is never part of Text.
type ContextBundle struct {
	Text       string
	TokenCount int
	References []string
}

// Prompt is the two-part exchange sent to the completion service.
type Prompt struct {
	SystemInstruction string
	UserMessage       string
}

// AnswerResult is the final output of a successful pipeline run.
type AnswerResult struct {
	Text       string
	References []string
}

// StreamChunk is one element of a streamed completion. Chunks arrive in
// generation order; a non-nil Err terminates the stream.
type StreamChunk struct {
	Text string
	Err  error
}
