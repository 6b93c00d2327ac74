package ports

import (
	"context"

	"github.com/emalabs/ask-ema/internal/core/domain"
)

// ModerationService screens query text for policy violations.
type ModerationService interface {
	Moderate(ctx context.Context, text string) (domain.ModerationVerdict, error)
}

// Embedder converts query text into a vector representation.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// SectionMatcher retrieves ranked corpus sections for a query vector.
// Sections are returned in descending similarity order and are never
// re-sorted by the pipeline.
type SectionMatcher interface {
	MatchSections(ctx context.Context, vector []float32, params domain.MatchParams) ([]domain.PageSection, error)
}

// Tokenizer counts model-tokenized units for the context budget.
type Tokenizer interface {
	CountTokens(text string) int
}

// AnswerGenerator invokes the completion service. Stream yields chunks in
// generation order through a channel that closes when the completion ends;
// a chunk with a non-nil Err terminates the stream.
type AnswerGenerator interface {
	Complete(ctx context.Context, prompt domain.Prompt) (string, error)
	Stream(ctx context.Context, prompt domain.Prompt) (<-chan domain.StreamChunk, error)
}

// AuditSink accepts one audit record per request attempt. Implementations
// must not block the primary response path longer than a bounded append.
type AuditSink interface {
	Append(ctx context.Context, record domain.AuditRecord) error
}

// AuditRepository is the durable audit store.
type AuditRepository interface {
	AuditSink
	ListRecent(ctx context.Context, limit int) ([]domain.AuditRecord, error)
}
