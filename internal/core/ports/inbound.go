package ports

import (
	"context"

	"github.com/emalabs/ask-ema/internal/core/domain"
)

// QuestionAnswerer is the inbound contract for the query-answering pipeline.
type QuestionAnswerer interface {
	Answer(ctx context.Context, query domain.Query) (*domain.AnswerResult, error)
	StreamAnswer(ctx context.Context, query domain.Query) (<-chan domain.StreamChunk, error)
}
