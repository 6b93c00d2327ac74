package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/emalabs/ask-ema/internal/core/domain"
	"github.com/emalabs/ask-ema/internal/core/ports"
)

// PipelineParams hold the fixed retrieval and budgeting parameters of the
// answer pipeline.
type PipelineParams struct {
	MatchThreshold     float64
	MatchCount         int
	MinContentLength   int
	ContextTokenBudget int
	MaxReferences      int
}

func DefaultPipelineParams() PipelineParams {
	return PipelineParams{
		MatchThreshold:     0.78,
		MatchCount:         10,
		MinContentLength:   50,
		ContextTokenBudget: 1500,
		MaxReferences:      3,
	}
}

func (p PipelineParams) normalize() PipelineParams {
	out := p
	def := DefaultPipelineParams()
	if out.MatchThreshold <= 0 {
		out.MatchThreshold = def.MatchThreshold
	}
	if out.MatchCount <= 0 {
		out.MatchCount = def.MatchCount
	}
	if out.MinContentLength <= 0 {
		out.MinContentLength = def.MinContentLength
	}
	if out.ContextTokenBudget <= 0 {
		out.ContextTokenBudget = def.ContextTokenBudget
	}
	if out.MaxReferences <= 0 {
		out.MaxReferences = def.MaxReferences
	}
	return out
}

const auditAppendTimeout = 5 * time.Second

// AnswerUseCase runs the query-answering pipeline: moderation, embedding,
// section matching, context assembly, prompting, completion. One audit record
// is written per attempt, on every exit path past input validation.
type AnswerUseCase struct {
	moderator ports.ModerationService
	embedder  ports.Embedder
	matcher   ports.SectionMatcher
	tokenizer ports.Tokenizer
	generator ports.AnswerGenerator
	audit     ports.AuditSink
	params    PipelineParams
	observer  ContextObserver
}

// ContextObserver is notified with the token count and section count of every
// assembled context. Used to feed metrics without coupling the pipeline to a
// registry.
type ContextObserver func(tokenCount, sectionCount int)

func (uc *AnswerUseCase) SetContextObserver(observer ContextObserver) {
	uc.observer = observer
}

func NewAnswerUseCase(
	moderator ports.ModerationService,
	embedder ports.Embedder,
	matcher ports.SectionMatcher,
	tokenizer ports.Tokenizer,
	generator ports.AnswerGenerator,
	audit ports.AuditSink,
	params PipelineParams,
) *AnswerUseCase {
	return &AnswerUseCase{
		moderator: moderator,
		embedder:  embedder,
		matcher:   matcher,
		tokenizer: tokenizer,
		generator: generator,
		audit:     audit,
		params:    params.normalize(),
	}
}

func (uc *AnswerUseCase) Answer(ctx context.Context, query domain.Query) (*domain.AnswerResult, error) {
	prompt, bundle, err := uc.prepare(ctx, query)
	if err != nil {
		return nil, err
	}

	answerText, err := uc.generator.Complete(ctx, prompt)
	if err != nil {
		uc.writeAudit(ctx, query, domain.AuditRecord{
			Error: fmt.Sprintf("Completion error: %v", err),
		})
		return nil, domain.WrapError(domain.ErrApplication, "generate completion", err)
	}

	output := answerText + "\n\n" + RenderReferences(bundle.References)
	uc.writeAudit(ctx, query, domain.AuditRecord{
		Response: output,
		Context:  prompt.SystemInstruction,
	})

	return &domain.AnswerResult{
		Text:       output,
		References: bundle.References,
	}, nil
}

// StreamAnswer runs the same pipeline but forwards completion chunks in
// generation order. The reference block is emitted as the final chunk and the
// success audit record is written once the stream has ended.
func (uc *AnswerUseCase) StreamAnswer(ctx context.Context, query domain.Query) (<-chan domain.StreamChunk, error) {
	prompt, bundle, err := uc.prepare(ctx, query)
	if err != nil {
		return nil, err
	}

	upstream, err := uc.generator.Stream(ctx, prompt)
	if err != nil {
		uc.writeAudit(ctx, query, domain.AuditRecord{
			Error: fmt.Sprintf("Completion error: %v", err),
		})
		return nil, domain.WrapError(domain.ErrApplication, "stream completion", err)
	}

	out := make(chan domain.StreamChunk)
	go func() {
		defer close(out)

		var answer strings.Builder
		for chunk := range upstream {
			if chunk.Err != nil {
				uc.writeAudit(ctx, query, domain.AuditRecord{
					Error: fmt.Sprintf("Completion error: %v", chunk.Err),
				})
				select {
				case out <- domain.StreamChunk{Err: domain.WrapError(domain.ErrApplication, "stream completion", chunk.Err)}:
				case <-ctx.Done():
				}
				return
			}
			answer.WriteString(chunk.Text)
			select {
			case out <- chunk:
			case <-ctx.Done():
				// Caller went away; still account for the attempt.
				uc.writeAudit(ctx, query, domain.AuditRecord{
					Error: fmt.Sprintf("Stream abandoned: %v", ctx.Err()),
				})
				return
			}
		}

		tail := "\n\n" + RenderReferences(bundle.References)
		output := answer.String() + tail
		uc.writeAudit(ctx, query, domain.AuditRecord{
			Response: output,
			Context:  prompt.SystemInstruction,
		})

		select {
		case out <- domain.StreamChunk{Text: tail}:
		case <-ctx.Done():
		}
	}()

	return out, nil
}

// prepare runs the shared front of the pipeline: moderation gate, embedding,
// vector match, context assembly and prompt construction.
func (uc *AnswerUseCase) prepare(ctx context.Context, query domain.Query) (domain.Prompt, domain.ContextBundle, error) {
	verdict, err := uc.moderator.Moderate(ctx, query.SanitizedText)
	if err != nil {
		uc.writeAudit(ctx, query, domain.AuditRecord{
			Error: fmt.Sprintf("Moderation error: %v", err),
		})
		return domain.Prompt{}, domain.ContextBundle{}, domain.WrapError(domain.ErrApplication, "moderate query", err)
	}
	if verdict.Flagged {
		uc.writeAudit(ctx, query, domain.AuditRecord{
			Error: "Flagged content: " + marshalCategories(verdict.Categories),
		})
		return domain.Prompt{}, domain.ContextBundle{}, domain.NewUserError("Flagged content", map[string]any{
			"flagged":    true,
			"categories": verdict.Categories,
		})
	}

	// Line breaks would read as semantic boundaries to the embedding model.
	embeddingInput := strings.ReplaceAll(query.SanitizedText, "\n", " ")
	vector, err := uc.embedder.EmbedQuery(ctx, embeddingInput)
	if err != nil {
		uc.writeAudit(ctx, query, domain.AuditRecord{
			Error: fmt.Sprintf("Failed to create embedding: %v", err),
		})
		return domain.Prompt{}, domain.ContextBundle{}, domain.WrapError(domain.ErrApplication, "create embedding", err)
	}

	sections, err := uc.matcher.MatchSections(ctx, vector, domain.MatchParams{
		Threshold:        uc.params.MatchThreshold,
		MaxCount:         uc.params.MatchCount,
		MinContentLength: uc.params.MinContentLength,
	})
	if err != nil {
		uc.writeAudit(ctx, query, domain.AuditRecord{
			Error: fmt.Sprintf("Match error: %v", err),
		})
		return domain.Prompt{}, domain.ContextBundle{}, domain.WrapError(domain.ErrApplication, "match page sections", err)
	}

	bundle := AssembleContext(sections, uc.tokenizer, uc.params.ContextTokenBudget, uc.params.MaxReferences)
	if uc.observer != nil {
		uc.observer(bundle.TokenCount, len(sections))
	}
	prompt := BuildPrompt(bundle, query.SanitizedText)
	return prompt, bundle, nil
}

// writeAudit appends one audit record. The context is detached so a caller
// disconnect does not drop the row, and an append failure never masks the
// primary outcome: it is logged and swallowed.
func (uc *AnswerUseCase) writeAudit(ctx context.Context, query domain.Query, record domain.AuditRecord) {
	record.ID = uuid.NewString()
	record.Timestamp = query.ReceivedAt
	record.Query = query.RawText
	record.HumanResponse = query.HumanResponse

	appendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditAppendTimeout)
	defer cancel()

	if err := uc.audit.Append(appendCtx, record); err != nil {
		slog.Error("audit_append_failed", "record_id", record.ID, "error", err)
	}
}

func marshalCategories(categories map[string]bool) string {
	data, err := json.Marshal(categories)
	if err != nil {
		return fmt.Sprintf("%v", categories)
	}
	return string(data)
}
