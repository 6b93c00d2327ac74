package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	goopenai "github.com/sashabaranov/go-openai"

	"github.com/emalabs/ask-ema/internal/core/domain"
	"github.com/emalabs/ask-ema/internal/infrastructure/resilience"
)

// Client wraps the OpenAI API for the three pipeline calls: moderation,
// query embedding and chat completion. All non-streaming calls go through
// the resilience executor.
type Client struct {
	api        *goopenai.Client
	genModel   string
	embedModel string
	executor   *resilience.Executor
}

func New(apiKey, baseURL, genModel, embedModel string, executor *resilience.Executor) *Client {
	cfg := goopenai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &Client{
		api:        goopenai.NewClientWithConfig(cfg),
		genModel:   genModel,
		embedModel: embedModel,
		executor:   executor,
	}
}

type Moderator struct {
	client *Client
}

func NewModerator(client *Client) *Moderator {
	return &Moderator{client: client}
}

func (m *Moderator) Moderate(ctx context.Context, text string) (domain.ModerationVerdict, error) {
	var resp goopenai.ModerationResponse
	err := m.client.executor.Execute(ctx, "openai.moderate", func(callCtx context.Context) error {
		var callErr error
		resp, callErr = m.client.api.Moderations(callCtx, goopenai.ModerationRequest{Input: text})
		return callErr
	}, classifyOpenAIError)
	if err != nil {
		return domain.ModerationVerdict{}, fmt.Errorf("openai moderation: %w", err)
	}
	if len(resp.Results) == 0 {
		return domain.ModerationVerdict{}, fmt.Errorf("openai moderation: empty result set")
	}

	result := resp.Results[0]
	categories, err := remarshal[map[string]bool](result.Categories)
	if err != nil {
		return domain.ModerationVerdict{}, fmt.Errorf("openai moderation: decode categories: %w", err)
	}
	scores, err := remarshal[map[string]float64](result.CategoryScores)
	if err != nil {
		return domain.ModerationVerdict{}, fmt.Errorf("openai moderation: decode category scores: %w", err)
	}

	return domain.ModerationVerdict{
		Flagged:        result.Flagged,
		Categories:     categories,
		CategoryScores: scores,
	}, nil
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	var resp goopenai.EmbeddingResponse
	err := e.client.executor.Execute(ctx, "openai.embed", func(callCtx context.Context) error {
		var callErr error
		resp, callErr = e.client.api.CreateEmbeddings(callCtx, goopenai.EmbeddingRequest{
			Input: []string{text},
			Model: goopenai.EmbeddingModel(e.client.embedModel),
		})
		return callErr
	}, classifyOpenAIError)
	if err != nil {
		return nil, fmt.Errorf("openai embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("openai embedding: empty result set")
	}
	return resp.Data[0].Embedding, nil
}

type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) Complete(ctx context.Context, prompt domain.Prompt) (string, error) {
	var resp goopenai.ChatCompletionResponse
	err := g.client.executor.Execute(ctx, "openai.complete", func(callCtx context.Context) error {
		var callErr error
		resp, callErr = g.client.api.CreateChatCompletion(callCtx, chatRequest(g.client.genModel, prompt))
		return callErr
	}, classifyOpenAIError)
	if err != nil {
		return "", fmt.Errorf("openai completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai completion: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

// Stream opens a streamed completion and forwards delta chunks in generation
// order. The stream is opened outside the executor's call timeout because it
// outlives a single bounded call; the caller's context still cancels it.
func (g *Generator) Stream(ctx context.Context, prompt domain.Prompt) (<-chan domain.StreamChunk, error) {
	stream, err := g.client.api.CreateChatCompletionStream(ctx, chatRequest(g.client.genModel, prompt))
	if err != nil {
		return nil, fmt.Errorf("openai completion stream: %w", err)
	}

	out := make(chan domain.StreamChunk)
	go func() {
		defer close(out)
		defer stream.Close()

		for {
			resp, recvErr := stream.Recv()
			if errors.Is(recvErr, io.EOF) {
				return
			}
			if recvErr != nil {
				select {
				case out <- domain.StreamChunk{Err: fmt.Errorf("openai completion stream: %w", recvErr)}:
				case <-ctx.Done():
				}
				return
			}
			if len(resp.Choices) == 0 || resp.Choices[0].Delta.Content == "" {
				continue
			}
			select {
			case out <- domain.StreamChunk{Text: resp.Choices[0].Delta.Content}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func chatRequest(model string, prompt domain.Prompt) goopenai.ChatCompletionRequest {
	return goopenai.ChatCompletionRequest{
		Model: model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleSystem, Content: prompt.SystemInstruction},
			{Role: goopenai.ChatMessageRoleUser, Content: prompt.UserMessage},
		},
	}
}

// remarshal converts the SDK's typed category structs into the generic maps
// the domain carries, keeping the wire field names.
func remarshal[T any](v any) (T, error) {
	var out T
	data, err := json.Marshal(v)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, err
	}
	return out, nil
}
