package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/emalabs/ask-ema/internal/config"
	"github.com/emalabs/ask-ema/internal/core/ports"
	"github.com/emalabs/ask-ema/internal/core/usecase"
	"github.com/emalabs/ask-ema/internal/infrastructure/llm/openai"
	"github.com/emalabs/ask-ema/internal/infrastructure/queue/nats"
	"github.com/emalabs/ask-ema/internal/infrastructure/repository/postgres"
	"github.com/emalabs/ask-ema/internal/infrastructure/resilience"
	"github.com/emalabs/ask-ema/internal/infrastructure/tokenizer/tiktoken"
	"github.com/emalabs/ask-ema/internal/infrastructure/vector/supabase"
)

type App struct {
	Config config.Config

	AuditRepo *postgres.AuditRepository
	Queue     *nats.Queue
	AnswerUC  *usecase.AnswerUseCase

	closeFn func()
}

// New wires the API process. Audit records go through NATS when a broker is
// configured so the answer path never waits on the database; without one they
// are written to postgres directly.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	db, repo, err := openAuditStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	executor := resilience.NewExecutor(resilience.Config{
		CallTimeout: time.Duration(cfg.CallTimeoutSeconds) * time.Second,
	})

	openaiClient := openai.New(cfg.OpenAIAPIKey, cfg.OpenAIBaseURL, cfg.OpenAIGenModel, cfg.OpenAIEmbedModel, executor)
	moderator := openai.NewModerator(openaiClient)
	embedder := openai.NewEmbedder(openaiClient)
	generator := openai.NewGenerator(openaiClient)

	matcher := supabase.New(cfg.SupabaseURL, cfg.SupabaseServiceKey, executor)

	tokenizer, err := tiktoken.New(cfg.TokenizerEncoding)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init tokenizer: %w", err)
	}

	var queue *nats.Queue
	var sink ports.AuditSink = repo
	if cfg.NATSURL != "" {
		queue, err = nats.New(cfg.NATSURL, cfg.NATSSubject)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		sink = NewFallbackAuditSink(queue, repo)
	}

	answerUC := usecase.NewAnswerUseCase(moderator, embedder, matcher, tokenizer, generator, sink, usecase.PipelineParams{
		MatchThreshold:     cfg.MatchThreshold,
		MatchCount:         cfg.MatchCount,
		MinContentLength:   cfg.MinContentLength,
		ContextTokenBudget: cfg.ContextTokenBudget,
		MaxReferences:      cfg.MaxReferences,
	})

	return &App{
		Config:    cfg,
		AuditRepo: repo,
		Queue:     queue,
		AnswerUC:  answerUC,

		closeFn: func() {
			if queue != nil {
				queue.Close()
			}
			_ = db.Close()
		},
	}, nil
}

// NewWorker wires the audit persistence worker: the broker subscription plus
// the durable store, nothing else.
func NewWorker(ctx context.Context, cfg config.Config) (*App, error) {
	db, repo, err := openAuditStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init message queue: %w", err)
	}

	return &App{
		Config:    cfg,
		AuditRepo: repo,
		Queue:     queue,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func openAuditStore(ctx context.Context, cfg config.Config) (*sql.DB, *postgres.AuditRepository, error) {
	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("open postgres: %w", err)
	}
	repo := postgres.NewAuditRepository(db)
	if err := repo.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("ensure schema: %w", err)
	}
	return db, repo, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
