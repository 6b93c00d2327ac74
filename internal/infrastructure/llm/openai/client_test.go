package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/emalabs/ask-ema/internal/core/domain"
	"github.com/emalabs/ask-ema/internal/infrastructure/resilience"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, func()) {
	t.Helper()
	server := httptest.NewServer(handler)
	executor := resilience.NewExecutor(resilience.Config{BreakerEnabled: false})
	client := New("test-key", server.URL, "gpt-3.5-turbo", "text-embedding-ada-002", executor)
	return client, server.Close
}

func TestModerateMapsFlaggedVerdict(t *testing.T) {
	client, done := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/moderations" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "modr-1",
			"model": "text-moderation-latest",
			"results": [{
				"flagged": true,
				"categories": {"hate": true, "violence": false},
				"category_scores": {"hate": 0.97, "violence": 0.01}
			}]
		}`))
	}))
	defer done()

	verdict, err := NewModerator(client).Moderate(context.Background(), "bad text")
	if err != nil {
		t.Fatalf("Moderate() error = %v", err)
	}
	if !verdict.Flagged {
		t.Fatalf("expected flagged verdict")
	}
	if !verdict.Categories["hate"] || verdict.Categories["violence"] {
		t.Fatalf("unexpected categories %v", verdict.Categories)
	}
	if verdict.CategoryScores["hate"] < 0.9 {
		t.Fatalf("unexpected scores %v", verdict.CategoryScores)
	}
}

func TestModerateUpstreamErrorSurfaces(t *testing.T) {
	client, done := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":{"message":"boom"}}`, http.StatusInternalServerError)
	}))
	defer done()

	_, err := NewModerator(client).Moderate(context.Background(), "text")
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestEmbedQueryReturnsVector(t *testing.T) {
	client, done := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/embeddings" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"object": "list",
			"model": "text-embedding-ada-002",
			"data": [{"object": "embedding", "index": 0, "embedding": [0.25, -0.5]}]
		}`))
	}))
	defer done()

	vector, err := NewEmbedder(client).EmbedQuery(context.Background(), "solar pv")
	if err != nil {
		t.Fatalf("EmbedQuery() error = %v", err)
	}
	if len(vector) != 2 || vector[0] != 0.25 {
		t.Fatalf("unexpected vector %v", vector)
	}
}

func TestCompleteSendsSystemAndUserMessages(t *testing.T) {
	var captured struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	client, done := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "EMA supports solar adoption."}}]
		}`))
	}))
	defer done()

	text, err := NewGenerator(client).Complete(context.Background(), domain.Prompt{
		SystemInstruction: "persona and context",
		UserMessage:       "what about solar?",
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if text != "EMA supports solar adoption." {
		t.Fatalf("unexpected completion %q", text)
	}
	if len(captured.Messages) != 2 {
		t.Fatalf("expected two messages, got %d", len(captured.Messages))
	}
	if captured.Messages[0].Role != "system" || captured.Messages[1].Role != "user" {
		t.Fatalf("unexpected roles %+v", captured.Messages)
	}
	if captured.Messages[0].Content != "persona and context" {
		t.Fatalf("system message not carried through: %+v", captured.Messages[0])
	}
}
