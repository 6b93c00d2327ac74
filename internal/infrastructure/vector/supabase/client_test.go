package supabase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/emalabs/ask-ema/internal/core/domain"
)

func TestMatchSectionsSendsRetrievalParameters(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/rpc/match_page_sections" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("apikey") == "" || r.Header.Get("Authorization") == "" {
			t.Fatalf("expected service key headers")
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"heading": "Solar PV Schemes", "content": "scheme details", "similarity": 0.91},
			{"heading": "Grid Access", "content": "grid details", "similarity": 0.85}
		]`))
	}))
	defer server.Close()

	client := New(server.URL, "service-key", nil)
	sections, err := client.MatchSections(context.Background(), []float32{0.1, 0.2}, domain.MatchParams{
		Threshold:        0.78,
		MaxCount:         10,
		MinContentLength: 50,
	})
	if err != nil {
		t.Fatalf("MatchSections() error = %v", err)
	}

	if captured["match_threshold"] != 0.78 {
		t.Fatalf("expected threshold 0.78, got %v", captured["match_threshold"])
	}
	if captured["match_count"] != float64(10) || captured["min_content_length"] != float64(50) {
		t.Fatalf("unexpected parameters %v", captured)
	}

	if len(sections) != 2 {
		t.Fatalf("expected 2 sections, got %d", len(sections))
	}
	// Service order is authoritative; the client must not re-sort.
	if sections[0].Heading != "Solar PV Schemes" || sections[1].Heading != "Grid Access" {
		t.Fatalf("section order changed: %+v", sections)
	}
}

func TestMatchSectionsErrorStatusSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message": "function not found"}`, http.StatusNotFound)
	}))
	defer server.Close()

	client := New(server.URL, "service-key", nil)
	_, err := client.MatchSections(context.Background(), []float32{0.1}, domain.MatchParams{})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestMatchSectionsEmptyResult(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[]`))
	}))
	defer server.Close()

	client := New(server.URL, "service-key", nil)
	sections, err := client.MatchSections(context.Background(), []float32{0.1}, domain.MatchParams{})
	if err != nil {
		t.Fatalf("MatchSections() error = %v", err)
	}
	if len(sections) != 0 {
		t.Fatalf("expected no sections, got %d", len(sections))
	}
}
