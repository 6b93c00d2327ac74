package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/emalabs/ask-ema/internal/core/domain"
	"github.com/emalabs/ask-ema/internal/infrastructure/resilience"
)

const matchFunction = "match_page_sections"

// Client calls the similarity-search function exposed by the Supabase
// PostgREST API. The function returns candidate sections in descending
// similarity order; the client keeps that order.
type Client struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, serviceKey string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		executor:   executor,
	}
}

func (c *Client) MatchSections(ctx context.Context, vector []float32, params domain.MatchParams) ([]domain.PageSection, error) {
	reqBody := map[string]any{
		"embedding":          vector,
		"match_threshold":    params.Threshold,
		"match_count":        params.MaxCount,
		"min_content_length": params.MinContentLength,
	}

	var sections []domain.PageSection
	call := func(callCtx context.Context) error {
		body, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("marshal match request: %w", err)
		}

		url := fmt.Sprintf("%s/rest/v1/rpc/%s", c.baseURL, matchFunction)
		req, err := http.NewRequestWithContext(callCtx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create match request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("apikey", c.serviceKey)
		req.Header.Set("Authorization", "Bearer "+c.serviceKey)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("supabase match request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			return formatSupabaseHTTPError(resp)
		}
		if err := json.NewDecoder(resp.Body).Decode(&sections); err != nil {
			return fmt.Errorf("decode match response: %w", err)
		}
		return nil
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "supabase.match", call, nil)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, err
	}
	return sections, nil
}

func formatSupabaseHTTPError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
	msg := strings.TrimSpace(string(body))
	if msg == "" {
		return fmt.Errorf("supabase match status: %s", resp.Status)
	}
	return fmt.Errorf("supabase match status: %s: %s", resp.Status, msg)
}
