// Package analyzer is the client for the generative-text service that
// enriches newly created tasks with suggested attributes.
package analyzer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/taskmirror/taskmirror/internal/config"
)

// AnalyzeRequest is the content sent for analysis.
type AnalyzeRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ProjectID   string `json:"project_id,omitempty"`
}

// Analysis holds the attributes the service suggests for a task. Every field
// is optional; callers merge what is present and default the rest.
type Analysis struct {
	Priority            *string    `json:"priority,omitempty"`
	Tags                []string   `json:"tags,omitempty"`
	SuggestedDueDate    *time.Time `json:"suggested_due_date,omitempty"`
	EstimatedHours      *float64   `json:"estimated_hours,omitempty"`
	SuggestedAssigneeID *string    `json:"suggested_assignee_id,omitempty"`
}

// Client analyzes task content. Implementations must be safe for concurrent
// use.
type Client interface {
	Analyze(ctx context.Context, req AnalyzeRequest) (*Analysis, error)
}

// HTTPClient talks to the analysis service over HTTP.
type HTTPClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPClient builds a client from the analyzer configuration. It returns
// nil when the analyzer is disabled; callers treat a nil client as "no
// enrichment".
func NewHTTPClient(cfg config.AnalyzerConfig) *HTTPClient {
	if !cfg.Enabled {
		return nil
	}
	return &HTTPClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *HTTPClient) Analyze(ctx context.Context, req AnalyzeRequest) (*Analysis, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode analyze request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/analyze", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build analyze request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("analyze request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("analyze request returned %d: %s", resp.StatusCode, string(body))
	}

	var analysis Analysis
	if err := json.NewDecoder(resp.Body).Decode(&analysis); err != nil {
		return nil, fmt.Errorf("failed to decode analyze response: %w", err)
	}
	return &analysis, nil
}
