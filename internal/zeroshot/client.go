package zeroshot

import (
	"context"
	"fmt"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/civicgrid/triage/internal/config"
	"github.com/civicgrid/triage/internal/domain"
)

// classifyRequest is the request body for POST /classify.
type classifyRequest struct {
	Text   string   `json:"text"`
	Labels []string `json:"labels"`
}

// classifyResponse is the response body from /classify. Scores come back in
// model order, not sorted.
type classifyResponse struct {
	Scores           []domain.LabelScore `json:"scores"`
	ModelVersion     string              `json:"model_version"`
	ProcessingTimeMs int64               `json:"processing_time_ms"`
}

// Client is an HTTP client for the zero-shot scoring sidecar.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// NewClient creates a zero-shot client from cfg. A zero or negative rate
// limit disables throttling.
func NewClient(cfg config.ZeroShotConfig) *Client {
	limit := rate.Limit(cfg.RateLimit)
	if limit <= 0 {
		limit = rate.Inf
	}
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    cfg.URL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, burst),
	}
}

// Classify scores text against the candidate labels.
func (c *Client) Classify(ctx context.Context, text string, labels []string) ([]domain.LabelScore, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}

	req := &classifyRequest{Text: text, Labels: labels}
	var resp classifyResponse
	if err := postJSON(ctx, c.httpClient, c.baseURL+"/classify", req, &resp); err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}
	return resp.Scores, nil
}

// Health checks the scoring sidecar and returns reachable, latencyMs,
// model_version, and any error.
func (c *Client) Health(ctx context.Context) (reachable bool, latencyMs int64, modelVersion string, err error) {
	return getHealth(ctx, c.httpClient, c.baseURL)
}
