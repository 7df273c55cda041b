package zeroshot

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/civicgrid/triage/internal/config"
)

// embedRequest is the request body for POST /embed.
type embedRequest struct {
	Text string `json:"text"`
}

// embedResponse is the response body from /embed.
type embedResponse struct {
	Vector []float64 `json:"vector"`
	Dim    int       `json:"dim"`
}

// EmbedClient is an HTTP client for the sentence embedding sidecar.
type EmbedClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewEmbedClient creates an embedding client from cfg.
func NewEmbedClient(cfg config.EmbeddingConfig) *EmbedClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &EmbedClient{
		baseURL:    cfg.URL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Embed returns the embedding vector for text.
func (c *EmbedClient) Embed(ctx context.Context, text string) ([]float64, error) {
	req := &embedRequest{Text: text}
	var resp embedResponse
	if err := postJSON(ctx, c.httpClient, c.baseURL+"/embed", req, &resp); err != nil {
		return nil, fmt.Errorf("embed: %w", err)
	}
	if len(resp.Vector) == 0 {
		return nil, errors.New("embedding sidecar returned an empty vector")
	}
	return resp.Vector, nil
}

// Health checks the embedding sidecar and returns reachable, latencyMs,
// model_version, and any error.
func (c *EmbedClient) Health(ctx context.Context) (reachable bool, latencyMs int64, modelVersion string, err error) {
	return getHealth(ctx, c.httpClient, c.baseURL)
}
