// Package zeroshot provides HTTP clients for the model sidecars: zero-shot
// label scoring for the category and severity stages, and sentence embeddings
// for duplicate detection.
package zeroshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

const defaultTimeout = 5 * time.Second

// ErrUnavailable indicates a sidecar is unreachable or failing. Callers treat
// it as retryable, not as a defect in the report being processed.
var ErrUnavailable = errors.New("model sidecar unavailable")

// postJSON sends a JSON POST to url and decodes the response into respPtr.
// Transport failures and 5xx statuses wrap ErrUnavailable.
func postJSON(ctx context.Context, client *http.Client, url string, reqBody, respPtr any) error {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sidecar returned %d", resp.StatusCode)
	}

	if decodeErr := json.NewDecoder(resp.Body).Decode(respPtr); decodeErr != nil {
		return fmt.Errorf("decode response: %w", decodeErr)
	}
	return nil
}

// healthResponse is the JSON shape returned by GET /health (model_version optional).
type healthResponse struct {
	ModelVersion string `json:"model_version"`
}

// getHealth calls GET /health at baseURL and returns reachable, latencyMs,
// model_version, and any error.
func getHealth(ctx context.Context, client *http.Client, baseURL string) (reachable bool, latencyMs int64, modelVersion string, err error) {
	start := time.Now()

	httpReq, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", http.NoBody)
	if reqErr != nil {
		return false, 0, "", fmt.Errorf("create request: %w", reqErr)
	}

	resp, doErr := client.Do(httpReq)
	latencyMs = time.Since(start).Milliseconds()
	if doErr != nil {
		return false, latencyMs, "", fmt.Errorf("%w: %w", ErrUnavailable, doErr)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return false, latencyMs, "", fmt.Errorf("unhealthy status: %d", resp.StatusCode)
	}

	reachable = true
	var healthResp healthResponse
	if decodeErr := json.NewDecoder(resp.Body).Decode(&healthResp); decodeErr == nil {
		modelVersion = healthResp.ModelVersion
	}
	return reachable, latencyMs, modelVersion, nil
}
