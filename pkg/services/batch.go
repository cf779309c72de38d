// Package services contains HTTP clients for the remote tool providers: the
// batch processing service and the results retrieval service.
//
// Every call carries a timeout; a hung remote never blocks a conversation
// turn. Responses are decoded into generic maps because the orchestrator
// treats service payloads as opaque apart from a handful of derived fields.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// BatchClient talks to the batch processing service.
type BatchClient struct {
	baseURL string
	client  *http.Client
}

// NewBatchClient creates a client for the batch service at baseURL.
func NewBatchClient(baseURL string, timeout time.Duration) *BatchClient {
	return &BatchClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// StartRun starts a batch run and returns the service payload (runId).
func (c *BatchClient) StartRun(ctx context.Context, runType, runScenario, cobDate, runGroup string) (map[string]any, error) {
	payload := map[string]any{
		"runType":     runType,
		"runScenario": runScenario,
		"cobDate":     cobDate,
		"runGroup":    runGroup,
	}
	return postJSON(ctx, c.client, c.baseURL+"/runs", payload)
}

// RunStatus fetches the current status of a run.
func (c *BatchClient) RunStatus(ctx context.Context, runID string) (map[string]any, error) {
	return getJSON(ctx, c.client, fmt.Sprintf("%s/runs/%s", c.baseURL, url.PathEscape(runID)))
}

// KillRun terminates a running batch job.
func (c *BatchClient) KillRun(ctx context.Context, runID string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		fmt.Sprintf("%s/runs/%s", c.baseURL, url.PathEscape(runID)), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build kill request: %w", err)
	}
	return doJSON(c.client, req)
}

// RunLog fetches the plain-text log of a run.
func (c *BatchClient) RunLog(ctx context.Context, runID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/runs/%s/log", c.baseURL, url.PathEscape(runID)), nil)
	if err != nil {
		return "", fmt.Errorf("failed to build log request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("batch service request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read log response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("batch service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return string(body), nil
}

func postJSON(ctx context.Context, client *http.Client, rawURL string, payload any) (map[string]any, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(string(body)))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return doJSON(client, req)
}

func getJSON(ctx context.Context, client *http.Client, rawURL string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	return doJSON(client, req)
}

func doJSON(client *http.Client, req *http.Request) (map[string]any, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", req.URL.Host, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result map[string]any
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return result, nil
}
