package services

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ResultsClient talks to the results retrieval service.
type ResultsClient struct {
	baseURL string
	client  *http.Client
}

// NewResultsClient creates a client for the results service at baseURL.
func NewResultsClient(baseURL string, timeout time.Duration) *ResultsClient {
	return &ResultsClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// StressResults fetches stress test results. The payload carries a download
// link to DS2.xlsx plus a downloadId.
func (c *ResultsClient) StressResults(ctx context.Context, runType, cob, scenario string) (map[string]any, error) {
	return c.query(ctx, "/stressResults", runType, cob, scenario)
}

// AllowanceResults fetches allowance results. The payload carries a download
// link to DS1.xlsx plus a downloadId.
func (c *ResultsClient) AllowanceResults(ctx context.Context, runType, cob, scenario string) (map[string]any, error) {
	return c.query(ctx, "/allowanceResults", runType, cob, scenario)
}

func (c *ResultsClient) query(ctx context.Context, path, runType, cob, scenario string) (map[string]any, error) {
	params := url.Values{}
	params.Set("runtype", runType)
	params.Set("cob", cob)
	params.Set("scenario", scenario)

	return getJSON(ctx, c.client, c.baseURL+path+"?"+params.Encode())
}
