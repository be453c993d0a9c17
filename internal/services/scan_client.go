package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const DefaultScanURL = "https://urlscan.io/api/v1/scan/"

var ErrScanNotConfigured = errors.New("scanning is not configured")

// Scanner submits a domain for an external scan.
type Scanner interface {
	Scan(ctx context.Context, domain string) (*ScanResult, error)
}

type ScanResult struct {
	UUID      string `json:"uuid"`
	ResultURL string `json:"result"`
	APIURL    string `json:"api"`
	Message   string `json:"message"`
}

// ScanClient submits scans to a urlscan.io compatible API. Submissions are
// throttled client side so a burst of button clicks cannot exhaust the quota.
type ScanClient struct {
	client     *http.Client
	url        string
	apiKey     string
	visibility string
	limiter    *rate.Limiter
}

// NewScanClient allows perMinute submissions with a burst of one.
func NewScanClient(url, apiKey string, perMinute int, timeout time.Duration) *ScanClient {
	if url == "" {
		url = DefaultScanURL
	}
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(perMinute))
	}
	return &ScanClient{
		client:     &http.Client{Timeout: timeout},
		url:        url,
		apiKey:     apiKey,
		visibility: "unlisted",
		limiter:    rate.NewLimiter(limit, 1),
	}
}

type scanRequest struct {
	URL        string `json:"url"`
	Visibility string `json:"visibility"`
}

type scanErrorResponse struct {
	Message     string `json:"message"`
	Description string `json:"description"`
}

func (c *ScanClient) Scan(ctx context.Context, domain string) (*ScanResult, error) {
	if c == nil || c.apiKey == "" {
		return nil, ErrScanNotConfigured
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("scan throttled: %w", err)
	}

	payload, err := json.Marshal(scanRequest{URL: domain, Visibility: c.visibility})
	if err != nil {
		return nil, fmt.Errorf("failed to encode scan request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build scan request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("API-Key", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scan request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e scanErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Description != "" {
			return nil, fmt.Errorf("scan API returned status %d: %s", resp.StatusCode, e.Description)
		}
		if e.Message != "" {
			return nil, fmt.Errorf("scan API returned status %d: %s", resp.StatusCode, e.Message)
		}
		return nil, fmt.Errorf("scan API returned status %d", resp.StatusCode)
	}

	var result ScanResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode scan response: %w", err)
	}
	return &result, nil
}
