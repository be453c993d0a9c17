package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ahmetcoskunkizilkaya/phish-review/internal/token"
)

// DefaultVerdictSuccessBody is the response the verdict API sends when it
// accepted a classification.
const DefaultVerdictSuccessBody = "Domain classified"

// VerdictSink records a reviewer's classification and returns the raw
// response body. Only one body value means success; see SinkError.
type VerdictSink interface {
	RecordVerdict(ctx context.Context, domain, user string, c token.Classification) (string, error)
}

// SinkError is a verdict that was not accepted. Body holds whatever the API
// answered, or the transport error text.
type SinkError struct {
	Body string
	Err  error
}

func (e *SinkError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("verdict not recorded: %v", e.Err)
	}
	return fmt.Sprintf("verdict not recorded: %s", e.Body)
}

func (e *SinkError) Unwrap() error { return e.Err }

// VerdictClient posts verdicts to the classification API.
type VerdictClient struct {
	client *http.Client
	url    string
	apiKey string
}

func NewVerdictClient(url, apiKey string, timeout time.Duration) *VerdictClient {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &VerdictClient{
		client: &http.Client{Timeout: timeout},
		url:    url,
		apiKey: apiKey,
	}
}

type verdictRequest struct {
	Domain         string `json:"domain"`
	Classification string `json:"classification"`
	User           string `json:"user"`
}

// RecordVerdict returns the trimmed response body. Non-2xx responses return
// the body together with an error.
func (c *VerdictClient) RecordVerdict(ctx context.Context, domain, user string, cl token.Classification) (string, error) {
	payload, err := json.Marshal(verdictRequest{
		Domain:         domain,
		Classification: string(cl),
		User:           user,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode verdict: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build verdict request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("verdict request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("failed to read verdict response: %w", err)
	}
	text := strings.TrimSpace(string(body))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return text, fmt.Errorf("verdict API returned status %d", resp.StatusCode)
	}
	return text, nil
}
