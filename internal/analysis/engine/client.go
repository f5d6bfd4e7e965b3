// Package engine provides the HTTP client for the external analysis engine.
package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"portal_analysis_backend/internal/analysis/contract"
	"portal_analysis_backend/platform/config"
	"portal_analysis_backend/platform/logger"
)

const (
	apiVersion     = "v1"
	maxBodyBytes   = 4 << 20
	defaultBackoff = 250 * time.Millisecond
)

var (
	ErrNotConfigured = errors.New("analysis engine not configured")
	ErrMissingJobID  = errors.New("analysis engine response has no job id")
)

// StatusError is a non-retryable HTTP failure from the engine.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("analysis engine returned status %d", e.StatusCode)
}

// SubmitRequest describes a unit of work for the engine.
type SubmitRequest struct {
	TenantID    uuid.UUID `json:"tenant_id"`
	SubjectType string    `json:"subject_type"`
	SubjectID   uuid.UUID `json:"subject_id"`
	MediaURL    string    `json:"media_url,omitempty"`
	CallbackURL string    `json:"callback_url,omitempty"`
}

// Client is the HTTP client for the analysis engine.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
	polls      singleflight.Group
	log        *logger.Logger
}

// New creates an engine client. A non-positive RPS disables client-side
// rate limiting.
func New(cfg config.EngineConfig, log *logger.Logger) *Client {
	limit := rate.Inf
	burst := 1
	if rps := cfg.GetEngineRPS(); rps > 0 {
		limit = rate.Limit(rps)
		burst = max(1, int(rps))
	}
	timeout := cfg.GetEngineTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    cfg.GetEngineURL(),
		apiKey:     cfg.GetEngineAPIKey(),
		limiter:    rate.NewLimiter(limit, burst),
		maxRetries: max(0, cfg.GetEngineMaxRetries()),
		backoff:    defaultBackoff,
		log:        log,
	}
}

// Submit posts a job and returns the engine's job identifier.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (string, error) {
	if c == nil || c.baseURL == "" {
		return "", ErrNotConfigured
	}
	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal submit request: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, fmt.Sprintf("%s/%s/jobs", c.baseURL, apiVersion), body)
	if err != nil {
		return "", err
	}

	env := contract.ParseEnvelope(resp)
	if env.JobID == nil {
		return "", ErrMissingJobID
	}
	return *env.JobID, nil
}

// GetStatus fetches the current state of a job. The response has the same
// shape as a webhook delivery. Concurrent calls for one job share a request.
func (c *Client) GetStatus(ctx context.Context, externalJobID string) ([]byte, error) {
	if c == nil || c.baseURL == "" {
		return nil, ErrNotConfigured
	}
	reqURL := fmt.Sprintf("%s/%s/jobs/%s", c.baseURL, apiVersion, url.PathEscape(externalJobID))

	v, err, _ := c.polls.Do(externalJobID, func() (any, error) {
		return c.do(ctx, http.MethodGet, reqURL, nil)
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// do sends the request with bounded retries. Transport errors, 429 and 5xx
// are retried with quadratic backoff; other statuses fail immediately.
func (c *Client) do(ctx context.Context, method, reqURL string, body []byte) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			wait := c.backoff * time.Duration(attempt*attempt)
			c.log.Warn("analysis engine retry", "method", method, "url", reqURL, "attempt", attempt, "wait", wait, "error", lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(wait):
			}
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		data, retry, err := c.once(ctx, method, reqURL, body)
		if err == nil {
			return data, nil
		}
		if !retry {
			return nil, err
		}
		lastErr = err
	}
	c.log.Error("analysis engine request failed", "method", method, "url", reqURL, "error", lastErr)
	return nil, fmt.Errorf("analysis engine: giving up after %d attempts: %w", c.maxRetries+1, lastErr)
}

func (c *Client) once(ctx context.Context, method, reqURL string, body []byte) ([]byte, bool, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return nil, false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, ctx.Err() == nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, true, fmt.Errorf("read response: %w", err)
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return data, false, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, true, &StatusError{StatusCode: resp.StatusCode, Body: string(data)}
	default:
		return nil, false, &StatusError{StatusCode: resp.StatusCode, Body: string(data)}
	}
}
