// Package submit posts grading reports to a course-management host.
package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/zinc-sig/otterbox/internal/logging"
	"github.com/zinc-sig/otterbox/internal/report"
)

// Submission is the request body.
type Submission struct {
	RunID        string         `json:"run_id"`
	CourseID     string         `json:"course_id"`
	AssignmentID string         `json:"assignment_id"`
	Results      *report.Report `json:"results"`
}

// Client posts submissions with retries.
type Client struct {
	httpClient  *http.Client
	config      *Config
	retryConfig *RetryConfig
	logger      *logging.Logger
}

// NewClient creates a client. A nil retryConfig means DefaultRetryConfig and
// a nil logger discards.
func NewClient(config *Config, retryConfig *RetryConfig, logger *logging.Logger) *Client {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if retryConfig == nil {
		retryConfig = DefaultRetryConfig()
	}
	if logger == nil {
		logger = logging.Nop()
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second, // per request
		},
		config:      config,
		retryConfig: retryConfig,
		logger:      logger.With("component", "submit"),
	}
}

// Send posts the report for runID. Statuses 408, 429, 500, 502, 503 and 504
// are retried with exponential backoff; any other failure status ends the
// attempt at once.
func (c *Client) Send(ctx context.Context, runID string, r *report.Report) error {
	if err := c.config.Validate(); err != nil {
		return err
	}
	endpoint, err := c.config.Endpoint()
	if err != nil {
		return fmt.Errorf("invalid host URL: %w", err)
	}

	payload, err := json.Marshal(&Submission{
		RunID:        runID,
		CourseID:     c.config.CourseID,
		AssignmentID: c.config.AssignmentID,
		Results:      r,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal submission: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.Timeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt <= c.retryConfig.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := calculateBackoff(attempt, c.retryConfig)
			c.logger.Debug("retrying submission", "attempt", attempt, "max_retries", c.retryConfig.MaxRetries, "delay", delay)

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return fmt.Errorf("submission timeout after %d attempts: %w", attempt, ctx.Err())
			}
		}

		statusCode, body, err := c.post(ctx, endpoint, payload)
		if err == nil && statusCode >= 200 && statusCode < 300 {
			c.logger.Info("submitted results", "endpoint", endpoint, "status", statusCode)
			return nil
		}

		if err != nil {
			lastErr = fmt.Errorf("attempt %d failed: %w", attempt+1, err)
		} else {
			lastErr = fmt.Errorf("attempt %d failed with status %d%s", attempt+1, statusCode, excerpt(body))
		}

		if statusCode > 0 && !isRetryableStatus(statusCode) {
			c.logger.Warn("non-retryable status, giving up", "status", statusCode)
			return lastErr
		}
	}

	return fmt.Errorf("submission failed after %d attempts: %w", c.retryConfig.MaxRetries+1, lastErr)
}

func (c *Client) post(ctx context.Context, endpoint string, payload []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, err
	}

	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	// Drain the rest so the connection can be reused.
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, body, nil
}

func excerpt(body []byte) string {
	s := strings.TrimSpace(string(body))
	if s == "" {
		return ""
	}
	return ": " + s
}
