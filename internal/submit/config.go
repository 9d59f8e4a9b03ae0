package submit

import (
	"errors"
	"net/url"
	"time"
)

// ErrNotConfigured is returned when a submission lacks its host, token or routing.
var ErrNotConfigured = errors.New("submission target not configured")

// Config names the course-management host and where results go on it.
type Config struct {
	BaseURL      string            // Host API root, e.g. https://courses.example.edu/api
	Token        string            // Sent as a bearer token
	CourseID     string            // Course the assignment belongs to
	AssignmentID string            // Assignment receiving the results
	Headers      map[string]string // Extra request headers
	Timeout      time.Duration     // Overall timeout for all attempts (default: 30s)
}

// Validate reports which required fields are missing.
func (c *Config) Validate() error {
	var errs []error
	if c.BaseURL == "" {
		errs = append(errs, errors.New("missing host URL"))
	}
	if c.Token == "" {
		errs = append(errs, errors.New("missing token"))
	}
	if c.CourseID == "" {
		errs = append(errs, errors.New("missing course_id"))
	}
	if c.AssignmentID == "" {
		errs = append(errs, errors.New("missing assignment_id"))
	}
	if len(errs) > 0 {
		return errors.Join(append([]error{ErrNotConfigured}, errs...)...)
	}
	return nil
}

// Endpoint is the URL results are posted to:
// {base}/courses/{course_id}/assignments/{assignment_id}/results.
func (c *Config) Endpoint() (string, error) {
	return url.JoinPath(c.BaseURL, "courses", c.CourseID, "assignments", c.AssignmentID, "results")
}

// RetryConfig holds retry configuration
type RetryConfig struct {
	MaxRetries   int           // Maximum retry attempts (default: 3)
	InitialDelay time.Duration // Initial delay between retries (default: 1s)
	MaxDelay     time.Duration // Maximum delay (default: 30s)
	Multiplier   float64       // Backoff multiplier (default: 2.0)
}

// DefaultRetryConfig returns default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxRetries:   3,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
	}
}
