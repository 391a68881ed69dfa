// Package retryhttp wraps outbound GETs with retry on transient failures:
// HTTP 429, HTTP 5xx and network-level errors. Any other status is surfaced
// immediately.
package retryhttp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const maxBodyBytes = 4 << 20

// StatusError is a non-retryable upstream status (4xx other than 429).
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d for %s body=%q", e.StatusCode, e.URL, e.Body)
}

// ExhaustedError reports that every attempt failed with a transient error.
type ExhaustedError struct {
	URL      string
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("failed to fetch %s after %d attempts: %v", e.URL, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// IsExhausted reports whether err is a retry-exhaustion failure.
func IsExhausted(err error) bool {
	var ex *ExhaustedError
	return errors.As(err, &ex)
}

type Client struct {
	HTTP        *http.Client
	Log         *zap.Logger
	MaxAttempts int
	BaseDelay   time.Duration
	MaxJitter   time.Duration // additive uniform jitter, default 1s
}

func New(log *zap.Logger, timeout time.Duration, maxAttempts int, baseDelay time.Duration) *Client {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	return &Client{
		HTTP:        &http.Client{Timeout: timeout},
		Log:         log,
		MaxAttempts: maxAttempts,
		BaseDelay:   baseDelay,
		MaxJitter:   time.Second,
	}
}

// Get fetches rawURL and returns the response body. Transient failures are
// retried with exponential backoff plus additive jitter; the delay before
// attempt n (n >= 2) is BaseDelay * 2^(n-2) + uniform(0, MaxJitter).
func (c *Client) Get(ctx context.Context, rawURL string, header http.Header) ([]byte, error) {
	var lastErr error

	for attempt := 1; attempt <= c.MaxAttempts; attempt++ {
		if attempt > 1 {
			delay := c.BaseDelay * (1 << uint(attempt-2))
			if c.MaxJitter > 0 {
				delay += time.Duration(rand.Int63n(int64(c.MaxJitter)))
			}
			if c.Log != nil {
				c.Log.Warn("retrying fetch after backoff",
					zap.String("url", rawURL),
					zap.Int("attempt", attempt),
					zap.Duration("delay", delay))
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		body, retryable, err := c.do(ctx, rawURL, header)
		if err == nil {
			return body, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}

	return nil, &ExhaustedError{URL: rawURL, Attempts: c.MaxAttempts, Last: lastErr}
}

func (c *Client) do(ctx context.Context, rawURL string, header http.Header) (body []byte, retryable bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, false, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "shiki-proxy/1.0")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}

	resp, err := c.HTTP.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		return nil, true, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, true, fmt.Errorf("read %s: %w", rawURL, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return b, false, nil
	case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
		return nil, true, fmt.Errorf("upstream status %d for %s", resp.StatusCode, rawURL)
	default:
		return nil, false, &StatusError{URL: rawURL, StatusCode: resp.StatusCode, Body: excerpt(b)}
	}
}

func excerpt(b []byte) string {
	if len(b) > 200 {
		b = b[:200]
	}
	return string(b)
}
