// Package httpx wraps outbound HTTP calls with the retry policy both
// external systems are spoken to with: transport timeouts are retried up
// to a small fixed attempt count, everything else surfaces immediately.
// Non-2xx responses are never retried; they come back as *HTTPError so
// callers can inspect status and body.
package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// HTTPError carries status/body for non-2xx responses.
type HTTPError struct {
	Method     string
	URL        string
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("http error: %s %s status=%d body=%s", e.Method, e.URL, e.StatusCode, snippet(e.Body, 900))
}

func snippet(b []byte, max int) string {
	s := strings.TrimSpace(string(b))
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}

// RetryConfig controls timeout-retry behavior.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts: 3,
		BaseDelay:   700 * time.Millisecond,
		MaxDelay:    10 * time.Second,
	}
}

// DoWithRetry executes a request (built by buildReq) retrying transport
// timeouts up to cfg.MaxAttempts. It always reads the full body (even on
// error) so the underlying TCP connection can be reused by http.Transport.
func DoWithRetry(
	ctx context.Context,
	client *http.Client,
	buildReq func(context.Context) (*http.Request, error),
	cfg RetryConfig,
) (*http.Response, []byte, error) {
	if cfg.MaxAttempts <= 0 {
		cfg = DefaultRetryConfig()
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 700 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 10 * time.Second
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		req, err := buildReq(ctx)
		if err != nil {
			return nil, nil, err
		}

		resp, err := client.Do(req)
		if err != nil {
			if isTimeout(err) {
				lastErr = err
				if attempt < cfg.MaxAttempts {
					if err := sleepBackoff(ctx, attempt, cfg.BaseDelay, cfg.MaxDelay); err != nil {
						return nil, nil, err
					}
					continue
				}
			}
			return nil, nil, err
		}

		body, readErr := readAndClose(resp.Body)
		if readErr != nil {
			if isTimeout(readErr) {
				lastErr = readErr
				if attempt < cfg.MaxAttempts {
					if err := sleepBackoff(ctx, attempt, cfg.BaseDelay, cfg.MaxDelay); err != nil {
						return nil, nil, err
					}
					continue
				}
			}
			return resp, body, readErr
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return resp, body, nil
		}

		return resp, body, &HTTPError{
			Method:     req.Method,
			URL:        req.URL.String(),
			StatusCode: resp.StatusCode,
			Header:     resp.Header.Clone(),
			Body:       body,
		}
	}

	if lastErr != nil {
		return nil, nil, lastErr
	}
	return nil, nil, errors.New("httpx: request failed")
}

func readAndClose(rc io.ReadCloser) ([]byte, error) {
	defer rc.Close()
	return io.ReadAll(rc)
}

func sleepBackoff(ctx context.Context, attempt int, base, max time.Duration) error {
	sleep := base * time.Duration(1<<(attempt-1))
	if sleep > max {
		sleep = max
	}

	t := time.NewTimer(sleep)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var nerr net.Error
	if errors.As(err, &nerr) {
		return nerr.Timeout()
	}
	return false
}

// DoJSON is a convenience wrapper over DoWithRetry that unmarshals JSON.
func DoJSON(
	ctx context.Context,
	client *http.Client,
	buildReq func(context.Context) (*http.Request, error),
	out any,
	cfg RetryConfig,
) error {
	_, body, err := DoWithRetry(ctx, client, buildReq, cfg)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("json parse error: %w body=%s", err, snippet(body, 900))
	}
	return nil
}
