package httpx

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"
)

// Mock HTTP RoundTripper for testing
type mockRoundTripper struct {
	responses []*http.Response
	errors    []error
	index     int
	mux       sync.Mutex
}

func (m *mockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	m.mux.Lock()
	defer m.mux.Unlock()

	if m.index >= len(m.responses) {
		return nil, errors.New("no more responses")
	}

	resp := m.responses[m.index]
	err := m.errors[m.index]
	m.index++

	if resp != nil && resp.Body != nil {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		resp.Body = io.NopCloser(bytes.NewBuffer(body))
	}

	return resp, err
}

func (m *mockRoundTripper) calls() int {
	m.mux.Lock()
	defer m.mux.Unlock()
	return m.index
}

func newMockClient(rt *mockRoundTripper) *http.Client {
	for len(rt.errors) < len(rt.responses) {
		rt.errors = append(rt.errors, nil)
	}
	return &http.Client{Transport: rt}
}

func newMockResponse(statusCode int, body string) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
		Header:     http.Header{},
	}
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func buildGet(ctx context.Context) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, http.MethodGet, "https://example.com", nil)
}

func fastRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 5 * time.Millisecond}
}

func TestDoWithRetrySuccess(t *testing.T) {
	rt := &mockRoundTripper{responses: []*http.Response{newMockResponse(200, `{"ok":true}`)}}
	resp, body, err := DoWithRetry(context.Background(), newMockClient(rt), buildGet, fastRetry())

	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if resp.StatusCode != 200 {
		t.Errorf("Expected status code 200, got %d", resp.StatusCode)
	}
	if string(body) != `{"ok":true}` {
		t.Errorf("Expected body %q, got %q", `{"ok":true}`, string(body))
	}
}

func TestDoWithRetryRetriesTimeouts(t *testing.T) {
	rt := &mockRoundTripper{
		responses: []*http.Response{nil, nil, newMockResponse(200, "done")},
		errors:    []error{timeoutErr{}, timeoutErr{}, nil},
	}
	_, body, err := DoWithRetry(context.Background(), newMockClient(rt), buildGet, fastRetry())

	if err != nil {
		t.Fatalf("Expected no error after retries, got %v", err)
	}
	if string(body) != "done" {
		t.Errorf("Expected body %q, got %q", "done", string(body))
	}
	if rt.calls() != 3 {
		t.Errorf("Expected 3 attempts, got %d", rt.calls())
	}
}

func TestDoWithRetryGivesUpAfterMaxAttempts(t *testing.T) {
	rt := &mockRoundTripper{
		responses: []*http.Response{nil, nil, nil, nil},
		errors:    []error{timeoutErr{}, timeoutErr{}, timeoutErr{}, timeoutErr{}},
	}
	_, _, err := DoWithRetry(context.Background(), newMockClient(rt), buildGet, fastRetry())

	if err == nil {
		t.Fatal("Expected an error after exhausting attempts")
	}
	if rt.calls() != 3 {
		t.Errorf("Expected exactly 3 attempts, got %d", rt.calls())
	}
}

func TestDoWithRetryDoesNotRetryHTTPErrors(t *testing.T) {
	rt := &mockRoundTripper{responses: []*http.Response{
		newMockResponse(500, `{"message":"boom"}`),
		newMockResponse(200, "never reached"),
	}}
	_, body, err := DoWithRetry(context.Background(), newMockClient(rt), buildGet, fastRetry())

	var herr *HTTPError
	if !errors.As(err, &herr) {
		t.Fatalf("Expected *HTTPError, got %v", err)
	}
	if herr.StatusCode != 500 {
		t.Errorf("Expected status 500, got %d", herr.StatusCode)
	}
	if string(body) != `{"message":"boom"}` {
		t.Errorf("Expected error body to be returned, got %q", string(body))
	}
	if rt.calls() != 1 {
		t.Errorf("Expected a single attempt for non-2xx, got %d", rt.calls())
	}
}

func TestDoWithRetryDoesNotRetryPlainNetworkErrors(t *testing.T) {
	rt := &mockRoundTripper{
		responses: []*http.Response{nil, newMockResponse(200, "unused")},
		errors:    []error{errors.New("connection refused"), nil},
	}
	_, _, err := DoWithRetry(context.Background(), newMockClient(rt), buildGet, fastRetry())

	if err == nil {
		t.Fatal("Expected error")
	}
	if rt.calls() != 1 {
		t.Errorf("Expected a single attempt for non-timeout errors, got %d", rt.calls())
	}
}

func TestDoJSON(t *testing.T) {
	rt := &mockRoundTripper{responses: []*http.Response{newMockResponse(200, `{"name":"alpha"}`)}}

	var out struct {
		Name string `json:"name"`
	}
	if err := DoJSON(context.Background(), newMockClient(rt), buildGet, &out, fastRetry()); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if out.Name != "alpha" {
		t.Errorf("Expected name %q, got %q", "alpha", out.Name)
	}
}

func TestDoJSONParseError(t *testing.T) {
	rt := &mockRoundTripper{responses: []*http.Response{newMockResponse(200, "not-json")}}

	var out map[string]any
	if err := DoJSON(context.Background(), newMockClient(rt), buildGet, &out, fastRetry()); err == nil {
		t.Fatal("Expected a parse error")
	}
}
