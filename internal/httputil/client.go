// Package httputil holds the JSON plumbing shared by the count server and
// its client.
package httputil

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// DefaultTimeout bounds a whole request made by NewClient's client.
const DefaultTimeout = 30 * time.Second

// HTTPClient is the part of *http.Client the count client needs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewClient returns an *http.Client with DefaultTimeout.
func NewClient() *http.Client {
	return &http.Client{Timeout: DefaultTimeout}
}

// StatusError is a non-200 reply. Message is the server's error field, or
// the raw body when the body was not an ErrorBody. Reason is the body's code
// field, if any.
type StatusError struct {
	Code    int
	Reason  string
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Code, e.Message)
}

// GetJSON fetches url and decodes a 200 reply into v.
func GetJSON(ctx context.Context, c HTTPClient, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return readStatusError(resp)
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func readStatusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var body ErrorBody
	if err := json.Unmarshal(raw, &body); err == nil && body.Error != "" {
		return &StatusError{Code: resp.StatusCode, Reason: body.Code, Message: body.Error}
	}
	return &StatusError{Code: resp.StatusCode, Message: string(bytes.TrimSpace(raw))}
}

type mockReply struct {
	status int
	body   string
	err    error
}

// MockHTTPClient replays queued replies in order and records each request.
type MockHTTPClient struct {
	mu       sync.Mutex
	requests []*http.Request
	replies  []mockReply
}

// NewMockHTTPClient returns a mock with nothing queued.
func NewMockHTTPClient() *MockHTTPClient {
	return &MockHTTPClient{}
}

// Respond queues a reply.
func (m *MockHTTPClient) Respond(status int, body string) *MockHTTPClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, mockReply{status: status, body: body})
	return m
}

// Fail queues a transport error.
func (m *MockHTTPClient) Fail(err error) *MockHTTPClient {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replies = append(m.replies, mockReply{err: err})
	return m
}

// Do records req and pops the next reply. An empty queue is an error.
func (m *MockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, req)
	if len(m.replies) == 0 {
		return nil, errors.New("mock: no reply queued")
	}
	r := m.replies[0]
	m.replies = m.replies[1:]
	if r.err != nil {
		return nil, r.err
	}
	return &http.Response{
		StatusCode: r.status,
		Body:       io.NopCloser(bytes.NewBufferString(r.body)),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}

// Requests returns the requests seen so far.
func (m *MockHTTPClient) Requests() []*http.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*http.Request(nil), m.requests...)
}
