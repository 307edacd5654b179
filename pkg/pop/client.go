// Package pop provides a client for the PageOptimizer Pro task API and the
// submit/poll machinery used to drive its asynchronous report steps.
package pop

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/prospect-audit/internal/resilience"
)

// DefaultBaseURL is the PageOptimizer Pro API root.
const DefaultBaseURL = "https://app.pageoptimizer.pro/api"

// Client defines the remote task API operations.
type Client interface {
	// Submit POSTs body to endpoint and returns the raw response body.
	Submit(ctx context.Context, endpoint string, body map[string]any) (json.RawMessage, error)
	// TaskResult fetches the current status document for a task.
	TaskResult(ctx context.Context, taskID string) (json.RawMessage, error)
}

// APIError is returned when the API responds with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pop: HTTP %d: %s", e.StatusCode, e.Body)
}

// Option configures the httpClient.
type Option func(*httpClient)

// WithBaseURL overrides the default base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets a custom *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit caps outbound requests per second. Zero disables throttling.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a new PageOptimizer Pro client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		http: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(2, 2),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Submit(ctx context.Context, endpoint string, body map[string]any) (json.RawMessage, error) {
	payload := make(map[string]any, len(body)+1)
	for k, v := range body {
		payload[k] = v
	}
	payload["apiKey"] = c.apiKey

	buf, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrap(err, "pop: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url(endpoint), bytes.NewReader(buf))
	if err != nil {
		return nil, eris.Wrap(err, "pop: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	raw, err := c.do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "pop: submit %s", endpoint)
	}
	return raw, nil
}

func (c *httpClient) TaskResult(ctx context.Context, taskID string) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url("task/"+url.PathEscape(taskID)+"/results/"), nil)
	if err != nil {
		return nil, eris.Wrap(err, "pop: create request")
	}

	raw, err := c.do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "pop: task result %s", taskID)
	}
	return raw, nil
}

func (c *httpClient) url(endpoint string) string {
	return c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
}

func (c *httpClient) do(req *http.Request) (json.RawMessage, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(req.Context()); err != nil {
			return nil, eris.Wrap(err, "rate limit wait")
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "execute request"), 0)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resilience.NewTransientError(eris.Wrap(err, "read response body"), resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(data)}
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(apiErr, resp.StatusCode)
		}
		return nil, apiErr
	}

	if !json.Valid(data) {
		return nil, resilience.NewTransientError(eris.New("decode response: invalid JSON"), resp.StatusCode)
	}
	return json.RawMessage(data), nil
}
