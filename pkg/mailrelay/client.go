// Package mailrelay provides a client for the outbound mail relay. Each send
// is a single synchronous POST; retries are left to the caller.
package mailrelay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Client sends one email through the relay.
type Client interface {
	Send(ctx context.Context, msg Message) (*Result, error)
}

// Message is one outbound email. At least one of Body or HTML is required.
type Message struct {
	To      string   `json:"to"`
	Subject string   `json:"subject"`
	Body    string   `json:"body,omitempty"`
	HTML    string   `json:"html,omitempty"`
	CC      []string `json:"cc,omitempty"`
	BCC     []string `json:"bcc,omitempty"`
}

// Result is the relay's acknowledgement.
type Result struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	MessageID string `json:"message_id,omitempty"`
}

// APIError is returned for non-2xx relay responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mailrelay: status %d: %s", e.StatusCode, e.Body)
}

// Validate checks the fields the relay requires.
func (m Message) Validate() error {
	if strings.TrimSpace(m.To) == "" {
		return eris.New("'to' field is required")
	}
	if strings.TrimSpace(m.Body) == "" && strings.TrimSpace(m.HTML) == "" {
		return eris.New("'body' or 'html' required")
	}
	return nil
}

// Recipients returns To, CC and BCC addresses in send order.
func (m Message) Recipients() []string {
	out := []string{strings.TrimSpace(m.To)}
	for _, list := range [][]string{m.CC, m.BCC} {
		for _, addr := range list {
			if a := strings.TrimSpace(addr); a != "" {
				out = append(out, a)
			}
		}
	}
	return out
}

// SplitAddresses parses a comma-separated address list.
func SplitAddresses(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if a := strings.TrimSpace(part); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// Option configures the relay client.
type Option func(*httpClient)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithFrom sets the sender address forwarded to the relay.
func WithFrom(from string) Option {
	return func(c *httpClient) {
		c.from = from
	}
}

type httpClient struct {
	baseURL string
	apiKey  string
	from    string
	http    *http.Client
}

// NewClient creates a relay client for baseURL.
func NewClient(baseURL, apiKey string, opts ...Option) Client {
	c := &httpClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 45 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Send(ctx context.Context, msg Message) (*Result, error) {
	if err := msg.Validate(); err != nil {
		return nil, eris.Wrap(err, "mailrelay: invalid message")
	}

	// recipients is the SMTP envelope list: To, then CC, then BCC.
	payload := struct {
		Message
		From       string   `json:"from,omitempty"`
		Recipients []string `json:"recipients"`
	}{Message: msg, From: c.from, Recipients: msg.Recipients()}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, eris.Wrap(err, "mailrelay: marshal message")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/send", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "mailrelay: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "mailrelay: send")
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "mailrelay: read response")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var result Result
	if len(respBody) > 0 {
		if err := json.Unmarshal(respBody, &result); err != nil {
			return nil, eris.Wrap(err, "mailrelay: decode response")
		}
	} else {
		result.Success = true
	}
	if result.Message == "" {
		result.Message = "Email sent to " + msg.To
	}
	return &result, nil
}
