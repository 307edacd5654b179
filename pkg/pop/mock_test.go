package pop

import (
	"context"
	"encoding/json"
	"sync"
)

// scriptedClient replays canned task-status responses in order, repeating the
// last one once the script runs out.
type scriptedClient struct {
	mu        sync.Mutex
	submit    func(endpoint string, body map[string]any) (json.RawMessage, error)
	responses []scripted
	fetches   int
	submits   []string
}

type scripted struct {
	body string
	err  error
}

func (c *scriptedClient) Submit(_ context.Context, endpoint string, body map[string]any) (json.RawMessage, error) {
	c.mu.Lock()
	c.submits = append(c.submits, endpoint)
	c.mu.Unlock()
	return c.submit(endpoint, body)
}

func (c *scriptedClient) TaskResult(context.Context, string) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.fetches
	if i >= len(c.responses) {
		i = len(c.responses) - 1
	}
	c.fetches++
	r := c.responses[i]
	if r.err != nil {
		return nil, r.err
	}
	return json.RawMessage(r.body), nil
}

func (c *scriptedClient) Fetches() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fetches
}

func script(bodies ...string) *scriptedClient {
	c := &scriptedClient{}
	for _, b := range bodies {
		c.responses = append(c.responses, scripted{body: b})
	}
	return c
}
