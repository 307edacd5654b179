package pop

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-audit/internal/resilience"
)

const defaultSubmitTimeout = 30 * time.Second

// Step describes one named remote operation.
type Step struct {
	Name     string
	Endpoint string
	Budget   Budget
	// Expect lists keys whose presence in a submit response means the API
	// answered synchronously.
	Expect []string
	// Markers override DefaultMarkers while polling.
	Markers []string
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithSubmitTimeout bounds the initial POST, independent of polling.
func WithSubmitTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		if d > 0 {
			e.submitTimeout = d
		}
	}
}

// WithBreaker routes submits through a circuit breaker.
func WithBreaker(cb *resilience.CircuitBreaker) ExecutorOption {
	return func(e *Executor) {
		e.breaker = cb
	}
}

// Executor submits steps and resolves them to their final payload.
type Executor struct {
	client        Client
	submitTimeout time.Duration
	breaker       *resilience.CircuitBreaker
}

// NewExecutor creates an Executor for client.
func NewExecutor(client Client, opts ...ExecutorOption) *Executor {
	e := &Executor{
		client:        client,
		submitTimeout: defaultSubmitTimeout,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute submits body for step and returns the step's result payload,
// polling when the API answers with a task id.
func (e *Executor) Execute(ctx context.Context, step Step, body map[string]any, opts ...PollOption) (json.RawMessage, error) {
	log := zap.L().With(zap.String("step", step.Name))

	resp, err := e.submit(ctx, step, body)
	if err != nil {
		return nil, eris.Wrapf(err, "pop: %s: submit", step.Name)
	}

	doc := gjson.ParseBytes(resp)
	if parseStatus(doc.Get("status").String()) == StatusFailure {
		return nil, &RemoteFailureError{Step: step.Name, Message: firstString(doc, "msg", "message", "error")}
	}

	if taskID := firstString(doc, "taskId", "task_id"); taskID != "" {
		log.Info("pop: step submitted, polling", zap.String("task_id", taskID))
		if len(step.Markers) > 0 {
			opts = append([]PollOption{WithMarkers(step.Markers...)}, opts...)
		}
		task, err := Poll(ctx, e.client, taskID, step.Name, step.Budget, opts...)
		if err != nil {
			return nil, err
		}
		return task.Payload, nil
	}

	if hasAnyKey(resp, step.Expect) {
		log.Info("pop: step answered synchronously")
		return resp, nil
	}

	var keys []string
	doc.ForEach(func(k, _ gjson.Result) bool {
		keys = append(keys, k.String())
		return true
	})
	return nil, &UnexpectedResponseError{Step: step.Name, Keys: keys}
}

func (e *Executor) submit(ctx context.Context, step Step, body map[string]any) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, e.submitTimeout)
	defer cancel()

	if e.breaker == nil {
		return e.client.Submit(ctx, step.Endpoint, body)
	}
	var resp json.RawMessage
	err := e.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		resp, err = e.client.Submit(ctx, step.Endpoint, body)
		return err
	})
	if errors.Is(err, resilience.ErrCircuitOpen) {
		zap.L().Warn("pop: circuit open, submit rejected", zap.String("step", step.Name))
	}
	return resp, err
}
