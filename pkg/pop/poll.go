package pop

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-audit/internal/resilience"
)

// Budget bounds a poll: at most MaxAttempts status fetches, Interval apart.
type Budget struct {
	MaxAttempts int
	Interval    time.Duration
}

// Elapsed is the wall time a fully exhausted budget represents.
func (b Budget) Elapsed() time.Duration {
	return time.Duration(b.MaxAttempts) * b.Interval
}

// PollOption configures polling behavior.
type PollOption func(*pollConfig)

type pollConfig struct {
	markers    []string
	onProgress func(*Task)
}

// WithMarkers overrides the payload keys that signal completion.
func WithMarkers(markers ...string) PollOption {
	return func(c *pollConfig) {
		if len(markers) > 0 {
			c.markers = markers
		}
	}
}

// WithProgress registers a callback invoked with every parsed status document.
func WithProgress(fn func(*Task)) PollOption {
	return func(c *pollConfig) {
		c.onProgress = fn
	}
}

// Poll fetches the status of taskID until it succeeds, fails, or the budget
// is exhausted. Transient fetch errors are logged and retried within the
// same budget; any other fetch error and an explicit failure are returned at
// once. Exhaustion yields *TimeoutError.
func Poll(ctx context.Context, client Client, taskID, step string, budget Budget, opts ...PollOption) (*Task, error) {
	if budget.MaxAttempts <= 0 {
		return nil, eris.Errorf("pop: %s: poll requires a positive attempt budget, got %d", step, budget.MaxAttempts)
	}
	cfg := pollConfig{markers: DefaultMarkers}
	for _, opt := range opts {
		opt(&cfg)
	}

	log := zap.L().With(zap.String("step", step), zap.String("task_id", taskID))

	var lastErr error
	for attempt := 1; attempt <= budget.MaxAttempts; attempt++ {
		raw, err := client.TaskResult(ctx, taskID)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, eris.Wrapf(ctx.Err(), "pop: %s: poll task %s cancelled", step, taskID)
		case err != nil && !resilience.IsTransient(err):
			log.Error("pop: status fetch failed", zap.Int("attempt", attempt), zap.Error(err))
			return nil, eris.Wrapf(err, "pop: %s: poll task %s", step, taskID)
		case err != nil:
			lastErr = err
			log.Warn("pop: status fetch failed, will retry",
				zap.Int("attempt", attempt),
				zap.Int("max_attempts", budget.MaxAttempts),
				zap.Error(err),
			)
		default:
			task := ParseTask(taskID, raw)
			if cfg.onProgress != nil {
				cfg.onProgress(task)
			}
			if done, failErr := interpret(task, step, cfg.markers); failErr != nil {
				log.Error("pop: task failed", zap.Int("attempt", attempt), zap.String("msg", task.Message))
				return nil, failErr
			} else if done {
				log.Info("pop: task complete", zap.Int("attempt", attempt), zap.String("status", string(task.Status)))
				return task, nil
			}
			log.Debug("pop: task in progress",
				zap.Int("attempt", attempt),
				zap.String("status", string(task.Status)),
				zap.Any("value", task.Value),
			)
		}

		if attempt == budget.MaxAttempts {
			break
		}

		timer := time.NewTimer(budget.Interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, eris.Wrapf(ctx.Err(), "pop: %s: poll task %s cancelled", step, taskID)
		case <-timer.C:
		}
	}

	log.Error("pop: poll budget exhausted",
		zap.Int("attempts", budget.MaxAttempts),
		zap.Duration("elapsed", budget.Elapsed()),
	)
	return nil, &TimeoutError{
		Step:     step,
		TaskID:   taskID,
		Attempts: budget.MaxAttempts,
		Elapsed:  budget.Elapsed(),
		LastErr:  lastErr,
	}
}

// interpret applies the completion rules in priority order. It returns
// done=true when the task should be handed back, or a terminal error.
func interpret(task *Task, step string, markers []string) (bool, error) {
	switch {
	case task.Status == StatusSuccess:
		return true, nil
	// The API sometimes reports 100% before flipping the status to success.
	case task.Complete() && task.HasMarker(markers):
		return true, nil
	case task.Status == StatusFailure:
		return false, &RemoteFailureError{Step: step, TaskID: task.ID, Message: task.Message}
	case task.Status == StatusUnknown && task.HasMarker(markers):
		return true, nil
	default:
		return false, nil
	}
}
