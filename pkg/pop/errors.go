package pop

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// RemoteFailureError is returned when the API explicitly reports that a step
// failed. It is terminal and never retried.
type RemoteFailureError struct {
	Step    string
	TaskID  string
	Message string
}

func (e *RemoteFailureError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "remote reported failure"
	}
	if e.TaskID != "" {
		return fmt.Sprintf("pop: %s failed (task %s): %s", e.Step, e.TaskID, msg)
	}
	return fmt.Sprintf("pop: %s failed: %s", e.Step, msg)
}

// TimeoutError is returned when a poll exhausts its attempt budget.
type TimeoutError struct {
	Step     string
	TaskID   string
	Attempts int
	Elapsed  time.Duration
	LastErr  error
}

func (e *TimeoutError) Error() string {
	s := fmt.Sprintf("pop: %s timed out after %s (%d attempts, task %s)", e.Step, e.Elapsed, e.Attempts, e.TaskID)
	if e.LastErr != nil {
		s += ": last error: " + e.LastErr.Error()
	}
	return s
}

// UnexpectedResponseError is returned when a submit response carries
// neither a failure, a task id, nor the data the step expects.
type UnexpectedResponseError struct {
	Step string
	Keys []string
}

func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf("pop: %s: unrecognized response shape (keys: [%s])", e.Step, strings.Join(e.Keys, ", "))
}

// IsTerminal reports whether err ends a step outright, as opposed to a
// transport error that a poll may retry.
func IsTerminal(err error) bool {
	var rf *RemoteFailureError
	var to *TimeoutError
	var ur *UnexpectedResponseError
	return errors.As(err, &rf) || errors.As(err, &to) || errors.As(err, &ur)
}
