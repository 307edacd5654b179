package pop

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospect-audit/internal/resilience"
)

var fast = Budget{MaxAttempts: 5, Interval: time.Millisecond}

func TestPoll_ReturnsOnFirstSuccess(t *testing.T) {
	c := script(
		`{"status":"PROGRESS","value":10}`,
		`{"status":"PROGRESS","value":60}`,
		`{"status":"SUCCESS","value":100,"reportId":"r1"}`,
		`{"status":"SUCCESS","value":100,"reportId":"r2"}`,
	)

	task, err := Poll(context.Background(), c, "t1", "create report", fast)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, task.Status)
	assert.JSONEq(t, `{"status":"SUCCESS","value":100,"reportId":"r1"}`, string(task.Payload))
	assert.Equal(t, 3, c.Fetches())
}

func TestPoll_HundredPercentWithMarkerBeforeSuccess(t *testing.T) {
	c := script(
		`{"status":"PROGRESS","value":50}`,
		`{"status":"PROGRESS","value":100,"report":{"wordCount":{"current":10}}}`,
		`{"status":"SUCCESS","value":100}`,
	)

	task, err := Poll(context.Background(), c, "t1", "create report", fast)
	require.NoError(t, err)
	assert.Equal(t, StatusProgress, task.Status)
	assert.Equal(t, 2, c.Fetches())
}

func TestPoll_HundredPercentWithoutMarkerKeepsPolling(t *testing.T) {
	c := script(
		`{"status":"PROGRESS","value":100}`,
		`{"status":"SUCCESS","value":100,"reportId":"r1"}`,
	)

	_, err := Poll(context.Background(), c, "t1", "create report", fast)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Fetches())
}

func TestPoll_FailureIsImmediate(t *testing.T) {
	c := script(
		`{"status":"FAILURE","msg":"invalid keyword"}`,
		`{"status":"SUCCESS"}`,
	)

	_, err := Poll(context.Background(), c, "t1", "get terms", fast)
	require.Error(t, err)

	var rf *RemoteFailureError
	require.ErrorAs(t, err, &rf)
	assert.Equal(t, "invalid keyword", rf.Message)
	assert.Equal(t, "get terms", rf.Step)
	assert.Equal(t, 1, c.Fetches())
	assert.True(t, IsTerminal(err))
}

func TestPoll_TimeoutAfterExactlyMaxAttempts(t *testing.T) {
	c := script(`{"status":"PROGRESS","value":5}`)
	budget := Budget{MaxAttempts: 4, Interval: 2 * time.Millisecond}

	_, err := Poll(context.Background(), c, "t1", "create report", budget)
	require.Error(t, err)

	var to *TimeoutError
	require.ErrorAs(t, err, &to)
	assert.Equal(t, 4, to.Attempts)
	assert.Equal(t, 8*time.Millisecond, to.Elapsed)
	assert.Equal(t, 4, c.Fetches())
}

func TestPoll_UnknownStatusWithMarkerReturns(t *testing.T) {
	c := script(`{"state":"done","data":{"reportId":"r9"}}`)

	task, err := Poll(context.Background(), c, "t1", "create report", fast)
	require.NoError(t, err)
	assert.Equal(t, StatusUnknown, task.Status)
	assert.Equal(t, 1, c.Fetches())
}

func TestPoll_UnknownStatusWithoutMarkerContinues(t *testing.T) {
	c := script(`{"status":"WEIRD"}`, `{"status":"SUCCESS"}`)

	_, err := Poll(context.Background(), c, "t1", "create report", fast)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Fetches())
}

func TestPoll_CustomMarkers(t *testing.T) {
	c := script(`{"status":"??","prepareId":"p1"}`)

	task, err := Poll(context.Background(), c, "t1", "get terms", fast, WithMarkers("prepareId"))
	require.NoError(t, err)
	assert.Equal(t, "t1", task.ID)
}

func TestPoll_TransientFetchErrorsRetried(t *testing.T) {
	c := &scriptedClient{responses: []scripted{
		{err: resilience.NewTransientError(errors.New("i/o timeout"), 0)},
		{err: errors.New("connection reset by peer")},
		{body: `{"status":"SUCCESS","reportId":"r1"}`},
	}}

	task, err := Poll(context.Background(), c, "t1", "create report", fast)
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, task.Status)
	assert.Equal(t, 3, c.Fetches())
}

func TestPoll_FetchErrorsCountAgainstBudget(t *testing.T) {
	c := &scriptedClient{responses: []scripted{{err: resilience.NewTransientError(errors.New("connection refused"), 0)}}}

	_, err := Poll(context.Background(), c, "t1", "create report", Budget{MaxAttempts: 3, Interval: time.Millisecond})
	var to *TimeoutError
	require.ErrorAs(t, err, &to)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, 3, c.Fetches())
	assert.False(t, resilience.IsTransient(err))
}

func TestPoll_PermanentFetchErrorIsImmediate(t *testing.T) {
	c := &scriptedClient{responses: []scripted{
		{err: &APIError{StatusCode: 401, Body: "invalid apiKey"}},
		{body: `{"status":"SUCCESS","reportId":"r1"}`},
	}}

	start := time.Now()
	_, err := Poll(context.Background(), c, "t1", "create report", Budget{MaxAttempts: 20, Interval: 10 * time.Millisecond})
	require.Error(t, err)
	assert.Equal(t, 1, c.Fetches())
	assert.Less(t, time.Since(start), 100*time.Millisecond)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 401, apiErr.StatusCode)
	var to *TimeoutError
	assert.False(t, errors.As(err, &to))
	assert.Contains(t, err.Error(), "poll task t1")
}

func TestPoll_ContextCancelled(t *testing.T) {
	c := script(`{"status":"PROGRESS"}`)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := Poll(ctx, c, "t1", "create report", Budget{MaxAttempts: 1000, Interval: 5 * time.Millisecond})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, c.Fetches(), 1000)
}

func TestPoll_RejectsNonPositiveBudget(t *testing.T) {
	c := script(`{"status":"SUCCESS"}`)
	_, err := Poll(context.Background(), c, "t1", "create report", Budget{MaxAttempts: 0, Interval: time.Millisecond})
	require.Error(t, err)
	assert.Equal(t, 0, c.Fetches())
}

func TestPoll_ProgressCallback(t *testing.T) {
	c := script(`{"status":"PROGRESS","value":40}`, `{"status":"SUCCESS","value":100}`)
	var values []float64

	_, err := Poll(context.Background(), c, "t1", "create report", fast, WithProgress(func(task *Task) {
		if task.Value != nil {
			values = append(values, *task.Value)
		}
	}))
	require.NoError(t, err)
	assert.Equal(t, []float64{40, 100}, values)
}
