package pop

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/prospect-audit/internal/resilience"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient("test-key", WithBaseURL(srv.URL+"/"), WithRateLimit(0))
}

func TestSubmit_InjectsAPIKey(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/expose/get-terms/", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "test-key", body["apiKey"])
		assert.Equal(t, "plumber austin", body["keyword"])

		w.Write([]byte(`{"status":"PENDING","taskId":"t-1"}`))
	})

	raw, err := c.Submit(context.Background(), "/expose/get-terms/", map[string]any{"keyword": "plumber austin"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"PENDING","taskId":"t-1"}`, string(raw))
}

func TestTaskResult_Path(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/task/t-1/results/", r.URL.Path)
		w.Write([]byte(`{"status":"PROGRESS","value":30}`))
	})

	raw, err := c.TaskResult(context.Background(), "t-1")
	require.NoError(t, err)
	task := ParseTask("t-1", raw)
	assert.Equal(t, StatusProgress, task.Status)
	require.NotNil(t, task.Value)
	assert.InDelta(t, 30, *task.Value, 0.001)
}

func TestClient_HTTPErrors(t *testing.T) {
	tests := []struct {
		name          string
		status        int
		body          string
		wantTransient bool
	}{
		{"server error is transient", http.StatusBadGateway, "bad gateway", true},
		{"rate limited is transient", http.StatusTooManyRequests, "slow down", true},
		{"unauthorized is permanent", http.StatusUnauthorized, `{"error":"bad key"}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := c.TaskResult(context.Background(), "t-1")
			require.Error(t, err)
			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.StatusCode)
			assert.Equal(t, tt.wantTransient, resilience.IsTransient(err))
		})
	}
}

func TestClient_InvalidJSONIsTransient(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>gateway timeout</html>`))
	})

	_, err := c.TaskResult(context.Background(), "t-1")
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestParseTask_StatusVariants(t *testing.T) {
	tests := map[string]TaskStatus{
		`{"status":"SUCCESS"}`:  StatusSuccess,
		`{"status":"success"}`:  StatusSuccess,
		`{"status":"FAILURE"}`:  StatusFailure,
		`{"status":"PENDING"}`:  StatusProgress,
		`{"status":"PROGRESS"}`: StatusProgress,
		`{"status":"mystery"}`:  StatusUnknown,
		`{}`:                    StatusUnknown,
	}
	for raw, want := range tests {
		assert.Equal(t, want, ParseTask("t", json.RawMessage(raw)).Status, raw)
	}
}

func TestTask_HasMarker(t *testing.T) {
	assert.True(t, ParseTask("t", json.RawMessage(`{"reportId":"r1"}`)).HasMarker(DefaultMarkers))
	assert.True(t, ParseTask("t", json.RawMessage(`{"data":{"report":{"a":1}}}`)).HasMarker(DefaultMarkers))
	assert.False(t, ParseTask("t", json.RawMessage(`{"reportId":""}`)).HasMarker(DefaultMarkers))
	assert.False(t, ParseTask("t", json.RawMessage(`{"report":null}`)).HasMarker(DefaultMarkers))
	assert.False(t, ParseTask("t", json.RawMessage(`{"other":1}`)).HasMarker(DefaultMarkers))
}
