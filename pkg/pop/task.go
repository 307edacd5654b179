package pop

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// TaskStatus is the normalized state of a remote task.
type TaskStatus string

const (
	StatusProgress TaskStatus = "progress"
	StatusSuccess  TaskStatus = "success"
	StatusFailure  TaskStatus = "failure"
	StatusUnknown  TaskStatus = "unknown"
)

// DefaultMarkers are payload keys that show a report is ready even when the
// status field says otherwise.
var DefaultMarkers = []string{"reportId", "report"}

// Task is a snapshot of one asynchronous remote operation.
type Task struct {
	ID      string
	Status  TaskStatus
	Value   *float64 // completion percentage, 0-100
	Message string
	Payload json.RawMessage
}

// ParseTask interprets a raw status document.
func ParseTask(id string, raw json.RawMessage) *Task {
	doc := gjson.ParseBytes(raw)
	t := &Task{
		ID:      id,
		Status:  parseStatus(doc.Get("status").String()),
		Message: firstString(doc, "msg", "message", "error"),
		Payload: raw,
	}
	if v := doc.Get("value"); v.Exists() && v.Type != gjson.Null {
		f := v.Float()
		t.Value = &f
	}
	return t
}

// HasMarker reports whether the payload carries any of the given keys with a
// non-empty value, either at the top level or under a "data" envelope.
func (t *Task) HasMarker(markers []string) bool {
	return hasAnyKey(t.Payload, markers)
}

// Complete reports whether the task value reached 100%.
func (t *Task) Complete() bool {
	return t.Value != nil && *t.Value >= 100
}

func parseStatus(s string) TaskStatus {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SUCCESS", "SUCCEEDED", "COMPLETED":
		return StatusSuccess
	case "FAILURE", "FAILED", "ERROR", "REVOKED":
		return StatusFailure
	case "PROGRESS", "PENDING", "STARTED", "RECEIVED", "RETRY", "QUEUED":
		return StatusProgress
	default:
		return StatusUnknown
	}
}

func hasAnyKey(raw json.RawMessage, keys []string) bool {
	doc := gjson.ParseBytes(raw)
	scopes := []gjson.Result{doc}
	if data := doc.Get("data"); data.IsObject() {
		scopes = append(scopes, data)
	}
	for _, scope := range scopes {
		for _, k := range keys {
			if present(scope.Get(k)) {
				return true
			}
		}
	}
	return false
}

func present(r gjson.Result) bool {
	switch {
	case !r.Exists(), r.Type == gjson.Null:
		return false
	case r.Type == gjson.String:
		return r.Str != ""
	default:
		return true
	}
}

func firstString(doc gjson.Result, keys ...string) string {
	for _, k := range keys {
		if r := doc.Get(k); r.Type == gjson.String && r.Str != "" {
			return r.Str
		}
	}
	return ""
}
