package model

import "time"

// JobStatus represents the lifecycle state of an audit job.
type JobStatus string

const (
	JobStatusRunning  JobStatus = "running"
	JobStatusComplete JobStatus = "complete"
	JobStatusError    JobStatus = "error"
)

// Terminal reports whether no further transitions are allowed.
func (s JobStatus) Terminal() bool {
	return s == JobStatusComplete || s == JobStatusError
}

// Job tracks one asynchronous audit. Result is set only when complete and
// Error only when errored.
type Job struct {
	ID         string       `json:"id"`
	Status     JobStatus    `json:"status"`
	SubjectID  string       `json:"subject_id"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt *time.Time   `json:"finished_at,omitempty"`
	Progress   string       `json:"progress,omitempty"`
	Result     *AuditResult `json:"result,omitempty"`
	Error      string       `json:"error,omitempty"`
}

// Elapsed returns how long the job has been running (or ran) as of now.
func (j Job) Elapsed(now time.Time) time.Duration {
	if j.FinishedAt != nil {
		return j.FinishedAt.Sub(j.StartedAt)
	}
	return now.Sub(j.StartedAt)
}
