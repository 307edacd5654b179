// Package jobs tracks asynchronous audit jobs and runs them on a bounded
// worker pool.
package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-audit/internal/model"
)

var (
	// ErrNotFound is returned for unknown job ids.
	ErrNotFound = eris.New("job not found")
	// ErrNotRunning is returned when a transition targets a terminal job.
	ErrNotRunning = eris.New("job is not running")
)

// Registry is a concurrent map of job id to job state. Jobs are stored by
// value and replaced whole on every write, so a reader always sees a
// consistent snapshot.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]model.Job

	nowFunc func() time.Time
	idFunc  func() string
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		jobs:    make(map[string]model.Job),
		nowFunc: time.Now,
		idFunc:  func() string { return uuid.New().String() },
	}
}

// Create inserts a running job for subjectID and returns its snapshot.
func (r *Registry) Create(subjectID string) model.Job {
	job := model.Job{
		ID:        r.idFunc(),
		Status:    model.JobStatusRunning,
		SubjectID: subjectID,
		StartedAt: r.nowFunc().UTC(),
		Progress:  "Queued",
	}

	r.mu.Lock()
	r.jobs[job.ID] = job
	r.mu.Unlock()
	return job
}

// Get returns a snapshot of the job.
func (r *Registry) Get(id string) (model.Job, error) {
	r.mu.RLock()
	job, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return model.Job{}, eris.Wrapf(ErrNotFound, "job %s", id)
	}
	return job, nil
}

// UpdateProgress overwrites the progress text of a running job.
func (r *Registry) UpdateProgress(id, progress string) error {
	return r.update(id, func(j *model.Job) {
		j.Progress = progress
	})
}

// Complete moves a running job to complete with result.
func (r *Registry) Complete(id string, result *model.AuditResult) error {
	if result == nil {
		return eris.Errorf("job %s: complete requires a result", id)
	}
	return r.update(id, func(j *model.Job) {
		finished := r.nowFunc().UTC()
		j.Status = model.JobStatusComplete
		j.Result = result
		j.Progress = "Complete"
		j.FinishedAt = &finished
	})
}

// Fail moves a running job to error with msg.
func (r *Registry) Fail(id, msg string) error {
	return r.update(id, func(j *model.Job) {
		finished := r.nowFunc().UTC()
		j.Status = model.JobStatusError
		j.Error = msg
		j.Progress = "Failed"
		j.FinishedAt = &finished
	})
}

func (r *Registry) update(id string, mutate func(*model.Job)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return eris.Wrapf(ErrNotFound, "job %s", id)
	}
	if job.Status != model.JobStatusRunning {
		return eris.Wrapf(ErrNotRunning, "job %s is %s", id, job.Status)
	}
	mutate(&job)
	r.jobs[id] = job
	return nil
}

// Snapshot returns a copy of every tracked job in no particular order.
func (r *Registry) Snapshot() []model.Job {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		out = append(out, job)
	}
	return out
}

// Len returns the number of tracked jobs.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}

// Sweep removes terminal jobs that finished more than ttl ago. Running jobs
// are never removed.
func (r *Registry) Sweep(ttl time.Duration) int {
	cutoff := r.nowFunc().Add(-ttl)

	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, job := range r.jobs {
		if job.Status.Terminal() && job.FinishedAt != nil && job.FinishedAt.Before(cutoff) {
			delete(r.jobs, id)
			removed++
		}
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done. A non-positive
// interval disables sweeping.
func (r *Registry) RunSweeper(ctx context.Context, interval, ttl time.Duration) {
	if interval <= 0 {
		<-ctx.Done()
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Sweep(ttl); n > 0 {
				zap.L().Info("jobs: swept finished jobs",
					zap.Int("removed", n),
					zap.Int("remaining", r.Len()),
				)
			}
		}
	}
}
