// Package monitoring watches audit job health and raises webhook alerts.
package monitoring

import (
	"time"

	"github.com/sells-group/prospect-audit/internal/model"
	"github.com/sells-group/prospect-audit/internal/resilience"
)

// MetricsSnapshot holds a point-in-time view of audit health.
type MetricsSnapshot struct {
	// Jobs finished or started within the lookback window.
	JobsTotal    int     `json:"jobs_total"`
	JobsRunning  int     `json:"jobs_running"`
	JobsComplete int     `json:"jobs_complete"`
	JobsFailed   int     `json:"jobs_failed"`
	FailRate     float64 `json:"fail_rate"`
	Unpersisted  int     `json:"unpersisted"`
	HotLeads     int     `json:"hot_leads"`
	AvgPriority  float64 `json:"avg_priority"`

	// Remote API circuit state; empty when no breaker is wired.
	BreakerState string `json:"breaker_state,omitempty"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// JobSource exposes the tracked jobs. *jobs.Registry satisfies it.
type JobSource interface {
	Snapshot() []model.Job
}

// BreakerSource reports circuit state. *resilience.CircuitBreaker satisfies it.
type BreakerSource interface {
	State() resilience.CircuitState
}

// Collector gathers metrics from the job registry.
type Collector struct {
	jobs    JobSource
	breaker BreakerSource
	nowFunc func() time.Time
}

// NewCollector creates a metrics collector. breaker may be nil.
func NewCollector(jobs JobSource, breaker BreakerSource) *Collector {
	return &Collector{jobs: jobs, breaker: breaker, nowFunc: time.Now}
}

// Collect summarizes jobs started within the lookback window.
func (c *Collector) Collect(lookbackHours int) *MetricsSnapshot {
	now := c.nowFunc().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	var prioritySum int
	for _, job := range c.jobs.Snapshot() {
		if lookbackHours > 0 && job.StartedAt.Before(cutoff) {
			continue
		}
		snap.JobsTotal++
		switch job.Status {
		case model.JobStatusRunning:
			snap.JobsRunning++
		case model.JobStatusError:
			snap.JobsFailed++
		case model.JobStatusComplete:
			snap.JobsComplete++
			if job.Result == nil {
				continue
			}
			if !job.Result.Persisted {
				snap.Unpersisted++
			}
			if job.Result.Score.Tier == model.TierHot {
				snap.HotLeads++
			}
			prioritySum += job.Result.Score.PriorityScore
		}
	}

	if finished := snap.JobsComplete + snap.JobsFailed; finished > 0 {
		snap.FailRate = float64(snap.JobsFailed) / float64(finished)
	}
	if snap.JobsComplete > 0 {
		snap.AvgPriority = float64(prioritySum) / float64(snap.JobsComplete)
	}
	if c.breaker != nil {
		snap.BreakerState = c.breaker.State().String()
	}
	return snap
}
