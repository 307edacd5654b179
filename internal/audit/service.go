package audit

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-audit/internal/jobs"
	"github.com/sells-group/prospect-audit/internal/model"
)

// Runner executes a full audit. *Pipeline satisfies it.
type Runner interface {
	Run(ctx context.Context, businessID string, progress ProgressFunc) (*model.AuditResult, error)
}

// Service starts audits in the background and reports their state.
type Service struct {
	store    Store
	pipeline Runner
	registry *jobs.Registry
	workers  *jobs.Runner
}

// NewService wires a Service.
func NewService(st Store, pipeline Runner, registry *jobs.Registry, workers *jobs.Runner) *Service {
	return &Service{
		store:    st,
		pipeline: pipeline,
		registry: registry,
		workers:  workers,
	}
}

// Start verifies the business exists, registers a running job, and hands the
// audit to the worker pool. It returns as soon as the job is registered.
func (s *Service) Start(ctx context.Context, businessID string) (model.Job, error) {
	if businessID == "" {
		return model.Job{}, eris.New("audit: business id is required")
	}
	if _, err := s.store.GetBusiness(ctx, businessID); err != nil {
		return model.Job{}, eris.Wrap(err, "audit: start")
	}

	job := s.registry.Create(businessID)
	zap.L().Info("audit: job created",
		zap.String("job_id", job.ID),
		zap.String("business_id", businessID),
	)

	s.workers.Go(func(ctx context.Context) {
		s.execute(ctx, job.ID, businessID)
	}, func(rec any) {
		s.fail(job.ID, fmt.Sprintf("internal error: %v", rec))
	})
	return job, nil
}

// Status returns a snapshot of the job.
func (s *Service) Status(jobID string) (model.Job, error) {
	return s.registry.Get(jobID)
}

func (s *Service) execute(ctx context.Context, jobID, businessID string) {
	log := zap.L().With(zap.String("job_id", jobID), zap.String("business_id", businessID))

	progress := func(msg string) {
		if err := s.registry.UpdateProgress(jobID, msg); err != nil {
			log.Debug("audit: progress update dropped", zap.Error(err))
		}
	}

	result, err := s.pipeline.Run(ctx, businessID, progress)
	if err != nil {
		log.Error("audit: job failed", zap.Error(err))
		s.fail(jobID, err.Error())
		return
	}
	if err := s.registry.Complete(jobID, result); err != nil {
		log.Error("audit: complete job", zap.Error(err))
	}
}

func (s *Service) fail(jobID, msg string) {
	if err := s.registry.Fail(jobID, msg); err != nil {
		zap.L().Warn("audit: fail job", zap.String("job_id", jobID), zap.Error(err))
	}
}
