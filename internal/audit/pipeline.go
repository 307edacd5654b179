// Package audit runs the two-step remote audit for a business and manages
// the asynchronous jobs that wrap it.
package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-audit/internal/extract"
	"github.com/sells-group/prospect-audit/internal/model"
	"github.com/sells-group/prospect-audit/internal/resilience"
	"github.com/sells-group/prospect-audit/internal/scoring"
	"github.com/sells-group/prospect-audit/internal/store"
	"github.com/sells-group/prospect-audit/pkg/pop"
)

// Remote endpoints, relative to the API base URL.
const (
	TermsEndpoint  = "expose/get-terms/"
	ReportEndpoint = "expose/create-report/"
)

// Store is the slice of store.Store the pipeline needs.
type Store interface {
	GetBusiness(ctx context.Context, id string) (*model.Business, error)
	UpdateAuditResult(ctx context.Context, businessID string, result *model.AuditResult) error
}

// StepExecutor runs one remote step to completion. *pop.Executor satisfies it.
type StepExecutor interface {
	Execute(ctx context.Context, step pop.Step, body map[string]any, opts ...pop.PollOption) (json.RawMessage, error)
}

// Config holds pipeline settings.
type Config struct {
	TermsBudget     pop.Budget
	ReportBudget    pop.Budget
	DefaultLocation string
	Language        string
	PersistRetry    resilience.RetryConfig
}

// DefaultConfig returns budgets that allow roughly five minutes for terms
// and ten for the report.
func DefaultConfig() Config {
	return Config{
		TermsBudget:     pop.Budget{MaxAttempts: 60, Interval: 5 * time.Second},
		ReportBudget:    pop.Budget{MaxAttempts: 120, Interval: 5 * time.Second},
		DefaultLocation: "United States",
		Language:        "english",
		PersistRetry:    resilience.DefaultRetryConfig(),
	}
}

// TermsStep is the term-discovery step.
func TermsStep(budget pop.Budget) pop.Step {
	return pop.Step{
		Name:     "get terms",
		Endpoint: TermsEndpoint,
		Budget:   budget,
		Expect:   []string{"prepareId", "prepare_id"},
		Markers:  []string{"prepareId", "prepare_id"},
	}
}

// ReportStep is the report-generation step.
func ReportStep(budget pop.Budget) pop.Step {
	return pop.Step{
		Name:     "create report",
		Endpoint: ReportEndpoint,
		Budget:   budget,
		Expect:   pop.DefaultMarkers,
	}
}

// ProgressFunc receives human-readable stage descriptions.
type ProgressFunc func(string)

// Pipeline runs a complete audit for one business.
type Pipeline struct {
	store   Store
	steps   StepExecutor
	cfg     Config
	nowFunc func() time.Time
}

// NewPipeline creates a Pipeline.
func NewPipeline(st Store, steps StepExecutor, cfg Config) *Pipeline {
	if cfg.PersistRetry.MaxAttempts == 0 {
		cfg.PersistRetry = resilience.DefaultRetryConfig()
	}
	return &Pipeline{
		store:   st,
		steps:   steps,
		cfg:     cfg,
		nowFunc: time.Now,
	}
}

// Run executes every stage for businessID. Persistence is best-effort: a
// failed save is logged and reported through AuditResult.Persisted rather
// than failing the audit.
func (p *Pipeline) Run(ctx context.Context, businessID string, progress ProgressFunc) (*model.AuditResult, error) {
	if progress == nil {
		progress = func(string) {}
	}
	log := zap.L().With(zap.String("business_id", businessID))

	progress("Loading business")
	biz, err := p.store.GetBusiness(ctx, businessID)
	if err != nil {
		return nil, eris.Wrap(err, "audit: load business")
	}

	keyword := Keyword(biz)
	target := NormalizeURL(biz.URL)
	if target == "" {
		return nil, eris.Errorf("audit: business %s has no url", businessID)
	}
	location := biz.Location
	if location == "" {
		location = p.cfg.DefaultLocation
	}
	log = log.With(zap.String("keyword", keyword), zap.String("target_url", target))
	log.Info("audit: starting")

	progress(fmt.Sprintf("Fetching terms for %q", keyword))
	termsRaw, err := p.steps.Execute(ctx, TermsStep(p.cfg.TermsBudget), map[string]any{
		"keyword":        keyword,
		"locationName":   location,
		"targetUrl":      target,
		"targetLanguage": p.cfg.Language,
	}, pop.WithProgress(pollProgress(progress, "Fetching terms")))
	if err != nil {
		return nil, eris.Wrap(err, "audit: get terms")
	}

	prepared := extract.PreparedTerms(termsRaw)
	if prepared.PrepareID == "" {
		return nil, eris.New("audit: get terms: response has no prepareId")
	}

	reportBody := map[string]any{
		"prepareId":      prepared.PrepareID,
		"keyword":        keyword,
		"locationName":   location,
		"targetUrl":      target,
		"targetLanguage": p.cfg.Language,
	}
	if prepared.LSIPhrases != nil {
		reportBody["lsaPhrases"] = prepared.LSIPhrases
	}
	if prepared.Variations != nil {
		reportBody["variations"] = prepared.Variations
	}

	progress("Generating report")
	reportRaw, err := p.steps.Execute(ctx, ReportStep(p.cfg.ReportBudget), reportBody,
		pop.WithProgress(pollProgress(progress, "Generating report")))
	if err != nil {
		return nil, eris.Wrap(err, "audit: create report")
	}

	progress("Extracting metrics")
	metrics := extract.Metrics(reportRaw)

	progress("Scoring")
	score := scoring.Score(metrics)

	result := &model.AuditResult{
		Keyword:     keyword,
		TargetURL:   target,
		Metrics:     metrics,
		Score:       score,
		Raw:         reportRaw,
		CompletedAt: p.nowFunc().UTC(),
	}

	progress("Saving results")
	result.Persisted = p.persist(ctx, businessID, result)

	log.Info("audit: complete",
		zap.Int("priority_score", score.PriorityScore),
		zap.String("tier", string(score.Tier)),
		zap.Bool("persisted", result.Persisted),
	)
	return result, nil
}

func (p *Pipeline) persist(ctx context.Context, businessID string, result *model.AuditResult) bool {
	retry := p.cfg.PersistRetry
	retry.ShouldRetry = func(err error) bool {
		return !errors.Is(err, store.ErrNotFound)
	}
	if retry.OnRetry == nil {
		retry.OnRetry = resilience.RetryLogger("audit: persist result")
	}

	err := resilience.Do(ctx, retry, func(ctx context.Context) error {
		return p.store.UpdateAuditResult(ctx, businessID, result)
	})
	if err != nil {
		zap.L().Error("audit: failed to persist result",
			zap.String("business_id", businessID),
			zap.Error(err),
		)
		return false
	}
	return true
}

// pollProgress folds remote completion percentages into the progress text.
func pollProgress(progress ProgressFunc, stage string) func(*pop.Task) {
	return func(t *pop.Task) {
		if t.Value == nil {
			return
		}
		progress(fmt.Sprintf("%s (%.0f%%)", stage, *t.Value))
	}
}
