package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-audit/internal/audit"
	"github.com/sells-group/prospect-audit/internal/outreach"
	"github.com/sells-group/prospect-audit/internal/resilience"
	"github.com/sells-group/prospect-audit/internal/store"
	anthropicpkg "github.com/sells-group/prospect-audit/pkg/anthropic"
	"github.com/sells-group/prospect-audit/pkg/mailrelay"
	"github.com/sells-group/prospect-audit/pkg/pop"
)

// auditEnv holds the store, clients, and pipeline shared by the audit and
// serve commands.
type auditEnv struct {
	Store    store.Store
	Pipeline *audit.Pipeline
	Breaker  *resilience.CircuitBreaker
	Drafter  *outreach.Drafter // nil without an Anthropic key
	Mailer   mailrelay.Client  // nil without a relay URL
}

// Close releases resources held by the environment.
func (e *auditEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "prospect-audit.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initMigratedStore opens the store and applies the schema.
func initMigratedStore(ctx context.Context) (store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}

// newStepExecutor builds the rate-limited, circuit-broken POP executor.
func newStepExecutor() (*pop.Executor, *resilience.CircuitBreaker) {
	client := pop.NewClient(cfg.POP.Key,
		pop.WithBaseURL(cfg.POP.BaseURL),
		pop.WithRateLimit(cfg.POP.RequestsPerSecond),
	)
	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		Name:             "pop",
		FailureThreshold: cfg.POP.BreakerThreshold,
		ResetTimeout:     time.Duration(cfg.POP.BreakerResetSecs) * time.Second,
	})
	executor := pop.NewExecutor(client,
		pop.WithSubmitTimeout(time.Duration(cfg.POP.SubmitTimeoutSecs)*time.Second),
		pop.WithBreaker(breaker),
	)
	return executor, breaker
}

func pipelineConfig() audit.Config {
	pc := audit.DefaultConfig()
	pc.TermsBudget = cfg.POP.Terms.Budget()
	pc.ReportBudget = cfg.POP.Report.Budget()
	if cfg.POP.DefaultLocation != "" {
		pc.DefaultLocation = cfg.POP.DefaultLocation
	}
	if cfg.POP.Language != "" {
		pc.Language = cfg.POP.Language
	}
	return pc
}

// initAuditEnv validates config for mode, opens the store, and builds the
// pipeline plus the optional outreach clients. Callers should defer
// env.Close().
func initAuditEnv(ctx context.Context, mode string) (*auditEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initMigratedStore(ctx)
	if err != nil {
		return nil, err
	}

	steps, breaker := newStepExecutor()
	env := &auditEnv{
		Store:    st,
		Pipeline: audit.NewPipeline(st, steps, pipelineConfig()),
		Breaker:  breaker,
	}

	if cfg.Anthropic.Key != "" {
		env.Drafter = outreach.NewDrafter(anthropicpkg.NewClient(cfg.Anthropic.Key), outreach.Config{
			Model:     cfg.Anthropic.Model,
			MaxTokens: cfg.Anthropic.MaxTokens,
		})
		zap.L().Info("outreach drafting enabled", zap.String("model", cfg.Anthropic.Model))
	} else {
		zap.L().Debug("AUDIT_ANTHROPIC_KEY not set, outreach drafting disabled")
	}

	if cfg.Mail.RelayURL != "" {
		env.Mailer = mailrelay.NewClient(cfg.Mail.RelayURL, cfg.Mail.APIKey, mailrelay.WithFrom(cfg.Mail.From))
		zap.L().Info("mail relay enabled", zap.String("relay_url", cfg.Mail.RelayURL))
	} else {
		zap.L().Debug("AUDIT_MAIL_RELAY_URL not set, /send disabled")
	}

	return env, nil
}
