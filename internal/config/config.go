// Package config loads service configuration from config.yaml and AUDIT_*
// environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/prospect-audit/pkg/pop"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	POP        POPConfig        `yaml:"pop" mapstructure:"pop"`
	Jobs       JobsConfig       `yaml:"jobs" mapstructure:"jobs"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit" mapstructure:"rate_limit"`
	Mail       MailConfig       `yaml:"mail" mapstructure:"mail"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// POPConfig configures the remote audit API.
type POPConfig struct {
	Key               string       `yaml:"key" mapstructure:"key"`
	BaseURL           string       `yaml:"base_url" mapstructure:"base_url"`
	RequestsPerSecond float64      `yaml:"requests_per_second" mapstructure:"requests_per_second"`
	SubmitTimeoutSecs int          `yaml:"submit_timeout_secs" mapstructure:"submit_timeout_secs"`
	DefaultLocation   string       `yaml:"default_location" mapstructure:"default_location"`
	Language          string       `yaml:"language" mapstructure:"language"`
	BreakerThreshold  int          `yaml:"breaker_threshold" mapstructure:"breaker_threshold"`
	BreakerResetSecs  int          `yaml:"breaker_reset_secs" mapstructure:"breaker_reset_secs"`
	Terms             BudgetConfig `yaml:"terms" mapstructure:"terms"`
	Report            BudgetConfig `yaml:"report" mapstructure:"report"`
}

// BudgetConfig is a polling budget for one step.
type BudgetConfig struct {
	MaxAttempts  int `yaml:"max_attempts" mapstructure:"max_attempts"`
	IntervalSecs int `yaml:"interval_secs" mapstructure:"interval_secs"`
}

// Budget converts to pop.Budget.
func (b BudgetConfig) Budget() pop.Budget {
	return pop.Budget{
		MaxAttempts: b.MaxAttempts,
		Interval:    time.Duration(b.IntervalSecs) * time.Second,
	}
}

// JobsConfig configures the background worker pool and job retention.
type JobsConfig struct {
	MaxConcurrent     int `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	RetentionHours    int `yaml:"retention_hours" mapstructure:"retention_hours"`
	SweepIntervalMins int `yaml:"sweep_interval_mins" mapstructure:"sweep_interval_mins"`
}

// Retention returns how long finished jobs stay queryable.
func (c JobsConfig) Retention() time.Duration {
	return time.Duration(c.RetentionHours) * time.Hour
}

// SweepInterval returns how often expired jobs are removed.
func (c JobsConfig) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMins) * time.Minute
}

// RateLimitConfig configures the outbound mail limiter.
type RateLimitConfig struct {
	Limit      int `yaml:"limit" mapstructure:"limit"`
	WindowSecs int `yaml:"window_secs" mapstructure:"window_secs"`
}

// Window returns the sliding window length.
func (c RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowSecs) * time.Second
}

// MailConfig configures the mail relay.
type MailConfig struct {
	RelayURL string `yaml:"relay_url" mapstructure:"relay_url"`
	APIKey   string `yaml:"api_key" mapstructure:"api_key"`
	From     string `yaml:"from" mapstructure:"from"`
}

// AnthropicConfig configures outreach drafting.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Port            int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins  []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
	ShutdownTimeout int      `yaml:"shutdown_timeout_secs" mapstructure:"shutdown_timeout_secs"`
}

// MonitoringConfig configures the background job-health checker.
type MonitoringConfig struct {
	WebhookURL           string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	FailureRateThreshold float64 `yaml:"failure_rate_threshold" mapstructure:"failure_rate_threshold"`
	CheckIntervalSecs    int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours  int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Validate checks the settings the given command needs. Mode is one of
// "serve", "audit", "store" (migrate/import), or "offline" (score).
func (c *Config) Validate(mode string) error {
	var errs []string

	if mode != "offline" {
		switch c.Store.Driver {
		case "postgres", "sqlite":
			if c.Store.DatabaseURL == "" {
				errs = append(errs, "store.database_url is required")
			}
		default:
			errs = append(errs, fmt.Sprintf("store.driver %q is not supported", c.Store.Driver))
		}
	}

	if mode == "serve" || mode == "audit" {
		if c.POP.Key == "" {
			errs = append(errs, "pop.key is required")
		}
		if c.POP.Terms.MaxAttempts <= 0 || c.POP.Report.MaxAttempts <= 0 {
			errs = append(errs, "pop poll budgets need a positive max_attempts")
		}
	}

	if mode == "serve" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
		}
		if c.Jobs.MaxConcurrent <= 0 {
			errs = append(errs, "jobs.max_concurrent must be positive")
		}
		if c.RateLimit.Limit <= 0 || c.RateLimit.WindowSecs <= 0 {
			errs = append(errs, "rate_limit needs a positive limit and window_secs")
		}
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("AUDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Every key needs one so AutomaticEnv can override it.
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "prospect-audit.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("pop.key", "")
	v.SetDefault("pop.base_url", pop.DefaultBaseURL)
	v.SetDefault("pop.requests_per_second", 2.0)
	v.SetDefault("pop.submit_timeout_secs", 30)
	v.SetDefault("pop.default_location", "United States")
	v.SetDefault("pop.language", "english")
	v.SetDefault("pop.breaker_threshold", 5)
	v.SetDefault("pop.breaker_reset_secs", 60)
	v.SetDefault("pop.terms.max_attempts", 60)
	v.SetDefault("pop.terms.interval_secs", 5)
	v.SetDefault("pop.report.max_attempts", 120)
	v.SetDefault("pop.report.interval_secs", 5)
	v.SetDefault("jobs.max_concurrent", 4)
	v.SetDefault("jobs.retention_hours", 24)
	v.SetDefault("jobs.sweep_interval_mins", 10)
	v.SetDefault("rate_limit.limit", 10)
	v.SetDefault("rate_limit.window_secs", 60)
	v.SetDefault("mail.relay_url", "")
	v.SetDefault("mail.api_key", "")
	v.SetDefault("mail.from", "")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 600)
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.shutdown_timeout_secs", 15)
	v.SetDefault("monitoring.webhook_url", "")
	v.SetDefault("monitoring.failure_rate_threshold", 0.25)
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
