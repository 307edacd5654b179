// Package server exposes the audit service over HTTP.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-audit/internal/model"
	"github.com/sells-group/prospect-audit/internal/outreach"
	"github.com/sells-group/prospect-audit/internal/ratelimit"
	"github.com/sells-group/prospect-audit/internal/store"
	"github.com/sells-group/prospect-audit/pkg/mailrelay"
)

// AuditService starts audits and reports job state. *audit.Service
// satisfies it.
type AuditService interface {
	Start(ctx context.Context, businessID string) (model.Job, error)
	Status(jobID string) (model.Job, error)
}

// BusinessStore is the read side of the store used by the handlers.
type BusinessStore interface {
	GetBusiness(ctx context.Context, id string) (*model.Business, error)
	ListBusinesses(ctx context.Context, filter store.BusinessFilter) ([]model.Business, error)
}

// Drafter writes outreach copy for a completed audit.
type Drafter interface {
	Draft(ctx context.Context, biz *model.Business, result *model.AuditResult) (*outreach.Draft, error)
}

// Deps are the collaborators a Server needs. Drafter and Mailer are
// optional; their routes answer 503 when unset.
type Deps struct {
	Audits         AuditService
	Store          BusinessStore
	Drafter        Drafter
	Mailer         mailrelay.Client
	Limiter        *ratelimit.Window
	AllowedOrigins []string
}

// Server holds the HTTP handlers.
type Server struct {
	audits  AuditService
	store   BusinessStore
	drafter Drafter
	mailer  mailrelay.Client
	limiter *ratelimit.Window
	origins []string
	nowFunc func() time.Time
}

// New creates a Server.
func New(deps Deps) *Server {
	origins := deps.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	limiter := deps.Limiter
	if limiter == nil {
		limiter = ratelimit.NewWindow(10, time.Minute)
	}
	return &Server{
		audits:  deps.Audits,
		store:   deps.Store,
		drafter: deps.Drafter,
		mailer:  deps.Mailer,
		limiter: limiter,
		origins: origins,
		nowFunc: time.Now,
	}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"Retry-After"},
		MaxAge:         300,
	}))

	r.Get("/health", s.handleHealth)

	r.Route("/audits", func(r chi.Router) {
		r.Post("/", s.handleStartAudit)
		r.Get("/{jobID}", s.handleAuditStatus)
		r.Post("/{jobID}/draft", s.handleDraft)
	})

	r.Get("/businesses", s.handleListBusinesses)
	r.Get("/businesses/{id}", s.handleGetBusiness)

	r.Post("/send", s.handleSend)

	return r
}

// requestLogger logs one line per request through the global zap logger.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		zap.L().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
