package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/sells-group/prospect-audit/internal/jobs"
	"github.com/sells-group/prospect-audit/internal/model"
	"github.com/sells-group/prospect-audit/internal/store"
	"github.com/sells-group/prospect-audit/pkg/mailrelay"
)

const maxListLimit = 500

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type startAuditRequest struct {
	BusinessID string `json:"business_id"`
}

func (s *Server) handleStartAudit(w http.ResponseWriter, r *http.Request) {
	var req startAuditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.BusinessID = strings.TrimSpace(req.BusinessID)
	if req.BusinessID == "" {
		writeError(w, http.StatusBadRequest, "business_id is required")
		return
	}

	job, err := s.audits.Start(r.Context(), req.BusinessID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "business not found")
			return
		}
		zap.L().Error("start audit", zap.String("business_id", req.BusinessID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to start audit")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{
		"job_id": job.ID,
		"status": string(job.Status),
	})
}

type statusResponse struct {
	Status         model.JobStatus    `json:"status"`
	Progress       string             `json:"progress,omitempty"`
	ElapsedSeconds *int               `json:"elapsed_seconds,omitempty"`
	Result         *model.AuditResult `json:"result,omitempty"`
	Error          string             `json:"error,omitempty"`
}

func (s *Server) handleAuditStatus(w http.ResponseWriter, r *http.Request) {
	job, ok := s.lookupJob(w, chi.URLParam(r, "jobID"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.statusOf(job))
}

func (s *Server) statusOf(job model.Job) statusResponse {
	switch job.Status {
	case model.JobStatusComplete:
		return statusResponse{Status: job.Status, Result: job.Result}
	case model.JobStatusError:
		return statusResponse{Status: job.Status, Error: job.Error}
	default:
		elapsed := int(math.Round(job.Elapsed(s.nowFunc()).Seconds()))
		return statusResponse{Status: job.Status, Progress: job.Progress, ElapsedSeconds: &elapsed}
	}
}

func (s *Server) lookupJob(w http.ResponseWriter, jobID string) (model.Job, bool) {
	job, err := s.audits.Status(jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return model.Job{}, false
		}
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return model.Job{}, false
	}
	return job, true
}

func (s *Server) handleDraft(w http.ResponseWriter, r *http.Request) {
	if s.drafter == nil {
		writeError(w, http.StatusServiceUnavailable, "outreach drafting is not configured")
		return
	}
	job, ok := s.lookupJob(w, chi.URLParam(r, "jobID"))
	if !ok {
		return
	}
	if job.Status != model.JobStatusComplete || job.Result == nil {
		writeError(w, http.StatusConflict, fmt.Sprintf("audit is %s, not complete", job.Status))
		return
	}

	biz, err := s.store.GetBusiness(r.Context(), job.SubjectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "business not found")
			return
		}
		zap.L().Error("draft: load business", zap.String("job_id", job.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to load business")
		return
	}

	draft, err := s.drafter.Draft(r.Context(), biz, job.Result)
	if err != nil {
		zap.L().Error("draft: generate", zap.String("job_id", job.ID), zap.Error(err))
		writeError(w, http.StatusBadGateway, "failed to generate draft")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"job_id":      job.ID,
		"business_id": biz.ID,
		"to":          biz.Email,
		"draft":       draft,
	})
}

func (s *Server) handleListBusinesses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := store.BusinessFilter{
		Tier:      model.Tier(strings.ToLower(q.Get("tier"))),
		Unaudited: q.Get("unaudited") == "true",
	}
	var err error
	if filter.Limit, err = intParam(q.Get("limit"), 100); err != nil {
		writeError(w, http.StatusBadRequest, "invalid limit")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset"), 0); err != nil {
		writeError(w, http.StatusBadRequest, "invalid offset")
		return
	}
	filter.Limit = min(filter.Limit, maxListLimit)

	businesses, err := s.store.ListBusinesses(r.Context(), filter)
	if err != nil {
		zap.L().Error("list businesses", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list businesses")
		return
	}
	if businesses == nil {
		businesses = []model.Business{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"businesses": businesses,
		"count":      len(businesses),
	})
}

func (s *Server) handleGetBusiness(w http.ResponseWriter, r *http.Request) {
	biz, err := s.store.GetBusiness(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			writeError(w, http.StatusNotFound, "business not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to load business")
		return
	}
	writeJSON(w, http.StatusOK, biz)
}

func intParam(raw string, def int) (int, error) {
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid integer %q", raw)
	}
	return n, nil
}

// sendRequest accepts cc and bcc as comma-separated strings.
type sendRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
	HTML    string `json:"html"`
	CC      string `json:"cc"`
	BCC     string `json:"bcc"`
}

func (s *Server) handleSend(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		retry := int(math.Ceil(s.limiter.RetryAfter().Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(max(retry, 1)))
		writeError(w, http.StatusTooManyRequests, rateLimitMessage(s.limiter))
		return
	}
	if s.mailer == nil {
		writeError(w, http.StatusServiceUnavailable, "mail relay is not configured")
		return
	}

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "JSON body required")
		return
	}

	msg := mailrelay.Message{
		To:      strings.TrimSpace(req.To),
		Subject: req.Subject,
		Body:    req.Body,
		HTML:    req.HTML,
		CC:      mailrelay.SplitAddresses(req.CC),
		BCC:     mailrelay.SplitAddresses(req.BCC),
	}
	if err := msg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if _, err := s.mailer.Send(r.Context(), msg); err != nil {
		zap.L().Error("send email", zap.String("to", msg.To), zap.Error(err))
		writeError(w, http.StatusBadGateway, "failed to send email")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Email sent to " + msg.To,
	})
}

func rateLimitMessage(l interface {
	Limit() int
	Period() time.Duration
}) string {
	if l.Period() == time.Minute {
		return fmt.Sprintf("Rate limit exceeded (%d/min)", l.Limit())
	}
	return fmt.Sprintf("Rate limit exceeded (%d per %s)", l.Limit(), l.Period())
}
