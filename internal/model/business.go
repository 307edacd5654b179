package model

import (
	"encoding/json"
	"time"
)

// Business is a prospect record that can be audited.
type Business struct {
	ID       string `json:"id" yaml:"id" validate:"required"`
	Name     string `json:"name" yaml:"name" validate:"required"`
	Niche    string `json:"niche,omitempty" yaml:"niche"`
	Location string `json:"location,omitempty" yaml:"location"`
	URL      string `json:"url" yaml:"url" validate:"omitempty,url|hostname"`
	Email    string `json:"email,omitempty" yaml:"email" validate:"omitempty,email"`

	// Persisted audit columns, written by UpdateAuditResult.
	PopScore      float64         `json:"pop_score,omitempty" yaml:"-"`
	PriorityScore int             `json:"priority_score,omitempty" yaml:"-"`
	Tier          Tier            `json:"tier,omitempty" yaml:"-"`
	AuditMetrics  json.RawMessage `json:"audit_metrics,omitempty" yaml:"-"`
	AuditedAt     *time.Time      `json:"audited_at,omitempty" yaml:"-"`
}
