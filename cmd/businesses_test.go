package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/prospect-audit/internal/model"
)

func sampleBusinesses() []model.Business {
	audited := time.Date(2026, 6, 15, 10, 30, 0, 0, time.UTC)
	return []model.Business{
		{ID: "biz-1", Name: "Acme Plumbing", PriorityScore: 95, PopScore: 41.5, Tier: model.TierHot, AuditedAt: &audited},
		{ID: "biz-2", Name: "Beta Roofing", PriorityScore: 65, PopScore: 70, Tier: model.TierWarm, AuditedAt: &audited},
		{ID: "biz-3", Name: "Gamma Landscaping and Outdoor Living Specialists"},
	}
}

func TestFormatBusinessList(t *testing.T) {
	var buf bytes.Buffer
	formatBusinessList(&buf, sampleBusinesses())

	output := buf.String()
	assert.Contains(t, output, "PRIORITY")
	assert.Contains(t, output, "Acme Plumbing")
	assert.Contains(t, output, "hot")
	assert.Contains(t, output, "95")
	assert.Contains(t, output, "41.5")
	assert.Contains(t, output, "2026-06-15 10:30")
	assert.Contains(t, output, "never")
	assert.Contains(t, output, "Gamma Landscaping and Outdo...")
}

func TestComputeTierStats(t *testing.T) {
	s := computeTierStats(sampleBusinesses())

	assert.Equal(t, 3, s.Total)
	assert.Equal(t, 1, s.Hot)
	assert.Equal(t, 1, s.Warm)
	assert.Zero(t, s.Cold)
	assert.Equal(t, 1, s.Unaudited)
	assert.InDelta(t, 80.0, s.AvgScore, 0.001)
}

func TestFormatTierStats(t *testing.T) {
	var buf bytes.Buffer
	formatTierStats(&buf, computeTierStats(sampleBusinesses()))

	output := buf.String()
	assert.Contains(t, output, "Total businesses:")
	assert.Contains(t, output, "Avg priority:")
	assert.Contains(t, output, "80.0")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "short", truncateID("short"))
	assert.Equal(t, "abcdef123456", truncateID("abcdef1234567890"))
}
