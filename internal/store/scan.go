package store

import (
	"database/sql"

	"github.com/sells-group/prospect-audit/internal/model"
)

type scannable interface {
	Scan(dest ...any) error
}

// scanBusiness reads a row selected with businessColumns. Audit columns are
// nullable until the first audit lands.
func scanBusiness(row scannable) (*model.Business, error) {
	var (
		b             model.Business
		popScore      sql.NullFloat64
		priorityScore sql.NullInt64
		tier          sql.NullString
		metrics       []byte
		auditedAt     sql.NullTime
	)
	err := row.Scan(&b.ID, &b.Name, &b.Niche, &b.Location, &b.URL, &b.Email,
		&popScore, &priorityScore, &tier, &metrics, &auditedAt)
	if err != nil {
		return nil, err
	}
	b.PopScore = popScore.Float64
	b.PriorityScore = int(priorityScore.Int64)
	b.Tier = model.Tier(tier.String)
	if len(metrics) > 0 {
		b.AuditMetrics = metrics
	}
	if auditedAt.Valid {
		t := auditedAt.Time.UTC()
		b.AuditedAt = &t
	}
	return &b, nil
}
