// Package store persists prospect businesses and their latest audit.
package store

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/prospect-audit/internal/model"
)

// ErrNotFound is returned when a business id does not exist.
var ErrNotFound = eris.New("business not found")

// Store defines the persistence interface for the audit service.
type Store interface {
	// Businesses
	GetBusiness(ctx context.Context, id string) (*model.Business, error)
	ListBusinesses(ctx context.Context, filter BusinessFilter) ([]model.Business, error)
	UpsertBusinesses(ctx context.Context, businesses []model.Business) (int64, error)

	// Audits
	UpdateAuditResult(ctx context.Context, businessID string, result *model.AuditResult) error

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

// BusinessFilter specifies criteria for listing businesses.
type BusinessFilter struct {
	Tier      model.Tier `json:"tier,omitempty"`
	Unaudited bool       `json:"unaudited,omitempty"`
	Limit     int        `json:"limit,omitempty"`
	Offset    int        `json:"offset,omitempty"`
}

// auditColumns are the values UpdateAuditResult writes, shared by both
// backends.
type auditColumns struct {
	popScore      float64
	priorityScore int
	tier          string
	metrics       []byte
	raw           []byte
}

func newAuditColumns(result *model.AuditResult) (auditColumns, error) {
	if result == nil {
		return auditColumns{}, eris.New("nil audit result")
	}
	metrics, err := json.Marshal(result.Metrics)
	if err != nil {
		return auditColumns{}, eris.Wrap(err, "marshal audit metrics")
	}
	var raw []byte
	if len(result.Raw) > 0 {
		raw = []byte(result.Raw)
	}
	return auditColumns{
		popScore:      result.Metrics.PageScore,
		priorityScore: result.Score.PriorityScore,
		tier:          string(result.Score.Tier),
		metrics:       metrics,
		raw:           raw,
	}, nil
}

func validateBusinesses(businesses []model.Business) error {
	for i, b := range businesses {
		if b.ID == "" {
			return eris.Errorf("business %d: missing id", i)
		}
		if b.Name == "" {
			return eris.Errorf("business %s: missing name", b.ID)
		}
	}
	return nil
}
