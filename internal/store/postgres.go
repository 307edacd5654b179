package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/prospect-audit/internal/db"
	"github.com/sells-group/prospect-audit/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const businessColumns = `id, name, niche, location, url, email, pop_score, priority_score, tier, audit_metrics, audited_at`

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"get_business":        `SELECT ` + businessColumns + ` FROM businesses WHERE id = $1`,
	"update_audit_result": `UPDATE businesses SET pop_score = $1, priority_score = $2, tier = $3, audit_metrics = $4, audit_raw = $5, audited_at = $6, updated_at = $6 WHERE id = $7`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS businesses (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	niche          TEXT NOT NULL DEFAULT '',
	location       TEXT NOT NULL DEFAULT '',
	url            TEXT NOT NULL DEFAULT '',
	email          TEXT NOT NULL DEFAULT '',
	pop_score      DOUBLE PRECISION,
	priority_score INTEGER,
	tier           TEXT,
	audit_metrics  JSONB,
	audit_raw      JSONB,
	audited_at     TIMESTAMPTZ,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_businesses_tier ON businesses(tier);
CREATE INDEX IF NOT EXISTS idx_businesses_priority ON businesses(priority_score DESC NULLS LAST);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) GetBusiness(ctx context.Context, id string) (*model.Business, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+businessColumns+` FROM businesses WHERE id = $1`, id)
	b, err := scanBusiness(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get business %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get business %s", id)
	}
	return b, nil
}

func (s *PostgresStore) ListBusinesses(ctx context.Context, filter BusinessFilter) ([]model.Business, error) {
	query := `SELECT ` + businessColumns + ` FROM businesses WHERE true`
	var args []any
	argN := 1

	if filter.Tier != "" {
		query += fmt.Sprintf(" AND tier = $%d", argN)
		args = append(args, string(filter.Tier))
		argN++
	}
	if filter.Unaudited {
		query += " AND audited_at IS NULL"
	}
	query += " ORDER BY priority_score DESC NULLS LAST, id"

	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argN)
		args = append(args, filter.Limit)
		argN++
	}
	if filter.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argN)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list businesses")
	}
	defer rows.Close()

	var out []model.Business
	for rows.Next() {
		b, err := scanBusiness(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan business")
		}
		out = append(out, *b)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list businesses rows")
}

// UpsertBusinesses bulk-loads prospect records, leaving audit columns intact.
func (s *PostgresStore) UpsertBusinesses(ctx context.Context, businesses []model.Business) (int64, error) {
	if err := validateBusinesses(businesses); err != nil {
		return 0, eris.Wrap(err, "postgres: upsert businesses")
	}
	rows := make([][]any, len(businesses))
	for i, b := range businesses {
		rows[i] = []any{b.ID, b.Name, b.Niche, b.Location, b.URL, b.Email}
	}
	n, err := db.BulkUpsert(ctx, s.pool, db.UpsertConfig{
		Table:        "businesses",
		Columns:      []string{"id", "name", "niche", "location", "url", "email"},
		ConflictKeys: []string{"id"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: upsert businesses")
	}
	return n, nil
}

func (s *PostgresStore) UpdateAuditResult(ctx context.Context, businessID string, result *model.AuditResult) error {
	cols, err := newAuditColumns(result)
	if err != nil {
		return eris.Wrapf(err, "postgres: update audit %s", businessID)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE businesses SET pop_score = $1, priority_score = $2, tier = $3, audit_metrics = $4, audit_raw = $5, audited_at = $6, updated_at = $6 WHERE id = $7`,
		cols.popScore, cols.priorityScore, cols.tier, cols.metrics, cols.raw, result.CompletedAt.UTC(), businessID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update audit %s", businessID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "postgres: update audit %s", businessID)
	}
	return nil
}
