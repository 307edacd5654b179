package store

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/prospect-audit/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS businesses (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	niche          TEXT NOT NULL DEFAULT '',
	location       TEXT NOT NULL DEFAULT '',
	url            TEXT NOT NULL DEFAULT '',
	email          TEXT NOT NULL DEFAULT '',
	pop_score      REAL,
	priority_score INTEGER,
	tier           TEXT,
	audit_metrics  TEXT,
	audit_raw      TEXT,
	audited_at     DATETIME,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_businesses_tier ON businesses(tier);
CREATE INDEX IF NOT EXISTS idx_businesses_priority ON businesses(priority_score);
`

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) GetBusiness(ctx context.Context, id string) (*model.Business, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+businessColumns+` FROM businesses WHERE id = ?`, id)
	b, err := scanBusiness(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: get business %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get business %s", id)
	}
	return b, nil
}

func (s *SQLiteStore) ListBusinesses(ctx context.Context, filter BusinessFilter) ([]model.Business, error) {
	query := `SELECT ` + businessColumns + ` FROM businesses WHERE 1=1`
	var args []any

	if filter.Tier != "" {
		query += ` AND tier = ?`
		args = append(args, string(filter.Tier))
	}
	if filter.Unaudited {
		query += ` AND audited_at IS NULL`
	}
	// SQLite sorts NULLs first on DESC; push unaudited rows last.
	query += ` ORDER BY priority_score IS NULL, priority_score DESC, id`

	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list businesses")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Business
	for rows.Next() {
		b, err := scanBusiness(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan business")
		}
		out = append(out, *b)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: list businesses iterate")
}

// UpsertBusinesses inserts or updates prospect records in one transaction,
// leaving audit columns intact.
func (s *SQLiteStore) UpsertBusinesses(ctx context.Context, businesses []model.Business) (int64, error) {
	if len(businesses) == 0 {
		return 0, nil
	}
	if err := validateBusinesses(businesses); err != nil {
		return 0, eris.Wrap(err, "sqlite: upsert businesses")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO businesses (id, name, niche, location, url, email)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			niche = excluded.niche,
			location = excluded.location,
			url = excluded.url,
			email = excluded.email,
			updated_at = datetime('now')`)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare upsert")
	}
	defer stmt.Close() //nolint:errcheck

	var n int64
	for _, b := range businesses {
		res, err := stmt.ExecContext(ctx, b.ID, b.Name, b.Niche, b.Location, b.URL, b.Email)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: upsert business %s", b.ID)
		}
		affected, _ := res.RowsAffected()
		n += affected
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit upsert")
	}
	return n, nil
}

func (s *SQLiteStore) UpdateAuditResult(ctx context.Context, businessID string, result *model.AuditResult) error {
	cols, err := newAuditColumns(result)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update audit %s", businessID)
	}
	var raw any
	if cols.raw != nil {
		raw = string(cols.raw)
	}
	completed := result.CompletedAt.UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE businesses SET pop_score = ?, priority_score = ?, tier = ?, audit_metrics = ?, audit_raw = ?, audited_at = ?, updated_at = ? WHERE id = ?`,
		cols.popScore, cols.priorityScore, cols.tier, string(cols.metrics), raw, completed, completed, businessID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update audit %s", businessID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Wrapf(ErrNotFound, "sqlite: update audit %s", businessID)
	}
	return nil
}
