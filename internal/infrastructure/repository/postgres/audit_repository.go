package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/emalabs/ask-ema/internal/core/domain"
)

// AuditRepository is the durable audit store: one append-only row per
// request attempt. Rows are never updated or deleted by the pipeline.
type AuditRepository struct {
	db *sql.DB
}

func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *AuditRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026030201)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS queries (
	id TEXT PRIMARY KEY,
	ts TIMESTAMPTZ NOT NULL,
	query TEXT NOT NULL,
	response TEXT,
	error TEXT,
	context TEXT,
	human_response TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_queries_ts ON queries(ts DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

// Append inserts one audit row. Redelivered records are ignored by id so
// at-least-once transport still yields exactly one stored row per attempt.
func (r *AuditRepository) Append(ctx context.Context, record domain.AuditRecord) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO queries (id, ts, query, response, error, context, human_response)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO NOTHING
`,
		record.ID, record.Timestamp, record.Query,
		nullable(record.Response), nullable(record.Error), nullable(record.Context),
		record.HumanResponse,
	)
	if err != nil {
		return fmt.Errorf("insert audit row: %w", err)
	}
	return nil
}

func (r *AuditRepository) ListRecent(ctx context.Context, limit int) ([]domain.AuditRecord, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT id, ts, query, response, error, context, human_response
FROM queries
ORDER BY ts DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit rows: %w", err)
	}
	defer rows.Close()

	var records []domain.AuditRecord
	for rows.Next() {
		var record domain.AuditRecord
		var response, errText, contextText sql.NullString
		if err := rows.Scan(
			&record.ID, &record.Timestamp, &record.Query,
			&response, &errText, &contextText, &record.HumanResponse,
		); err != nil {
			return nil, fmt.Errorf("scan audit row: %w", err)
		}
		record.Response = response.String
		record.Error = errText.String
		record.Context = contextText.String
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit rows: %w", err)
	}
	return records, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
