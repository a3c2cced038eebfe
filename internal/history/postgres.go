package history

import (
	"context"
	"database/sql"
	"errors"

	_ "github.com/lib/pq"
)

// PostgresRepository stores records in Postgres.
type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// EnsureSchema creates the history table if it does not exist.
func (r *PostgresRepository) EnsureSchema(ctx context.Context) error {
	const q = `
CREATE TABLE IF NOT EXISTS code_reviews (
  id TEXT PRIMARY KEY,
  code_hash TEXT NOT NULL,
  code TEXT NOT NULL,
  findings_json JSONB NOT NULL,
  markdown TEXT NOT NULL,
  exit_code INTEGER NOT NULL,
  created_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_code_reviews_created ON code_reviews (created_at);
`
	_, err := r.db.ExecContext(ctx, q)
	return err
}

// Save inserts or updates a record.
func (r *PostgresRepository) Save(ctx context.Context, rec *Record) error {
	const q = `
INSERT INTO code_reviews
  (id, code_hash, code, findings_json, markdown, exit_code, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (id) DO UPDATE SET
  code_hash=EXCLUDED.code_hash,
  code=EXCLUDED.code,
  findings_json=EXCLUDED.findings_json,
  markdown=EXCLUDED.markdown,
  exit_code=EXCLUDED.exit_code;
`
	findings, err := encodeFindings(rec.Findings)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, q, rec.ID, rec.CodeHash, rec.Code, findings, rec.Markdown, rec.ExitCode, rec.CreatedAt)
	return err
}

// Get returns the record with id, or ErrNotFound.
func (r *PostgresRepository) Get(ctx context.Context, id string) (*Record, error) {
	const q = `
SELECT id, code_hash, code, findings_json, markdown, exit_code, created_at
FROM code_reviews
WHERE id=$1;
`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// Paginate returns a page of records ordered by created_at desc.
func (r *PostgresRepository) Paginate(ctx context.Context, page, pageSize int) ([]*Record, error) {
	limit, offset := pageBounds(page, pageSize)

	const q = `
SELECT id, code_hash, code, findings_json, markdown, exit_code, created_at
FROM code_reviews
ORDER BY created_at DESC, id DESC
LIMIT $1 OFFSET $2;
`
	rows, err := r.db.QueryContext(ctx, q, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []*Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}
