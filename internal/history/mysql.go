package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
)

// MySQLRepository stores records in MySQL.
type MySQLRepository struct {
	db *sql.DB
}

func NewMySQLRepository(db *sql.DB) *MySQLRepository {
	return &MySQLRepository{db: db}
}

// normalizeMySQLDSN enables parseTime so DATETIME columns scan into time.Time.
func normalizeMySQLDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("invalid mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	return cfg.FormatDSN(), nil
}

// EnsureSchema creates the history table if it does not exist.
func (r *MySQLRepository) EnsureSchema(ctx context.Context) error {
	const q = `
CREATE TABLE IF NOT EXISTS code_reviews (
  id VARCHAR(36) PRIMARY KEY,
  code_hash CHAR(64) NOT NULL,
  code MEDIUMTEXT NOT NULL,
  findings_json JSON NOT NULL,
  markdown MEDIUMTEXT NOT NULL,
  exit_code INT NOT NULL,
  created_at DATETIME(6) NOT NULL,
  INDEX idx_code_reviews_created (created_at)
);
`
	_, err := r.db.ExecContext(ctx, q)
	return err
}

// Save inserts a record, replacing any record with the same ID.
func (r *MySQLRepository) Save(ctx context.Context, rec *Record) error {
	const q = `
INSERT INTO code_reviews
  (id, code_hash, code, findings_json, markdown, exit_code, created_at)
VALUES (?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
  code_hash=VALUES(code_hash), code=VALUES(code), findings_json=VALUES(findings_json),
  markdown=VALUES(markdown), exit_code=VALUES(exit_code);
`
	findings, err := encodeFindings(rec.Findings)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, q, rec.ID, rec.CodeHash, rec.Code, findings, rec.Markdown, rec.ExitCode, rec.CreatedAt)
	return err
}

// Get returns the record with id, or ErrNotFound.
func (r *MySQLRepository) Get(ctx context.Context, id string) (*Record, error) {
	const q = `
SELECT id, code_hash, code, findings_json, markdown, exit_code, created_at
FROM code_reviews
WHERE id=?;
`
	rec, err := scanRecord(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return rec, err
}

// Paginate returns a page of records ordered by created_at desc.
func (r *MySQLRepository) Paginate(ctx context.Context, page, pageSize int) ([]*Record, error) {
	limit, offset := pageBounds(page, pageSize)

	const q = `
SELECT id, code_hash, code, findings_json, markdown, exit_code, created_at
FROM code_reviews
ORDER BY created_at DESC, id DESC
LIMIT ? OFFSET ?;
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
