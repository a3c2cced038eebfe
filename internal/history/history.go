// Package history persists completed review runs to MySQL or Postgres.
package history

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/richhaase/code-review-crew/internal/domain"
)

// ErrNotFound is returned by Get when no record has the requested ID.
var ErrNotFound = errors.New("review not found")

// Table is the name of the review history table.
const Table = "code_reviews"

// Default and maximum page sizes for Paginate.
const (
	DefaultPageSize = 20
	MaxPageSize     = 100
)

// Record is one stored review.
type Record struct {
	ID        string         `json:"id"`
	CodeHash  string         `json:"code_hash"`
	Code      string         `json:"code"`
	Findings  domain.Results `json:"findings"`
	Markdown  string         `json:"results"`
	ExitCode  int            `json:"exit_code"`
	CreatedAt time.Time      `json:"created_at"`
}

// Repository stores and lists review records.
type Repository interface {
	Save(ctx context.Context, r *Record) error
	Get(ctx context.Context, id string) (*Record, error)
	Paginate(ctx context.Context, page, pageSize int) ([]*Record, error)
	EnsureSchema(ctx context.Context) error
}

// NewRecord builds a record from a finished run and its rendered report.
func NewRecord(run domain.ReviewRun, markdown string) *Record {
	createdAt := run.StartedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	return &Record{
		ID:        run.ID,
		CodeHash:  HashCode(run.Input),
		Code:      run.Input,
		Findings:  run.Results,
		Markdown:  markdown,
		ExitCode:  domain.ExitCodeFor(run.Results).Int(),
		CreatedAt: createdAt.UTC(),
	}
}

// HashCode returns the hex SHA-256 of code.
func HashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}

// pageBounds normalizes pagination input and returns limit and offset.
func pageBounds(page, pageSize int) (limit, offset int) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return pageSize, (page - 1) * pageSize
}

func encodeFindings(r domain.Results) (string, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("encode findings: %w", err)
	}
	return string(data), nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(s scanner) (*Record, error) {
	var rec Record
	var findings string
	if err := s.Scan(&rec.ID, &rec.CodeHash, &rec.Code, &findings, &rec.Markdown, &rec.ExitCode, &rec.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(findings), &rec.Findings); err != nil {
		return nil, fmt.Errorf("decode findings for %s: %w", rec.ID, err)
	}
	return &rec, nil
}
