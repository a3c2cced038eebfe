// Package service runs reviews end to end: cache lookup, the agent pipeline,
// report rendering, history and archive.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/richhaase/code-review-crew/internal/archive"
	"github.com/richhaase/code-review-crew/internal/cache"
	"github.com/richhaase/code-review-crew/internal/domain"
	"github.com/richhaase/code-review-crew/internal/history"
	"github.com/richhaase/code-review-crew/internal/runner"
	"github.com/richhaase/code-review-crew/internal/source"
	"github.com/richhaase/code-review-crew/internal/terminal"
)

// ErrHistoryDisabled is returned by history lookups when no repository is configured.
var ErrHistoryDisabled = errors.New("review history is not configured")

// Pipeline runs every configured agent over a submission. *runner.Pipeline implements it.
type Pipeline interface {
	ReviewAll(ctx context.Context, code string) domain.ReviewRun
	RoleNames() []string
}

// Archiver uploads rendered reports. *archive.Store implements it.
type Archiver interface {
	Put(ctx context.Context, r archive.Report) (string, error)
}

// Result is a finished review with its renderings.
type Result struct {
	Run        domain.ReviewRun
	Markdown   string
	JSON       string
	ArchiveURL string
}

// Service coordinates one review request.
type Service struct {
	pipeline Pipeline
	logger   *terminal.Logger

	cache    cache.Cache
	provider string
	model    string
	history  history.Repository
	archive  Archiver

	newID func() string
	now   func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithCache enables result caching. provider and model are part of the cache key.
func WithCache(c cache.Cache, provider, model string) Option {
	return func(s *Service) {
		s.cache = c
		s.provider = provider
		s.model = model
	}
}

// WithHistory stores every review in repo.
func WithHistory(repo history.Repository) Option {
	return func(s *Service) { s.history = repo }
}

// WithArchive uploads every report through a.
func WithArchive(a Archiver) Option {
	return func(s *Service) { s.archive = a }
}

// New creates a service around pipeline.
func New(pipeline Pipeline, logger *terminal.Logger, opts ...Option) *Service {
	s := &Service{
		pipeline: pipeline,
		logger:   logger,
		cache:    cache.Nop{},
		newID:    uuid.NewString,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HistoryEnabled reports whether reviews are persisted.
func (s *Service) HistoryEnabled() bool {
	return s.history != nil
}

// Review runs the pipeline over code, or serves a cached run for identical input.
// Cache, history and archive failures are logged and never fail the review.
func (s *Service) Review(ctx context.Context, code string) (Result, error) {
	key := cache.Key(s.provider, s.model, s.pipeline.RoleNames(), source.Sanitize(code))

	run, hit, err := s.cache.Get(ctx, key)
	if err != nil {
		s.logger.Logf(terminal.StyleWarning, "Cache lookup failed: %v", err)
	}
	if hit {
		s.logger.Debugf("Cache hit for %s", key[:12])
		run.Cached = true
		run.StartedAt = s.now()
		run.Duration = 0
	} else {
		run = s.pipeline.ReviewAll(ctx, code)
		if cacheable(ctx, run) {
			if err := s.cache.Set(ctx, key, run); err != nil {
				s.logger.Logf(terminal.StyleWarning, "Cache store failed: %v", err)
			}
		}
	}
	run.ID = s.newID()

	markdown := runner.RenderMarkdown(run.Results)
	jsonReport, err := runner.RenderJSON(run)
	if err != nil {
		return Result{}, err
	}
	result := Result{Run: run, Markdown: markdown, JSON: jsonReport}

	// Persist even when the caller has gone away.
	persistCtx := context.WithoutCancel(ctx)
	if s.history != nil {
		if err := s.history.Save(persistCtx, history.NewRecord(run, markdown)); err != nil {
			s.logger.Logf(terminal.StyleWarning, "Failed to save review %s: %v", run.ID, err)
		}
	}
	if s.archive != nil {
		url, err := s.archive.Put(persistCtx, archive.Report{ID: run.ID, JSON: []byte(jsonReport), Markdown: markdown})
		if err != nil {
			s.logger.Logf(terminal.StyleWarning, "Failed to archive review %s: %v", run.ID, err)
		} else {
			result.ArchiveURL = url
			s.logger.Debugf("Archived review %s to %s", run.ID, url)
		}
	}

	return result, nil
}

// cacheable reports whether a run is worth reusing. Runs with ERROR findings
// usually reflect transient provider failures, so they are not cached.
func cacheable(ctx context.Context, run domain.ReviewRun) bool {
	if ctx.Err() != nil {
		return false
	}
	return run.Results.CountBySeverity()[domain.SeverityError] == 0
}

// Get returns a stored review.
func (s *Service) Get(ctx context.Context, id string) (*history.Record, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	return s.history.Get(ctx, id)
}

// List returns a page of stored reviews, newest first.
func (s *Service) List(ctx context.Context, page, pageSize int) ([]*history.Record, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	return s.history.Paginate(ctx, page, pageSize)
}
