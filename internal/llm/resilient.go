package llm

import (
	"context"
	"time"

	"github.com/felixgeelhaar/fortify/retry"
	"github.com/felixgeelhaar/fortify/timeout"
)

// ResilienceConfig bounds retries and wall time for one Generate call.
type ResilienceConfig struct {
	// MaxRetries is the number of additional attempts after the first.
	MaxRetries int
	RetryDelay time.Duration
	Timeout    time.Duration
}

// DefaultResilienceConfig returns the settings used when none are configured.
func DefaultResilienceConfig() ResilienceConfig {
	return ResilienceConfig{
		MaxRetries: 2,
		RetryDelay: time.Second,
		Timeout:    90 * time.Second,
	}
}

// Resilient wraps a Generator with retry and timeout. Permanent failures
// (blocked content, missing or rejected credentials) are returned at once.
type Resilient struct {
	inner Generator
	cfg   ResilienceConfig
}

// NewResilient wraps inner with the default resilience settings.
func NewResilient(inner Generator) *Resilient {
	return NewResilientWithConfig(inner, DefaultResilienceConfig())
}

// NewResilientWithConfig wraps inner. Zero fields take their defaults;
// a negative MaxRetries disables retrying.
func NewResilientWithConfig(inner Generator, cfg ResilienceConfig) *Resilient {
	def := DefaultResilienceConfig()
	if cfg.MaxRetries == 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = def.RetryDelay
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Resilient{inner: inner, cfg: cfg}
}

// Config returns the effective settings.
func (p *Resilient) Config() ResilienceConfig {
	return p.cfg
}

// Generate calls the wrapped generator, retrying transient failures with
// exponential backoff inside an overall timeout.
func (p *Resilient) Generate(ctx context.Context, req Request) (string, error) {
	r := retry.New[string](retry.Config{
		MaxAttempts:   p.cfg.MaxRetries + 1,
		InitialDelay:  p.cfg.RetryDelay,
		BackoffPolicy: retry.BackoffExponential,
		IsRetryable:   func(err error) bool { return !IsPermanent(err) },
	})
	t := timeout.New[string](timeout.Config{
		DefaultTimeout: p.cfg.Timeout,
	})

	return t.Execute(ctx, p.cfg.Timeout, func(ctx context.Context) (string, error) {
		return r.Do(ctx, func(ctx context.Context) (string, error) {
			return p.inner.Generate(ctx, req)
		})
	})
}
