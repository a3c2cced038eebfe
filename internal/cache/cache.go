// Package cache stores completed review runs keyed by provider, model,
// agent list and sanitized code, so identical submissions skip the LLM.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/richhaase/code-review-crew/internal/domain"
)

// Backend names.
const (
	BackendNone  = "none"
	BackendFile  = "file"
	BackendRedis = "redis"
)

// DefaultTTL is used when a cache is built with a non-positive TTL.
const DefaultTTL = 24 * time.Hour

// Cache stores review runs. A miss is reported as (zero, false, nil).
type Cache interface {
	Get(ctx context.Context, key string) (domain.ReviewRun, bool, error)
	Set(ctx context.Context, key string, run domain.ReviewRun) error
}

// Key derives a cache key from the parts that determine a review's output.
func Key(provider, model string, agents []string, code string) string {
	h := sha256.New()
	for _, part := range []string{provider, model, strings.Join(agents, ","), code} {
		h.Write([]byte(part))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Options selects and configures a backend.
type Options struct {
	Backend  string
	Dir      string
	RedisURL string
	TTL      time.Duration
}

// New returns the cache for opts.Backend, and a close function.
// An empty backend or "none" yields a cache that never hits.
func New(ctx context.Context, opts Options) (Cache, func() error, error) {
	noop := func() error { return nil }
	switch opts.Backend {
	case "", BackendNone:
		return Nop{}, noop, nil
	case BackendFile:
		return NewFileCache(opts.Dir, opts.TTL), noop, nil
	case BackendRedis:
		c, err := DialRedis(ctx, opts.RedisURL, opts.TTL)
		if err != nil {
			return nil, nil, err
		}
		return c, c.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported cache backend %q", opts.Backend)
	}
}

// Nop never stores anything.
type Nop struct{}

func (Nop) Get(context.Context, string) (domain.ReviewRun, bool, error) {
	return domain.ReviewRun{}, false, nil
}

func (Nop) Set(context.Context, string, domain.ReviewRun) error { return nil }

// entry is the stored form shared by the file and redis backends.
type entry struct {
	StoredAt time.Time        `json:"stored_at"`
	Run      domain.ReviewRun `json:"run"`
}
